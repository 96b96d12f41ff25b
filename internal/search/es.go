package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"

	"github.com/Skotchmaster/owner_shop/internal/models"
)

const productMapping = `{
  "mappings": {
    "properties": {
      "id":         {"type": "keyword"},
      "name":       {"type": "text"},
      "details":    {"type": "text"},
      "price":      {"type": "double"},
      "stock":      {"type": "integer"},
      "ownerId":    {"type": "keyword"},
      "created_at": {"type": "date"},
      "updated_at": {"type": "date"}
    }
  }
}`

type ESConfig struct {
	URL       string
	User      string
	Password  string
	Transport http.RoundTripper
}

func NewClient(cfg ESConfig) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.User,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError("info", res)
	}
	return client, nil
}

// ESIndex keeps a product index in Elasticsearch and searches it per owner.
type ESIndex struct {
	Client *elasticsearch.Client
	Index  string
}

func (x *ESIndex) EnsureIndex(ctx context.Context) error {
	res, err := x.Client.Indices.Exists([]string{x.Index}, x.Client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("index exists: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = x.Client.Indices.Create(x.Index,
		x.Client.Indices.Create.WithContext(ctx),
		x.Client.Indices.Create.WithBody(strings.NewReader(productMapping)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("create index", res)
	}
	return nil
}

func (x *ESIndex) IndexProduct(ctx context.Context, p models.Product) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(p); err != nil {
		return fmt.Errorf("encode product: %w", err)
	}

	res, err := x.Client.Index(x.Index, &buf,
		x.Client.Index.WithContext(ctx),
		x.Client.Index.WithDocumentID(p.ID),
		x.Client.Index.WithRefresh("wait_for"),
	)
	if err != nil {
		return fmt.Errorf("index product: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("index product", res)
	}
	return nil
}

func (x *ESIndex) DeleteProduct(ctx context.Context, id string) error {
	res, err := x.Client.Delete(x.Index, id, x.Client.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete product", res)
	}
	return nil
}

func (x *ESIndex) Search(ctx context.Context, ownerID, query string, offset, limit int) (int64, []models.Product, error) {
	body := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": map[string]any{
					"multi_match": map[string]any{
						"query":     query,
						"fields":    []string{"name^2", "details"},
						"fuzziness": "AUTO",
					},
				},
				"filter": map[string]any{
					"term": map[string]any{"ownerId": ownerID},
				},
			},
		},
		"from": offset,
		"size": limit,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("encode query: %w", err)
	}

	res, err := x.Client.Search(
		x.Client.Search.WithContext(ctx),
		x.Client.Search.WithIndex(x.Index),
		x.Client.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, responseError("search", res)
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Product `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("decode search response: %w", err)
	}

	prods := make([]models.Product, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		prods[i] = hit.Source
	}
	return r.Hits.Total.Value, prods, nil
}

func responseError(op string, res *esapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	return fmt.Errorf("elasticsearch %s: %s: %s", op, res.Status(), strings.TrimSpace(string(body)))
}
