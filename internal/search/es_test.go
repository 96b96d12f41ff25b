package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/owner_shop/internal/models"
)

type fakeES struct {
	mu       sync.Mutex
	indexed  map[string]models.Product
	lastBody map[string]any
	created  bool
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	body, _ := io.ReadAll(r.Body)

	switch {
	case r.URL.Path == "/":
		_, _ = w.Write([]byte(`{"version":{"number":"9.0.0"},"tagline":"You Know, for Search"}`))
	case r.Method == http.MethodHead && r.URL.Path == "/products":
		if f.created {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	case r.Method == http.MethodPut && r.URL.Path == "/products":
		f.created = true
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
	case strings.HasPrefix(r.URL.Path, "/products/_doc/") && r.Method != http.MethodDelete:
		var p models.Product
		_ = json.Unmarshal(body, &p)
		f.indexed[strings.TrimPrefix(r.URL.Path, "/products/_doc/")] = p
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	case r.Method == http.MethodDelete:
		id := strings.TrimPrefix(r.URL.Path, "/products/_doc/")
		if _, ok := f.indexed[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"result":"not_found"}`))
			return
		}
		delete(f.indexed, id)
		_, _ = w.Write([]byte(`{"result":"deleted"}`))
	case strings.HasSuffix(r.URL.Path, "/_search"):
		_ = json.Unmarshal(body, &f.lastBody)
		_, _ = w.Write([]byte(`{"hits":{"total":{"value":7},"hits":[{"_source":{"id":"p-1","name":"Lamp","ownerId":"o-1","price":3}}]}}`))
	default:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"unexpected"}`))
	}
}

func newTestIndex(t *testing.T) (*ESIndex, *fakeES) {
	t.Helper()

	fake := &fakeES{indexed: map[string]models.Product{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := NewClient(ESConfig{URL: srv.URL})
	require.NoError(t, err)
	return &ESIndex{Client: client, Index: "products"}, fake
}

func TestESIndex_EnsureIndex(t *testing.T) {
	x, fake := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, x.EnsureIndex(ctx))
	assert.True(t, fake.created)
	require.NoError(t, x.EnsureIndex(ctx))
}

func TestESIndex_IndexAndDelete(t *testing.T) {
	x, fake := newTestIndex(t)
	ctx := context.Background()

	p := models.Product{ID: "p-1", Name: "Lamp", Details: "desk", OwnerID: "o-1", Price: 3}
	require.NoError(t, x.IndexProduct(ctx, p))
	require.Contains(t, fake.indexed, "p-1")
	assert.Equal(t, "o-1", fake.indexed["p-1"].OwnerID)

	require.NoError(t, x.DeleteProduct(ctx, "p-1"))
	assert.NotContains(t, fake.indexed, "p-1")
	require.NoError(t, x.DeleteProduct(ctx, "p-1"))
}

func TestESIndex_SearchIsOwnerScoped(t *testing.T) {
	x, fake := newTestIndex(t)

	total, items, err := x.Search(context.Background(), "o-1", "lamp", 10, 5)
	require.NoError(t, err)
	assert.EqualValues(t, 7, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Lamp", items[0].Name)

	q := fake.lastBody
	assert.EqualValues(t, 10, q["from"])
	assert.EqualValues(t, 5, q["size"])
	filter := q["query"].(map[string]any)["bool"].(map[string]any)["filter"].(map[string]any)
	assert.Equal(t, "o-1", filter["term"].(map[string]any)["ownerId"])
}

func TestNewClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(ESConfig{URL: srv.URL})
	require.Error(t, err)
}
