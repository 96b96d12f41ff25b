package search

import (
	"context"

	"github.com/Skotchmaster/owner_shop/internal/models"
	"github.com/Skotchmaster/owner_shop/internal/repo"
)

type Indexer interface {
	IndexProduct(ctx context.Context, p models.Product) error
	DeleteProduct(ctx context.Context, id string) error
}

type Searcher interface {
	Search(ctx context.Context, ownerID, query string, offset, limit int) (int64, []models.Product, error)
}

// RepoSearcher answers searches from the primary store when Elasticsearch
// is not configured.
type RepoSearcher struct {
	Repo repo.Repository
}

func (s RepoSearcher) Search(ctx context.Context, ownerID, query string, offset, limit int) (int64, []models.Product, error) {
	return s.Repo.SearchProducts(ctx, ownerID, query, offset, limit)
}

type NoopIndexer struct{}

func (NoopIndexer) IndexProduct(context.Context, models.Product) error { return nil }
func (NoopIndexer) DeleteProduct(context.Context, string) error        { return nil }
