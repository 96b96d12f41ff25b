package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Skotchmaster/owner_shop/internal/events"
	"github.com/Skotchmaster/owner_shop/internal/logging"
	"github.com/Skotchmaster/owner_shop/internal/models"
	"github.com/Skotchmaster/owner_shop/internal/repo"
	"github.com/Skotchmaster/owner_shop/internal/search"
	"github.com/Skotchmaster/owner_shop/internal/transport"
	"github.com/Skotchmaster/owner_shop/internal/util"
	"github.com/Skotchmaster/owner_shop/internal/validation"
)

type ProductService struct {
	Repo      repo.Repository
	Index     search.Indexer
	Searcher  search.Searcher
	Events    events.Publisher
	Validator *validation.Validator
	Topic     string
}

func (s *ProductService) List(ctx context.Context, ownerID string) ([]models.Product, error) {
	items, err := s.Repo.ListProducts(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return items, nil
}

// Get returns the product only when ownerID owns it; anyone else gets
// ErrNotFound.
func (s *ProductService) Get(ctx context.Context, ownerID, id string) (*models.Product, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *ProductService) Create(ctx context.Context, ownerID string, req transport.CreateProductRequest) (*models.Product, error) {
	req.OwnerID = ownerID
	if msgs := s.Validator.Struct(req); len(msgs) > 0 {
		return nil, invalid(msgs...)
	}

	p := &models.Product{
		Name:    req.Name,
		Details: req.Details,
		Price:   *req.Price,
		Stock:   *req.Stock,
		OwnerID: req.OwnerID,
	}
	if err := s.Repo.CreateProduct(ctx, p); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrOwnerNotFound
		}
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.afterWrite(ctx, events.ProductCreated, *p)
	return p, nil
}

func (s *ProductService) Update(ctx context.Context, ownerID, id string, req transport.PatchProductRequest) (*models.Product, error) {
	if req.Empty() {
		return nil, invalid("at least one of name, details, price, stock is required")
	}
	if msgs := s.Validator.Struct(req); len(msgs) > 0 {
		return nil, invalid(msgs...)
	}

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != ownerID {
		return nil, ErrForbidden
	}

	req.Apply(p)
	if err := s.Repo.UpdateProduct(ctx, p); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.afterWrite(ctx, events.ProductUpdated, *p)
	return p, nil
}

func (s *ProductService) Delete(ctx context.Context, ownerID, id string) error {
	p, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if p.OwnerID != ownerID {
		return ErrForbidden
	}

	if err := s.Repo.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete product: %w", err)
	}

	s.afterWrite(ctx, events.ProductDeleted, *p)
	return nil
}

func (s *ProductService) Search(ctx context.Context, ownerID, query string, page, size int) (int64, []models.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return 0, nil, invalid("q is a required field")
	}

	offset, limit := util.Calculate(page, size)
	total, items, err := s.Searcher.Search(ctx, ownerID, query, offset, limit)
	if err != nil {
		return 0, nil, fmt.Errorf("search products: %w", err)
	}
	if items == nil {
		items = []models.Product{}
	}
	return total, items, nil
}

func (s *ProductService) load(ctx context.Context, id string) (*models.Product, error) {
	p, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// afterWrite publishes the change and syncs the search index. Failures are
// logged and never fail the request.
func (s *ProductService) afterWrite(ctx context.Context, kind string, p models.Product) {
	l := logging.FromContext(ctx).With(zap.String("product_id", p.ID), zap.String("type", kind))

	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	ev := events.ProductEvent{Type: kind, ProductID: p.ID, OwnerID: p.OwnerID, At: time.Now().UTC()}
	if kind != events.ProductDeleted {
		ev.Name, ev.Price, ev.Stock = p.Name, p.Price, p.Stock
	}
	if err := s.Events.PublishEvent(sideCtx, s.Topic, p.ID, ev); err != nil {
		l.Error("publish_failed", zap.String("topic", s.Topic), zap.Error(err))
	}

	var err error
	if kind == events.ProductDeleted {
		err = s.Index.DeleteProduct(sideCtx, p.ID)
	} else {
		err = s.Index.IndexProduct(sideCtx, p)
	}
	if err != nil {
		l.Error("index_sync_failed", zap.Error(err))
	}
}
