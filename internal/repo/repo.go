package repo

import (
	"context"
	"errors"

	"github.com/Skotchmaster/owner_shop/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// Repository is the storage contract shared by the SQL and MongoDB backends.
type Repository interface {
	CreateOwnerIfNotExists(ctx context.Context, o *models.Owner) error
	GetOwnerByEmail(ctx context.Context, email string) (*models.Owner, error)
	GetOwnerByID(ctx context.Context, id string) (*models.Owner, error)

	ListProducts(ctx context.Context, ownerID string) ([]models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id string) error
	SearchProducts(ctx context.Context, ownerID, q string, offset, limit int) (int64, []models.Product, error)

	Ping(ctx context.Context) error
}
