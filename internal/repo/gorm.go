package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/owner_shop/internal/models"
)

type GormRepo struct {
	DB *gorm.DB
}

func NewGormRepo(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}

func (r *GormRepo) CreateOwnerIfNotExists(ctx context.Context, o *models.Owner) error {
	tx := r.DB.WithContext(ctx).Where("email = ?", o.Email).FirstOrCreate(o)
	if tx.Error != nil {
		return translate(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

func (r *GormRepo) GetOwnerByEmail(ctx context.Context, email string) (*models.Owner, error) {
	var owner models.Owner
	if err := r.DB.WithContext(ctx).Where("email = ?", email).First(&owner).Error; err != nil {
		return nil, translate(err)
	}
	return &owner, nil
}

func (r *GormRepo) GetOwnerByID(ctx context.Context, id string) (*models.Owner, error) {
	var owner models.Owner
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&owner).Error; err != nil {
		return nil, translate(err)
	}
	return &owner, nil
}

func (r *GormRepo) ListProducts(ctx context.Context, ownerID string) ([]models.Product, error) {
	var items []models.Product
	if err := r.DB.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

// CreateProduct inserts p. The owner's product list is the has-many
// relation on owner_id, so no second write is needed. It returns
// ErrNotFound when the owner does not exist.
func (r *GormRepo) CreateProduct(ctx context.Context, p *models.Product) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Owner{}).Where("id = ?", p.OwnerID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return translate(tx.Create(p).Error)
	})
}

func (r *GormRepo) UpdateProduct(ctx context.Context, p *models.Product) error {
	res := r.DB.WithContext(ctx).Model(p).Select("name", "details", "price", "stock", "updated_at").Updates(p)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepo) DeleteProduct(ctx context.Context, id string) error {
	res := r.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SearchProducts is a case-insensitive substring match over name and details.
func (r *GormRepo) SearchProducts(ctx context.Context, ownerID, q string, offset, limit int) (int64, []models.Product, error) {
	pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
	where := "owner_id = ? AND (LOWER(name) LIKE ? ESCAPE '\\' OR LOWER(details) LIKE ? ESCAPE '\\')"

	var total int64
	if err := r.DB.WithContext(ctx).
		Model(&models.Product{}).
		Where(where, ownerID, pattern, pattern).
		Count(&total).Error; err != nil {
		return 0, nil, err
	}

	items := make([]models.Product, 0, limit)
	if err := r.DB.WithContext(ctx).
		Where(where, ownerID, pattern, pattern).
		Order("name ASC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

func (r *GormRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
