package transport

import "github.com/Skotchmaster/owner_shop/internal/models"

type RegisterRequest struct {
	Name     string `form:"name"     json:"name"     validate:"required"`
	Email    string `form:"email"    json:"email"    validate:"required,email"`
	Password string `form:"password" json:"password" validate:"required,min=6"`
	Address  string `form:"address"  json:"address"  validate:"required"`
	// Picture holds the uploaded file name; the file itself travels separately.
	Picture string `form:"-" json:"picture" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type TokenResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

type ProfileResponse struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	ProfilePhoto string `json:"profilePhoto"`
}

type CreateProductRequest struct {
	Name    string   `json:"name"    validate:"required"`
	Details string   `json:"details" validate:"required"`
	Price   *float64 `json:"price"   validate:"required,gte=0"`
	Stock   *int     `json:"stock"   validate:"required,gte=0"`
	OwnerID string   `json:"ownerId" validate:"required"`
}

type PatchProductRequest struct {
	Name    *string  `json:"name"    validate:"omitnil,min=1"`
	Details *string  `json:"details" validate:"omitnil,min=1"`
	Price   *float64 `json:"price"   validate:"omitnil,gte=0"`
	Stock   *int     `json:"stock"   validate:"omitnil,gte=0"`
}

func (r PatchProductRequest) Empty() bool {
	return r.Name == nil && r.Details == nil && r.Price == nil && r.Stock == nil
}

func (r PatchProductRequest) Apply(p *models.Product) {
	if r.Name != nil {
		p.Name = *r.Name
	}
	if r.Details != nil {
		p.Details = *r.Details
	}
	if r.Price != nil {
		p.Price = *r.Price
	}
	if r.Stock != nil {
		p.Stock = *r.Stock
	}
}

type MessageResponse struct {
	Message string `json:"message"`
}

type SearchResponse struct {
	Total    int64            `json:"total"`
	Products []models.Product `json:"products"`
}
