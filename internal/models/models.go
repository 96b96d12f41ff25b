package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Owner struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"     json:"id"`
	Name      string    `gorm:"not null"                        json:"name"`
	Email     string    `gorm:"not null;uniqueIndex"            json:"email"`
	Password  string    `gorm:"not null"                        json:"-"`
	Address   string    `gorm:"not null"                        json:"address"`
	Picture   string    `gorm:"not null"                        json:"picture"`
	Role      string    `gorm:"not null;default:owner"          json:"role"`
	Products  []Product `gorm:"foreignKey:OwnerID"              json:"products,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Product struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"     json:"id"`
	Name      string    `gorm:"not null"                        json:"name"`
	Details   string    `gorm:"not null"                        json:"details"`
	Price     float64   `gorm:"not null"                        json:"price"`
	Stock     int       `gorm:"not null"                        json:"stock"`
	OwnerID   string    `gorm:"not null;index;type:varchar(36)" json:"ownerId"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (o *Owner) BeforeCreate(*gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
