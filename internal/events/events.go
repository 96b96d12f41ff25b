package events

import (
	"context"
	"time"
)

const (
	OwnerRegistered = "owner_registered"
	ProductCreated  = "product_created"
	ProductUpdated  = "product_updated"
	ProductDeleted  = "product_deleted"
)

type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
	Close() error
}

type OwnerEvent struct {
	Type    string    `json:"type"`
	OwnerID string    `json:"ownerID"`
	Name    string    `json:"name"`
	Email   string    `json:"email"`
	At      time.Time `json:"at"`
}

type ProductEvent struct {
	Type      string    `json:"type"`
	ProductID string    `json:"productID"`
	OwnerID   string    `json:"ownerID"`
	Name      string    `json:"name,omitempty"`
	Price     float64   `json:"price,omitempty"`
	Stock     int       `json:"stock,omitempty"`
	At        time.Time `json:"at"`
}

// Noop drops every event. Used when no brokers are configured.
type Noop struct{}

func (Noop) PublishEvent(context.Context, string, string, any) error { return nil }
func (Noop) Close() error                                            { return nil }
