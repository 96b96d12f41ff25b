package repo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Skotchmaster/owner_shop/internal/models"
)

const (
	ownersCollection   = "owners"
	productsCollection = "products"
)

type ownerDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Email     string    `bson:"email"`
	Password  string    `bson:"password"`
	Address   string    `bson:"address"`
	Picture   string    `bson:"picture"`
	Role      string    `bson:"role"`
	Products  []string  `bson:"products"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

type productDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Details   string    `bson:"details"`
	Price     float64   `bson:"price"`
	Stock     int       `bson:"stock"`
	OwnerID   string    `bson:"ownerId"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func (d ownerDoc) model() *models.Owner {
	return &models.Owner{
		ID:        d.ID,
		Name:      d.Name,
		Email:     d.Email,
		Password:  d.Password,
		Address:   d.Address,
		Picture:   d.Picture,
		Role:      d.Role,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func (d productDoc) model() models.Product {
	return models.Product{
		ID:        d.ID,
		Name:      d.Name,
		Details:   d.Details,
		Price:     d.Price,
		Stock:     d.Stock,
		OwnerID:   d.OwnerID,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// MongoRepo keeps owners and products in two collections. An owner document
// carries the ordered ids of its products.
type MongoRepo struct {
	Owners   *mongo.Collection
	Products *mongo.Collection
	client   *mongo.Client
}

func NewMongoRepo(ctx context.Context, client *mongo.Client, database string) (*MongoRepo, error) {
	db := client.Database(database)
	r := &MongoRepo{
		Owners:   db.Collection(ownersCollection),
		Products: db.Collection(productsCollection),
		client:   client,
	}

	if _, err := r.Owners.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, fmt.Errorf("create owners email index: %w", err)
	}
	if _, err := r.Products.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "ownerId", Value: 1}},
	}); err != nil {
		return nil, fmt.Errorf("create products owner index: %w", err)
	}
	return r, nil
}

func (r *MongoRepo) CreateOwnerIfNotExists(ctx context.Context, o *models.Owner) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Role == "" {
		o.Role = "owner"
	}
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now

	doc := ownerDoc{
		ID:        o.ID,
		Name:      o.Name,
		Email:     o.Email,
		Password:  o.Password,
		Address:   o.Address,
		Picture:   o.Picture,
		Role:      o.Role,
		Products:  []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := r.Owners.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *MongoRepo) findOwner(ctx context.Context, filter bson.M) (*models.Owner, error) {
	var doc ownerDoc
	if err := r.Owners.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.model(), nil
}

func (r *MongoRepo) GetOwnerByEmail(ctx context.Context, email string) (*models.Owner, error) {
	return r.findOwner(ctx, bson.M{"email": email})
}

func (r *MongoRepo) GetOwnerByID(ctx context.Context, id string) (*models.Owner, error) {
	return r.findOwner(ctx, bson.M{"_id": id})
}

func (r *MongoRepo) findProducts(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Product, error) {
	cur, err := r.Products.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	items := make([]models.Product, 0, len(docs))
	for _, d := range docs {
		items = append(items, d.model())
	}
	return items, nil
}

func (r *MongoRepo) ListProducts(ctx context.Context, ownerID string) ([]models.Product, error) {
	return r.findProducts(ctx, bson.M{"ownerId": ownerID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
}

func (r *MongoRepo) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var doc productDoc
	if err := r.Products.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p := doc.model()
	return &p, nil
}

// CreateProduct inserts p and appends its id to the owner's product list.
// It returns ErrNotFound when the owner does not exist. The inserted
// document is removed again if the owner cannot be updated.
func (r *MongoRepo) CreateProduct(ctx context.Context, p *models.Product) error {
	n, err := r.Owners.CountDocuments(ctx, bson.M{"_id": p.OwnerID}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	if _, err := r.Products.InsertOne(ctx, productDoc{
		ID:        p.ID,
		Name:      p.Name,
		Details:   p.Details,
		Price:     p.Price,
		Stock:     p.Stock,
		OwnerID:   p.OwnerID,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return err
	}

	res, err := r.Owners.UpdateOne(ctx,
		bson.M{"_id": p.OwnerID},
		bson.M{"$push": bson.M{"products": p.ID}, "$set": bson.M{"updatedAt": now}},
	)
	if err == nil && res.MatchedCount == 0 {
		err = ErrNotFound
	}
	if err != nil {
		if _, derr := r.Products.DeleteOne(context.WithoutCancel(ctx), bson.M{"_id": p.ID}); derr != nil {
			return fmt.Errorf("append product to owner: %w (rollback: %v)", err, derr)
		}
		return fmt.Errorf("append product to owner: %w", err)
	}
	return nil
}

func (r *MongoRepo) UpdateProduct(ctx context.Context, p *models.Product) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := r.Products.UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{"$set": bson.M{
		"name":      p.Name,
		"details":   p.Details,
		"price":     p.Price,
		"stock":     p.Stock,
		"updatedAt": p.UpdatedAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepo) DeleteProduct(ctx context.Context, id string) error {
	var doc productDoc
	if err := r.Products.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return err
	}

	if _, err := r.Owners.UpdateOne(ctx,
		bson.M{"_id": doc.OwnerID},
		bson.M{"$pull": bson.M{"products": id}},
	); err != nil {
		return fmt.Errorf("remove product from owner: %w", err)
	}
	return nil
}

func (r *MongoRepo) SearchProducts(ctx context.Context, ownerID, q string, offset, limit int) (int64, []models.Product, error) {
	pattern := bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
	filter := bson.M{
		"ownerId": ownerID,
		"$or":     bson.A{bson.M{"name": pattern}, bson.M{"details": pattern}},
	}

	total, err := r.Products.CountDocuments(ctx, filter)
	if err != nil {
		return 0, nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	items, err := r.findProducts(ctx, filter, opts)
	if err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

func (r *MongoRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}

// ProductIDs returns the owner's product list in insertion order.
func (r *MongoRepo) ProductIDs(ctx context.Context, ownerID string) ([]string, error) {
	var doc ownerDoc
	err := r.Owners.FindOne(ctx, bson.M{"_id": ownerID},
		options.FindOne().SetProjection(bson.M{"products": 1})).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.Products, nil
}
