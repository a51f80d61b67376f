package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/cart"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	cartsCollection = "carts"
	cartRetention   = 90 * 24 * time.Hour
)

type cartItemDocument struct {
	ProductID string    `bson:"product_id"`
	Quantity  int       `bson:"quantity"`
	AddedAt   time.Time `bson:"added_at"`
}

type cartDocument struct {
	BuyerID   string             `bson:"buyer_id"`
	Items     []cartItemDocument `bson:"items"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

// CartRepository stores one document per buyer; Save replaces it whole.
type CartRepository struct {
	collection *mongo.Collection
}

var _ cart.Repository = (*CartRepository)(nil)

func NewCartRepository(db *mongo.Database) *CartRepository {
	return &CartRepository{collection: db.Collection(cartsCollection)}
}

func (r *CartRepository) Get(ctx context.Context, buyerID string) (*cart.Cart, error) {
	var doc cartDocument
	err := r.collection.FindOne(ctx, bson.M{"buyer_id": buyerID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	if c == nil || c.BuyerID == "" {
		return errors.New("cart repository: buyer id is required")
	}
	doc := fromDomain(c)
	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"buyer_id": c.BuyerID}, doc, opts); err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}
	return nil
}

// CreateIndexes enforces one cart per buyer and expires carts left untouched.
func (r *CartRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "buyer_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(cartRetention.Seconds())),
		},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func fromDomain(c *cart.Cart) cartDocument {
	items := make([]cartItemDocument, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, cartItemDocument{ProductID: it.ProductID, Quantity: it.Quantity, AddedAt: it.AddedAt.UTC()})
	}
	return cartDocument{
		BuyerID:   c.BuyerID,
		Items:     items,
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
	}
}

func (d cartDocument) toDomain() *cart.Cart {
	items := make([]cart.Item, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, cart.Item{ProductID: it.ProductID, Quantity: it.Quantity, AddedAt: it.AddedAt})
	}
	return &cart.Cart{
		BuyerID:   d.BuyerID,
		Items:     items,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}
