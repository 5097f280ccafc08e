package service

import (
	"context"
	"time"

	"inventory-service/internal/models"
)

// Storage is the persistence port of the inventory engine. Implementations must make
// AdjustStock, CreateTransaction and CommitTransition atomic. A StockChange with SetStock
// must only match a product that is still not available.
type Storage interface {
	Ping(ctx context.Context) error

	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	ListLowStockProducts(ctx context.Context) ([]models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id string) error
	UpdateProduct(ctx context.Context, id string, update models.ProductUpdate, actor string, at time.Time) (*models.Product, error)
	// AdjustStock applies delta only to an available product.
	AdjustStock(ctx context.Context, id string, delta int, actor string, at time.Time) (*models.Product, error)

	CreateTransaction(ctx context.Context, t *models.Transaction, placeholders []models.Product) error
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	// FindTransactionByIdempotencyKey returns nil, nil when the key is unused.
	FindTransactionByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error)
	CommitTransition(ctx context.Context, tr models.Transition) (*models.Transaction, error)
}

// EventPublisher publishes domain events. Publishing is best effort.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, event *models.TransactionEvent) error
}

type noopPublisher struct{}

func (noopPublisher) PublishTransactionEvent(context.Context, *models.TransactionEvent) error {
	return nil
}
