package mongostore

import (
	"fmt"
	"time"

	"inventory-service/internal/models"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	productsCollection     = "products"
	transactionsCollection = "transactions"
)

type productDocument struct {
	ID            string               `bson:"_id"`
	Name          string               `bson:"name"`
	Category      string               `bson:"category"`
	Description   string               `bson:"description"`
	Price         primitive.Decimal128 `bson:"price"`
	Stock         int                  `bson:"stock"`
	MinStockLevel int                  `bson:"min_stock_level"`
	Status        string               `bson:"status"`
	SupplierID    string               `bson:"supplier_id,omitempty"`
	CreatedBy     string               `bson:"created_by"`
	UpdatedBy     string               `bson:"updated_by"`
	ApprovedBy    string               `bson:"approved_by,omitempty"`
	CreatedAt     time.Time            `bson:"created_at"`
	UpdatedAt     time.Time            `bson:"updated_at"`
	ApprovedAt    *time.Time           `bson:"approved_at,omitempty"`
}

type lineDocument struct {
	ProductID   string               `bson:"product_id"`
	Quantity    int                  `bson:"quantity"`
	UnitPrice   primitive.Decimal128 `bson:"unit_price"`
	Placeholder bool                 `bson:"placeholder,omitempty"`
}

// transactionDocument embeds its lines. product_ids is denormalized so pending
// references to a product can be found with an index.
type transactionDocument struct {
	ID             string               `bson:"_id"`
	Kind           string               `bson:"kind"`
	CounterpartyID string               `bson:"counterparty_id"`
	Items          []lineDocument       `bson:"items"`
	ProductIDs     []string             `bson:"product_ids"`
	Status         string               `bson:"status"`
	TotalAmount    primitive.Decimal128 `bson:"total_amount"`
	IdempotencyKey string               `bson:"idempotency_key,omitempty"`
	DecidedBy      string               `bson:"decided_by,omitempty"`
	DecidedAt      *time.Time           `bson:"decided_at,omitempty"`
	CreatedAt      time.Time            `bson:"created_at"`
	UpdatedAt      time.Time            `bson:"updated_at"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("failed to encode decimal %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode decimal %s: %w", v, err)
	}
	return d, nil
}

func newProductDocument(p *models.Product) (*productDocument, error) {
	price, err := toDecimal128(p.Price)
	if err != nil {
		return nil, err
	}
	return &productDocument{
		ID:            p.ID,
		Name:          p.Name,
		Category:      p.Category,
		Description:   p.Description,
		Price:         price,
		Stock:         p.Stock,
		MinStockLevel: p.MinStockLevel,
		Status:        string(p.Status),
		SupplierID:    p.SupplierID,
		CreatedBy:     p.CreatedBy,
		UpdatedBy:     p.UpdatedBy,
		ApprovedBy:    p.ApprovedBy,
		CreatedAt:     p.CreatedAt.UTC(),
		UpdatedAt:     p.UpdatedAt.UTC(),
		ApprovedAt:    p.ApprovedAt,
	}, nil
}

func (d *productDocument) model() (*models.Product, error) {
	price, err := fromDecimal128(d.Price)
	if err != nil {
		return nil, err
	}
	return &models.Product{
		ID:            d.ID,
		Name:          d.Name,
		Category:      d.Category,
		Description:   d.Description,
		Price:         price,
		Stock:         d.Stock,
		MinStockLevel: d.MinStockLevel,
		Status:        models.ProductStatus(d.Status),
		SupplierID:    d.SupplierID,
		CreatedBy:     d.CreatedBy,
		UpdatedBy:     d.UpdatedBy,
		ApprovedBy:    d.ApprovedBy,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
		ApprovedAt:    d.ApprovedAt,
	}, nil
}

func newTransactionDocument(t *models.Transaction) (*transactionDocument, error) {
	total, err := toDecimal128(t.TotalAmount)
	if err != nil {
		return nil, err
	}

	items := make([]lineDocument, 0, len(t.Items))
	for _, item := range t.Items {
		price, err := toDecimal128(item.UnitPrice)
		if err != nil {
			return nil, err
		}
		items = append(items, lineDocument{
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			UnitPrice:   price,
			Placeholder: item.Placeholder,
		})
	}

	return &transactionDocument{
		ID:             t.ID,
		Kind:           string(t.Kind),
		CounterpartyID: t.CounterpartyID,
		Items:          items,
		ProductIDs:     t.ProductIDs(),
		Status:         string(t.Status),
		TotalAmount:    total,
		IdempotencyKey: t.IdempotencyKey,
		DecidedBy:      t.DecidedBy,
		DecidedAt:      t.DecidedAt,
		CreatedAt:      t.CreatedAt.UTC(),
		UpdatedAt:      t.UpdatedAt.UTC(),
	}, nil
}

func (d *transactionDocument) model() (*models.Transaction, error) {
	total, err := fromDecimal128(d.TotalAmount)
	if err != nil {
		return nil, err
	}

	items := make([]models.OrderLine, 0, len(d.Items))
	for _, item := range d.Items {
		price, err := fromDecimal128(item.UnitPrice)
		if err != nil {
			return nil, err
		}
		items = append(items, models.OrderLine{
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			UnitPrice:   price,
			Placeholder: item.Placeholder,
		})
	}

	return &models.Transaction{
		ID:             d.ID,
		Kind:           models.TransactionKind(d.Kind),
		CounterpartyID: d.CounterpartyID,
		Items:          items,
		Status:         models.TransactionStatus(d.Status),
		TotalAmount:    total,
		IdempotencyKey: d.IdempotencyKey,
		DecidedBy:      d.DecidedBy,
		DecidedAt:      d.DecidedAt,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}, nil
}
