package service

import (
	"context"
	"fmt"
	"time"

	"inventory-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderBuilder validates client line items and materializes pending orders.
// It reads the ledger but never mutates stock.
type OrderBuilder struct {
	ledger *Ledger
	now    func() time.Time
}

// NewOrderBuilder creates a new order builder
func NewOrderBuilder(ledger *Ledger) *OrderBuilder {
	return &OrderBuilder{ledger: ledger, now: time.Now}
}

// BuildSalesOrder prices every line at the current catalog price and checks the requested
// quantity against the purchasable stock of each product.
func (b *OrderBuilder) BuildSalesOrder(ctx context.Context, customerID string, lines []models.ExistingProductLine) (*models.Transaction, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: order has no items", models.ErrInvalidLineItem)
	}
	for _, line := range lines {
		if err := line.Validate(); err != nil {
			return nil, err
		}
	}

	products := make(map[string]*models.Product, len(lines))
	requested := make(map[string]int, len(lines))
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			var err error
			product, err = b.ledger.GetProduct(ctx, line.ProductID)
			if err != nil {
				return nil, err
			}
			if product.Status != models.ProductStatusAvailable {
				return nil, fmt.Errorf("%w: %s", models.ErrProductUnavailable, product.ID)
			}
			products[line.ProductID] = product
		}

		requested[line.ProductID] += line.Quantity
		if purchasable := product.PurchasableQuantity(); requested[line.ProductID] > purchasable {
			return nil, fmt.Errorf("%w: product %s requested %d, purchasable %d",
				models.ErrQuantityExceedsAvailable, product.ID, requested[line.ProductID], purchasable)
		}
	}

	items := make([]models.OrderLine, 0, len(lines))
	for _, line := range lines {
		items = append(items, models.OrderLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: products[line.ProductID].Price,
		})
	}

	return b.newTransaction(models.TransactionKindSale, customerID, items), nil
}

// BuildPurchaseOrder records supplier lines. New product lines get a placeholder product,
// returned alongside the order so both are stored together. Existing product lines must
// reference an available product.
func (b *OrderBuilder) BuildPurchaseOrder(ctx context.Context, supplierID string, lines []models.LineItem) (*models.Transaction, []models.Product, error) {
	if len(lines) == 0 {
		return nil, nil, fmt.Errorf("%w: order has no items", models.ErrInvalidLineItem)
	}
	for i, line := range lines {
		if line == nil {
			return nil, nil, fmt.Errorf("%w: item %d is empty", models.ErrInvalidLineItem, i)
		}
		if err := line.Validate(); err != nil {
			return nil, nil, err
		}
	}

	items := make([]models.OrderLine, 0, len(lines))
	var placeholders []models.Product
	for _, line := range lines {
		switch l := line.(type) {
		case models.ExistingProductLine:
			product, err := b.ledger.GetProduct(ctx, l.ProductID)
			if err != nil {
				return nil, nil, err
			}
			if product.Status != models.ProductStatusAvailable {
				return nil, nil, fmt.Errorf("%w: %s awaits approval of the order that introduced it",
					models.ErrProductUnavailable, product.ID)
			}
			price := l.Price
			if !price.IsPositive() {
				price = product.Price
			}
			items = append(items, models.OrderLine{
				ProductID: product.ID,
				Quantity:  l.Quantity,
				UnitPrice: price,
			})
		case models.NewProductLine:
			placeholder := b.ledger.CreatePlaceholder(supplierID, l)
			placeholders = append(placeholders, placeholder)
			items = append(items, models.OrderLine{
				ProductID:   placeholder.ID,
				Quantity:    l.Quantity,
				UnitPrice:   l.Price,
				Placeholder: true,
			})
		default:
			return nil, nil, fmt.Errorf("%w: unsupported line type %T", models.ErrInvalidLineItem, line)
		}
	}

	return b.newTransaction(models.TransactionKindPurchase, supplierID, items), placeholders, nil
}

func (b *OrderBuilder) newTransaction(kind models.TransactionKind, counterpartyID string, items []models.OrderLine) *models.Transaction {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}

	now := b.now().UTC()
	return &models.Transaction{
		ID:             uuid.New().String(),
		Kind:           kind,
		CounterpartyID: counterpartyID,
		Items:          items,
		Status:         models.TransactionStatusPending,
		TotalAmount:    total,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
