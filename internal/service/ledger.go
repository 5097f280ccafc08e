package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ledger owns product records and their stock quantity
type Ledger struct {
	storage Storage
	guard   *StorageGuard
	now     func() time.Time
	logger  *zap.Logger
}

// NewLedger creates a new product ledger
func NewLedger(storage Storage, guard *StorageGuard) *Ledger {
	return &Ledger{
		storage: storage,
		guard:   guard,
		now:     time.Now,
		logger:  util.GetLogger(),
	}
}

// GetProduct retrieves a product by ID
func (l *Ledger) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return guarded(ctx, l.guard, "GetProduct", func(ctx context.Context) (*models.Product, error) {
		return l.storage.GetProduct(ctx, id)
	})
}

// AdjustStock atomically adds delta to an available product's stock. The update is rejected
// with ErrInsufficientStock when it would leave stock negative and with ErrProductUnavailable
// for a placeholder, whose stock is fixed by its purchase order.
func (l *Ledger) AdjustStock(ctx context.Context, actor, id string, delta int) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "Ledger.AdjustStock")
	defer span.End()

	if delta == 0 {
		return l.GetProduct(ctx, id)
	}

	product, err := guarded(ctx, l.guard, "AdjustStock", func(ctx context.Context) (*models.Product, error) {
		return l.storage.AdjustStock(ctx, id, delta, actor, l.now().UTC())
	})
	if err != nil {
		l.logger.Warn("Stock adjustment rejected",
			zap.String("product_id", id),
			zap.Int("delta", delta),
			zap.Error(err))
		return nil, err
	}

	recordStockMovement(delta)
	l.logger.Info("Stock adjusted",
		zap.String("product_id", id),
		zap.Int("delta", delta),
		zap.Int("stock", product.Stock))
	return product, nil
}

// CreatePlaceholder builds the not-yet-available product a purchase line introduces.
// It is persisted together with the purchase order.
func (l *Ledger) CreatePlaceholder(supplierID string, line models.NewProductLine) models.Product {
	now := l.now().UTC()
	return models.Product{
		ID:          uuid.New().String(),
		Name:        line.Name,
		Category:    line.Category,
		Description: line.Description,
		Price:       line.Price,
		Stock:       line.Quantity,
		Status:      models.ProductStatusNotAvailable,
		SupplierID:  supplierID,
		CreatedBy:   supplierID,
		UpdatedBy:   supplierID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Approve returns the change that activates a purchased line's product. Placeholder stock
// is set to the approved quantity, existing products are incremented by it.
func (l *Ledger) Approve(line models.OrderLine, minStockLevel *int) models.StockChange {
	change := models.StockChange{
		ProductID:     line.ProductID,
		Activate:      true,
		MinStockLevel: minStockLevel,
	}
	if line.Placeholder {
		qty := line.Quantity
		change.SetStock = &qty
	} else {
		change.Delta = line.Quantity
	}
	if line.UnitPrice.IsPositive() {
		price := line.UnitPrice
		change.Price = &price
	}
	return change
}

// Decrement returns the change that removes a sold line from stock.
func (l *Ledger) Decrement(line models.OrderLine) models.StockChange {
	return models.StockChange{ProductID: line.ProductID, Delta: -line.Quantity}
}

// PlanChanges checks a whole change set against current stock before anything is written.
// Changes to the same product accumulate in order. A placeholder's stock can only be set
// while it is still not available.
func (l *Ledger) PlanChanges(ctx context.Context, changes []models.StockChange) error {
	projected := make(map[string]int, len(changes))
	for _, c := range changes {
		stock, ok := projected[c.ProductID]
		if !ok || c.SetStock != nil {
			product, err := l.GetProduct(ctx, c.ProductID)
			if err != nil {
				return err
			}
			if c.SetStock != nil && product.Status != models.ProductStatusNotAvailable {
				return fmt.Errorf("%w: product %s was already activated", models.ErrProductUnavailable, c.ProductID)
			}
			if !ok {
				stock = product.Stock
			}
		}

		next := c.NewStock(stock)
		if next < 0 {
			return fmt.Errorf("%w: product %s has %d, change %d", models.ErrInsufficientStock, c.ProductID, stock, next-stock)
		}
		projected[c.ProductID] = next
	}
	return nil
}

// LowStock lists products whose stock is at or below their minimum level
func (l *Ledger) LowStock(ctx context.Context) ([]models.Product, error) {
	return guarded(ctx, l.guard, "ListLowStockProducts", func(ctx context.Context) ([]models.Product, error) {
		return l.storage.ListLowStockProducts(ctx)
	})
}

// CheckLowStock returns the products among ids that are at or below their minimum level.
// Products deleted in the meantime are skipped.
func (l *Ledger) CheckLowStock(ctx context.Context, ids []string) ([]models.Product, error) {
	var low []models.Product
	for _, id := range ids {
		product, err := l.GetProduct(ctx, id)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if product.IsLowStock() {
			low = append(low, *product)
		}
	}
	return low, nil
}

func recordStockMovement(delta int) {
	if delta > 0 {
		util.StockUnitsMovedTotal.WithLabelValues("in").Add(float64(delta))
	} else if delta < 0 {
		util.StockUnitsMovedTotal.WithLabelValues("out").Add(float64(-delta))
	}
}
