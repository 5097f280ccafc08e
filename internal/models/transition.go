package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockChange is the effect of a transition on one product.
// Lines of the same product produce separate changes applied in order.
type StockChange struct {
	ProductID string
	// Delta is added to stock unless SetStock is set.
	Delta    int
	SetStock *int
	// Activate marks the product available and records the approver.
	Activate      bool
	Price         *decimal.Decimal
	MinStockLevel *int
}

// NewStock returns the stock level after applying the change to current.
func (c StockChange) NewStock(current int) int {
	if c.SetStock != nil {
		return *c.SetStock
	}
	return current + c.Delta
}

// Transition moves a transaction out of From and applies Changes, all or nothing.
type Transition struct {
	TransactionID string
	From          TransactionStatus
	To            TransactionStatus
	Actor         string
	At            time.Time
	Changes       []StockChange
}
