package models

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPurchasableQuantity(t *testing.T) {
	tests := []struct {
		name     string
		stock    int
		min      int
		expected int
	}{
		{"above minimum", 10, 4, 6},
		{"at minimum", 4, 4, 0},
		{"below minimum clamps to zero", 2, 4, 0},
		{"no minimum", 7, 0, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Product{Stock: tt.stock, MinStockLevel: tt.min}
			assert.Equal(t, tt.expected, p.PurchasableQuantity())
		})
	}
}

func TestIsLowStock(t *testing.T) {
	assert.True(t, (&Product{Stock: 3, MinStockLevel: 3}).IsLowStock())
	assert.True(t, (&Product{Stock: 1, MinStockLevel: 3}).IsLowStock())
	assert.False(t, (&Product{Stock: 4, MinStockLevel: 3}).IsLowStock())
}

func TestNotFoundErrorsMatchBase(t *testing.T) {
	assert.True(t, errors.Is(ErrProductNotFound, ErrNotFound))
	assert.True(t, errors.Is(ErrTransactionNotFound, ErrNotFound))
	assert.True(t, errors.Is(Wrap("loading order", ErrTransactionNotFound), ErrNotFound))
	assert.False(t, errors.Is(ErrOrderNotPending, ErrNotFound))
}

func TestLineItemValidate(t *testing.T) {
	price := decimal.RequireFromString("2.50")

	assert.NoError(t, ExistingProductLine{ProductID: "p1", Quantity: 1}.Validate())
	assert.ErrorIs(t, ExistingProductLine{Quantity: 1}.Validate(), ErrInvalidLineItem)
	assert.ErrorIs(t, ExistingProductLine{ProductID: "p1", Quantity: 0}.Validate(), ErrInvalidLineItem)
	assert.ErrorIs(t, ExistingProductLine{ProductID: "p1", Quantity: 1, Price: price.Neg()}.Validate(), ErrInvalidLineItem)

	valid := NewProductLine{Name: "Bolt", Category: "hardware", Description: "M6 bolt", Price: price, Quantity: 10}
	assert.NoError(t, valid.Validate())

	missing := valid
	missing.Description = ""
	err := missing.Validate()
	assert.ErrorIs(t, err, ErrInvalidLineItem)
	assert.Contains(t, err.Error(), "description")

	free := valid
	free.Price = decimal.Zero
	assert.ErrorIs(t, free.Validate(), ErrInvalidLineItem)
}

func TestStockChangeNewStock(t *testing.T) {
	set := 12
	assert.Equal(t, 8, StockChange{Delta: -2}.NewStock(10))
	assert.Equal(t, 12, StockChange{Delta: 5, SetStock: &set}.NewStock(0))
}

func TestTransactionProductIDs(t *testing.T) {
	tx := &Transaction{Items: []OrderLine{{ProductID: "a"}, {ProductID: "b"}, {ProductID: "a"}}}
	assert.Equal(t, []string{"a", "b"}, tx.ProductIDs())
}

func TestTransactionEventType(t *testing.T) {
	assert.Equal(t, EventTypeSalesOrderPurchased, TransactionEventType(TransactionKindSale, TransactionStatusPurchased))
	assert.Equal(t, EventTypePurchaseOrderRejected, TransactionEventType(TransactionKindPurchase, TransactionStatusRejected))
	assert.Empty(t, TransactionEventType(TransactionKindSale, TransactionStatusApproved))
}
