package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// LineItem is a client-submitted order line. It is either an ExistingProductLine
// or a NewProductLine.
type LineItem interface {
	lineItem()
	Validate() error
}

// ExistingProductLine refers to a product already in the catalog
type ExistingProductLine struct {
	ProductID string
	Quantity  int
	// Price is the supplier's unit price on purchase lines. Zero keeps the catalog price.
	Price decimal.Decimal
}

// NewProductLine describes a product the supplier introduces with the order
type NewProductLine struct {
	Name        string
	Category    string
	Description string
	Price       decimal.Decimal
	Quantity    int
}

func (ExistingProductLine) lineItem() {}
func (NewProductLine) lineItem()      {}

func (l ExistingProductLine) Validate() error {
	if strings.TrimSpace(l.ProductID) == "" {
		return Wrap("product_id is required", ErrInvalidLineItem)
	}
	if l.Quantity <= 0 {
		return Wrap(fmt.Sprintf("quantity for product %s must be positive", l.ProductID), ErrInvalidLineItem)
	}
	if l.Price.IsNegative() {
		return Wrap(fmt.Sprintf("price for product %s must not be negative", l.ProductID), ErrInvalidLineItem)
	}
	return nil
}

func (l NewProductLine) Validate() error {
	var missing []string
	if strings.TrimSpace(l.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(l.Category) == "" {
		missing = append(missing, "category")
	}
	if strings.TrimSpace(l.Description) == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return Wrap("new product missing "+strings.Join(missing, ", "), ErrInvalidLineItem)
	}
	if !l.Price.IsPositive() {
		return Wrap(fmt.Sprintf("price for new product %q must be positive", l.Name), ErrInvalidLineItem)
	}
	if l.Quantity <= 0 {
		return Wrap(fmt.Sprintf("stock for new product %q must be positive", l.Name), ErrInvalidLineItem)
	}
	return nil
}
