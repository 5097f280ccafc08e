package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductStatus is the catalog visibility of a product
type ProductStatus string

// Product statuses
const (
	ProductStatusAvailable    ProductStatus = "available"
	ProductStatusNotAvailable ProductStatus = "not available"
)

// Product represents a stocked item in the catalog
type Product struct {
	ID            string          `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Category      string          `db:"category" json:"category"`
	Description   string          `db:"description" json:"description"`
	Price         decimal.Decimal `db:"price" json:"price"`
	Stock         int             `db:"stock" json:"stock"`
	MinStockLevel int             `db:"min_stock_level" json:"min_stock_level"`
	Status        ProductStatus   `db:"status" json:"status"`
	SupplierID    string          `db:"supplier_id" json:"supplier_id,omitempty"`
	CreatedBy     string          `db:"created_by" json:"created_by"`
	UpdatedBy     string          `db:"updated_by" json:"updated_by"`
	ApprovedBy    string          `db:"approved_by" json:"approved_by,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
	ApprovedAt    *time.Time      `db:"approved_at" json:"approved_at,omitempty"`
}

// ProductUpdate holds catalog edits. Nil fields are left unchanged. Stock is not editable
// here and only moves through the ledger.
type ProductUpdate struct {
	Name          *string
	Category      *string
	Description   *string
	Price         *decimal.Decimal
	MinStockLevel *int
}

// IsEmpty reports whether the update changes nothing.
func (u ProductUpdate) IsEmpty() bool {
	return u.Name == nil && u.Category == nil && u.Description == nil && u.Price == nil && u.MinStockLevel == nil
}

// PurchasableQuantity is the stock a customer may buy without dipping below the minimum level.
func (p *Product) PurchasableQuantity() int {
	q := p.Stock - p.MinStockLevel
	if q < 0 {
		return 0
	}
	return q
}

// IsLowStock reports whether stock has reached the minimum level.
func (p *Product) IsLowStock() bool {
	return p.Stock <= p.MinStockLevel
}

// TransactionKind distinguishes purchases from suppliers and sales to customers
type TransactionKind string

// Transaction kinds
const (
	TransactionKindPurchase TransactionKind = "purchase"
	TransactionKindSale     TransactionKind = "sale"
)

// TransactionStatus is the lifecycle state of a transaction
type TransactionStatus string

// Transaction statuses
const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusApproved  TransactionStatus = "approved"
	TransactionStatusRejected  TransactionStatus = "rejected"
	TransactionStatusPurchased TransactionStatus = "purchased"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// IsTerminal reports whether no further transition may leave this status.
func (s TransactionStatus) IsTerminal() bool {
	return s != TransactionStatusPending
}

// Transaction is a purchase or sales order
type Transaction struct {
	ID             string            `db:"id" json:"id"`
	Kind           TransactionKind   `db:"kind" json:"kind"`
	CounterpartyID string            `db:"counterparty_id" json:"counterparty_id"`
	Items          []OrderLine       `db:"-" json:"items"`
	Status         TransactionStatus `db:"status" json:"status"`
	TotalAmount    decimal.Decimal   `db:"total_amount" json:"total_amount"`
	IdempotencyKey string            `db:"idempotency_key" json:"idempotency_key,omitempty"`
	DecidedBy      string            `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt      *time.Time        `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}

// ProductIDs returns the distinct product ids referenced by the items, in item order.
func (t *Transaction) ProductIDs() []string {
	seen := make(map[string]bool, len(t.Items))
	ids := make([]string, 0, len(t.Items))
	for _, item := range t.Items {
		if seen[item.ProductID] {
			continue
		}
		seen[item.ProductID] = true
		ids = append(ids, item.ProductID)
	}
	return ids
}

// OrderLine is one persisted line of a transaction
type OrderLine struct {
	ProductID   string          `db:"product_id" json:"product_id"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	Placeholder bool            `db:"placeholder" json:"placeholder,omitempty"`
}

// Subtotal is quantity times unit price.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Role of an authenticated caller
type Role string

// Roles
const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleSupplier Role = "supplier"
	RoleCustomer Role = "customer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleSupplier, RoleCustomer:
		return true
	}
	return false
}

// Principal is the authenticated caller of an operation
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}
