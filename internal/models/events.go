package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeSalesOrderCreated     = "SALES_ORDER_CREATED"
	EventTypeSalesOrderPurchased   = "SALES_ORDER_PURCHASED"
	EventTypeSalesOrderCancelled   = "SALES_ORDER_CANCELLED"
	EventTypePurchaseOrderCreated  = "PURCHASE_ORDER_CREATED"
	EventTypePurchaseOrderApproved = "PURCHASE_ORDER_APPROVED"
	EventTypePurchaseOrderRejected = "PURCHASE_ORDER_REJECTED"
	EventTypeStockLow              = "STOCK_LOW"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// TransactionEvent is published when a transaction is created or leaves pending
type TransactionEvent struct {
	BaseEvent
	TransactionID  string            `json:"transaction_id"`
	Kind           TransactionKind   `json:"kind"`
	CounterpartyID string            `json:"counterparty_id"`
	Status         TransactionStatus `json:"status"`
	TotalAmount    decimal.Decimal   `json:"total_amount"`
	Actor          string            `json:"actor,omitempty"`
	Items          []OrderLine       `json:"items"`
}

// StockLowEvent published when a product reaches its minimum stock level
type StockLowEvent struct {
	BaseEvent
	ProductID     string `json:"product_id"`
	Name          string `json:"name"`
	Stock         int    `json:"stock"`
	MinStockLevel int    `json:"min_stock_level"`
}

// TransactionEventType maps a kind and status to the event published for it.
func TransactionEventType(kind TransactionKind, status TransactionStatus) string {
	switch {
	case kind == TransactionKindSale && status == TransactionStatusPending:
		return EventTypeSalesOrderCreated
	case kind == TransactionKindSale && status == TransactionStatusPurchased:
		return EventTypeSalesOrderPurchased
	case kind == TransactionKindSale && status == TransactionStatusCancelled:
		return EventTypeSalesOrderCancelled
	case kind == TransactionKindPurchase && status == TransactionStatusPending:
		return EventTypePurchaseOrderCreated
	case kind == TransactionKindPurchase && status == TransactionStatusApproved:
		return EventTypePurchaseOrderApproved
	case kind == TransactionKindPurchase && status == TransactionStatusRejected:
		return EventTypePurchaseOrderRejected
	}
	return ""
}
