package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderService is the role-gated entry point for purchase and sales orders
type OrderService struct {
	storage   Storage
	guard     *StorageGuard
	ledger    *Ledger
	builder   *OrderBuilder
	machine   *StateMachine
	publisher EventPublisher
	logger    *zap.Logger
}

// NewOrderService creates a new order service over storage. A nil publisher disables events.
func NewOrderService(storage Storage, guard *StorageGuard, ledger *Ledger, publisher EventPublisher) *OrderService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &OrderService{
		storage:   storage,
		guard:     guard,
		ledger:    ledger,
		builder:   NewOrderBuilder(ledger),
		machine:   NewStateMachine(storage, guard, ledger),
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// SalesOrderRequest represents a customer's request to buy catalog products
type SalesOrderRequest struct {
	Items          []models.ExistingProductLine
	IdempotencyKey string
}

// PurchaseOrderRequest represents a supplier's delivery proposal
type PurchaseOrderRequest struct {
	Items          []models.LineItem
	IdempotencyKey string
}

// CreateOrderResponse represents the response after creating an order
type CreateOrderResponse struct {
	OrderID     string                   `json:"order_id"`
	TotalAmount decimal.Decimal          `json:"total_amount"`
	Status      models.TransactionStatus `json:"status"`
}

// DecisionResponse represents the outcome of a confirmation or approval
type DecisionResponse struct {
	OrderID string                   `json:"order_id"`
	Status  models.TransactionStatus `json:"status"`
}

// CreateSalesOrder records a pending sales order for the calling customer. Stock is untouched
// until the customer confirms.
func (s *OrderService) CreateSalesOrder(ctx context.Context, p models.Principal, req *SalesOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateSalesOrder")
	defer span.End()

	if err := authorize(p, CapCreateSalesOrder); err != nil {
		return nil, err
	}

	if existing, err := s.findByIdempotencyKey(ctx, p, models.TransactionKindSale, req.IdempotencyKey); err != nil || existing != nil {
		return existing, err
	}

	order, err := s.builder.BuildSalesOrder(ctx, p.ID, req.Items)
	if err != nil {
		util.TransitionFailuresTotal.WithLabelValues(string(models.TransactionKindSale), failureReason(err)).Inc()
		return nil, err
	}
	order.IdempotencyKey = req.IdempotencyKey

	return s.persist(ctx, p, order, nil)
}

// ConfirmSalesOrder applies the customer's yes or no to a pending sales order
func (s *OrderService) ConfirmSalesOrder(ctx context.Context, p models.Principal, orderID, decision string) (*DecisionResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ConfirmSalesOrder")
	defer span.End()

	event, err := ParseSalesDecision(decision)
	if err != nil {
		return nil, err
	}
	return s.decide(ctx, p, models.TransactionKindSale, orderID, event, TransitionOptions{})
}

// CreatePurchaseOrder records a pending purchase order for the calling supplier, creating
// placeholder products for new product lines in the same write.
func (s *OrderService) CreatePurchaseOrder(ctx context.Context, p models.Principal, req *PurchaseOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreatePurchaseOrder")
	defer span.End()

	if err := authorize(p, CapCreatePurchaseOrder); err != nil {
		return nil, err
	}

	if existing, err := s.findByIdempotencyKey(ctx, p, models.TransactionKindPurchase, req.IdempotencyKey); err != nil || existing != nil {
		return existing, err
	}

	order, placeholders, err := s.builder.BuildPurchaseOrder(ctx, p.ID, req.Items)
	if err != nil {
		util.TransitionFailuresTotal.WithLabelValues(string(models.TransactionKindPurchase), failureReason(err)).Inc()
		return nil, err
	}
	order.IdempotencyKey = req.IdempotencyKey

	return s.persist(ctx, p, order, placeholders)
}

// DecidePurchaseOrder approves or rejects a pending purchase order. minStockLevel, when set,
// becomes the minimum level of every product on the order.
func (s *OrderService) DecidePurchaseOrder(ctx context.Context, p models.Principal, orderID, decision string, minStockLevel *int) (*DecisionResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.DecidePurchaseOrder")
	defer span.End()

	event, err := ParsePurchaseDecision(decision)
	if err != nil {
		return nil, err
	}
	if minStockLevel != nil && *minStockLevel < 0 {
		return nil, fmt.Errorf("%w: min_stock_level must not be negative", models.ErrInvalidDecision)
	}
	return s.decide(ctx, p, models.TransactionKindPurchase, orderID, event, TransitionOptions{MinStockLevel: minStockLevel})
}

// GetLowStockProducts lists products whose stock is at or below their minimum level
func (s *OrderService) GetLowStockProducts(ctx context.Context, p models.Principal) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetLowStockProducts")
	defer span.End()

	if err := authorize(p, CapViewLowStock); err != nil {
		return nil, err
	}
	return s.ledger.LowStock(ctx)
}

// GetTransaction retrieves a transaction for its counterparty or an administrator
func (s *OrderService) GetTransaction(ctx context.Context, p models.Principal, id string) (*models.Transaction, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetTransaction")
	defer span.End()

	t, err := guarded(ctx, s.guard, "GetTransaction", func(ctx context.Context) (*models.Transaction, error) {
		return s.storage.GetTransaction(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	if t.CounterpartyID != p.ID && !Can(p, CapViewAnyTransaction) {
		return nil, fmt.Errorf("%w: transaction %s belongs to another party", models.ErrForbidden, id)
	}
	return t, nil
}

func (s *OrderService) decide(ctx context.Context, p models.Principal, kind models.TransactionKind, orderID string, event Event, opts TransitionOptions) (*DecisionResponse, error) {
	updated, err := s.machine.Fire(ctx, p, kind, orderID, event, opts)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, updated, p.ID)
	return &DecisionResponse{OrderID: updated.ID, Status: updated.Status}, nil
}

// findByIdempotencyKey returns the earlier response for a repeated key. A key reused by a
// different party or for a different kind of order is a conflict.
func (s *OrderService) findByIdempotencyKey(ctx context.Context, p models.Principal, kind models.TransactionKind, key string) (*CreateOrderResponse, error) {
	if key == "" {
		return nil, nil
	}

	existing, err := guarded(ctx, s.guard, "FindTransactionByIdempotencyKey", func(ctx context.Context) (*models.Transaction, error) {
		return s.storage.FindTransactionByIdempotencyKey(ctx, key)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if existing == nil {
		return nil, nil
	}
	if existing.CounterpartyID != p.ID || existing.Kind != kind {
		return nil, fmt.Errorf("%w: idempotency key %s already used", models.ErrDuplicateKey, key)
	}

	s.logger.Info("Duplicate order request detected",
		zap.String("idempotency_key", key),
		zap.String("order_id", existing.ID))
	return &CreateOrderResponse{
		OrderID:     existing.ID,
		TotalAmount: existing.TotalAmount,
		Status:      existing.Status,
	}, nil
}

func (s *OrderService) persist(ctx context.Context, p models.Principal, order *models.Transaction, placeholders []models.Product) (*CreateOrderResponse, error) {
	err := guardedExec(ctx, s.guard, "CreateTransaction", func(ctx context.Context) error {
		return s.storage.CreateTransaction(ctx, order, placeholders)
	})
	if errors.Is(err, models.ErrDuplicateKey) && order.IdempotencyKey != "" {
		// Lost a race against a request with the same key.
		existing, lookupErr := s.findByIdempotencyKey(ctx, p, order.Kind, order.IdempotencyKey)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if existing != nil {
			return existing, nil
		}
	}
	if err != nil {
		util.TransitionFailuresTotal.WithLabelValues(string(order.Kind), failureReason(err)).Inc()
		return nil, fmt.Errorf("failed to create %s order: %w", order.Kind, err)
	}

	util.TransactionsCreatedTotal.WithLabelValues(string(order.Kind)).Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("kind", string(order.Kind)),
		zap.String("counterparty_id", order.CounterpartyID),
		zap.Int("items", len(order.Items)),
		zap.Int("placeholders", len(placeholders)),
		zap.String("total_amount", order.TotalAmount.String()))

	s.publish(ctx, order, p.ID)
	return &CreateOrderResponse{
		OrderID:     order.ID,
		TotalAmount: order.TotalAmount,
		Status:      order.Status,
	}, nil
}

func (s *OrderService) publish(ctx context.Context, t *models.Transaction, actor string) {
	event := &models.TransactionEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.TransactionEventType(t.Kind, t.Status),
			Timestamp: time.Now().UTC(),
		},
		TransactionID:  t.ID,
		Kind:           t.Kind,
		CounterpartyID: t.CounterpartyID,
		Status:         t.Status,
		TotalAmount:    t.TotalAmount,
		Actor:          actor,
		Items:          t.Items,
	}

	if err := s.publisher.PublishTransactionEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish transaction event",
			zap.String("event_type", event.EventType),
			zap.String("transaction_id", t.ID),
			zap.Error(err))
	}
}
