package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing inventory domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishTransactionEvent publishes a transaction lifecycle event keyed by transaction
func (ep *EventPublisher) PublishTransactionEvent(ctx context.Context, event *models.TransactionEvent) error {
	key := fmt.Sprintf("transaction-%s", event.TransactionID)
	return ep.producer.PublishEvent(ctx, key, event.EventType, event)
}

// PublishStockLow publishes a StockLow event keyed by product
func (ep *EventPublisher) PublishStockLow(ctx context.Context, event *models.StockLowEvent) error {
	key := fmt.Sprintf("product-%s", event.ProductID)
	return ep.producer.PublishEvent(ctx, key, event.EventType, event)
}

// TransactionEventHandler reacts to one transaction event
type TransactionEventHandler func(context.Context, *models.TransactionEvent) error

// EventHandler routes incoming events by type
type EventHandler struct {
	transactions map[string]TransactionEventHandler
	logger       *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{
		transactions: make(map[string]TransactionEventHandler),
		logger:       util.GetLogger(),
	}
}

// OnSalesOrderPurchased registers a handler for SalesOrderPurchased events
func (eh *EventHandler) OnSalesOrderPurchased(handler TransactionEventHandler) {
	eh.transactions[models.EventTypeSalesOrderPurchased] = handler
}

// OnPurchaseOrderApproved registers a handler for PurchaseOrderApproved events
func (eh *EventHandler) OnPurchaseOrderApproved(handler TransactionEventHandler) {
	eh.transactions[models.EventTypePurchaseOrderApproved] = handler
}

// HandleMessage routes messages to the registered handlers. Unknown types are skipped.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	handler, ok := eh.transactions[baseEvent.EventType]
	if !ok {
		return nil
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	var event models.TransactionEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal %s event: %w", baseEvent.EventType, err)
	}
	return handler(ctx, &event)
}
