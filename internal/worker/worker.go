package worker

import (
	"context"
	"time"

	"inventory-service/internal/broker"
	"inventory-service/internal/models"
	"inventory-service/internal/service"
	"inventory-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StockAlertPublisher publishes low stock alerts
type StockAlertPublisher interface {
	PublishStockLow(ctx context.Context, event *models.StockLowEvent) error
}

// LowStockWorker raises a StockLow alert for every product a completed sale or an approved
// purchase leaves at or below its minimum level.
type LowStockWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	ledger       *service.Ledger
	alerts       StockAlertPublisher
	logger       *zap.Logger
}

// NewLowStockWorker creates a new low stock worker
func NewLowStockWorker(consumer *broker.Consumer, ledger *service.Ledger, alerts StockAlertPublisher) *LowStockWorker {
	w := &LowStockWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		ledger:       ledger,
		alerts:       alerts,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnSalesOrderPurchased(w.HandleTransaction)
	w.eventHandler.OnPurchaseOrderApproved(w.HandleTransaction)
	return w
}

// Start consumes events until ctx is done
func (w *LowStockWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting low stock worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *LowStockWorker) Stop() error {
	w.logger.Info("Stopping low stock worker")
	return w.consumer.Close()
}

// HandleTransaction checks the products of a transaction event. A failed check is returned
// so the message is redelivered.
func (w *LowStockWorker) HandleTransaction(ctx context.Context, event *models.TransactionEvent) error {
	ids := make([]string, 0, len(event.Items))
	seen := make(map[string]bool, len(event.Items))
	for _, item := range event.Items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	low, err := w.ledger.CheckLowStock(ctx, ids)
	if err != nil {
		return err
	}

	for _, product := range low {
		alert := &models.StockLowEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeStockLow,
				Timestamp: time.Now().UTC(),
			},
			ProductID:     product.ID,
			Name:          product.Name,
			Stock:         product.Stock,
			MinStockLevel: product.MinStockLevel,
		}

		util.LowStockAlertsTotal.Inc()
		w.logger.Warn("Product stock is low",
			zap.String("product_id", product.ID),
			zap.String("transaction_id", event.TransactionID),
			zap.Int("stock", product.Stock),
			zap.Int("min_stock_level", product.MinStockLevel))

		if err := w.alerts.PublishStockLow(ctx, alert); err != nil {
			w.logger.Error("Failed to publish stock low event",
				zap.String("product_id", product.ID),
				zap.Error(err))
		}
	}
	return nil
}
