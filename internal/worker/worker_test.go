package worker

import (
	"context"
	"testing"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/redisclient"
	"inventory-service/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAlerts struct {
	events []*models.StockLowEvent
}

func (r *recordingAlerts) PublishStockLow(_ context.Context, event *models.StockLowEvent) error {
	r.events = append(r.events, event)
	return nil
}

func seedProduct(t *testing.T, storage *redisclient.Client, id string, stock, minStock int) {
	now := time.Now().UTC()
	require.NoError(t, storage.CreateProduct(context.Background(), &models.Product{
		ID:            id,
		Name:          "Product " + id,
		Category:      "parts",
		Price:         decimal.RequireFromString("1.00"),
		Stock:         stock,
		MinStockLevel: minStock,
		Status:        models.ProductStatusAvailable,
		CreatedAt:     now,
		UpdatedAt:     now,
	}))
}

func TestHandleTransactionRaisesAlerts(t *testing.T) {
	mr := miniredis.RunT(t)
	storage, err := redisclient.NewClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	defer storage.Close()

	seedProduct(t, storage, "low", 2, 5)
	seedProduct(t, storage, "fine", 20, 5)

	ledger := service.NewLedger(storage, service.NewStorageGuard(service.GuardConfig{}))
	alerts := &recordingAlerts{}
	w := NewLowStockWorker(nil, ledger, alerts)

	err = w.HandleTransaction(context.Background(), &models.TransactionEvent{
		BaseEvent:     models.BaseEvent{EventType: models.EventTypeSalesOrderPurchased},
		TransactionID: "tx-1",
		Items: []models.OrderLine{
			{ProductID: "low", Quantity: 1},
			{ProductID: "fine", Quantity: 1},
			{ProductID: "low", Quantity: 2},
			{ProductID: "deleted", Quantity: 1},
		},
	})
	require.NoError(t, err)

	require.Len(t, alerts.events, 1)
	assert.Equal(t, "low", alerts.events[0].ProductID)
	assert.Equal(t, models.EventTypeStockLow, alerts.events[0].EventType)
	assert.Equal(t, 2, alerts.events[0].Stock)
	assert.Equal(t, 5, alerts.events[0].MinStockLevel)
}

func TestHandleTransactionStorageDown(t *testing.T) {
	mr := miniredis.RunT(t)
	storage, err := redisclient.NewClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	defer storage.Close()

	ledger := service.NewLedger(storage, service.NewStorageGuard(service.GuardConfig{Timeout: 200 * time.Millisecond}))
	w := NewLowStockWorker(nil, ledger, &recordingAlerts{})

	mr.Close()
	err = w.HandleTransaction(context.Background(), &models.TransactionEvent{
		Items: []models.OrderLine{{ProductID: "p-1", Quantity: 1}},
	})
	assert.ErrorIs(t, err, models.ErrStorageUnavailable)
}
