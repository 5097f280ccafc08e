package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/redisclient"
	"inventory-service/internal/util"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	admin         = models.Principal{ID: "admin-1", Role: models.RoleAdmin}
	manager       = models.Principal{ID: "manager-1", Role: models.RoleManager}
	supplier      = models.Principal{ID: "supplier-1", Role: models.RoleSupplier}
	customer      = models.Principal{ID: "customer-1", Role: models.RoleCustomer}
	otherCustomer = models.Principal{ID: "customer-2", Role: models.RoleCustomer}
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.TransactionEvent
}

func (r *recordingPublisher) PublishTransactionEvent(_ context.Context, event *models.TransactionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.EventType)
	}
	return types
}

type testEnv struct {
	ctx     context.Context
	storage *redisclient.Client
	ledger  *Ledger
	orders  *OrderService
	catalog *CatalogService
	events  *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	util.SetLogger(zap.NewNop())

	mr := miniredis.RunT(t)
	storage, err := redisclient.NewClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	guard := NewStorageGuard(GuardConfig{Timeout: 2 * time.Second, MaxFailures: 50})
	ledger := NewLedger(storage, guard)
	events := &recordingPublisher{}

	return &testEnv{
		ctx:     context.Background(),
		storage: storage,
		ledger:  ledger,
		orders:  NewOrderService(storage, guard, ledger, events),
		catalog: NewCatalogService(storage, guard, ledger),
		events:  events,
	}
}

func (e *testEnv) seedProduct(t *testing.T, name, price string, stock, minStock int) *models.Product {
	t.Helper()
	product, err := e.catalog.CreateProduct(e.ctx, admin, &CreateProductRequest{
		Name:          name,
		Category:      "hardware",
		Description:   name + " for testing",
		Price:         decimal.RequireFromString(price),
		Stock:         stock,
		MinStockLevel: minStock,
	})
	require.NoError(t, err)
	return product
}

func (e *testEnv) stockOf(t *testing.T, id string) int {
	t.Helper()
	product, err := e.storage.GetProduct(e.ctx, id)
	require.NoError(t, err)
	return product.Stock
}

func (e *testEnv) statusOf(t *testing.T, id string) models.TransactionStatus {
	t.Helper()
	tx, err := e.storage.GetTransaction(e.ctx, id)
	require.NoError(t, err)
	return tx.Status
}

func (e *testEnv) createSale(t *testing.T, by models.Principal, lines ...models.ExistingProductLine) *CreateOrderResponse {
	t.Helper()
	resp, err := e.orders.CreateSalesOrder(e.ctx, by, &SalesOrderRequest{Items: lines})
	require.NoError(t, err)
	return resp
}

func line(productID string, qty int) models.ExistingProductLine {
	return models.ExistingProductLine{ProductID: productID, Quantity: qty}
}

func intPtr(v int) *int {
	return &v
}
