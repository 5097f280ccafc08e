package redisclient

import (
	"context"
	"sync"
	"testing"
	"time"

	"inventory-service/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func newProduct(stock, minStock int) *models.Product {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	return &models.Product{
		ID:            uuid.NewString(),
		Name:          "Hex bolt",
		Category:      "hardware",
		Description:   "M8 x 40",
		Price:         decimal.RequireFromString("0.35"),
		Stock:         stock,
		MinStockLevel: minStock,
		Status:        models.ProductStatusAvailable,
		CreatedBy:     "admin-1",
		UpdatedBy:     "admin-1",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func newPendingSale(items ...models.OrderLine) *models.Transaction {
	now := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	return &models.Transaction{
		ID:             uuid.NewString(),
		Kind:           models.TransactionKindSale,
		CounterpartyID: "customer-1",
		Status:         models.TransactionStatusPending,
		Items:          items,
		TotalAmount:    decimal.RequireFromString("1.05"),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestProductRoundTrip(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	p := newProduct(12, 3)
	require.NoError(t, client.CreateProduct(ctx, p))

	got, err := client.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.True(t, p.Price.Equal(got.Price))
	assert.Equal(t, 12, got.Stock)
	assert.Equal(t, 3, got.MinStockLevel)
	assert.Nil(t, got.ApprovedAt)
	assert.True(t, p.CreatedAt.Equal(got.CreatedAt))

	_, err = client.GetProduct(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrProductNotFound)
}

func TestAdjustStock(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	p := newProduct(5, 0)
	require.NoError(t, client.CreateProduct(ctx, p))

	updated, err := client.AdjustStock(ctx, p.ID, -5, "admin-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Stock)

	_, err = client.AdjustStock(ctx, p.ID, -1, "admin-1", time.Now())
	assert.ErrorIs(t, err, models.ErrInsufficientStock)

	updated, err = client.AdjustStock(ctx, p.ID, 7, "manager-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 7, updated.Stock)
	assert.Equal(t, "manager-1", updated.UpdatedBy)

	_, err = client.AdjustStock(ctx, "missing", 1, "admin-1", time.Now())
	assert.ErrorIs(t, err, models.ErrProductNotFound)
}

func TestAdjustStockConcurrentDecrements(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	p := newProduct(10, 0)
	require.NoError(t, client.CreateProduct(ctx, p))

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.AdjustStock(ctx, p.ID, -1, "admin-1", time.Now()); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	got, err := client.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
}

func TestCreateTransactionWithPlaceholder(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	placeholder := *newProduct(20, 0)
	placeholder.Status = models.ProductStatusNotAvailable

	tx := newPendingSale(models.OrderLine{ProductID: placeholder.ID, Quantity: 20, UnitPrice: placeholder.Price, Placeholder: true})
	tx.Kind = models.TransactionKindPurchase
	tx.CounterpartyID = "supplier-1"
	require.NoError(t, client.CreateTransaction(ctx, tx, []models.Product{placeholder}))

	stored, err := client.GetProduct(ctx, placeholder.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProductStatusNotAvailable, stored.Status)

	got, err := client.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionKindPurchase, got.Kind)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].Placeholder)
	assert.True(t, tx.TotalAmount.Equal(got.TotalAmount))
}

func TestCreateTransactionRejectsUnknownProduct(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	tx := newPendingSale(models.OrderLine{ProductID: "missing", Quantity: 1})
	err := client.CreateTransaction(ctx, tx, nil)
	assert.ErrorIs(t, err, models.ErrProductNotFound)

	_, err = client.GetTransaction(ctx, tx.ID)
	assert.ErrorIs(t, err, models.ErrTransactionNotFound)
}

func TestCreateTransactionIdempotencyKey(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	p := newProduct(10, 0)
	require.NoError(t, client.CreateProduct(ctx, p))

	first := newPendingSale(models.OrderLine{ProductID: p.ID, Quantity: 1, UnitPrice: p.Price})
	first.IdempotencyKey = "checkout-42"
	require.NoError(t, client.CreateTransaction(ctx, first, nil))

	second := newPendingSale(models.OrderLine{ProductID: p.ID, Quantity: 2, UnitPrice: p.Price})
	second.IdempotencyKey = "checkout-42"
	assert.ErrorIs(t, client.CreateTransaction(ctx, second, nil), models.ErrDuplicateKey)

	found, err := client.FindTransactionByIdempotencyKey(ctx, "checkout-42")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.ID, found.ID)

	none, err := client.FindTransactionByIdempotencyKey(ctx, "unused")
	assert.NoError(t, err)
	assert.Nil(t, none)
}

func TestCommitTransition(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	p := newProduct(10, 0)
	require.NoError(t, client.CreateProduct(ctx, p))
	tx := newPendingSale(models.OrderLine{ProductID: p.ID, Quantity: 3, UnitPrice: p.Price})
	require.NoError(t, client.CreateTransaction(ctx, tx, nil))

	at := time.Date(2024, 3, 3, 8, 0, 0, 0, time.UTC)
	transition := models.Transition{
		TransactionID: tx.ID,
		From:          models.TransactionStatusPending,
		To:            models.TransactionStatusPurchased,
		Actor:         "customer-1",
		At:            at,
		Changes:       []models.StockChange{{ProductID: p.ID, Delta: -3}},
	}

	committed, err := client.CommitTransition(ctx, transition)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPurchased, committed.Status)
	assert.Equal(t, "customer-1", committed.DecidedBy)
	require.NotNil(t, committed.DecidedAt)
	assert.True(t, at.Equal(*committed.DecidedAt))

	_, err = client.CommitTransition(ctx, transition)
	assert.ErrorIs(t, err, models.ErrOrderNotPending)

	got, err := client.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Stock)

	_, err = client.CommitTransition(ctx, models.Transition{TransactionID: "missing", From: models.TransactionStatusPending})
	assert.ErrorIs(t, err, models.ErrTransactionNotFound)
}

func TestCommitTransitionIsAllOrNothing(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	plenty := newProduct(10, 0)
	scarce := newProduct(1, 0)
	require.NoError(t, client.CreateProduct(ctx, plenty))
	require.NoError(t, client.CreateProduct(ctx, scarce))

	tx := newPendingSale(
		models.OrderLine{ProductID: plenty.ID, Quantity: 4},
		models.OrderLine{ProductID: scarce.ID, Quantity: 2},
	)
	require.NoError(t, client.CreateTransaction(ctx, tx, nil))

	_, err := client.CommitTransition(ctx, models.Transition{
		TransactionID: tx.ID,
		From:          models.TransactionStatusPending,
		To:            models.TransactionStatusPurchased,
		Actor:         "customer-1",
		At:            time.Now(),
		Changes: []models.StockChange{
			{ProductID: plenty.ID, Delta: -4},
			{ProductID: scarce.ID, Delta: -2},
		},
	})
	assert.ErrorIs(t, err, models.ErrInsufficientStock)

	got, err := client.GetProduct(ctx, plenty.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Stock)

	pending, err := client.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, pending.Status)
}

func TestCommitTransitionApprovalFields(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	placeholder := *newProduct(0, 0)
	placeholder.Status = models.ProductStatusNotAvailable
	tx := newPendingSale(models.OrderLine{ProductID: placeholder.ID, Quantity: 15, Placeholder: true})
	tx.Kind = models.TransactionKindPurchase
	require.NoError(t, client.CreateTransaction(ctx, tx, []models.Product{placeholder}))

	stock, minStock := 15, 4
	price := decimal.RequireFromString("0.40")
	committed, err := client.CommitTransition(ctx, models.Transition{
		TransactionID: tx.ID,
		From:          models.TransactionStatusPending,
		To:            models.TransactionStatusApproved,
		Actor:         "manager-1",
		At:            time.Now(),
		Changes: []models.StockChange{{
			ProductID:     placeholder.ID,
			SetStock:      &stock,
			Activate:      true,
			Price:         &price,
			MinStockLevel: &minStock,
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusApproved, committed.Status)

	got, err := client.GetProduct(ctx, placeholder.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProductStatusAvailable, got.Status)
	assert.Equal(t, 15, got.Stock)
	assert.Equal(t, 4, got.MinStockLevel)
	assert.True(t, price.Equal(got.Price))
	assert.Equal(t, "manager-1", got.ApprovedBy)
	assert.NotNil(t, got.ApprovedAt)
}

func TestDeleteProduct(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	p := newProduct(3, 0)
	require.NoError(t, client.CreateProduct(ctx, p))
	tx := newPendingSale(models.OrderLine{ProductID: p.ID, Quantity: 1})
	require.NoError(t, client.CreateTransaction(ctx, tx, nil))

	assert.ErrorIs(t, client.DeleteProduct(ctx, p.ID), models.ErrProductInUse)

	_, err := client.CommitTransition(ctx, models.Transition{
		TransactionID: tx.ID,
		From:          models.TransactionStatusPending,
		To:            models.TransactionStatusCancelled,
		Actor:         "customer-1",
		At:            time.Now(),
	})
	require.NoError(t, err)

	require.NoError(t, client.DeleteProduct(ctx, p.ID))
	_, err = client.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, models.ErrProductNotFound)
	assert.ErrorIs(t, client.DeleteProduct(ctx, p.ID), models.ErrProductNotFound)

	products, err := client.ListProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestListLowStockProducts(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	low := newProduct(2, 5)
	low.Name = "Anchor"
	edge := newProduct(5, 5)
	edge.Name = "Bracket"
	healthy := newProduct(9, 5)
	for _, p := range []*models.Product{healthy, edge, low} {
		require.NoError(t, client.CreateProduct(ctx, p))
	}

	products, err := client.ListLowStockProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, low.ID, products[0].ID)
	assert.Equal(t, edge.ID, products[1].ID)
}

func TestUnavailableServerMapsToStorageUnavailable(t *testing.T) {
	client, mr := newTestClient(t)
	mr.Close()

	_, err := client.GetProduct(context.Background(), "any")
	assert.ErrorIs(t, err, models.ErrStorageUnavailable)
}

func TestStockGuardsOnProductStatus(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	active := newProduct(4, 0)
	require.NoError(t, client.CreateProduct(ctx, active))

	placeholder := *newProduct(6, 0)
	placeholder.Status = models.ProductStatusNotAvailable
	tx := newPendingSale(
		models.OrderLine{ProductID: placeholder.ID, Quantity: 6, Placeholder: true},
		models.OrderLine{ProductID: active.ID, Quantity: 2},
	)
	tx.Kind = models.TransactionKindPurchase
	require.NoError(t, client.CreateTransaction(ctx, tx, []models.Product{placeholder}))

	_, err := client.AdjustStock(ctx, placeholder.ID, 3, "admin-1", time.Now())
	assert.ErrorIs(t, err, models.ErrProductUnavailable)

	stock := 6
	approve := models.Transition{
		TransactionID: tx.ID,
		From:          models.TransactionStatusPending,
		To:            models.TransactionStatusApproved,
		Actor:         "manager-1",
		At:            time.Now(),
		Changes:       []models.StockChange{{ProductID: active.ID, SetStock: &stock, Activate: true}},
	}
	_, err = client.CommitTransition(ctx, approve)
	assert.ErrorIs(t, err, models.ErrProductUnavailable)

	got, err := client.GetProduct(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Stock)

	approve.Changes = []models.StockChange{
		{ProductID: placeholder.ID, SetStock: &stock, Activate: true},
		{ProductID: active.ID, Delta: 2, Activate: true},
	}
	committed, err := client.CommitTransition(ctx, approve)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusApproved, committed.Status)
	assert.Equal(t, "manager-1", committed.DecidedBy)
	require.Len(t, committed.Items, 2)

	got, err = client.GetProduct(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Stock)
}

func TestUpdateProduct(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	p := newProduct(8, 2)
	require.NoError(t, client.CreateProduct(ctx, p))

	name := "Hex bolt M10"
	price := decimal.RequireFromString("0.55")
	updated, err := client.UpdateProduct(ctx, p.ID, models.ProductUpdate{Name: &name, Price: &price}, "manager-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.True(t, price.Equal(updated.Price))
	assert.Equal(t, "hardware", updated.Category)
	assert.Equal(t, 8, updated.Stock)
	assert.Equal(t, "manager-1", updated.UpdatedBy)

	_, err = client.UpdateProduct(ctx, "missing", models.ProductUpdate{Name: &name}, "manager-1", time.Now())
	assert.ErrorIs(t, err, models.ErrProductNotFound)

	products, err := client.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 1)
}
