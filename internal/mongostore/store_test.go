package mongostore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"inventory-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestTransactionDocumentRoundTrip(t *testing.T) {
	decided := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tx := &models.Transaction{
		ID:             "tx-1",
		Kind:           models.TransactionKindPurchase,
		CounterpartyID: "supplier-1",
		Items: []models.OrderLine{
			{ProductID: "p-1", Quantity: 3, UnitPrice: decimal.RequireFromString("19.99")},
			{ProductID: "p-2", Quantity: 1, UnitPrice: decimal.RequireFromString("0.05"), Placeholder: true},
			{ProductID: "p-1", Quantity: 2, UnitPrice: decimal.RequireFromString("19.99")},
		},
		Status:         models.TransactionStatusApproved,
		TotalAmount:    decimal.RequireFromString("100.00"),
		IdempotencyKey: "key-1",
		DecidedBy:      "manager-1",
		DecidedAt:      &decided,
		CreatedAt:      decided.Add(-time.Hour),
		UpdatedAt:      decided,
	}

	doc, err := newTransactionDocument(tx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p-1", "p-2"}, doc.ProductIDs)

	back, err := doc.model()
	require.NoError(t, err)
	assert.Equal(t, tx.Items[1].ProductID, back.Items[1].ProductID)
	assert.True(t, back.Items[1].Placeholder)
	assert.True(t, tx.TotalAmount.Equal(back.TotalAmount))
	assert.True(t, tx.Items[0].UnitPrice.Equal(back.Items[0].UnitPrice))
	assert.Equal(t, tx.DecidedAt, back.DecidedAt)
	assert.Equal(t, tx.Status, back.Status)
}

func TestDecimal128Conversion(t *testing.T) {
	for _, raw := range []string{"0", "0.01", "12345678.9912", "-4.5"} {
		d := decimal.RequireFromString(raw)
		v, err := toDecimal128(d)
		require.NoError(t, err)

		back, err := fromDecimal128(v)
		require.NoError(t, err)
		assert.True(t, d.Equal(back), raw)
	}
}

func TestClassify(t *testing.T) {
	notFound := fmt.Errorf("%w: p-1", models.ErrProductNotFound)

	assert.NoError(t, classify(nil, notFound))
	assert.ErrorIs(t, classify(mongo.ErrNoDocuments, notFound), models.ErrProductNotFound)
	assert.ErrorIs(t, classify(context.DeadlineExceeded, nil), models.ErrStorageUnavailable)
	assert.ErrorIs(t, classify(mongo.ErrClientDisconnected, nil), models.ErrStorageUnavailable)

	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	assert.ErrorIs(t, classify(dup, nil), models.ErrDuplicateKey)

	domain := fmt.Errorf("%w: product p-1 has 1, change -2", models.ErrInsufficientStock)
	assert.Equal(t, domain, classify(domain, nil))
}

func newIntegrationStore(t *testing.T) *Store {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("Integration test - requires MongoDB replica set")
	}

	ctx := context.Background()
	store, err := NewStore(ctx, uri, "inventory_test_"+uuid.NewString()[:8])
	require.NoError(t, err)
	require.NoError(t, store.EnsureIndexes(ctx))
	t.Cleanup(func() {
		_ = store.products.Database().Drop(context.Background())
		store.Close()
	})
	return store
}

func seed(t *testing.T, s *Store, stock, minStock int) *models.Product {
	now := time.Now().UTC()
	p := &models.Product{
		ID:            uuid.NewString(),
		Name:          "Widget",
		Category:      "parts",
		Price:         decimal.RequireFromString("2.50"),
		Stock:         stock,
		MinStockLevel: minStock,
		Status:        models.ProductStatusAvailable,
		CreatedBy:     "admin-1",
		UpdatedBy:     "admin-1",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, s.CreateProduct(context.Background(), p))
	return p
}

func TestAdjustStock(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	p := seed(t, s, 5, 0)

	updated, err := s.AdjustStock(ctx, p.ID, -3, "manager-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Stock)

	_, err = s.AdjustStock(ctx, p.ID, -3, "manager-1", time.Now())
	assert.ErrorIs(t, err, models.ErrInsufficientStock)

	_, err = s.AdjustStock(ctx, "missing", 1, "manager-1", time.Now())
	assert.ErrorIs(t, err, models.ErrProductNotFound)
}

func TestCommitTransitionAllOrNothing(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	plenty := seed(t, s, 10, 0)
	scarce := seed(t, s, 1, 0)

	tx := &models.Transaction{
		ID:             uuid.NewString(),
		Kind:           models.TransactionKindSale,
		CounterpartyID: "customer-1",
		Items: []models.OrderLine{
			{ProductID: plenty.ID, Quantity: 4, UnitPrice: plenty.Price},
			{ProductID: scarce.ID, Quantity: 2, UnitPrice: scarce.Price},
		},
		Status:    models.TransactionStatusPending,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateTransaction(ctx, tx, nil))

	_, err := s.CommitTransition(ctx, models.Transition{
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

	got, err := s.GetProduct(ctx, plenty.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Stock)

	pending, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, pending.Status)

	assert.ErrorIs(t, s.DeleteProduct(ctx, scarce.ID), models.ErrProductInUse)
}

func TestUpdateProduct(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	p := seed(t, s, 7, 1)

	category := "fasteners"
	price := decimal.RequireFromString("3.10")
	updated, err := s.UpdateProduct(ctx, p.ID, models.ProductUpdate{Category: &category, Price: &price}, "manager-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "fasteners", updated.Category)
	assert.True(t, price.Equal(updated.Price))
	assert.Equal(t, 7, updated.Stock)
	assert.Equal(t, "Widget", updated.Name)

	_, err = s.UpdateProduct(ctx, "missing", models.ProductUpdate{Category: &category}, "manager-1", time.Now())
	assert.ErrorIs(t, err, models.ErrProductNotFound)
}

func TestStockGuardsOnProductStatus(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	active := seed(t, s, 4, 0)

	placeholder := *active
	placeholder.ID = uuid.NewString()
	placeholder.Stock = 0
	placeholder.Status = models.ProductStatusNotAvailable
	tx := &models.Transaction{
		ID:             uuid.NewString(),
		Kind:           models.TransactionKindPurchase,
		CounterpartyID: "supplier-1",
		Items: []models.OrderLine{
			{ProductID: placeholder.ID, Quantity: 6, UnitPrice: placeholder.Price, Placeholder: true},
			{ProductID: active.ID, Quantity: 2, UnitPrice: active.Price},
		},
		Status:    models.TransactionStatusPending,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateTransaction(ctx, tx, []models.Product{placeholder}))

	_, err := s.AdjustStock(ctx, placeholder.ID, 1, "admin-1", time.Now())
	assert.ErrorIs(t, err, models.ErrProductUnavailable)

	stock := 6
	_, err = s.CommitTransition(ctx, models.Transition{
		TransactionID: tx.ID,
		From:          models.TransactionStatusPending,
		To:            models.TransactionStatusApproved,
		Actor:         "manager-1",
		At:            time.Now(),
		Changes:       []models.StockChange{{ProductID: active.ID, SetStock: &stock, Activate: true}},
	})
	assert.ErrorIs(t, err, models.ErrProductUnavailable)

	committed, err := s.CommitTransition(ctx, models.Transition{
		TransactionID: tx.ID,
		From:          models.TransactionStatusPending,
		To:            models.TransactionStatusApproved,
		Actor:         "manager-1",
		At:            time.Now(),
		Changes: []models.StockChange{
			{ProductID: placeholder.ID, SetStock: &stock, Activate: true},
			{ProductID: active.ID, Delta: 2, Activate: true},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusApproved, committed.Status)

	got, err := s.GetProduct(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Stock)
}
