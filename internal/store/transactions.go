package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"inventory-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const transactionColumns = `id, kind, counterparty_id, status, total_amount,
	COALESCE(idempotency_key, '') AS idempotency_key, decided_by, decided_at, created_at, updated_at`

// CreateTransaction stores a pending transaction together with any placeholder products it introduces
func (s *Store) CreateTransaction(ctx context.Context, t *models.Transaction, placeholders []models.Product) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(err, nil)
	}
	defer tx.Rollback()

	if err := lockReferencedProducts(ctx, tx, t); err != nil {
		return err
	}

	for i := range placeholders {
		if _, err := tx.NamedExecContext(ctx, insertProductQuery, &placeholders[i]); err != nil {
			return classify(err, nil)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (id, kind, counterparty_id, status, total_amount, idempotency_key,
			decided_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)`,
		t.ID, t.Kind, t.CounterpartyID, t.Status, t.TotalAmount, t.IdempotencyKey,
		t.DecidedBy, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return classify(err, nil)
	}

	for i, item := range t.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO transaction_items (transaction_id, position, product_id, quantity, unit_price, placeholder)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			t.ID, i, item.ProductID, item.Quantity, item.UnitPrice, item.Placeholder)
		if err != nil {
			return classify(err, nil)
		}
	}

	return classify(tx.Commit(), nil)
}

// lockReferencedProducts takes share locks on the catalog products a new order references,
// so a concurrent delete cannot remove them before the order is visible.
func lockReferencedProducts(ctx context.Context, tx *sqlx.Tx, t *models.Transaction) error {
	var ids []string
	for _, item := range t.Items {
		if !item.Placeholder {
			ids = append(ids, item.ProductID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	var found []string
	err := tx.SelectContext(ctx, &found, "SELECT id FROM products WHERE id = ANY($1) FOR SHARE", pq.Array(ids))
	if err != nil {
		return classify(err, nil)
	}

	present := make(map[string]bool, len(found))
	for _, id := range found {
		present[id] = true
	}
	for _, id := range ids {
		if !present[id] {
			return fmt.Errorf("%w: %s", models.ErrProductNotFound, id)
		}
	}
	return nil
}

// GetTransaction retrieves a transaction and its items
func (s *Store) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	return getTransaction(ctx, s.db, id)
}

func getTransaction(ctx context.Context, q sqlx.QueryerContext, id string) (*models.Transaction, error) {
	var t models.Transaction
	err := sqlx.GetContext(ctx, q, &t, "SELECT "+transactionColumns+" FROM transactions WHERE id = $1", id)
	if err != nil {
		return nil, classify(err, fmt.Errorf("%w: %s", models.ErrTransactionNotFound, id))
	}

	t.Items = []models.OrderLine{}
	err = sqlx.SelectContext(ctx, q, &t.Items, `
		SELECT product_id, quantity, unit_price, placeholder
		FROM transaction_items WHERE transaction_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, classify(err, nil)
	}
	return &t, nil
}

// FindTransactionByIdempotencyKey returns nil without error when no transaction carries the key
func (s *Store) FindTransactionByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error) {
	var id string
	err := s.db.GetContext(ctx, &id, "SELECT id FROM transactions WHERE idempotency_key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, nil)
	}
	return s.GetTransaction(ctx, id)
}

// CommitTransition moves a transaction out of its expected status and applies every stock change
// in one database transaction
func (s *Store) CommitTransition(ctx context.Context, tr models.Transition) (*models.Transaction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, classify(err, nil)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE transactions SET status = $1, decided_by = $2, decided_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5`,
		tr.To, tr.Actor, tr.At, tr.TransactionID, tr.From)
	if err != nil {
		return nil, classify(err, nil)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, classify(err, nil)
	} else if n == 0 {
		return nil, statusMismatch(ctx, tx, tr.TransactionID)
	}

	for _, change := range lockOrder(tr.Changes) {
		if err := applyStockChange(ctx, tx, change, tr.Actor, tr.At); err != nil {
			return nil, err
		}
	}

	updated, err := getTransaction(ctx, tx, tr.TransactionID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, classify(err, nil)
	}
	return updated, nil
}

func statusMismatch(ctx context.Context, tx *sqlx.Tx, id string) error {
	var status string
	err := tx.GetContext(ctx, &status, "SELECT status FROM transactions WHERE id = $1", id)
	if err != nil {
		return classify(err, fmt.Errorf("%w: %s", models.ErrTransactionNotFound, id))
	}
	return fmt.Errorf("%w: transaction %s is %s", models.ErrOrderNotPending, id, status)
}

// lockOrder sorts changes by product so concurrent commits take row locks in the same order.
// The sort is stable, keeping same-product changes in their original sequence.
func lockOrder(changes []models.StockChange) []models.StockChange {
	sorted := append([]models.StockChange(nil), changes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ProductID < sorted[j].ProductID
	})
	return sorted
}

// applyStockChange runs one conditional product update. An absolute set only matches a
// product that is still not available.
func applyStockChange(ctx context.Context, tx *sqlx.Tx, c models.StockChange, actor string, at time.Time) error {
	amount := c.Delta
	var required models.ProductStatus
	if c.SetStock != nil {
		amount = *c.SetStock
		required = models.ProductStatusNotAvailable
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE products SET
			stock = CASE WHEN $2::boolean THEN $3::integer ELSE stock + $3::integer END,
			price = COALESCE($4::numeric, price),
			min_stock_level = COALESCE($5::integer, min_stock_level),
			status = CASE WHEN $6::boolean THEN 'available' ELSE status END,
			approved_by = CASE WHEN $6::boolean THEN $7::text ELSE approved_by END,
			approved_at = CASE WHEN $6::boolean THEN $8::timestamptz ELSE approved_at END,
			updated_by = $7::text,
			updated_at = $8::timestamptz
		WHERE id = $1
			AND (NOT $2::boolean OR status = $9)
			AND (CASE WHEN $2::boolean THEN $3::integer ELSE stock + $3::integer END) >= 0`,
		c.ProductID, c.SetStock != nil, amount, c.Price, c.MinStockLevel, c.Activate, actor, at,
		models.ProductStatusNotAvailable)
	if err != nil {
		return classify(err, nil)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err, nil)
	}
	if n == 0 {
		return stockFailure(ctx, tx, c.ProductID, amount, required)
	}
	return nil
}
