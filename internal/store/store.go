package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"inventory-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const productColumns = `id, name, category, description, price, stock, min_stock_level, status,
	supplier_id, created_by, updated_by, approved_by, created_at, updated_at, approved_at`

// Store is the Postgres implementation of the inventory storage
type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return classify(s.db.PingContext(ctx), nil)
}

// GetProduct retrieves a product by ID
func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if err != nil {
		return nil, classify(err, fmt.Errorf("%w: %s", models.ErrProductNotFound, id))
	}
	return &product, nil
}

// ListProducts retrieves all products
func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, "SELECT "+productColumns+" FROM products ORDER BY name, id")
	return products, classify(err, nil)
}

// ListLowStockProducts retrieves products whose stock is at or below their minimum level
func (s *Store) ListLowStockProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products,
		"SELECT "+productColumns+" FROM products WHERE stock <= min_stock_level ORDER BY name, id")
	return products, classify(err, nil)
}

const insertProductQuery = `
	INSERT INTO products (id, name, category, description, price, stock, min_stock_level, status,
		supplier_id, created_by, updated_by, approved_by, created_at, updated_at, approved_at)
	VALUES (:id, :name, :category, :description, :price, :stock, :min_stock_level, :status,
		:supplier_id, :created_by, :updated_by, :approved_by, :created_at, :updated_at, :approved_at)`

// CreateProduct inserts a catalog product
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	_, err := s.db.NamedExecContext(ctx, insertProductQuery, product)
	return classify(err, nil)
}

// DeleteProduct removes a product that no pending transaction references
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(err, nil)
	}
	defer tx.Rollback()

	var locked string
	err = tx.GetContext(ctx, &locked, "SELECT id FROM products WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return classify(err, fmt.Errorf("%w: %s", models.ErrProductNotFound, id))
	}

	var inUse bool
	err = tx.GetContext(ctx, &inUse, `
		SELECT EXISTS (
			SELECT 1 FROM transaction_items ti
			JOIN transactions t ON t.id = ti.transaction_id
			WHERE ti.product_id = $1 AND t.status = $2
		)`, id, models.TransactionStatusPending)
	if err != nil {
		return classify(err, nil)
	}
	if inUse {
		return fmt.Errorf("%w: %s", models.ErrProductInUse, id)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id); err != nil {
		return classify(err, nil)
	}
	return classify(tx.Commit(), nil)
}

// AdjustStock adds delta to the stock of an available product in one conditional update that
// never lets stock go negative
func (s *Store) AdjustStock(ctx context.Context, id string, delta int, actor string, at time.Time) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, `
		UPDATE products SET stock = stock + $1, updated_by = $2, updated_at = $3
		WHERE id = $4 AND status = $5 AND stock + $1 >= 0
		RETURNING `+productColumns, delta, actor, at, id, models.ProductStatusAvailable)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, stockFailure(ctx, s.db, id, delta, models.ProductStatusAvailable)
	}
	if err != nil {
		return nil, classify(err, nil)
	}
	return &product, nil
}

// UpdateProduct writes the non-nil fields of update. Stock is never touched.
func (s *Store) UpdateProduct(ctx context.Context, id string, update models.ProductUpdate, actor string, at time.Time) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, `
		UPDATE products SET
			name = COALESCE($1, name),
			category = COALESCE($2, category),
			description = COALESCE($3, description),
			price = COALESCE($4::numeric, price),
			min_stock_level = COALESCE($5::integer, min_stock_level),
			updated_by = $6,
			updated_at = $7
		WHERE id = $8
		RETURNING `+productColumns,
		update.Name, update.Category, update.Description, update.Price, update.MinStockLevel, actor, at, id)
	if err != nil {
		return nil, classify(err, fmt.Errorf("%w: %s", models.ErrProductNotFound, id))
	}
	return &product, nil
}

// stockFailure explains why a conditional stock update matched nothing. required is the
// status the update was conditioned on, if any.
func stockFailure(ctx context.Context, q sqlx.QueryerContext, id string, amount int, required models.ProductStatus) error {
	var row struct {
		Stock  int                  `db:"stock"`
		Status models.ProductStatus `db:"status"`
	}
	err := sqlx.GetContext(ctx, q, &row, "SELECT stock, status FROM products WHERE id = $1", id)
	if err != nil {
		return classify(err, fmt.Errorf("%w: %s", models.ErrProductNotFound, id))
	}
	if required != "" && row.Status != required {
		return fmt.Errorf("%w: product %s is %s", models.ErrProductUnavailable, id, row.Status)
	}
	return fmt.Errorf("%w: product %s has %d, change %d", models.ErrInsufficientStock, id, row.Stock, amount)
}

// classify maps driver errors onto the domain sentinels. notFound is returned for sql.ErrNoRows.
func classify(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) && notFound != nil {
		return notFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505":
			return fmt.Errorf("%w: %s", models.ErrDuplicateKey, pqErr.Detail)
		case pqErr.Code.Class() == "08", pqErr.Code == "57014", pqErr.Code == "57P01",
			pqErr.Code == "40P01", pqErr.Code == "40001":
			return fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
		}
		return err
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	return err
}
