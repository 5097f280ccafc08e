package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogService manages catalog entries outside of the order workflows
type CatalogService struct {
	storage Storage
	guard   *StorageGuard
	ledger  *Ledger
	now     func() time.Time
	logger  *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(storage Storage, guard *StorageGuard, ledger *Ledger) *CatalogService {
	return &CatalogService{
		storage: storage,
		guard:   guard,
		ledger:  ledger,
		now:     time.Now,
		logger:  util.GetLogger(),
	}
}

// CreateProductRequest describes a product entered directly by an administrator
type CreateProductRequest struct {
	Name          string
	Category      string
	Description   string
	Price         decimal.Decimal
	Stock         int
	MinStockLevel int
	SupplierID    string
}

func (r *CreateProductRequest) validate() error {
	var missing []string
	if strings.TrimSpace(r.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(r.Category) == "" {
		missing = append(missing, "category")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", models.ErrInvalidProduct, strings.Join(missing, ", "))
	}
	if !r.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", models.ErrInvalidProduct)
	}
	if r.Stock < 0 || r.MinStockLevel < 0 {
		return fmt.Errorf("%w: stock and min_stock_level must not be negative", models.ErrInvalidProduct)
	}
	return nil
}

// CreateProduct adds an available product to the catalog
func (c *CatalogService) CreateProduct(ctx context.Context, p models.Principal, req *CreateProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateProduct")
	defer span.End()

	if err := authorize(p, CapManageCatalog); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	now := c.now().UTC()
	product := &models.Product{
		ID:            uuid.New().String(),
		Name:          strings.TrimSpace(req.Name),
		Category:      strings.TrimSpace(req.Category),
		Description:   req.Description,
		Price:         req.Price,
		Stock:         req.Stock,
		MinStockLevel: req.MinStockLevel,
		Status:        models.ProductStatusAvailable,
		SupplierID:    req.SupplierID,
		CreatedBy:     p.ID,
		UpdatedBy:     p.ID,
		ApprovedBy:    p.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
		ApprovedAt:    &now,
	}

	err := guardedExec(ctx, c.guard, "CreateProduct", func(ctx context.Context) error {
		return c.storage.CreateProduct(ctx, product)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	c.logger.Info("Product created",
		zap.String("product_id", product.ID),
		zap.String("name", product.Name),
		zap.String("actor", p.ID))
	return product, nil
}

// ListProducts lists the catalog, optionally narrowed to one category (case-insensitive)
func (c *CatalogService) ListProducts(ctx context.Context, p models.Principal, category string) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts")
	defer span.End()

	if err := authorize(p, CapViewCatalog); err != nil {
		return nil, err
	}

	products, err := guarded(ctx, c.guard, "ListProducts", func(ctx context.Context) ([]models.Product, error) {
		return c.storage.ListProducts(ctx)
	})
	if err != nil || category == "" {
		return products, err
	}

	filtered := make([]models.Product, 0, len(products))
	for _, product := range products {
		if strings.EqualFold(product.Category, category) {
			filtered = append(filtered, product)
		}
	}
	return filtered, nil
}

// Categories lists the distinct product categories in alphabetical order
func (c *CatalogService) Categories(ctx context.Context, p models.Principal) ([]string, error) {
	products, err := c.ListProducts(ctx, p, "")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	categories := []string{}
	for _, product := range products {
		if !seen[product.Category] {
			seen[product.Category] = true
			categories = append(categories, product.Category)
		}
	}
	sort.Strings(categories)
	return categories, nil
}

// GetProduct retrieves a product by ID
func (c *CatalogService) GetProduct(ctx context.Context, p models.Principal, id string) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetProduct")
	defer span.End()

	if err := authorize(p, CapViewCatalog); err != nil {
		return nil, err
	}
	return c.ledger.GetProduct(ctx, id)
}

// UpdateProductRequest carries catalog edits. Nil fields are left unchanged.
type UpdateProductRequest struct {
	Name          *string
	Category      *string
	Description   *string
	Price         *decimal.Decimal
	MinStockLevel *int
}

func (r *UpdateProductRequest) normalize() (models.ProductUpdate, error) {
	u := models.ProductUpdate{
		Description:   r.Description,
		Price:         r.Price,
		MinStockLevel: r.MinStockLevel,
	}
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" {
			return u, fmt.Errorf("%w: name must not be empty", models.ErrInvalidProduct)
		}
		u.Name = &name
	}
	if r.Category != nil {
		category := strings.TrimSpace(*r.Category)
		if category == "" {
			return u, fmt.Errorf("%w: category must not be empty", models.ErrInvalidProduct)
		}
		u.Category = &category
	}
	if r.Price != nil && !r.Price.IsPositive() {
		return u, fmt.Errorf("%w: price must be positive", models.ErrInvalidProduct)
	}
	if r.MinStockLevel != nil && *r.MinStockLevel < 0 {
		return u, fmt.Errorf("%w: min_stock_level must not be negative", models.ErrInvalidProduct)
	}
	if u.IsEmpty() {
		return u, fmt.Errorf("%w: nothing to update", models.ErrInvalidProduct)
	}
	return u, nil
}

// UpdateProduct edits a product's catalog fields. Names are unique ignoring case.
// Stock is not editable here.
func (c *CatalogService) UpdateProduct(ctx context.Context, p models.Principal, id string, req *UpdateProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpdateProduct")
	defer span.End()

	if err := authorize(p, CapEditCatalog); err != nil {
		return nil, err
	}
	update, err := req.normalize()
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		if err := c.checkNameFree(ctx, id, *update.Name); err != nil {
			return nil, err
		}
	}

	product, err := guarded(ctx, c.guard, "UpdateProduct", func(ctx context.Context) (*models.Product, error) {
		return c.storage.UpdateProduct(ctx, id, update, p.ID, c.now().UTC())
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("Product updated",
		zap.String("product_id", product.ID),
		zap.String("actor", p.ID))
	return product, nil
}

func (c *CatalogService) checkNameFree(ctx context.Context, id, name string) error {
	products, err := guarded(ctx, c.guard, "ListProducts", func(ctx context.Context) ([]models.Product, error) {
		return c.storage.ListProducts(ctx)
	})
	if err != nil {
		return err
	}
	for _, other := range products {
		if other.ID != id && strings.EqualFold(other.Name, name) {
			return fmt.Errorf("%w: %q is used by product %s", models.ErrProductNameTaken, name, other.ID)
		}
	}
	return nil
}

// AdjustStock applies a manual stock correction
func (c *CatalogService) AdjustStock(ctx context.Context, p models.Principal, id string, delta int) (*models.Product, error) {
	if err := authorize(p, CapAdjustStock); err != nil {
		return nil, err
	}
	return c.ledger.AdjustStock(ctx, p.ID, id, delta)
}

// DeleteProduct removes a product no pending transaction references
func (c *CatalogService) DeleteProduct(ctx context.Context, p models.Principal, id string) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.DeleteProduct")
	defer span.End()

	if err := authorize(p, CapManageCatalog); err != nil {
		return err
	}

	err := guardedExec(ctx, c.guard, "DeleteProduct", func(ctx context.Context) error {
		return c.storage.DeleteProduct(ctx, id)
	})
	if err != nil {
		return err
	}

	c.logger.Info("Product deleted", zap.String("product_id", id), zap.String("actor", p.ID))
	return nil
}
