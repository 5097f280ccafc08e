package api

import (
	"fmt"

	"inventory-service/internal/models"
	"inventory-service/internal/service"

	"github.com/shopspring/decimal"
)

const (
	lineTypeExisting = "existing"
	lineTypeNew      = "new"
)

type salesLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type createSalesOrderRequest struct {
	Items          []salesLineRequest `json:"items" binding:"required"`
	IdempotencyKey string             `json:"idempotency_key"`
}

func (r *createSalesOrderRequest) toService() *service.SalesOrderRequest {
	items := make([]models.ExistingProductLine, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, models.ExistingProductLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return &service.SalesOrderRequest{Items: items, IdempotencyKey: r.IdempotencyKey}
}

// purchaseLineRequest is the wire form of a purchase line, discriminated by type.
// New product lines carry their quantity as stock.
type purchaseLineRequest struct {
	Type        string          `json:"type" binding:"required,oneof=existing new"`
	ProductID   string          `json:"product_id"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Stock       int             `json:"stock"`
}

func (r purchaseLineRequest) lineItem() (models.LineItem, error) {
	switch r.Type {
	case lineTypeExisting:
		return models.ExistingProductLine{ProductID: r.ProductID, Quantity: r.Quantity, Price: r.Price}, nil
	case lineTypeNew:
		qty := r.Stock
		if qty == 0 {
			qty = r.Quantity
		}
		return models.NewProductLine{
			Name:        r.Name,
			Category:    r.Category,
			Description: r.Description,
			Price:       r.Price,
			Quantity:    qty,
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown line type %q", models.ErrInvalidLineItem, r.Type)
}

type createPurchaseOrderRequest struct {
	Items          []purchaseLineRequest `json:"items" binding:"required,dive"`
	IdempotencyKey string                `json:"idempotency_key"`
}

func (r *createPurchaseOrderRequest) toService() (*service.PurchaseOrderRequest, error) {
	items := make([]models.LineItem, 0, len(r.Items))
	for _, item := range r.Items {
		line, err := item.lineItem()
		if err != nil {
			return nil, err
		}
		items = append(items, line)
	}
	return &service.PurchaseOrderRequest{Items: items, IdempotencyKey: r.IdempotencyKey}, nil
}

type confirmationRequest struct {
	Decision string `json:"decision" binding:"required"`
}

type purchaseDecisionRequest struct {
	Decision      string `json:"decision" binding:"required"`
	MinStockLevel *int   `json:"min_stock_level"`
}

type createProductRequest struct {
	Name          string          `json:"name" binding:"required"`
	Category      string          `json:"category" binding:"required"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Stock         int             `json:"stock"`
	MinStockLevel int             `json:"min_stock_level"`
	SupplierID    string          `json:"supplier_id"`
}

func (r *createProductRequest) toService() *service.CreateProductRequest {
	return &service.CreateProductRequest{
		Name:          r.Name,
		Category:      r.Category,
		Description:   r.Description,
		Price:         r.Price,
		Stock:         r.Stock,
		MinStockLevel: r.MinStockLevel,
		SupplierID:    r.SupplierID,
	}
}

type stockAdjustmentRequest struct {
	Delta *int `json:"delta" binding:"required"`
}

// updateProductRequest accepts partial edits. Stock is rejected so it only moves through
// stock adjustments and orders.
type updateProductRequest struct {
	Name          *string          `json:"name"`
	Category      *string          `json:"category"`
	Description   *string          `json:"description"`
	Price         *decimal.Decimal `json:"price"`
	MinStockLevel *int             `json:"min_stock_level"`
	Stock         *int             `json:"stock"`
}

func (r *updateProductRequest) toService() (*service.UpdateProductRequest, error) {
	if r.Stock != nil {
		return nil, fmt.Errorf("%w: stock changes go through stock adjustments", models.ErrInvalidProduct)
	}
	return &service.UpdateProductRequest{
		Name:          r.Name,
		Category:      r.Category,
		Description:   r.Description,
		Price:         r.Price,
		MinStockLevel: r.MinStockLevel,
	}, nil
}
