package api

import (
	"inventory-service/internal/models"
	"inventory-service/internal/service"

	"github.com/shopspring/decimal"
)

// catalogEntry is the product as shown to callers without access to stock details.
// Minimum levels and audit fields are left out.
type catalogEntry struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Category    string               `json:"category"`
	Description string               `json:"description"`
	Price       decimal.Decimal      `json:"price"`
	Stock       int                  `json:"stock"`
	Status      models.ProductStatus `json:"status"`
}

func productView(p models.Principal, product *models.Product) interface{} {
	if service.Can(p, service.CapViewStockDetails) {
		return product
	}
	return catalogEntry{
		ID:          product.ID,
		Name:        product.Name,
		Category:    product.Category,
		Description: product.Description,
		Price:       product.Price,
		Stock:       product.Stock,
		Status:      product.Status,
	}
}

func productViews(p models.Principal, products []models.Product) []interface{} {
	views := make([]interface{}, 0, len(products))
	for i := range products {
		views = append(views, productView(p, &products[i]))
	}
	return views
}
