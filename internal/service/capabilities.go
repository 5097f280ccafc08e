package service

import (
	"fmt"

	"inventory-service/internal/models"
)

// Capability is a permission checked against the caller's role
type Capability string

const (
	CapCreateSalesOrder    Capability = "sales:create"
	CapConfirmSalesOrder   Capability = "sales:confirm"
	CapCreatePurchaseOrder Capability = "purchase:create"
	CapDecidePurchaseOrder Capability = "purchase:decide"
	CapViewCatalog         Capability = "catalog:view"
	CapManageCatalog       Capability = "catalog:manage"
	CapEditCatalog         Capability = "catalog:edit"
	CapViewStockDetails    Capability = "catalog:view-details"
	CapAdjustStock         Capability = "inventory:adjust"
	CapViewLowStock        Capability = "inventory:low-stock"
	CapViewAnyTransaction  Capability = "transactions:view-any"
)

var roleCapabilities = map[models.Role]map[Capability]bool{
	models.RoleAdmin: {
		CapDecidePurchaseOrder: true,
		CapViewCatalog:         true,
		CapViewStockDetails:    true,
		CapManageCatalog:       true,
		CapEditCatalog:         true,
		CapAdjustStock:         true,
		CapViewLowStock:        true,
		CapViewAnyTransaction:  true,
	},
	models.RoleManager: {
		CapDecidePurchaseOrder: true,
		CapViewCatalog:         true,
		CapViewStockDetails:    true,
		CapEditCatalog:         true,
		CapAdjustStock:         true,
		CapViewLowStock:        true,
		CapViewAnyTransaction:  true,
	},
	models.RoleSupplier: {
		CapCreatePurchaseOrder: true,
		CapViewCatalog:         true,
		CapViewStockDetails:    true,
	},
	models.RoleCustomer: {
		CapCreateSalesOrder:  true,
		CapConfirmSalesOrder: true,
		CapViewCatalog:       true,
	},
}

// Can reports whether the principal's role grants c.
func Can(p models.Principal, c Capability) bool {
	return roleCapabilities[p.Role][c]
}

func authorize(p models.Principal, c Capability) error {
	if p.ID == "" || !Can(p, c) {
		return fmt.Errorf("%w: role %q lacks %s", models.ErrForbidden, p.Role, c)
	}
	return nil
}
