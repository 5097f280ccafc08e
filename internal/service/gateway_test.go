package service

import (
	"testing"

	"inventory-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestParseDecisions(t *testing.T) {
	tests := []struct {
		token    string
		purchase bool
		want     Event
		err      error
	}{
		{"yes", false, EventConfirm, nil},
		{" NO ", false, EventCancel, nil},
		{"approve", false, "", models.ErrInvalidDecision},
		{"Approve", true, EventApprove, nil},
		{"reject", true, EventReject, nil},
		{"yes", true, "", models.ErrInvalidDecision},
		{"", true, "", models.ErrInvalidDecision},
	}

	for _, tt := range tests {
		parse := ParseSalesDecision
		if tt.purchase {
			parse = ParsePurchaseDecision
		}
		got, err := parse(tt.token)
		if tt.err != nil {
			assert.ErrorIs(t, err, tt.err, tt.token)
			continue
		}
		assert.NoError(t, err, tt.token)
		assert.Equal(t, tt.want, got)
	}
}

func TestRoleCapabilities(t *testing.T) {
	assert.True(t, Can(customer, CapConfirmSalesOrder))
	assert.False(t, Can(customer, CapViewLowStock))
	assert.True(t, Can(supplier, CapCreatePurchaseOrder))
	assert.False(t, Can(supplier, CapDecidePurchaseOrder))
	assert.True(t, Can(manager, CapDecidePurchaseOrder))
	assert.False(t, Can(manager, CapManageCatalog))
	assert.True(t, Can(admin, CapManageCatalog))
	assert.False(t, Can(admin, CapCreateSalesOrder))
	assert.True(t, Can(manager, CapEditCatalog))
	assert.False(t, Can(supplier, CapEditCatalog))
	assert.False(t, Can(customer, CapViewStockDetails))
	assert.True(t, Can(supplier, CapViewStockDetails))

	assert.ErrorIs(t, authorize(models.Principal{Role: models.RoleAdmin}, CapViewCatalog), models.ErrForbidden)
}

func TestTransitionRulesLeavePendingOnly(t *testing.T) {
	for _, r := range transitionRules {
		assert.Equal(t, models.TransactionStatusPending, r.from)
		assert.True(t, r.to.IsTerminal(), string(r.to))
	}
}
