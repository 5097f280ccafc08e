package service

import (
	"fmt"
	"strings"

	"inventory-service/internal/models"
)

// ParseSalesDecision maps a customer's confirmation token to a state machine event.
func ParseSalesDecision(token string) (Event, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "yes":
		return EventConfirm, nil
	case "no":
		return EventCancel, nil
	}
	return "", fmt.Errorf("%w: %q, expected yes or no", models.ErrInvalidDecision, token)
}

// ParsePurchaseDecision maps an approver's decision token to a state machine event.
func ParsePurchaseDecision(token string) (Event, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "approve":
		return EventApprove, nil
	case "reject":
		return EventReject, nil
	}
	return "", fmt.Errorf("%w: %q, expected approve or reject", models.ErrInvalidDecision, token)
}
