package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

// Event is a request to move a transaction out of pending
type Event string

const (
	EventConfirm Event = "confirm"
	EventCancel  Event = "cancel"
	EventApprove Event = "approve"
	EventReject  Event = "reject"
)

// TransitionOptions carries decision parameters that shape a transition's effects
type TransitionOptions struct {
	MinStockLevel *int
}

// transitionRule is one row of the lifecycle table. ownerOnly restricts the
// transition to the transaction's counterparty.
type transitionRule struct {
	kind       models.TransactionKind
	event      Event
	from       models.TransactionStatus
	to         models.TransactionStatus
	capability Capability
	ownerOnly  bool
	effects    func(l *Ledger, t *models.Transaction, opts TransitionOptions) []models.StockChange
}

var transitionRules = []transitionRule{
	{
		kind:       models.TransactionKindSale,
		event:      EventConfirm,
		from:       models.TransactionStatusPending,
		to:         models.TransactionStatusPurchased,
		capability: CapConfirmSalesOrder,
		ownerOnly:  true,
		effects: func(l *Ledger, t *models.Transaction, _ TransitionOptions) []models.StockChange {
			changes := make([]models.StockChange, 0, len(t.Items))
			for _, item := range t.Items {
				changes = append(changes, l.Decrement(item))
			}
			return changes
		},
	},
	{
		kind:       models.TransactionKindSale,
		event:      EventCancel,
		from:       models.TransactionStatusPending,
		to:         models.TransactionStatusCancelled,
		capability: CapConfirmSalesOrder,
		ownerOnly:  true,
	},
	{
		kind:       models.TransactionKindPurchase,
		event:      EventApprove,
		from:       models.TransactionStatusPending,
		to:         models.TransactionStatusApproved,
		capability: CapDecidePurchaseOrder,
		effects: func(l *Ledger, t *models.Transaction, opts TransitionOptions) []models.StockChange {
			changes := make([]models.StockChange, 0, len(t.Items))
			for _, item := range t.Items {
				changes = append(changes, l.Approve(item, opts.MinStockLevel))
			}
			return changes
		},
	},
	{
		kind:       models.TransactionKindPurchase,
		event:      EventReject,
		from:       models.TransactionStatusPending,
		to:         models.TransactionStatusRejected,
		capability: CapDecidePurchaseOrder,
	},
}

func findRule(kind models.TransactionKind, event Event) (transitionRule, bool) {
	for _, r := range transitionRules {
		if r.kind == kind && r.event == event {
			return r, true
		}
	}
	return transitionRule{}, false
}

// StateMachine drives transactions through their lifecycle
type StateMachine struct {
	storage Storage
	guard   *StorageGuard
	ledger  *Ledger
	now     func() time.Time
	logger  *zap.Logger
}

// NewStateMachine creates a new transaction state machine
func NewStateMachine(storage Storage, guard *StorageGuard, ledger *Ledger) *StateMachine {
	return &StateMachine{
		storage: storage,
		guard:   guard,
		ledger:  ledger,
		now:     time.Now,
		logger:  util.GetLogger(),
	}
}

// Fire applies event to the transaction. The caller's capability is checked once here.
// Stock effects are validated up front and committed together with the status change,
// so a failed transition leaves both the transaction and the stock untouched.
func (m *StateMachine) Fire(ctx context.Context, p models.Principal, kind models.TransactionKind, transactionID string, event Event, opts TransitionOptions) (*models.Transaction, error) {
	ctx, span := util.StartSpan(ctx, "StateMachine.Fire")
	defer span.End()

	rule, ok := findRule(kind, event)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not apply to %s orders", models.ErrInvalidDecision, event, kind)
	}

	if err := authorize(p, rule.capability); err != nil {
		m.recordFailure(kind, err)
		return nil, err
	}

	t, err := guarded(ctx, m.guard, "GetTransaction", func(ctx context.Context) (*models.Transaction, error) {
		return m.storage.GetTransaction(ctx, transactionID)
	})
	if err != nil {
		return nil, err
	}
	if t.Kind != kind {
		return nil, fmt.Errorf("%w: no %s order %s", models.ErrTransactionNotFound, kind, transactionID)
	}
	if rule.ownerOnly && p.ID != t.CounterpartyID {
		err := fmt.Errorf("%w: %s does not own order %s", models.ErrForbidden, p.ID, transactionID)
		m.recordFailure(kind, err)
		return nil, err
	}
	if t.Status != rule.from {
		err := fmt.Errorf("%w: transaction %s is %s", models.ErrOrderNotPending, transactionID, t.Status)
		m.recordFailure(kind, err)
		return nil, err
	}

	var changes []models.StockChange
	if rule.effects != nil {
		changes = rule.effects(m.ledger, t, opts)
	}
	if err := m.ledger.PlanChanges(ctx, changes); err != nil {
		m.recordFailure(kind, err)
		return nil, err
	}

	transition := models.Transition{
		TransactionID: t.ID,
		From:          rule.from,
		To:            rule.to,
		Actor:         p.ID,
		At:            m.now().UTC(),
		Changes:       changes,
	}

	// The commit must not be abandoned halfway because the caller went away.
	commitCtx := context.WithoutCancel(ctx)
	updated, err := guarded(commitCtx, m.guard, "CommitTransition", func(ctx context.Context) (*models.Transaction, error) {
		return m.storage.CommitTransition(ctx, transition)
	})
	if err != nil {
		m.recordFailure(kind, err)
		m.logger.Warn("Transition rejected",
			zap.String("transaction_id", t.ID),
			zap.String("event", string(event)),
			zap.Error(err))
		return nil, err
	}

	for _, c := range changes {
		if c.SetStock == nil {
			recordStockMovement(c.Delta)
		} else {
			recordStockMovement(*c.SetStock)
		}
	}
	util.TransitionsTotal.WithLabelValues(string(kind), string(updated.Status)).Inc()
	m.logger.Info("Transaction transitioned",
		zap.String("transaction_id", updated.ID),
		zap.String("kind", string(kind)),
		zap.String("from", string(rule.from)),
		zap.String("to", string(updated.Status)),
		zap.String("actor", p.ID))
	return updated, nil
}

func (m *StateMachine) recordFailure(kind models.TransactionKind, err error) {
	util.TransitionFailuresTotal.WithLabelValues(string(kind), failureReason(err)).Inc()
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, models.ErrForbidden):
		return "forbidden"
	case errors.Is(err, models.ErrOrderNotPending):
		return "not_pending"
	case errors.Is(err, models.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, models.ErrQuantityExceedsAvailable):
		return "exceeds_available"
	case errors.Is(err, models.ErrInvalidLineItem):
		return "invalid_line_item"
	case errors.Is(err, models.ErrProductUnavailable):
		return "product_unavailable"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrStorageUnavailable):
		return "storage_unavailable"
	}
	return "error"
}
