package redisclient

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"inventory-service/internal/models"

	"github.com/shopspring/decimal"
)

const (
	productKeyPrefix     = "product:"
	transactionKeyPrefix = "transaction:"
	productIndexKey      = "products"
	transactionIndexKey  = "transactions"
)

func productKey(id string) string {
	return productKeyPrefix + id
}

func transactionKey(id string) string {
	return transactionKeyPrefix + id
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("idempotency:%s", key)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, raw)
}

func parseOptionalTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func productToHash(p *models.Product) map[string]interface{} {
	return map[string]interface{}{
		"id":              p.ID,
		"name":            p.Name,
		"category":        p.Category,
		"description":     p.Description,
		"price":           p.Price.String(),
		"stock":           p.Stock,
		"min_stock_level": p.MinStockLevel,
		"status":          string(p.Status),
		"supplier_id":     p.SupplierID,
		"created_by":      p.CreatedBy,
		"updated_by":      p.UpdatedBy,
		"approved_by":     p.ApprovedBy,
		"created_at":      formatTime(p.CreatedAt),
		"updated_at":      formatTime(p.UpdatedAt),
		"approved_at":     formatOptionalTime(p.ApprovedAt),
	}
}

func productUpdateToHash(u models.ProductUpdate) map[string]interface{} {
	h := map[string]interface{}{}
	if u.Name != nil {
		h["name"] = *u.Name
	}
	if u.Category != nil {
		h["category"] = *u.Category
	}
	if u.Description != nil {
		h["description"] = *u.Description
	}
	if u.Price != nil {
		h["price"] = u.Price.String()
	}
	if u.MinStockLevel != nil {
		h["min_stock_level"] = *u.MinStockLevel
	}
	return h
}

func productFromHash(h map[string]string) (*models.Product, error) {
	p := &models.Product{
		ID:          h["id"],
		Name:        h["name"],
		Category:    h["category"],
		Description: h["description"],
		Status:      models.ProductStatus(h["status"]),
		SupplierID:  h["supplier_id"],
		CreatedBy:   h["created_by"],
		UpdatedBy:   h["updated_by"],
		ApprovedBy:  h["approved_by"],
	}

	var err error
	if p.Price, err = decimal.NewFromString(h["price"]); err != nil {
		return nil, fmt.Errorf("decode product %s price: %w", p.ID, err)
	}
	if p.Stock, err = strconv.Atoi(h["stock"]); err != nil {
		return nil, fmt.Errorf("decode product %s stock: %w", p.ID, err)
	}
	if p.MinStockLevel, err = strconv.Atoi(h["min_stock_level"]); err != nil {
		return nil, fmt.Errorf("decode product %s min stock level: %w", p.ID, err)
	}
	if p.CreatedAt, err = parseTime(h["created_at"]); err != nil {
		return nil, fmt.Errorf("decode product %s created_at: %w", p.ID, err)
	}
	if p.UpdatedAt, err = parseTime(h["updated_at"]); err != nil {
		return nil, fmt.Errorf("decode product %s updated_at: %w", p.ID, err)
	}
	if p.ApprovedAt, err = parseOptionalTime(h["approved_at"]); err != nil {
		return nil, fmt.Errorf("decode product %s approved_at: %w", p.ID, err)
	}
	return p, nil
}

func transactionToHash(t *models.Transaction) (map[string]interface{}, error) {
	items, err := json.Marshal(t.Items)
	if err != nil {
		return nil, fmt.Errorf("encode transaction %s items: %w", t.ID, err)
	}
	return map[string]interface{}{
		"id":              t.ID,
		"kind":            string(t.Kind),
		"counterparty_id": t.CounterpartyID,
		"status":          string(t.Status),
		"total_amount":    t.TotalAmount.String(),
		"items":           string(items),
		"product_ids":     strings.Join(t.ProductIDs(), ","),
		"idempotency_key": t.IdempotencyKey,
		"decided_by":      t.DecidedBy,
		"decided_at":      formatOptionalTime(t.DecidedAt),
		"created_at":      formatTime(t.CreatedAt),
		"updated_at":      formatTime(t.UpdatedAt),
	}, nil
}

func transactionFromHash(h map[string]string) (*models.Transaction, error) {
	t := &models.Transaction{
		ID:             h["id"],
		Kind:           models.TransactionKind(h["kind"]),
		CounterpartyID: h["counterparty_id"],
		Status:         models.TransactionStatus(h["status"]),
		IdempotencyKey: h["idempotency_key"],
		DecidedBy:      h["decided_by"],
	}

	var err error
	if t.TotalAmount, err = decimal.NewFromString(h["total_amount"]); err != nil {
		return nil, fmt.Errorf("decode transaction %s total: %w", t.ID, err)
	}
	if err = json.Unmarshal([]byte(h["items"]), &t.Items); err != nil {
		return nil, fmt.Errorf("decode transaction %s items: %w", t.ID, err)
	}
	if t.DecidedAt, err = parseOptionalTime(h["decided_at"]); err != nil {
		return nil, fmt.Errorf("decode transaction %s decided_at: %w", t.ID, err)
	}
	if t.CreatedAt, err = parseTime(h["created_at"]); err != nil {
		return nil, fmt.Errorf("decode transaction %s created_at: %w", t.ID, err)
	}
	if t.UpdatedAt, err = parseTime(h["updated_at"]); err != nil {
		return nil, fmt.Errorf("decode transaction %s updated_at: %w", t.ID, err)
	}
	return t, nil
}

// transitionArgs lays out the commit script arguments: four header values, then five per change.
func transitionArgs(tr models.Transition) (keys []string, args []interface{}) {
	keys = append(keys, transactionKey(tr.TransactionID))
	at := formatTime(tr.At)
	args = append(args, string(tr.From), string(tr.To), tr.Actor, at)

	for _, c := range tr.Changes {
		keys = append(keys, productKey(c.ProductID))

		mode, amount := "delta", c.Delta
		if c.SetStock != nil {
			mode, amount = "set", *c.SetStock
		}
		price := ""
		if c.Price != nil {
			price = c.Price.String()
		}
		minStock := ""
		if c.MinStockLevel != nil {
			minStock = strconv.Itoa(*c.MinStockLevel)
		}
		activate := "0"
		if c.Activate {
			activate = "1"
		}
		args = append(args, mode, strconv.Itoa(amount), price, minStock, activate)
	}
	return keys, args
}
