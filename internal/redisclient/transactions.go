package redisclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"inventory-service/internal/models"

	"github.com/go-redis/redis/v8"
)

// CreateTransaction stores a pending transaction and its placeholder products in one MULTI block.
// The idempotency key and referenced products are watched so a concurrent writer aborts the commit.
func (c *Client) CreateTransaction(ctx context.Context, t *models.Transaction, placeholders []models.Product) error {
	txHash, err := transactionToHash(t)
	if err != nil {
		return err
	}

	placeholderIDs := make(map[string]bool, len(placeholders))
	for _, p := range placeholders {
		placeholderIDs[p.ID] = true
	}
	var referenced []string
	for _, id := range t.ProductIDs() {
		if !placeholderIDs[id] {
			referenced = append(referenced, productKey(id))
		}
	}

	watched := append([]string{}, referenced...)
	if t.IdempotencyKey != "" {
		watched = append(watched, idempotencyKey(t.IdempotencyKey))
	}

	create := func(tx *redis.Tx) error {
		if t.IdempotencyKey != "" {
			n, err := tx.Exists(ctx, idempotencyKey(t.IdempotencyKey)).Result()
			if err != nil {
				return classify(err)
			}
			if n > 0 {
				return fmt.Errorf("%w: idempotency key %s", models.ErrDuplicateKey, t.IdempotencyKey)
			}
		}
		for _, key := range referenced {
			n, err := tx.Exists(ctx, key).Result()
			if err != nil {
				return classify(err)
			}
			if n == 0 {
				return fmt.Errorf("%w: %s", models.ErrProductNotFound, strings.TrimPrefix(key, productKeyPrefix))
			}
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i := range placeholders {
				pipe.HSet(ctx, productKey(placeholders[i].ID), productToHash(&placeholders[i]))
				pipe.SAdd(ctx, productIndexKey, placeholders[i].ID)
			}
			pipe.HSet(ctx, transactionKey(t.ID), txHash)
			pipe.SAdd(ctx, transactionIndexKey, t.ID)
			if t.IdempotencyKey != "" {
				pipe.Set(ctx, idempotencyKey(t.IdempotencyKey), t.ID, 0)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err = c.rdb.Watch(ctx, create, watched...)
		if !errors.Is(err, redis.TxFailedErr) {
			return classify(err)
		}
	}
	return fmt.Errorf("%w: transaction %s kept conflicting", models.ErrStorageUnavailable, t.ID)
}

// GetTransaction retrieves a transaction by ID
func (c *Client) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	h, err := c.rdb.HGetAll(ctx, transactionKey(id)).Result()
	if err != nil {
		return nil, classify(err)
	}
	if len(h) == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrTransactionNotFound, id)
	}
	return transactionFromHash(h)
}

// FindTransactionByIdempotencyKey returns nil without error when no transaction carries the key
func (c *Client) FindTransactionByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error) {
	id, err := c.rdb.Get(ctx, idempotencyKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return c.GetTransaction(ctx, id)
}

// CommitTransition moves a transaction out of its expected status and applies every stock change
// inside a single script
func (c *Client) CommitTransition(ctx context.Context, tr models.Transition) (*models.Transaction, error) {
	keys, args := transitionArgs(tr)
	reply, err := evalScript(ctx, c.rdb, c.commitScript, keys, args...)
	if err != nil {
		return nil, err
	}

	switch reply.code {
	case "OK":
		return transactionFromHash(reply.hash())
	case "TX_NOT_FOUND":
		return nil, fmt.Errorf("%w: %s", models.ErrTransactionNotFound, tr.TransactionID)
	case "NOT_PENDING":
		return nil, fmt.Errorf("%w: transaction %s is %s", models.ErrOrderNotPending, tr.TransactionID, reply.detail)
	case "PRODUCT_NOT_FOUND":
		return nil, fmt.Errorf("%w: %s", models.ErrProductNotFound, strings.TrimPrefix(reply.detail, productKeyPrefix))
	case "PRODUCT_UNAVAILABLE":
		return nil, fmt.Errorf("%w: product %s was already activated", models.ErrProductUnavailable, strings.TrimPrefix(reply.detail, productKeyPrefix))
	case "INSUFFICIENT_STOCK":
		return nil, fmt.Errorf("%w: product %s", models.ErrInsufficientStock, strings.TrimPrefix(reply.detail, productKeyPrefix))
	}
	return nil, fmt.Errorf("commit transition script returned %q", reply.code)
}
