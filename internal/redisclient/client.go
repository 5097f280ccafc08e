package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"time"

	"inventory-service/internal/models"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/adjust_stock.lua
var adjustStockScript string

//go:embed scripts/commit_transition.lua
var commitTransitionScript string

//go:embed scripts/delete_product.lua
var deleteProductScript string

// maxWatchRetries bounds optimistic retries when a watched key changes under CreateTransaction.
const maxWatchRetries = 3

// Client is the Redis implementation of the inventory storage
type Client struct {
	rdb          *redis.Client
	adjustScript *redis.Script
	commitScript *redis.Script
	deleteScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:          rdb,
		adjustScript: redis.NewScript(adjustStockScript),
		commitScript: redis.NewScript(commitTransitionScript),
		deleteScript: redis.NewScript(deleteProductScript),
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return classify(c.rdb.Ping(ctx).Err())
}

// GetProduct retrieves a product by ID
func (c *Client) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	h, err := c.rdb.HGetAll(ctx, productKey(id)).Result()
	if err != nil {
		return nil, classify(err)
	}
	if len(h) == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrProductNotFound, id)
	}
	return productFromHash(h)
}

// ListProducts retrieves all products ordered by name
func (c *Client) ListProducts(ctx context.Context) ([]models.Product, error) {
	return c.listProducts(ctx, func(*models.Product) bool { return true })
}

// ListLowStockProducts retrieves products whose stock is at or below their minimum level
func (c *Client) ListLowStockProducts(ctx context.Context) ([]models.Product, error) {
	return c.listProducts(ctx, func(p *models.Product) bool { return p.IsLowStock() })
}

func (c *Client) listProducts(ctx context.Context, keep func(*models.Product) bool) ([]models.Product, error) {
	ids, err := c.rdb.SMembers(ctx, productIndexKey).Result()
	if err != nil {
		return nil, classify(err)
	}

	pipe := c.rdb.Pipeline()
	cmds := make([]*redis.StringStringMapCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, productKey(id))
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, classify(err)
		}
	}

	products := make([]models.Product, 0, len(ids))
	for _, cmd := range cmds {
		h := cmd.Val()
		if len(h) == 0 {
			continue
		}
		p, err := productFromHash(h)
		if err != nil {
			return nil, err
		}
		if keep(p) {
			products = append(products, *p)
		}
	}

	sort.Slice(products, func(i, j int) bool {
		if products[i].Name != products[j].Name {
			return products[i].Name < products[j].Name
		}
		return products[i].ID < products[j].ID
	})
	return products, nil
}

// CreateProduct stores a catalog product
func (c *Client) CreateProduct(ctx context.Context, product *models.Product) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, productKey(product.ID), productToHash(product))
		pipe.SAdd(ctx, productIndexKey, product.ID)
		return nil
	})
	return classify(err)
}

// DeleteProduct removes a product unless a pending transaction references it
func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	keys := []string{productKey(id), productIndexKey, transactionIndexKey}
	reply, err := evalScript(ctx, c.rdb, c.deleteScript, keys, id, transactionKeyPrefix)
	if err != nil {
		return err
	}

	switch reply.code {
	case "OK":
		return nil
	case "NOT_FOUND":
		return fmt.Errorf("%w: %s", models.ErrProductNotFound, id)
	case "IN_USE":
		return fmt.Errorf("%w: %s referenced by transaction %s", models.ErrProductInUse, id, reply.detail)
	}
	return fmt.Errorf("delete product script returned %q", reply.code)
}

// AdjustStock atomically adds delta to the stock of an available product, refusing to go below zero
func (c *Client) AdjustStock(ctx context.Context, id string, delta int, actor string, at time.Time) (*models.Product, error) {
	reply, err := evalScript(ctx, c.rdb, c.adjustScript, []string{productKey(id)}, delta, actor, formatTime(at))
	if err != nil {
		return nil, err
	}

	switch reply.code {
	case "OK":
		return productFromHash(reply.hash())
	case "NOT_FOUND":
		return nil, fmt.Errorf("%w: %s", models.ErrProductNotFound, id)
	case "UNAVAILABLE":
		return nil, fmt.Errorf("%w: product %s is %s", models.ErrProductUnavailable, id, reply.detail)
	case "INSUFFICIENT_STOCK":
		return nil, fmt.Errorf("%w: product %s has %s, change %d", models.ErrInsufficientStock, id, reply.detail, delta)
	}
	return nil, fmt.Errorf("adjust stock script returned %q", reply.code)
}

// UpdateProduct writes the descriptive fields of an existing product. The product key is
// watched so a concurrent delete is not undone.
func (c *Client) UpdateProduct(ctx context.Context, id string, update models.ProductUpdate, actor string, at time.Time) (*models.Product, error) {
	key := productKey(id)
	fields := productUpdateToHash(update)
	fields["updated_by"] = actor
	fields["updated_at"] = formatTime(at)

	var product *models.Product
	apply := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return classify(err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", models.ErrProductNotFound, id)
		}

		var read *redis.StringStringMapCmd
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			read = pipe.HGetAll(ctx, key)
			return nil
		})
		if err != nil {
			return err
		}
		product, err = productFromHash(read.Val())
		return err
	}

	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err := c.rdb.Watch(ctx, apply, key)
		if !errors.Is(err, redis.TxFailedErr) {
			if err != nil {
				return nil, classify(err)
			}
			return product, nil
		}
	}
	return nil, fmt.Errorf("%w: product %s kept conflicting", models.ErrStorageUnavailable, id)
}

// scriptReply is the {code, detail[, hash]} reply shared by every script.
type scriptReply struct {
	code   string
	detail string
	fields []interface{}
}

// hash decodes the flat HGETALL list a successful script returns.
func (r scriptReply) hash() map[string]string {
	h := make(map[string]string, len(r.fields)/2)
	for i := 0; i+1 < len(r.fields); i += 2 {
		k, _ := r.fields[i].(string)
		v, _ := r.fields[i+1].(string)
		h[k] = v
	}
	return h
}

func evalScript(ctx context.Context, rdb *redis.Client, script *redis.Script, keys []string, args ...interface{}) (scriptReply, error) {
	result, err := script.Run(ctx, rdb, keys, args...).Result()
	if err != nil {
		return scriptReply{}, classify(err)
	}

	reply, ok := result.([]interface{})
	if !ok || len(reply) < 2 {
		return scriptReply{}, fmt.Errorf("unexpected script result type %T", result)
	}
	r := scriptReply{}
	r.code, _ = reply[0].(string)
	r.detail, _ = reply[1].(string)
	if len(reply) > 2 {
		r.fields, _ = reply[2].([]interface{})
	}
	return r, nil
}

// classify maps client errors onto the domain sentinels
func classify(err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return err
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.ErrClosed) ||
		errors.Is(err, io.EOF) || errors.As(err, &netErr) ||
		strings.Contains(err.Error(), "connection pool timeout") {
		return fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	return err
}
