package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inventory-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// CreateTransaction stores a pending transaction together with the placeholder products
// its new product lines introduce. Every other referenced product must exist.
func (s *Store) CreateTransaction(ctx context.Context, t *models.Transaction, placeholders []models.Product) error {
	doc, err := newTransactionDocument(t)
	if err != nil {
		return err
	}

	created := make(map[string]bool, len(placeholders))
	placeholderDocs := make([]interface{}, 0, len(placeholders))
	for i := range placeholders {
		p, err := newProductDocument(&placeholders[i])
		if err != nil {
			return err
		}
		created[p.ID] = true
		placeholderDocs = append(placeholderDocs, p)
	}

	var referenced []string
	for _, id := range t.ProductIDs() {
		if !created[id] {
			referenced = append(referenced, id)
		}
	}

	return s.inTransaction(ctx, func(sc mongo.SessionContext) error {
		if err := s.lockProducts(sc, referenced); err != nil {
			return err
		}
		if len(placeholderDocs) > 0 {
			if _, err := s.products.InsertMany(sc, placeholderDocs); err != nil {
				return err
			}
		}
		_, err := s.transactions.InsertOne(sc, doc)
		return err
	})
}

// GetTransaction retrieves a transaction with its items
func (s *Store) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	return s.findTransaction(ctx, bson.M{"_id": id}, fmt.Errorf("%w: %s", models.ErrTransactionNotFound, id))
}

// FindTransactionByIdempotencyKey returns nil, nil when no transaction carries key
func (s *Store) FindTransactionByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error) {
	t, err := s.findTransaction(ctx, bson.M{"idempotency_key": key}, nil)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	return t, err
}

func (s *Store) findTransaction(ctx context.Context, filter bson.M, notFound error) (*models.Transaction, error) {
	var doc transactionDocument
	if err := s.transactions.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, classify(err, notFound)
	}
	return doc.model()
}

// CommitTransition moves the transaction out of tr.From and applies every stock change in
// one session transaction. Nothing is written if any step fails.
func (s *Store) CommitTransition(ctx context.Context, tr models.Transition) (*models.Transaction, error) {
	at := tr.At.UTC()

	var updated *models.Transaction
	err := s.inTransaction(ctx, func(sc mongo.SessionContext) error {
		res, err := s.transactions.UpdateOne(sc,
			bson.M{"_id": tr.TransactionID, "status": string(tr.From)},
			bson.M{"$set": bson.M{
				"status":     string(tr.To),
				"decided_by": tr.Actor,
				"decided_at": at,
				"updated_at": at,
			}})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return s.statusMismatch(sc, tr.TransactionID)
		}

		for _, change := range tr.Changes {
			if err := s.applyStockChange(sc, change, tr.Actor, at); err != nil {
				return err
			}
		}

		var doc transactionDocument
		if err := s.transactions.FindOne(sc, bson.M{"_id": tr.TransactionID}).Decode(&doc); err != nil {
			return err
		}
		updated, err = doc.model()
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) statusMismatch(sc mongo.SessionContext, id string) error {
	var doc struct {
		Status string `bson:"status"`
	}
	if err := s.transactions.FindOne(sc, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("%w: %s", models.ErrTransactionNotFound, id)
		}
		return err
	}
	return fmt.Errorf("%w: transaction %s is %s", models.ErrOrderNotPending, id, doc.Status)
}

func (s *Store) applyStockChange(sc mongo.SessionContext, c models.StockChange, actor string, at time.Time) error {
	filter := bson.M{"_id": c.ProductID}
	set := bson.M{"updated_by": actor, "updated_at": at}
	update := bson.M{"$set": set}

	amount := c.Delta
	var required models.ProductStatus
	if c.SetStock != nil {
		amount = *c.SetStock
		required = models.ProductStatusNotAvailable
		filter["status"] = string(required)
		set["stock"] = amount
	} else {
		filter["stock"] = bson.M{"$gte": -amount}
		update["$inc"] = bson.M{"stock": amount}
	}
	if c.Price != nil {
		price, err := toDecimal128(*c.Price)
		if err != nil {
			return err
		}
		set["price"] = price
	}
	if c.MinStockLevel != nil {
		set["min_stock_level"] = *c.MinStockLevel
	}
	if c.Activate {
		set["status"] = string(models.ProductStatusAvailable)
		set["approved_by"] = actor
		set["approved_at"] = at
	}

	res, err := s.products.UpdateOne(sc, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return s.stockFailure(sc, c.ProductID, amount, required)
	}
	return nil
}
