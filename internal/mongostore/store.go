package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inventory-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"
)

const (
	defaultServerSelectionTimeout = 5 * time.Second
	disconnectTimeout             = 10 * time.Second
)

// Store persists products and transactions in MongoDB. Multi-document writes run in
// session transactions, so the deployment must be a replica set.
type Store struct {
	client       *mongo.Client
	products     *mongo.Collection
	transactions *mongo.Collection
}

// NewStore connects to uri and verifies the primary is reachable
func NewStore(ctx context.Context, uri, database string) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(defaultServerSelectionTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	return &Store{
		client:       client,
		products:     db.Collection(productsCollection),
		transactions: db.Collection(transactionsCollection),
	}, nil
}

// EnsureIndexes creates the indexes the store relies on. It is safe to call on every start.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.products.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "category", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create product indexes: %w", err)
	}

	_, err = s.transactions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "idempotency_key", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"idempotency_key": bson.M{"$type": "string"}}),
		},
		{Keys: bson.D{{Key: "product_ids", Value: 1}, {Key: "status", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create transaction indexes: %w", err)
	}
	return nil
}

// Close disconnects from the deployment
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping checks that the primary is reachable
func (s *Store) Ping(ctx context.Context) error {
	return classify(s.client.Ping(ctx, readpref.Primary()), nil)
}

// GetProduct retrieves a product by ID
func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var doc productDocument
	err := s.products.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		return nil, classify(err, fmt.Errorf("%w: %s", models.ErrProductNotFound, id))
	}
	return doc.model()
}

// ListProducts lists every product ordered by name
func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.findProducts(ctx, bson.M{})
}

// ListLowStockProducts lists products whose stock is at or below their minimum level
func (s *Store) ListLowStockProducts(ctx context.Context) ([]models.Product, error) {
	return s.findProducts(ctx, bson.M{"$expr": bson.M{"$lte": bson.A{"$stock", "$min_stock_level"}}})
}

func (s *Store) findProducts(ctx context.Context, filter bson.M) ([]models.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.products.Find(ctx, filter, opts)
	if err != nil {
		return nil, classify(err, nil)
	}

	var docs []productDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, classify(err, nil)
	}

	products := make([]models.Product, 0, len(docs))
	for i := range docs {
		p, err := docs[i].model()
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, nil
}

// CreateProduct inserts a new product
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	doc, err := newProductDocument(product)
	if err != nil {
		return err
	}
	_, err = s.products.InsertOne(ctx, doc)
	return classify(err, nil)
}

// DeleteProduct removes a product unless a pending transaction references it
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	return s.inTransaction(ctx, func(sc mongo.SessionContext) error {
		pending, err := s.transactions.CountDocuments(sc, bson.M{
			"product_ids": id,
			"status":      string(models.TransactionStatusPending),
		})
		if err != nil {
			return err
		}
		if pending > 0 {
			return fmt.Errorf("%w: %s", models.ErrProductInUse, id)
		}

		res, err := s.products.DeleteOne(sc, bson.M{"_id": id})
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			return fmt.Errorf("%w: %s", models.ErrProductNotFound, id)
		}
		return nil
	})
}

// AdjustStock adds delta to an available product's stock unless the result would be negative
func (s *Store) AdjustStock(ctx context.Context, id string, delta int, actor string, at time.Time) (*models.Product, error) {
	filter := bson.M{
		"_id":    id,
		"status": string(models.ProductStatusAvailable),
		"stock":  bson.M{"$gte": -delta},
	}
	update := bson.M{
		"$inc": bson.M{"stock": delta},
		"$set": bson.M{"updated_by": actor, "updated_at": at.UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc productDocument
	err := s.products.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, s.stockFailure(ctx, id, delta, models.ProductStatusAvailable)
	}
	if err != nil {
		return nil, classify(err, nil)
	}
	return doc.model()
}

// UpdateProduct sets the non-nil fields of update and returns the stored product
func (s *Store) UpdateProduct(ctx context.Context, id string, update models.ProductUpdate, actor string, at time.Time) (*models.Product, error) {
	set := bson.M{"updated_by": actor, "updated_at": at.UTC()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Category != nil {
		set["category"] = *update.Category
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.Price != nil {
		price, err := toDecimal128(*update.Price)
		if err != nil {
			return nil, err
		}
		set["price"] = price
	}
	if update.MinStockLevel != nil {
		set["min_stock_level"] = *update.MinStockLevel
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc productDocument
	err := s.products.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		return nil, classify(err, fmt.Errorf("%w: %s", models.ErrProductNotFound, id))
	}
	return doc.model()
}

// stockFailure explains why a conditional stock update matched nothing. required is the
// status the update was conditioned on, if any.
func (s *Store) stockFailure(ctx context.Context, id string, amount int, required models.ProductStatus) error {
	var doc struct {
		Stock  int    `bson:"stock"`
		Status string `bson:"status"`
	}
	opts := options.FindOne().SetProjection(bson.M{"stock": 1, "status": 1})
	if err := s.products.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&doc); err != nil {
		return classify(err, fmt.Errorf("%w: %s", models.ErrProductNotFound, id))
	}
	if required != "" && models.ProductStatus(doc.Status) != required {
		return fmt.Errorf("%w: product %s is %s", models.ErrProductUnavailable, id, doc.Status)
	}
	return fmt.Errorf("%w: product %s has %d, change %d", models.ErrInsufficientStock, id, doc.Stock, amount)
}

// inTransaction runs fn in a session transaction. fn should return driver errors
// unwrapped so transient conflicts are retried.
func (s *Store) inTransaction(ctx context.Context, fn func(mongo.SessionContext) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return classify(err, nil)
	}
	defer session.EndSession(context.Background())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return classify(err, nil)
}

// lockProducts writes a fresh token to each product so concurrent transactions touching
// the same products conflict. Missing products fail with ErrProductNotFound.
func (s *Store) lockProducts(sc mongo.SessionContext, ids []string) error {
	for _, id := range ids {
		res, err := s.products.UpdateOne(sc, bson.M{"_id": id}, bson.M{"$set": bson.M{"lock": primitive.NewObjectID()}})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("%w: %s", models.ErrProductNotFound, id)
		}
	}
	return nil
}

func classify(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) && notFound != nil {
		return notFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", models.ErrDuplicateKey, err)
	}
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, mongo.ErrClientDisconnected) ||
		errors.Is(err, topology.ErrServerSelectionTimeout) {
		return fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	return err
}
