// Package mongo stores catalog products in a MongoDB collection and serves
// search through a weighted text index.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/SofiaQuintana/products-inventory/internal/domain"
	"github.com/SofiaQuintana/products-inventory/internal/store"
	"github.com/SofiaQuintana/products-inventory/pkg/database"
	apperrors "github.com/SofiaQuintana/products-inventory/pkg/errors"
)

// Index names.
const (
	IndexSKU         = "sku_unique"
	IndexText        = "text_search_weighted"
	IndexTitlePrefix = "title_prefix"
)

// codeNamespaceNotFound is returned when dropping indexes of a missing collection.
const codeNamespaceNotFound = 26

type productDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	SKU         string             `bson:"sku"`
	Title       string             `bson:"title"`
	Category    string             `bson:"category"`
	Brand       string             `bson:"brand"`
	ProductType string             `bson:"product_type"`
	Price       *float64           `bson:"price"`
	Description string             `bson:"description"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
	Score       float64            `bson:"score,omitempty"`
}

func (d productDocument) toDomain() domain.Product {
	return domain.Product{
		SKU:         d.SKU,
		Title:       d.Title,
		Category:    d.Category,
		Brand:       d.Brand,
		ProductType: d.ProductType,
		Price:       d.Price,
		Description: d.Description,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		Score:       d.Score,
	}
}

// Store is a MongoDB-backed ProductStore.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *slog.Logger
	now    func() time.Time
}

var _ store.ProductStore = (*Store)(nil)

// New creates a store on database.collection. The client is owned by the
// store and disconnected by Close.
func New(client *mongo.Client, database, collection string, logger *slog.Logger) *Store {
	return &Store{
		client: client,
		coll:   client.Database(database).Collection(collection),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// upsertModels builds one unordered upsert per product. createdAt is only
// written when the SKU is inserted.
func upsertModels(products []domain.Product, now time.Time) []mongo.WriteModel {
	models := make([]mongo.WriteModel, 0, len(products))
	for _, p := range products {
		set := bson.D{
			{Key: "sku", Value: p.SKU},
			{Key: "title", Value: p.Title},
			{Key: "category", Value: p.Category},
			{Key: "brand", Value: p.Brand},
			{Key: "product_type", Value: p.ProductType},
			{Key: "price", Value: p.Price},
			{Key: "description", Value: p.Description},
			{Key: "updatedAt", Value: now},
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.D{{Key: "sku", Value: p.SKU}}).
			SetUpdate(bson.D{
				{Key: "$setOnInsert", Value: bson.D{{Key: "createdAt", Value: now}}},
				{Key: "$set", Value: set},
			}).
			SetUpsert(true))
	}
	return models
}

// BulkUpsert writes products with an unordered bulk write. Individual write
// errors yield a partial result wrapping store.ErrPartialBatch.
func (s *Store) BulkUpsert(ctx context.Context, products []domain.Product) (res store.UpsertResult, err error) {
	if len(products) == 0 {
		return res, nil
	}
	ctx, end := database.TraceQuery(ctx, database.SystemMongoDB, "BulkUpsert", s.coll.Name()+".bulkWrite")
	defer func() { end(err) }()

	out, err := s.coll.BulkWrite(ctx, upsertModels(products, s.now()), options.BulkWrite().SetOrdered(false))
	if out != nil {
		res.Inserted = out.UpsertedCount
		res.Updated = out.ModifiedCount
	}
	if err == nil {
		return res, nil
	}

	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) && bwe.WriteConcernError == nil && len(bwe.WriteErrors) > 0 {
		res.Failed = int64(len(bwe.WriteErrors))
		return res, store.PartialError(res.Failed, err)
	}
	return store.UpsertResult{}, classify("bulk upsert", err)
}

// Search runs a $text query sorted by text score. The total is an exact
// count of all matches.
func (s *Store) Search(ctx context.Context, q domain.SearchQuery) (_ []domain.Product, _ int64, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongoDB, "Search", s.coll.Name()+".find($text)")
	defer func() { end(err) }()

	filter := bson.D{{Key: "$text", Value: bson.D{{Key: "$search", Value: q.Text}}}}
	score := bson.D{{Key: "$meta", Value: "textScore"}}
	opts := options.Find().
		SetProjection(bson.D{{Key: "score", Value: score}}).
		SetSort(bson.D{{Key: "score", Value: score}}).
		SetSkip(int64(q.Skip())).
		SetLimit(int64(q.Limit))

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, classify("search", err)
	}
	var docs []productDocument
	if err = cur.All(ctx, &docs); err != nil {
		return nil, 0, classify("decode search results", err)
	}

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, classify("count search results", err)
	}

	results := make([]domain.Product, 0, len(docs))
	for _, d := range docs {
		results = append(results, d.toDomain())
	}
	return results, total, nil
}

// Suggest matches an anchored, case-insensitive title regex. The prefix is
// quoted so it is matched literally.
func (s *Store) Suggest(ctx context.Context, prefix string, limit int) (_ []string, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongoDB, "Suggest", s.coll.Name()+".find(title)")
	defer func() { end(err) }()

	filter := bson.D{{Key: "title", Value: primitive.Regex{Pattern: "^" + regexp.QuoteMeta(prefix), Options: "i"}}}
	opts := options.Find().
		SetLimit(int64(limit)).
		SetProjection(bson.D{{Key: "title", Value: 1}, {Key: "_id", Value: 0}})

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, classify("suggest", err)
	}
	var docs []struct {
		Title string `bson:"title"`
	}
	if err = cur.All(ctx, &docs); err != nil {
		return nil, classify("decode suggestions", err)
	}

	titles := make([]string, 0, len(docs))
	for _, d := range docs {
		titles = append(titles, d.Title)
	}
	return titles, nil
}

// indexModels are the unique SKU index, the weighted text index and the
// title index used by prefix suggestions.
func indexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sku", Value: 1}},
			Options: options.Index().SetName(IndexSKU).SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "title", Value: "text"},
				{Key: "category", Value: "text"},
				{Key: "brand", Value: "text"},
				{Key: "sku", Value: "text"},
				{Key: "product_type", Value: "text"},
			},
			Options: options.Index().
				SetName(IndexText).
				SetDefaultLanguage("english").
				SetWeights(bson.D{
					{Key: "title", Value: domain.WeightTitle},
					{Key: "category", Value: domain.WeightCategory},
					{Key: "brand", Value: domain.WeightBrand},
					{Key: "sku", Value: domain.WeightSKU},
					{Key: "product_type", Value: domain.WeightProductType},
				}),
		},
		{
			Keys:    bson.D{{Key: "title", Value: 1}},
			Options: options.Index().SetName(IndexTitlePrefix),
		},
	}
}

// EnsureIndexes creates the catalog indexes. Existing identical indexes are
// left untouched.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	names, err := s.coll.Indexes().CreateMany(ctx, indexModels())
	if err != nil {
		return classify("create indexes", err)
	}
	s.logger.InfoContext(ctx, "mongo indexes ensured",
		slog.String("collection", s.coll.Name()),
		slog.Any("indexes", names),
	)
	return nil
}

// DropIndexes removes every index except _id so EnsureIndexes can rebuild
// them with changed options.
func (s *Store) DropIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().DropAll(ctx)
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == codeNamespaceNotFound {
		return nil
	}
	if err != nil {
		return classify("drop indexes", err)
	}
	return nil
}

// Ping checks the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func classify(op string, err error) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return fmt.Errorf("mongo %s: %w", op, apperrors.Unavailable("mongodb", err))
	}
	return fmt.Errorf("mongo %s: %w", op, err)
}
