// Package postgres stores catalog products in PostgreSQL and serves search
// through a full-text index ranked per field.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/SofiaQuintana/products-inventory/internal/domain"
	"github.com/SofiaQuintana/products-inventory/internal/store"
	"github.com/SofiaQuintana/products-inventory/pkg/database"
	apperrors "github.com/SofiaQuintana/products-inventory/pkg/errors"
)

//go:embed migrations/*.sql
var migrations embed.FS

const upsertColumns = `title = EXCLUDED.title,
			category = EXCLUDED.category,
			brand = EXCLUDED.brand,
			product_type = EXCLUDED.product_type,
			price = EXCLUDED.price,
			description = EXCLUDED.description,
			updated_at = EXCLUDED.updated_at`

// xmax is zero only for rows created by this statement.
const bulkUpsertQuery = `
		INSERT INTO products (sku, title, category, brand, product_type, price, description, created_at, updated_at)
		SELECT t.sku, t.title, t.category, t.brand, t.product_type, t.price, t.description, $8, $8
		FROM unnest($1::text[], $2::text[], $3::text[], $4::text[], $5::text[], $6::float8[], $7::text[])
			AS t(sku, title, category, brand, product_type, price, description)
		ON CONFLICT (sku) DO UPDATE SET
			` + upsertColumns + `
		RETURNING (xmax = 0) AS inserted`

const upsertOneQuery = `
		INSERT INTO products (sku, title, category, brand, product_type, price, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (sku) DO UPDATE SET
			` + upsertColumns + `
		RETURNING (xmax = 0) AS inserted`

const countQuery = `
		SELECT COUNT(*) FROM products
		WHERE search_vector @@ to_tsquery('english', $1)`

// Each field is ranked on its own so the boosts match the other stores.
const searchQuery = `
		SELECT sku, title, category, brand, product_type, price, description, created_at, updated_at,
			(10 * ts_rank(to_tsvector('english', title), q) +
			 7 * ts_rank(to_tsvector('english', category), q) +
			 5 * ts_rank(to_tsvector('english', brand), q) +
			 3 * ts_rank(to_tsvector('english', sku), q) +
			 1 * ts_rank(to_tsvector('english', product_type), q))::float8 AS score
		FROM products, to_tsquery('english', $1) AS q
		WHERE search_vector @@ q
		ORDER BY score DESC, sku ASC
		LIMIT $2 OFFSET $3`

const suggestQuery = `
		SELECT title FROM products
		WHERE lower(title) LIKE $1 ESCAPE '\'
		ORDER BY lower(title)
		LIMIT $2`

// Store is a PostgreSQL-backed ProductStore.
type Store struct {
	db     database.DBTX
	logger *slog.Logger
	now    func() time.Time
}

var _ store.ProductStore = (*Store)(nil)

// New creates a store on db, usually a *pgxpool.Pool.
func New(db database.DBTX, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// dedupe keeps the last record per SKU, as a second write in the same batch
// would overwrite the first. It reports how many records were folded away.
func dedupe(products []domain.Product) ([]domain.Product, int64) {
	last := make(map[string]int, len(products))
	for i, p := range products {
		last[p.SKU] = i
	}
	if len(last) == len(products) {
		return products, 0
	}
	out := make([]domain.Product, 0, len(last))
	for i, p := range products {
		if last[p.SKU] == i {
			out = append(out, p)
		}
	}
	return out, int64(len(products) - len(out))
}

// BulkUpsert writes the batch in one statement. If the statement fails the
// records are retried one by one so a single bad record fails alone.
func (s *Store) BulkUpsert(ctx context.Context, products []domain.Product) (res store.UpsertResult, err error) {
	if len(products) == 0 {
		return res, nil
	}
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "BulkUpsert", "INSERT INTO products ... ON CONFLICT (sku)")
	defer func() { end(err) }()

	batch, folded := dedupe(products)
	res.Updated = folded
	now := s.now()

	n := len(batch)
	skus, titles, categories := make([]string, n), make([]string, n), make([]string, n)
	brands, types, descriptions := make([]string, n), make([]string, n), make([]string, n)
	prices := make([]*float64, n)
	for i, p := range batch {
		skus[i], titles[i], categories[i] = p.SKU, p.Title, p.Category
		brands[i], types[i], descriptions[i] = p.Brand, p.ProductType, p.Description
		prices[i] = p.Price
	}

	rows, err := s.db.Query(ctx, bulkUpsertQuery, skus, titles, categories, brands, types, prices, descriptions, now)
	if err == nil {
		for rows.Next() {
			var inserted bool
			if err = rows.Scan(&inserted); err != nil {
				break
			}
			if inserted {
				res.Inserted++
			} else {
				res.Updated++
			}
		}
		rows.Close()
		if err == nil {
			err = rows.Err()
		}
		if err == nil {
			return res, nil
		}
	}
	if isUnavailable(err) {
		return store.UpsertResult{}, classify("bulk upsert", err)
	}

	s.logger.WarnContext(ctx, "bulk upsert statement failed, retrying records individually",
		slog.Int("records", n),
		slog.String("error", err.Error()),
	)
	return s.upsertEach(ctx, batch, folded, now)
}

func (s *Store) upsertEach(ctx context.Context, batch []domain.Product, folded int64, now time.Time) (store.UpsertResult, error) {
	res := store.UpsertResult{Updated: folded}
	var firstErr error
	for i, p := range batch {
		var inserted bool
		err := s.db.QueryRow(ctx, upsertOneQuery,
			p.SKU, p.Title, p.Category, p.Brand, p.ProductType, p.Price, p.Description, now,
		).Scan(&inserted)
		switch {
		case err != nil:
			if isUnavailable(err) {
				// This record and every one after it were not written.
				res.Failed += int64(len(batch) - i)
				return res, store.PartialError(res.Failed, classify("upsert", err))
			}
			res.Failed++
			if firstErr == nil {
				firstErr = fmt.Errorf("sku=%s: %w", p.SKU, err)
			}
		case inserted:
			res.Inserted++
		default:
			res.Updated++
		}
	}
	if res.Failed > 0 {
		return res, store.PartialError(res.Failed, firstErr)
	}
	return res, nil
}

// tsQuery turns free text into an OR query of its words, or "" if there are none.
func tsQuery(text string) string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(words, " | ")
}

// Search counts the matches and then reads the requested page.
func (s *Store) Search(ctx context.Context, q domain.SearchQuery) (_ []domain.Product, _ int64, err error) {
	query := tsQuery(q.Text)
	if query == "" {
		return []domain.Product{}, 0, nil
	}
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "Search", "SELECT FROM products WHERE search_vector @@ query")
	defer func() { end(err) }()

	var total int64
	if err = s.db.QueryRow(ctx, countQuery, query).Scan(&total); err != nil {
		return nil, 0, classify("count matches", err)
	}
	if total == 0 || int64(q.Skip()) >= total {
		return []domain.Product{}, total, nil
	}

	rows, err := s.db.Query(ctx, searchQuery, query, q.Limit, q.Skip())
	if err != nil {
		return nil, 0, classify("search", err)
	}
	defer rows.Close()

	results := make([]domain.Product, 0, q.Limit)
	for rows.Next() {
		var p domain.Product
		if err = rows.Scan(&p.SKU, &p.Title, &p.Category, &p.Brand, &p.ProductType,
			&p.Price, &p.Description, &p.CreatedAt, &p.UpdatedAt, &p.Score); err != nil {
			return nil, 0, fmt.Errorf("postgres search: scan: %w", err)
		}
		results = append(results, p)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, classify("search", err)
	}
	return results, total, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Suggest matches titles by lowercase prefix.
func (s *Store) Suggest(ctx context.Context, prefix string, limit int) (_ []string, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "Suggest", "SELECT title FROM products WHERE lower(title) LIKE prefix")
	defer func() { end(err) }()

	pattern := likeEscaper.Replace(strings.ToLower(prefix)) + "%"
	rows, err := s.db.Query(ctx, suggestQuery, pattern, limit)
	if err != nil {
		return nil, classify("suggest", err)
	}
	defer rows.Close()

	titles := make([]string, 0, limit)
	for rows.Next() {
		var title string
		if err = rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("postgres suggest: scan: %w", err)
		}
		titles = append(titles, title)
	}
	if err = rows.Err(); err != nil {
		return nil, classify("suggest", err)
	}
	return titles, nil
}

// EnsureIndexes applies the embedded schema migrations.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if err := database.RunMigrations(ctx, s.db, migrations, "migrations", s.logger); err != nil {
		return classify("migrate", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return classify("ping", err)
	}
	return nil
}

// Close closes the underlying pool when it owns one.
func (s *Store) Close(context.Context) error {
	if c, ok := s.db.(interface{ Close() }); ok {
		c.Close()
	}
	return nil
}

func isUnavailable(err error) bool {
	var connErr *pgconn.ConnectError
	var netErr net.Error
	return errors.As(err, &connErr) || errors.As(err, &netErr) || pgconn.Timeout(err)
}

func classify(op string, err error) error {
	if isUnavailable(err) {
		return fmt.Errorf("postgres %s: %w", op, apperrors.Unavailable("postgres", err))
	}
	return fmt.Errorf("postgres %s: %w", op, err)
}
