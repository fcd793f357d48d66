// Package postgres is the relational datastore. Every statement is
// parameterized; order placement and status changes run in transactions.
package postgres

import (
	"context"
	_ "embed"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/imrishuroy/bakery-orderflow/internal/cart"
	"github.com/imrishuroy/bakery-orderflow/internal/orders"
)

var logger = loggo.GetLogger("bakery.store.postgres")

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements the catalog, cart and order stores on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and checks the connection.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.NotValidf("DATABASE_URL")
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Annotate(err, "creating connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Annotate(err, "connecting to database")
	}
	logger.Infof("connected to %s/%s", cfg.ConnConfig.Host, cfg.ConnConfig.Database)
	return &Store{pool: pool}, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates any missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	return errors.Annotate(err, "applying schema")
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// WithTx implements orders.Store.
func (s *Store) WithTx(ctx context.Context, fn func(orders.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&txStore{q: tx})
	})
}

// conflictOr maps a unique violation to cart.ErrConflict.
func conflictOr(err error, msg string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return cart.ErrConflict
	}
	return errors.Annotate(err, msg)
}

func findCartID(ctx context.Context, q querier, sessionID string, lock bool) (int64, bool, error) {
	sql := "SELECT id FROM carts WHERE session_id = $1"
	if lock {
		sql += " FOR UPDATE"
	}
	var id int64
	err := q.QueryRow(ctx, sql, sessionID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Annotate(err, "selecting cart")
	}
	return id, true, nil
}

// Truncate empties every table. It exists for integration tests.
func (s *Store) Truncate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		"TRUNCATE order_items, orders, cart_items, carts, products, categories RESTART IDENTITY CASCADE")
	return errors.Annotate(err, "truncating tables")
}
