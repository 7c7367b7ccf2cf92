package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/utafrali/storefront/internal/store"
	"github.com/utafrali/storefront/pkg/database"
)

// ChangeChannel is the LISTEN/NOTIFY channel shared by every namespace.
const ChangeChannel = "kv_changes"

// DBTX is the query surface the store needs. Both *pgxpool.Pool and
// pgxmock pools satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Store implements store.Store on a kv_entries table, with change
// notifications over pg_notify.
type Store struct {
	db        DBTX
	pool      *pgxpool.Pool
	namespace string
	origin    string
	logger    *slog.Logger
}

// NewStore creates a Postgres-backed store. pool is used for LISTEN and may
// be nil, in which case Watch is unavailable.
func NewStore(db DBTX, pool *pgxpool.Pool, namespace, origin string, logger *slog.Logger) *Store {
	return &Store{
		db:        db,
		pool:      pool,
		namespace: namespace,
		origin:    origin,
		logger:    logger,
	}
}

// Get retrieves a value.
func (s *Store) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	const q = `SELECT value FROM kv_entries WHERE namespace = $1 AND key = $2`
	ctx, end := database.TraceOp(ctx, "postgresql", "Get", q)
	defer func() { end(err) }()

	if err := s.db.QueryRow(ctx, q, s.namespace, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("select %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts a value and notifies listeners.
func (s *Store) Set(ctx context.Context, key, value string) (err error) {
	const q = `INSERT INTO kv_entries (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	ctx, end := database.TraceOp(ctx, "postgresql", "Set", q)
	defer func() { end(err) }()

	if _, err := s.db.Exec(ctx, q, s.namespace, key, value); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	s.notify(ctx, store.Change{Key: key})
	return nil
}

// Remove deletes a value and notifies listeners.
func (s *Store) Remove(ctx context.Context, key string) (err error) {
	const q = `DELETE FROM kv_entries WHERE namespace = $1 AND key = $2`
	ctx, end := database.TraceOp(ctx, "postgresql", "Remove", q)
	defer func() { end(err) }()

	if _, err := s.db.Exec(ctx, q, s.namespace, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	s.notify(ctx, store.Change{Key: key, Removed: true})
	return nil
}

func (s *Store) notify(ctx context.Context, c store.Change) {
	c.Namespace = s.namespace
	c.Origin = s.origin
	payload, err := c.Encode()
	if err != nil {
		return
	}
	if _, err := s.db.Exec(ctx, `SELECT pg_notify($1, $2)`, ChangeChannel, payload); err != nil {
		s.logger.WarnContext(ctx, "failed to notify store change",
			slog.String("key", c.Key),
			slog.String("error", err.Error()),
		)
	}
}

// Watch holds a dedicated pool connection in LISTEN mode until ctx ends.
func (s *Store) Watch(ctx context.Context, fn func(store.Change)) error {
	if s.pool == nil {
		return errors.New("postgres store: watch requires a connection pool")
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		conn.Release()
		return fmt.Errorf("listen %s: %w", ChangeChannel, err)
	}

	go func() {
		defer func() {
			_, _ = conn.Exec(context.Background(), "UNLISTEN *")
			conn.Release()
		}()
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Error("store change listener stopped", slog.String("error", err.Error()))
				}
				return
			}
			c, err := store.DecodeChange(n.Payload)
			if err != nil {
				s.logger.Warn("ignoring malformed store change", slog.String("error", err.Error()))
				continue
			}
			if c.Origin == s.origin || c.Namespace != s.namespace {
				continue
			}
			fn(c)
		}
	}()
	return nil
}

// Origin returns the tab id.
func (s *Store) Origin() string {
	return s.origin
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the pool when the store owns one.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
