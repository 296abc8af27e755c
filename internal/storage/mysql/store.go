// Package mysql provides a cart.Store backed by a MySQL table.
package mysql

import (
	"context"
	"database/sql"

	"github.com/go-faster/errors"
	_ "github.com/go-sql-driver/mysql"

	"github.com/xenking/cart-keeper/db"
	"github.com/xenking/cart-keeper/internal/domain/cart"
)

var (
	_ cart.Store  = (*Store)(nil)
	_ cart.Pinger = (*Store)(nil)
)

// Store reads and upserts rows of the cart_state table.
type Store struct {
	db *sql.DB
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "ping mysql")
	}
	return conn, nil
}

// RunMigrations applies the embedded schema.
func RunMigrations(ctx context.Context, conn *sql.DB) error {
	if _, err := conn.ExecContext(ctx, db.MySQLSchema); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	return nil
}

// New returns a Store using conn. The schema must already be applied.
func New(conn *sql.DB) *Store {
	return &Store{db: conn}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT `value` FROM cart_state WHERE `key` = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cart.ErrNoValue
	}
	if err != nil {
		return nil, errors.Wrapf(err, "select %q", key)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, "INSERT INTO cart_state (`key`, `value`) VALUES (?, ?) "+
		"ON DUPLICATE KEY UPDATE `value` = VALUES(`value`)",
		key, string(value),
	)
	if err != nil {
		return errors.Wrapf(err, "upsert %q", key)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
