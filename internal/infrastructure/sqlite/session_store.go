// Package sqlite persists payment sessions in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dompay "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/payment"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/pkg/keylock"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS payment_sessions (
	order_id        TEXT PRIMARY KEY,
	method          TEXT NOT NULL,
	bank_code       TEXT NOT NULL DEFAULT '',
	processor_token TEXT NOT NULL DEFAULT '',
	qr_image_ref    TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	failure_reason  TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
)`

const upsert = `
INSERT INTO payment_sessions
	(order_id, method, bank_code, processor_token, qr_image_ref, status, failure_reason, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(order_id) DO UPDATE SET
	method = excluded.method,
	bank_code = excluded.bank_code,
	processor_token = excluded.processor_token,
	qr_image_ref = excluded.qr_image_ref,
	status = excluded.status,
	failure_reason = excluded.failure_reason,
	created_at = excluded.created_at,
	updated_at = excluded.updated_at`

const selectByOrder = `
SELECT order_id, method, bank_code, processor_token, qr_image_ref, status, failure_reason, created_at, updated_at
FROM payment_sessions WHERE order_id = ?`

// SessionStore is a SessionStore backed by database/sql and modernc.org/sqlite.
// Locks are process-local, so a database file must not be shared between instances.
type SessionStore struct {
	db    *sql.DB
	locks *keylock.Locker
}

// Open opens (or creates) the database at dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*SessionStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// A single connection keeps writes serialized and in-memory databases coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return &SessionStore{db: db, locks: keylock.New()}, nil
}

func (s *SessionStore) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SessionStore) Get(ctx context.Context, orderID string) (*dompay.Session, error) {
	var (
		session              dompay.Session
		method, status       string
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, selectByOrder, orderID).Scan(
		&session.OrderID,
		&method,
		&session.BankCode,
		&session.ProcessorToken,
		&session.QRImageRef,
		&status,
		&session.FailureReason,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dompay.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get session: %w", err)
	}

	session.Method = dompay.Method(method)
	session.Status = dompay.SessionStatus(status)
	if session.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("sqlite: parse created_at: %w", err)
	}
	if session.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("sqlite: parse updated_at: %w", err)
	}
	return &session, nil
}

func (s *SessionStore) Put(ctx context.Context, session *dompay.Session) error {
	if session == nil || session.OrderID == "" {
		return fmt.Errorf("sqlite: order id is required")
	}
	_, err := s.db.ExecContext(ctx, upsert,
		session.OrderID,
		string(session.Method),
		session.BankCode,
		session.ProcessorToken,
		session.QRImageRef,
		string(session.Status),
		session.FailureReason,
		session.CreatedAt.UTC().Format(time.RFC3339Nano),
		session.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite: put session: %w", err)
	}
	return nil
}

func (s *SessionStore) Lock(ctx context.Context, orderID string) (func(), error) {
	return s.locks.Lock(ctx, orderID)
}
