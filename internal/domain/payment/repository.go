package payment

import "context"

// SessionStore persists the latest payment session per order.
type SessionStore interface {
	Get(ctx context.Context, orderID string) (*Session, error)
	Put(ctx context.Context, session *Session) error
	// Lock serializes mutation of one order's session. The returned func releases it.
	Lock(ctx context.Context, orderID string) (func(), error)
}
