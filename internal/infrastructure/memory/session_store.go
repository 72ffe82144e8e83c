package memory

import (
	"context"
	"fmt"

	dompay "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/payment"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/pkg/keylock"
)

// SessionStore keeps the latest payment session per order in process memory.
type SessionStore struct {
	sessions *table[*dompay.Session]
	locks    *keylock.Locker
}

var _ dompay.SessionStore = (*SessionStore)(nil)

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: newTable((*dompay.Session).Clone),
		locks:    keylock.New(),
	}
}

func (s *SessionStore) Get(_ context.Context, orderID string) (*dompay.Session, error) {
	session, ok := s.sessions.get(orderID)
	if !ok {
		return nil, dompay.ErrSessionNotFound
	}
	return session, nil
}

// Put replaces the order's session.
func (s *SessionStore) Put(_ context.Context, session *dompay.Session) error {
	if session == nil || session.OrderID == "" {
		return fmt.Errorf("memory: session order id is required")
	}
	s.sessions.set(session.OrderID, session, false, false)
	return nil
}

func (s *SessionStore) Lock(ctx context.Context, orderID string) (func(), error) {
	return s.locks.Lock(ctx, orderID)
}
