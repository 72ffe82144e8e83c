package payment

import (
	"strings"
	"time"
)

// SessionStatus is the lifecycle state of a payment attempt.
type SessionStatus string

const (
	SessionCreated            SessionStatus = "created"
	SessionAwaitingCallback   SessionStatus = "awaiting_callback"
	SessionVerified           SessionStatus = "verified"
	SessionVerificationFailed SessionStatus = "verification_failed"
)

// Terminal reports whether no further transition may happen.
func (s SessionStatus) Terminal() bool {
	return s == SessionVerified || s == SessionVerificationFailed
}

// Session is one payment attempt for an order. Only the latest attempt per order is kept.
type Session struct {
	OrderID        string
	Method         Method
	BankCode       string
	ProcessorToken string
	QRImageRef     string
	Status         SessionStatus
	FailureReason  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewSession(orderID string, method Method, bankCode string) (*Session, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, NewValidation(ErrOrderNotFound, "order id is required")
	}
	if !method.Valid() {
		return nil, validationf(ErrInvalidMethod, "%q", method)
	}
	now := time.Now().UTC()
	return &Session{
		OrderID:   orderID,
		Method:    method,
		BankCode:  bankCode,
		Status:    SessionCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// AwaitCallback records the processor token and QR reference of a created session.
func (s *Session) AwaitCallback(token, qrImageRef string) error {
	if s.Status != SessionCreated {
		return ErrInvalidStateTransition
	}
	if s.ProcessorToken != "" {
		return ErrTokenImmutable
	}
	if token == "" {
		return ErrTokenRequired
	}
	s.ProcessorToken = token
	if s.Method == MethodQRCode {
		s.QRImageRef = qrImageRef
	}
	s.Status = SessionAwaitingCallback
	s.touch()
	return nil
}

func (s *Session) Verify() error {
	if s.Status != SessionAwaitingCallback {
		return ErrInvalidStateTransition
	}
	s.Status = SessionVerified
	s.FailureReason = ""
	s.touch()
	return nil
}

func (s *Session) FailVerification(reason string) error {
	if s.Status != SessionAwaitingCallback {
		return ErrInvalidStateTransition
	}
	s.Status = SessionVerificationFailed
	s.FailureReason = reason
	s.touch()
	return nil
}

// MatchesToken compares the callback token with the stored one.
func (s *Session) MatchesToken(token string) bool {
	return s.ProcessorToken != "" && s.ProcessorToken == token
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now().UTC()
}
