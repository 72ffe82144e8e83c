package payment

import "time"

// SessionVerifiedEvent is published once the processor confirms a payment.
type SessionVerifiedEvent struct {
	OrderID    string
	Method     Method
	Token      string
	Amount     int64
	OccurredAt time.Time
}

func (SessionVerifiedEvent) EventName() string { return "payment.verified" }

func (e SessionVerifiedEvent) AggregateID() string { return e.OrderID }

func NewSessionVerifiedEvent(s *Session, amount int64) SessionVerifiedEvent {
	return SessionVerifiedEvent{
		OrderID:    s.OrderID,
		Method:     s.Method,
		Token:      s.ProcessorToken,
		Amount:     amount,
		OccurredAt: time.Now().UTC(),
	}
}

// SessionVerificationFailedEvent is published when verification ends in failure.
// Such orders need manual reconciliation.
type SessionVerificationFailedEvent struct {
	OrderID    string
	Method     Method
	Token      string
	Reason     string
	OccurredAt time.Time
}

func (SessionVerificationFailedEvent) EventName() string { return "payment.verification_failed" }

func (e SessionVerificationFailedEvent) AggregateID() string { return e.OrderID }

func NewSessionVerificationFailedEvent(s *Session) SessionVerificationFailedEvent {
	return SessionVerificationFailedEvent{
		OrderID:    s.OrderID,
		Method:     s.Method,
		Token:      s.ProcessorToken,
		Reason:     s.FailureReason,
		OccurredAt: time.Now().UTC(),
	}
}
