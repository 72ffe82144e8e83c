package order

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound               = errors.New("order: not found")
	ErrConflict               = errors.New("order: already exists")
	ErrInvalidID              = errors.New("order: id is required")
	ErrInvalidAmount          = errors.New("order: total must be greater than zero")
	ErrAlreadyPaid            = errors.New("order: already paid")
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Billing is the buyer contact block sent to the processor.
type Billing struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   string
}

// FullName joins first and last name the way the processor displays it.
func (b Billing) FullName() string {
	return strings.TrimSpace(b.FirstName + " " + b.LastName)
}

// Note is an audit entry left for the merchant.
type Note struct {
	Text      string
	CreatedAt time.Time
}

// Order is the host's order as seen by the payment core. Amount is in VND.
type Order struct {
	ID        string
	Amount    int64
	Billing   Billing
	Status    Status
	Notes     []Note
	PaidAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func New(id string, amount int64, billing Billing) (*Order, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidID
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	now := time.Now().UTC()
	return &Order{
		ID:        id,
		Amount:    amount,
		Billing:   billing,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (o *Order) Total() int64 { return o.Amount }

func (o *Order) BillingInfo() Billing { return o.Billing }

// IsPaid reports whether payment has been applied.
func (o *Order) IsPaid() bool { return o.PaidAt != nil }

// CanAcceptPayment reports whether a payment attempt may start for the order.
func (o *Order) CanAcceptPayment() bool {
	return o.state().AcceptsPayment()
}

// MarkPaid records payment and completes the order. It fails on a second call.
func (o *Order) MarkPaid() error {
	next, err := o.state().OnPaymentSucceeded(o)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	o.PaidAt = &now
	o.Status = next.Status()
	o.touch()
	return nil
}

// Cancel moves an unpaid order to cancelled.
func (o *Order) Cancel() error {
	next, err := o.state().OnCancelled(o)
	if err != nil {
		return err
	}
	o.Status = next.Status()
	o.touch()
	return nil
}

// AddNote appends an audit note.
func (o *Order) AddNote(text string) {
	o.Notes = append(o.Notes, Note{Text: text, CreatedAt: time.Now().UTC()})
	o.touch()
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	if o.Notes != nil {
		c.Notes = append([]Note(nil), o.Notes...)
	}
	if o.PaidAt != nil {
		paid := *o.PaidAt
		c.PaidAt = &paid
	}
	return &c
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
