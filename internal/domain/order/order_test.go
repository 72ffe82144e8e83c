package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(t *testing.T) *Order {
	t.Helper()
	o, err := New("1001", 120000, Billing{FirstName: "Van", LastName: "Nguyen", Email: "van@example.com"})
	require.NoError(t, err)
	return o
}

func TestNewValidatesInput(t *testing.T) {
	_, err := New(" ", 1000, Billing{})
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = New("1", 0, Billing{})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	o := newOrder(t)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, int64(120000), o.Total())
	assert.Equal(t, "Van Nguyen", o.BillingInfo().FullName())
	assert.True(t, o.CanAcceptPayment())
	assert.False(t, o.IsPaid())
}

func TestMarkPaidOnce(t *testing.T) {
	o := newOrder(t)

	require.NoError(t, o.MarkPaid())
	assert.Equal(t, StatusCompleted, o.Status)
	assert.True(t, o.IsPaid())
	assert.False(t, o.CanAcceptPayment())

	assert.ErrorIs(t, o.MarkPaid(), ErrAlreadyPaid)
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		name      string
		from      Status
		payErr    error
		cancelErr error
	}{
		{name: "pending", from: StatusPending},
		{name: "failed retries", from: StatusFailed},
		{name: "completed", from: StatusCompleted, payErr: ErrAlreadyPaid, cancelErr: ErrInvalidStateTransition},
		{name: "cancelled", from: StatusCancelled, payErr: ErrInvalidStateTransition},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o := newOrder(t)
			o.Status = tc.from
			paid := o.Clone()

			err := paid.MarkPaid()
			if tc.payErr != nil {
				assert.ErrorIs(t, err, tc.payErr)
			} else {
				assert.NoError(t, err)
			}

			err = o.Clone().Cancel()
			if tc.cancelErr != nil {
				assert.ErrorIs(t, err, tc.cancelErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	o := newOrder(t)
	o.AddNote("first")
	require.NoError(t, o.MarkPaid())

	c := o.Clone()
	c.AddNote("second")
	*c.PaidAt = c.PaidAt.AddDate(1, 0, 0)

	assert.Len(t, o.Notes, 1)
	assert.Len(t, c.Notes, 2)
	assert.NotEqual(t, *o.PaidAt, *c.PaidAt)
}
