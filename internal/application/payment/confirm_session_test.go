package payment

import (
	"context"
	"sync"
	"testing"
	"time"

	domorder "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/order"
	dompay "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// openSession creates an order with a session awaiting its callback under token.
func openSession(t *testing.T, f *fixture, orderID, token string) {
	t.Helper()
	f.addOrder(t, orderID, 80000)
	f.processor.On("CreateSession", mock.Anything, mock.MatchedBy(func(req dompay.CreateRequest) bool {
		return req.Order.ID == orderID
	})).Return(bankResponse(token), nil).Once()
	_, err := f.orch.CreateSession(context.Background(), createInput(orderID, dompay.MethodBankRedirect, ""))
	require.NoError(t, err)
}

func TestConfirmSessionVerified(t *testing.T) {
	f := newFixture(t)
	openSession(t, f, "300", "tok-300")

	f.processor.On("VerifySession", mock.Anything, dompay.VerifyRequest{
		Credentials: testCredentials,
		Method:      dompay.MethodBankRedirect,
		Token:       "tok-300",
	}).Return(&dompay.Response{ErrorCode: "00", TransactionID: "555"}, nil).Once()

	res, err := f.orch.ConfirmSession(context.Background(), confirmInput("300", "tok-300"))
	require.NoError(t, err)
	assert.True(t, res.Verified())
	assert.False(t, res.Replayed)

	o := f.order(t, "300")
	assert.Equal(t, domorder.StatusCompleted, o.Status)
	assert.True(t, o.IsPaid())
	require.Len(t, o.Notes, 1)
	assert.Equal(t, "Payment completed via NganLuong. Transaction ID: tok-300", o.Notes[0].Text)
	assert.Equal(t, []string{"payment.verified"}, f.publisher.names())
}

func TestConfirmSessionFailureIsAnOutcome(t *testing.T) {
	tests := []struct {
		name string
		resp *dompay.Response
		err  error
		note string
	}{
		{
			name: "rejected",
			resp: &dompay.Response{ErrorCode: "81", Description: "Token expired"},
			err:  &dompay.RejectionError{Code: "81", Description: "Token expired"},
			note: "Payment verification failed with error: Token expired",
		},
		{
			name: "timeout",
			err:  &dompay.RemoteError{Kind: dompay.RemoteTimeout, Err: context.DeadlineExceeded},
			note: "Payment verification failed with error: processor unreachable (timeout)",
		},
		{
			name: "no description",
			err:  assert.AnError,
			note: "Payment verification failed with error: Unknown error",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			openSession(t, f, "400", "tok-400")
			f.processor.On("VerifySession", mock.Anything, mock.Anything).Return(tc.resp, tc.err).Once()

			res, err := f.orch.ConfirmSession(context.Background(), confirmInput("400", "tok-400"))
			require.NoError(t, err)
			assert.Equal(t, dompay.SessionVerificationFailed, res.Status)
			assert.False(t, res.Verified())

			o := f.order(t, "400")
			assert.False(t, o.IsPaid())
			assert.Equal(t, domorder.StatusPending, o.Status)
			require.Len(t, o.Notes, 1)
			assert.Equal(t, tc.note, o.Notes[0].Text)
			assert.Equal(t, []string{"payment.verification_failed"}, f.publisher.names())
		})
	}
}

func TestConfirmSessionReplayIsIdempotent(t *testing.T) {
	f := newFixture(t)
	openSession(t, f, "500", "tok-500")
	f.processor.On("VerifySession", mock.Anything, mock.Anything).Return(&dompay.Response{ErrorCode: "00"}, nil).Once()

	first, err := f.orch.ConfirmSession(context.Background(), confirmInput("500", "tok-500"))
	require.NoError(t, err)
	second, err := f.orch.ConfirmSession(context.Background(), confirmInput("500", "tok-500"))
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.True(t, second.Replayed)
	assert.Len(t, f.order(t, "500").Notes, 1)
	assert.Len(t, f.publisher.names(), 1)
	f.processor.AssertNumberOfCalls(t, "VerifySession", 1)
}

func TestConfirmSessionRejectsForgedCallbacks(t *testing.T) {
	f := newFixture(t)
	openSession(t, f, "600", "tok-600")
	ctx := context.Background()

	_, err := f.orch.ConfirmSession(ctx, confirmInput("600", "forged"))
	assert.ErrorIs(t, err, dompay.ErrValidation)
	assert.ErrorIs(t, err, dompay.ErrTokenMismatch)

	_, err = f.orch.ConfirmSession(ctx, confirmInput("unknown", "tok-600"))
	assert.ErrorIs(t, err, dompay.ErrUnknownSession)

	_, err = f.orch.ConfirmSession(ctx, confirmInput("600", " "))
	assert.ErrorIs(t, err, dompay.ErrValidation)

	assert.Equal(t, dompay.SessionAwaitingCallback, f.session(t, "600").Status)
	assert.Empty(t, f.order(t, "600").Notes)
	f.processor.AssertNotCalled(t, "VerifySession", mock.Anything, mock.Anything)
}

func TestConfirmSessionConcurrentCallbacksVerifyOnce(t *testing.T) {
	f := newFixture(t)
	openSession(t, f, "700", "tok-700")
	f.processor.On("VerifySession", mock.Anything, mock.Anything).
		After(20*time.Millisecond).
		Return(&dompay.Response{ErrorCode: "00"}, nil).Once()

	const callbacks = 8
	results := make([]*ConfirmSessionResult, callbacks)
	var wg sync.WaitGroup
	for i := 0; i < callbacks; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.orch.ConfirmSession(context.Background(), confirmInput("700", "tok-700"))
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	replayed := 0
	for _, res := range results {
		require.NotNil(t, res)
		assert.True(t, res.Verified())
		if res.Replayed {
			replayed++
		}
	}
	assert.Equal(t, callbacks-1, replayed)
	f.processor.AssertNumberOfCalls(t, "VerifySession", 1)
	assert.Len(t, f.order(t, "700").Notes, 1)
}
