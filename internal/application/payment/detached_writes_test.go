package payment

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	dompay "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/payment"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/infrastructure/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newSQLiteFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.Open(context.Background(), "file:"+filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return newFixtureWith(t, store)
}

func countNotes(t *testing.T, f *fixture, orderID, prefix string) int {
	t.Helper()
	n := 0
	for _, note := range f.order(t, orderID).Notes {
		if strings.HasPrefix(note.Text, prefix) {
			n++
		}
	}
	return n
}

func TestConfirmSessionSettlesWhenCallerGoesAway(t *testing.T) {
	f := newSQLiteFixture(t)
	openSession(t, f, "610", "tok")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.processor.On("VerifySession", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(&dompay.Response{ErrorCode: dompay.SuccessCode}, nil).Once()

	res, err := f.orch.ConfirmSession(ctx, confirmInput("610", "tok"))
	require.NoError(t, err)
	assert.True(t, res.Verified())

	assert.Equal(t, dompay.SessionVerified, f.session(t, "610").Status)
	assert.True(t, f.order(t, "610").IsPaid())

	again, err := f.orch.ConfirmSession(context.Background(), confirmInput("610", "tok"))
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	f.processor.AssertNumberOfCalls(t, "VerifySession", 1)
	assert.Equal(t, 1, countNotes(t, f, "610", "Payment completed via NganLuong."))
	assert.Equal(t, []string{"payment.verified"}, f.publisher.names())
}

func TestConfirmSessionFailureSettlesWhenCallerGoesAway(t *testing.T) {
	f := newSQLiteFixture(t)
	openSession(t, f, "611", "tok")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.processor.On("VerifySession", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, &dompay.RejectionError{Code: "81", Description: "Token expired"}).Once()

	res, err := f.orch.ConfirmSession(ctx, confirmInput("611", "tok"))
	require.NoError(t, err)
	assert.Equal(t, dompay.SessionVerificationFailed, res.Status)

	assert.Equal(t, dompay.SessionVerificationFailed, f.session(t, "611").Status)
	assert.Equal(t, 1, countNotes(t, f, "611", "Payment verification failed with error:"))
}

func TestCreateSessionKeepsProcessorSessionWhenCallerGoesAway(t *testing.T) {
	f := newSQLiteFixture(t)
	f.addOrder(t, "612", 80000)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.processor.On("CreateSession", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(bankResponse("tok-612"), nil).Once()

	_, err := f.orch.CreateSession(ctx, createInput("612", dompay.MethodBankRedirect, "VCB"))
	require.NoError(t, err)

	s := f.session(t, "612")
	assert.Equal(t, dompay.SessionAwaitingCallback, s.Status)
	assert.Equal(t, "tok-612", s.ProcessorToken)
}
