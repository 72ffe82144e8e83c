package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	dompay "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*SessionStore, string) {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "sessions.db")
	store, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, dsn
}

func TestSessionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := openTemp(t)
	require.NoError(t, store.Ping(ctx))

	_, err := store.Get(ctx, "7")
	assert.ErrorIs(t, err, dompay.ErrSessionNotFound)

	s, err := dompay.NewSession("7", dompay.MethodQRCode, "VCB")
	require.NoError(t, err)
	require.NoError(t, s.AwaitCallback("tok-7", "https://qr.example/7.png"))
	require.NoError(t, store.Put(ctx, s))

	got, err := store.Get(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, dompay.MethodQRCode, got.Method)
	assert.Equal(t, "tok-7", got.ProcessorToken)
	assert.Equal(t, "https://qr.example/7.png", got.QRImageRef)
	assert.Equal(t, dompay.SessionAwaitingCallback, got.Status)
	assert.True(t, s.CreatedAt.Equal(got.CreatedAt))

	require.NoError(t, got.FailVerification("Token expired"))
	require.NoError(t, store.Put(ctx, got))

	final, err := store.Get(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, dompay.SessionVerificationFailed, final.Status)
	assert.Equal(t, "Token expired", final.FailureReason)
}

func TestSessionStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	store, dsn := openTemp(t)

	s, err := dompay.NewSession("8", dompay.MethodBankRedirect, "TCB")
	require.NoError(t, err)
	require.NoError(t, s.AwaitCallback("tok-8", ""))
	require.NoError(t, store.Put(ctx, s))
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "8")
	require.NoError(t, err)
	assert.Equal(t, "TCB", got.BankCode)
	assert.Equal(t, "tok-8", got.ProcessorToken)
}

func TestSessionStoreLock(t *testing.T) {
	store, _ := openTemp(t)
	unlock, err := store.Lock(context.Background(), "9")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Lock(ctx, "9")
	assert.ErrorIs(t, err, context.Canceled)
	unlock()
}
