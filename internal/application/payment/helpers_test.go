package payment

import (
	"context"
	"sync"
	"testing"

	domorder "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/order"
	domoutbox "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/outbox"
	dompay "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/payment"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/infrastructure/memory"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProcessor struct{ mock.Mock }

func (m *mockProcessor) CreateSession(ctx context.Context, req dompay.CreateRequest) (*dompay.Response, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*dompay.Response)
	return resp, args.Error(1)
}

func (m *mockProcessor) VerifySession(ctx context.Context, req dompay.VerifyRequest) (*dompay.Response, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*dompay.Response)
	return resp, args.Error(1)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventName())
	}
	return out
}

type fixture struct {
	sessions  dompay.SessionStore
	orders    *memory.OrderRepository
	processor *mockProcessor
	publisher *recordingPublisher
	orch      *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, memory.NewSessionStore())
}

func newFixtureWith(t *testing.T, sessions dompay.SessionStore) *fixture {
	t.Helper()
	f := &fixture{
		sessions:  sessions,
		orders:    memory.NewOrderRepository(),
		processor: &mockProcessor{},
		publisher: &recordingPublisher{},
	}
	f.orch = NewOrchestrator(Dependencies{
		Sessions:  f.sessions,
		Orders:    f.orders,
		Processor: f.processor,
		Publisher: f.publisher,
	})
	t.Cleanup(func() { f.processor.AssertExpectations(t) })
	return f
}

func (f *fixture) addOrder(t *testing.T, id string, amount int64) {
	t.Helper()
	o, err := domorder.New(id, amount, domorder.Billing{FirstName: "Minh", Email: "minh@example.com"})
	require.NoError(t, err)
	require.NoError(t, f.orders.Insert(context.Background(), o))
}

func (f *fixture) order(t *testing.T, id string) *domorder.Order {
	t.Helper()
	o, err := f.orders.Get(context.Background(), id)
	require.NoError(t, err)
	return o
}

func (f *fixture) session(t *testing.T, id string) *dompay.Session {
	t.Helper()
	s, err := f.sessions.Get(context.Background(), id)
	require.NoError(t, err)
	return s
}

var (
	testCredentials = dompay.Credentials{MerchantID: "36680", MerchantSecret: "secret", ReceiverEmail: "m@example.com"}
	testSettings    = dompay.StaticSettings{
		dompay.SettingDefaultBankCode: "VCB",
		dompay.SettingQRBankCode:      "BIDV",
		dompay.SettingCheckoutURL:     "https://shop.example/checkout",
		dompay.SettingOrderReceived:   "https://shop.example/order-received/{order_id}",
		dompay.SettingReturnURL:       "https://shop.example/payments/nganluong/return",
		dompay.SettingNotifyURL:       "https://shop.example/payments/nganluong/notify",
	}
)

func createInput(orderID string, m dompay.Method, bank string) CreateSessionInput {
	return CreateSessionInput{OrderID: orderID, Method: m, BankCode: bank, Credentials: testCredentials, Settings: testSettings}
}

func confirmInput(orderID, token string) ConfirmSessionInput {
	return ConfirmSessionInput{OrderID: orderID, Token: token, Credentials: testCredentials, Settings: testSettings}
}

func bankResponse(token string) *dompay.Response {
	return &dompay.Response{ErrorCode: dompay.SuccessCode, Token: token, CheckoutURL: "https://www.nganluong.vn/checkout?token=" + token}
}
