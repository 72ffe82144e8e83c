package nganluong

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	domorder "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/order"
	dompay "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	contentType string
	form        url.Values
}

// processorStub answers every POST with body/status and records the submitted forms.
type processorStub struct {
	mu     sync.Mutex
	calls  []recordedCall
	status int
	body   string
	delay  time.Duration
}

func (p *processorStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	p.mu.Lock()
	p.calls = append(p.calls, recordedCall{contentType: r.Header.Get("Content-Type"), form: r.PostForm})
	status, body, delay := p.status, p.body, p.delay
	p.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (p *processorStub) last(t *testing.T) recordedCall {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.calls)
	return p.calls[len(p.calls)-1]
}

func newTestClient(t *testing.T, stub *processorStub, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	cfg := Config{
		BankRedirect: Endpoints{CreateURL: srv.URL + "/bank", VerifyURL: srv.URL + "/bank"},
		QRCode:       Endpoints{CreateURL: srv.URL + "/qr", VerifyURL: srv.URL + "/qr"},
		Timeout:      timeout,
	}
	return NewClient(cfg, nil, nil)
}

var testCredentials = dompay.Credentials{
	MerchantID:     " 36680 ",
	MerchantSecret: "secret",
	ReceiverEmail:  "merchant@example.com",
}

func testOrder(t *testing.T) *domorder.Order {
	t.Helper()
	o, err := domorder.New("1234", 150000, domorder.Billing{
		FirstName: "Lan", LastName: "Tran", Email: "lan@example.com", Phone: "0900000000", Address: "1 Le Loi",
	})
	require.NoError(t, err)
	return o
}

func TestHashSecret(t *testing.T) {
	assert.Equal(t, "5ebe2294ecd0e0f08eab7690d2a6ee69", HashSecret("secret"))
}

func TestCreateSessionBankRedirectForm(t *testing.T) {
	stub := &processorStub{body: `<?xml version="1.0" encoding="utf-8"?>
<result><error_code>00</error_code><token>tok-123</token><description></description>
<time_limit>1440</time_limit><checkout_url>https://www.nganluong.vn/checkout?token=tok-123</checkout_url></result>`}
	client := newTestClient(t, stub, time.Second)

	resp, err := client.CreateSession(context.Background(), dompay.CreateRequest{
		Credentials: testCredentials,
		Method:      dompay.MethodBankRedirect,
		Order:       testOrder(t),
		BankCode:    "VCB",
		ReturnURL:   "https://shop.example/return",
		NotifyURL:   "https://shop.example/notify",
		CancelURL:   "https://shop.example/checkout",
	})
	require.NoError(t, err)
	assert.Equal(t, "tok-123", resp.Token)
	assert.Equal(t, "https://www.nganluong.vn/checkout?token=tok-123", resp.CheckoutURL)

	call := stub.last(t)
	assert.Equal(t, "application/x-www-form-urlencoded", call.contentType)
	want := map[string]string{
		"merchant_id":       "36680",
		"merchant_password": "5ebe2294ecd0e0f08eab7690d2a6ee69",
		"version":           "3.1",
		"function":          "SetExpressCheckout",
		"receiver_email":    "merchant@example.com",
		"order_code":        "1234",
		"total_amount":      "150000",
		"payment_method":    "IB_ONLINE",
		"bank_code":         "VCB",
		"payment_type":      "1",
		"order_description": "Payment for Order #1234",
		"tax_amount":        "0",
		"discount_amount":   "0",
		"fee_shipping":      "0",
		"return_url":        "https://shop.example/return",
		"notify_url":        "https://shop.example/notify",
		"cancel_url":        "https://shop.example/checkout",
		"time_limit":        "1440",
		"buyer_fullname":    "Lan Tran",
		"buyer_email":       "lan@example.com",
		"buyer_mobile":      "0900000000",
		"buyer_address":     "1 Le Loi",
		"cur_code":          "vnd",
		"lang_code":         "vi",
	}
	for k, v := range want {
		assert.Equal(t, v, call.form.Get(k), k)
	}
}

func TestCreateSessionQRCode(t *testing.T) {
	stub := &processorStub{body: `<result><error_code>00</error_code><token>qr-tok</token>
<qr_code><qr_image>https://img.example/qr.png</qr_image></qr_code></result>`}
	client := newTestClient(t, stub, time.Second)

	resp, err := client.CreateSession(context.Background(), dompay.CreateRequest{
		Credentials: testCredentials,
		Method:      dompay.MethodQRCode,
		Order:       testOrder(t),
		BankCode:    "VCB",
	})
	require.NoError(t, err)
	assert.Equal(t, "qr-tok", resp.Token)
	assert.Equal(t, "https://img.example/qr.png", resp.QRImageURL)

	call := stub.last(t)
	assert.Equal(t, "3.2", call.form.Get("version"))
	assert.Equal(t, "QRCODE247", call.form.Get("payment_method"))
}

func TestVerifySessionSendsToken(t *testing.T) {
	stub := &processorStub{body: `<result><error_code>00</error_code><token>tok-1</token>
<transaction_id>889</transaction_id><transaction_status>00</transaction_status></result>`}
	client := newTestClient(t, stub, time.Second)

	resp, err := client.VerifySession(context.Background(), dompay.VerifyRequest{
		Credentials: testCredentials,
		Method:      dompay.MethodBankRedirect,
		Token:       "tok-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "889", resp.TransactionID)

	call := stub.last(t)
	assert.Equal(t, "GetTransactionDetail", call.form.Get("function"))
	assert.Equal(t, "tok-1", call.form.Get("token"))
	assert.Empty(t, call.form.Get("order_code"))
}

func TestProcessorFailures(t *testing.T) {
	tests := []struct {
		name     string
		stub     *processorStub
		timeout  time.Duration
		kind     dompay.RemoteErrorKind
		rejected bool
	}{
		{name: "rejection", stub: &processorStub{body: `<result><error_code>81</error_code><description>Token expired</description></result>`}, rejected: true},
		{name: "malformed", stub: &processorStub{body: `not xml at all <`}, kind: dompay.RemoteMalformed},
		{name: "empty body", stub: &processorStub{body: ``}, kind: dompay.RemoteMalformed},
		{name: "http status", stub: &processorStub{status: http.StatusBadGateway, body: "<result/>"}, kind: dompay.RemoteHTTPStatus},
		{name: "timeout", stub: &processorStub{delay: 200 * time.Millisecond, body: "<result><error_code>00</error_code></result>"}, timeout: 30 * time.Millisecond, kind: dompay.RemoteTimeout},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			timeout := tc.timeout
			if timeout == 0 {
				timeout = time.Second
			}
			client := newTestClient(t, tc.stub, timeout)

			resp, err := client.VerifySession(context.Background(), dompay.VerifyRequest{
				Credentials: testCredentials,
				Method:      dompay.MethodQRCode,
				Token:       "tok",
			})
			require.Error(t, err)

			if tc.rejected {
				var rej *dompay.RejectionError
				require.ErrorAs(t, err, &rej)
				assert.Equal(t, "81", rej.Code)
				assert.Equal(t, "Token expired", rej.Description)
				assert.NotNil(t, resp)
				assert.NotErrorIs(t, err, dompay.ErrRemote)
				return
			}
			var rem *dompay.RemoteError
			require.ErrorAs(t, err, &rem)
			assert.Equal(t, tc.kind, rem.Kind)
			assert.Nil(t, resp)
		})
	}
}

func TestCallIgnoresCallerCancellation(t *testing.T) {
	stub := &processorStub{delay: 50 * time.Millisecond, body: `<result><error_code>00</error_code><token>t</token></result>`}
	client := newTestClient(t, stub, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.VerifySession(ctx, dompay.VerifyRequest{
		Credentials: testCredentials,
		Method:      dompay.MethodBankRedirect,
		Token:       "t",
	})
	assert.NoError(t, err)
}

func TestInvalidRequests(t *testing.T) {
	client := NewClient(DefaultConfig(), nil, nil)

	_, err := client.CreateSession(context.Background(), dompay.CreateRequest{Method: dompay.Method("cash")})
	assert.ErrorIs(t, err, dompay.ErrInvalidMethod)

	_, err = client.VerifySession(context.Background(), dompay.VerifyRequest{Method: dompay.MethodQRCode})
	assert.ErrorIs(t, err, dompay.ErrTokenRequired)
}
