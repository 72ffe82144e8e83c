// Package nganluong is the HTTP client for the NganLuong checkout API.
package nganluong

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	dompay "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/payment"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/observability"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultBankRedirectURL = "https://www.nganluong.vn/checkout.api.nganluong.post.php"
	DefaultQRCodeURL       = "https://www.nganluong.vn/qrcode247/checkout.api.nganluong.post.php"
	DefaultTimeout         = 45 * time.Second

	functionCreate = "SetExpressCheckout"
	functionVerify = "GetTransactionDetail"

	peerName      = "nganluong"
	componentName = "nganluong_client"
	maxBodyBytes  = 1 << 20
	contentType   = "application/x-www-form-urlencoded"
)

// Endpoints are the create and verify URLs of one payment method.
type Endpoints struct {
	CreateURL string
	VerifyURL string
}

type Config struct {
	BankRedirect Endpoints
	QRCode       Endpoints
	// Timeout bounds each call. Zero means DefaultTimeout.
	Timeout time.Duration
}

// DefaultConfig points at the production endpoints.
func DefaultConfig() Config {
	return Config{
		BankRedirect: Endpoints{CreateURL: DefaultBankRedirectURL, VerifyURL: DefaultBankRedirectURL},
		QRCode:       Endpoints{CreateURL: DefaultQRCodeURL, VerifyURL: DefaultQRCodeURL},
		Timeout:      DefaultTimeout,
	}
}

// Client implements payment.Processor. It never retries.
type Client struct {
	cfg        Config
	httpClient *http.Client

	log          observability.Logger
	tracer       observability.Tracer
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

var _ dompay.Processor = (*Client)(nil)

func NewClient(cfg Config, httpClient *http.Client, tel observability.Observability) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	tracer, logger, metrics := observability.Components(tel, "")
	return &Client{
		cfg:          cfg,
		httpClient:   httpClient,
		log:          logger.With(observability.F("component", componentName)),
		tracer:       tracer,
		extCounter:   metrics.Counter(observability.MExternalRequests),
		extHistogram: metrics.Histogram(observability.MExternalRequestDuration),
	}
}

// HashSecret is the merchant_password encoding the processor expects: lowercase hex MD5.
func HashSecret(secret string) string {
	sum := md5.Sum([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func (c *Client) CreateSession(ctx context.Context, req dompay.CreateRequest) (*dompay.Response, error) {
	endpoints, err := c.endpoints(req.Method)
	if err != nil {
		return nil, err
	}
	if req.Order == nil {
		return nil, dompay.NewValidation(dompay.ErrOrderNotFound, "order is required")
	}
	return c.call(ctx, functionCreate, req.Method, endpoints.CreateURL, createForm(req))
}

func (c *Client) VerifySession(ctx context.Context, req dompay.VerifyRequest) (*dompay.Response, error) {
	endpoints, err := c.endpoints(req.Method)
	if err != nil {
		return nil, err
	}
	if req.Token == "" {
		return nil, dompay.NewValidation(dompay.ErrTokenRequired, "")
	}
	form := credentialForm(req.Credentials, req.Method, functionVerify)
	form.Set("token", req.Token)
	return c.call(ctx, functionVerify, req.Method, endpoints.VerifyURL, form)
}

func (c *Client) endpoints(m dompay.Method) (Endpoints, error) {
	switch m {
	case dompay.MethodBankRedirect:
		return c.cfg.BankRedirect, nil
	case dompay.MethodQRCode:
		return c.cfg.QRCode, nil
	default:
		return Endpoints{}, dompay.NewValidation(dompay.ErrInvalidMethod, string(m))
	}
}

func credentialForm(cred dompay.Credentials, m dompay.Method, function string) url.Values {
	form := url.Values{}
	form.Set("merchant_id", strings.TrimSpace(cred.MerchantID))
	form.Set("merchant_password", HashSecret(cred.MerchantSecret))
	form.Set("version", m.Version())
	form.Set("function", function)
	return form
}

func createForm(req dompay.CreateRequest) url.Values {
	o := req.Order
	billing := o.BillingInfo()

	form := credentialForm(req.Credentials, req.Method, functionCreate)
	form.Set("receiver_email", req.Credentials.ReceiverEmail)
	form.Set("order_code", o.ID)
	form.Set("total_amount", strconv.FormatInt(o.Total(), 10))
	form.Set("payment_method", req.Method.WireName())
	form.Set("bank_code", req.BankCode)
	form.Set("payment_type", "1")
	form.Set("order_description", "Payment for Order #"+o.ID)
	form.Set("tax_amount", "0")
	form.Set("discount_amount", "0")
	form.Set("fee_shipping", "0")
	form.Set("return_url", req.ReturnURL)
	form.Set("notify_url", req.NotifyURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("time_limit", valueOr(req.TimeLimit, dompay.DefaultTimeLimit))
	form.Set("buyer_fullname", billing.FullName())
	form.Set("buyer_email", billing.Email)
	form.Set("buyer_mobile", billing.Phone)
	form.Set("buyer_address", billing.Address)
	form.Set("cur_code", "vnd")
	form.Set("lang_code", valueOr(req.LangCode, dompay.DefaultLangCode))
	return form
}

// call issues one POST. The call is detached from caller cancellation and bounded by
// the configured timeout, so it always runs to completion or timeout.
func (c *Client) call(ctx context.Context, function string, m dompay.Method, endpoint string, form url.Values) (_ *dompay.Response, err error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, peerName+"."+function,
		attribute.String("peer.service", peerName),
		attribute.String("payment.function", function),
		attribute.String("payment.method", string(m)),
		attribute.String("payment.version", m.Version()),
	)
	logger := logctx.FromOr(ctx, c.log).With(
		observability.F("function", function),
		observability.F("payment_method", string(m)),
	)

	start := time.Now()
	outcome := "success"
	var resp *dompay.Response

	defer func() {
		latency := time.Since(start).Seconds()
		if err != nil {
			outcome = classifyOutcome(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		} else {
			span.SetStatus(codes.Ok, "OK")
		}
		if resp != nil {
			span.SetAttributes(attribute.String("payment.error_code", resp.ErrorCode))
		}
		span.End()

		c.extCounter.Add(1,
			observability.L("peer", peerName),
			observability.L("endpoint", function),
			observability.L("outcome", outcome),
		)
		c.extHistogram.Observe(latency,
			observability.L("peer", peerName),
			observability.L("endpoint", function),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("latency_seconds", latency),
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
			logger.Warn("processor_call_failed", fields...)
			return
		}
		logger.Info("processor_call_done", fields...)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &dompay.RemoteError{Op: function, Kind: dompay.RemoteNetwork, Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &dompay.RemoteError{Op: function, Kind: transportKind(err), Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, &dompay.RemoteError{Op: function, Kind: transportKind(err), Err: fmt.Errorf("read body: %w", err)}
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &dompay.RemoteError{Op: function, Kind: dompay.RemoteHTTPStatus, StatusCode: httpResp.StatusCode}
	}

	resp, err = decodeResponse(body)
	if err != nil {
		return nil, &dompay.RemoteError{Op: function, Kind: dompay.RemoteMalformed, Err: err}
	}
	if !resp.Succeeded() {
		return resp, &dompay.RejectionError{Op: function, Code: resp.ErrorCode, Description: resp.Description}
	}
	return resp, nil
}

func transportKind(err error) dompay.RemoteErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return dompay.RemoteTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return dompay.RemoteTimeout
	}
	return dompay.RemoteNetwork
}

func classifyOutcome(err error) string {
	var rem *dompay.RemoteError
	switch {
	case errors.Is(err, dompay.ErrRejected):
		return "rejected"
	case errors.As(err, &rem):
		return string(rem.Kind)
	default:
		return "error"
	}
}

func valueOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
