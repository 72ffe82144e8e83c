package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	appPayment "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/application/payment"
	domainOrder "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/order"
	domainPayment "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/payment"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/observability"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/observability/logctx"
)

const (
	componentHTTPHandler = "http_server"

	RouteReturn   = "/payments/nganluong/return"
	RouteNotify   = "/payments/nganluong/notify"
	RouteCheckout = "/checkout"
	RouteOrders   = "/orders"
	RouteHealth   = "/health"

	// maxQueryValueLen bounds callback parameters; longer values count as missing.
	maxQueryValueLen = 128
	maxBodyBytes     = 1 << 16

	resultSuccess = "success"
	resultFailure = "failure"
)

// PaymentService is the orchestrator surface the transport drives.
type PaymentService interface {
	CreateSession(ctx context.Context, in appPayment.CreateSessionInput) (*appPayment.CreateSessionResult, error)
	ConfirmSession(ctx context.Context, in appPayment.ConfirmSessionInput) (*appPayment.ConfirmSessionResult, error)
}

// OrderStore is the host order adapter.
type OrderStore interface {
	Insert(ctx context.Context, order *domainOrder.Order) error
	Get(ctx context.Context, id string) (*domainOrder.Order, error)
}

type Options struct {
	Credentials       domainPayment.Credentials
	Settings          domainPayment.Settings
	CallbackRateRPS   float64
	CallbackRateBurst int
	// TrustProxyHeaders enables chi's RealIP, so rate limits key on the forwarded client address.
	TrustProxyHeaders bool
}

type Handler struct {
	payments PaymentService
	orders   OrderStore
	opts     Options
	limiter  *ipLimiter

	log          observability.Logger
	httpRequests observability.Counter
	httpDuration observability.Histogram
}

func NewHandler(payments PaymentService, orders OrderStore, opts Options, tel observability.Observability) *Handler {
	_, logger, metrics := observability.Components(tel, "")
	if opts.Settings == nil {
		opts.Settings = domainPayment.StaticSettings{}
	}
	if opts.CallbackRateRPS <= 0 {
		opts.CallbackRateRPS = 5
	}
	if opts.CallbackRateBurst <= 0 {
		opts.CallbackRateBurst = 20
	}
	return &Handler{
		payments:     payments,
		orders:       orders,
		opts:         opts,
		limiter:      newIPLimiter(opts.CallbackRateRPS, opts.CallbackRateBurst),
		log:          logger.With(observability.F("component", componentHTTPHandler)),
		httpRequests: metrics.Counter(observability.MHTTPRequests),
		httpDuration: metrics.Histogram(observability.MHTTPRequestDuration),
	}
}

func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	if h.opts.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)

	h.handle(r, http.MethodGet, RouteReturn, h.handleCallback, h.limiter.middleware)
	h.handle(r, http.MethodGet, RouteNotify, h.handleCallback, h.limiter.middleware)
	h.handle(r, http.MethodPost, RouteCheckout, h.handleCheckout)
	h.handle(r, http.MethodPost, RouteOrders, h.handleCreateOrder)
	h.handle(r, http.MethodGet, RouteHealth, h.handleHealth)

	return r
}

type routeMiddleware func(observability.Logger, http.Handler) http.Handler

// handle wires one route as Route → Trace → Request Logger → Metrics → Access Log → extras → Handler.
func (h *Handler) handle(r chi.Router, method, route string, handler http.HandlerFunc, extra ...routeMiddleware) {
	var inner http.Handler = handler
	for i := len(extra) - 1; i >= 0; i-- {
		inner = extra[i](h.log, inner)
	}
	wrapped := withTrace(
		ObservabilityMiddleware(h.log)(
			withHTTPMetrics(h.httpRequests, h.httpDuration,
				withAccessLog(h.log, inner),
			),
		),
	)
	r.Method(method, route, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		wrapped.ServeHTTP(w, req.WithContext(contextWithRoute(req.Context(), method+" "+route)))
	}))
}

// handleCallback settles a session from the processor's return or notify redirect.
// It always answers with a redirect: order-received when verified, checkout otherwise.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	logger := logctx.FromOr(r.Context(), h.log)
	checkoutURL := domainPayment.SettingOr(h.opts.Settings, domainPayment.SettingCheckoutURL, "/")

	orderID := queryValue(r, "order_code")
	token := queryValue(r, "token")
	if orderID == "" || token == "" {
		logger.Warn("callback_incomplete",
			observability.F("has_order_code", orderID != ""),
			observability.F("has_token", token != ""),
		)
		http.Redirect(w, r, checkoutURL, http.StatusFound)
		return
	}

	if _, err := h.orders.Get(r.Context(), orderID); err != nil {
		logger.Warn("callback_order_unresolved",
			observability.F("order_id", orderID),
			observability.F("error", err.Error()),
		)
		http.Redirect(w, r, checkoutURL, http.StatusFound)
		return
	}

	result, err := h.payments.ConfirmSession(r.Context(), appPayment.ConfirmSessionInput{
		OrderID:     orderID,
		Token:       token,
		Credentials: h.opts.Credentials,
		Settings:    h.opts.Settings,
	})
	if err != nil {
		logger.Warn("callback_not_confirmed",
			observability.F("order_id", orderID),
			observability.F("error", err.Error()),
		)
		http.Redirect(w, r, checkoutURL, http.StatusFound)
		return
	}
	if !result.Verified() {
		http.Redirect(w, r, checkoutURL, http.StatusFound)
		return
	}
	http.Redirect(w, r, domainPayment.OrderReceivedURL(h.opts.Settings, orderID), http.StatusFound)
}

type checkoutRequest struct {
	OrderID  string `json:"order_id"`
	Method   string `json:"method"`
	BankCode string `json:"bank_code"`
}

type checkoutResponse struct {
	Result     string `json:"result"`
	Redirect   string `json:"redirect,omitempty"`
	Token      string `json:"token,omitempty"`
	QRImageURL string `json:"qr_image_url,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, checkoutResponse{Result: resultFailure, Error: err.Error()})
		return
	}
	method, err := domainPayment.ParseMethod(req.Method)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, checkoutResponse{Result: resultFailure, Error: err.Error()})
		return
	}

	result, err := h.payments.CreateSession(r.Context(), appPayment.CreateSessionInput{
		OrderID:     strings.TrimSpace(req.OrderID),
		Method:      method,
		BankCode:    req.BankCode,
		Credentials: h.opts.Credentials,
		Settings:    h.opts.Settings,
	})
	if err != nil {
		writeJSON(w, statusForError(err), checkoutResponse{Result: resultFailure, Error: checkoutErrorText(err)})
		return
	}
	writeJSON(w, http.StatusOK, checkoutResponse{
		Result:     resultSuccess,
		Redirect:   result.RedirectURL,
		Token:      result.Token,
		QRImageURL: result.QRImageURL,
	})
}

type billingRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
}

type createOrderRequest struct {
	OrderID string         `json:"order_id"`
	Amount  int64          `json:"amount"`
	Billing billingRequest `json:"billing"`
}

type createOrderResponse struct {
	OrderID string             `json:"order_id"`
	Status  domainOrder.Status `json:"status"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	order, err := domainOrder.New(strings.TrimSpace(req.OrderID), req.Amount, domainOrder.Billing{
		FirstName: req.Billing.FirstName,
		LastName:  req.Billing.LastName,
		Email:     req.Billing.Email,
		Phone:     req.Billing.Phone,
		Address:   req.Billing.Address,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.orders.Insert(r.Context(), order); err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, createOrderResponse{OrderID: order.ID, Status: order.Status})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// queryValue returns the trimmed parameter, or "" when it is absent or oversized.
func queryValue(r *http.Request, key string) string {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if len(v) > maxQueryValueLen {
		return ""
	}
	return v
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domainOrder.ErrConflict),
		errors.Is(err, domainPayment.ErrAlreadyPaid):
		return http.StatusConflict
	case errors.Is(err, domainPayment.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainPayment.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domainPayment.ErrRejected),
		errors.Is(err, domainPayment.ErrRemote):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// checkoutErrorText keeps processor wording for rejections so the customer sees it.
func checkoutErrorText(err error) string {
	var rej *domainPayment.RejectionError
	if errors.As(err, &rej) && rej.Description != "" {
		return rej.Description
	}
	var verr *domainPayment.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	if errors.Is(err, domainPayment.ErrRemote) {
		return "payment processor unavailable, please try again"
	}
	return "payment could not be started"
}
