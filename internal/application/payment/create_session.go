package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domorder "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/order"
	dompay "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/payment"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/observability"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	paymentService        = "payment-service"
	useCaseCreateSession  = "payment.create_session"
	useCaseConfirmSession = "payment.confirm_session"
	spanPrefix            = "UC."
)

type CreateSessionInput struct {
	OrderID     string
	Method      dompay.Method
	BankCode    string
	Credentials dompay.Credentials
	Settings    dompay.Settings
}

type CreateSessionResult struct {
	OrderID     string
	Status      dompay.SessionStatus
	Token       string
	Instruction Instruction
	RedirectURL string
	QRImageURL  string
}

// CreateSessionUseCase opens a remote payment session for an order.
type CreateSessionUseCase struct {
	sessions  dompay.SessionStore
	orders    domorder.Repository
	processor dompay.Processor

	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

func NewCreateSessionUseCase(deps Dependencies) *CreateSessionUseCase {
	tracer, logger, metrics := observability.Components(deps.Telemetry, paymentService)
	return &CreateSessionUseCase{
		sessions:     deps.Sessions,
		orders:       deps.Orders,
		processor:    deps.Processor,
		log:          logger,
		tracer:       tracer,
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
	}
}

// Execute validates the order against the method preconditions, calls the processor and,
// on success, stores the session as awaiting its callback. A failure leaves nothing stored.
func (uc *CreateSessionUseCase) Execute(ctx context.Context, cmd CreateSessionInput) (_ *CreateSessionResult, err error) {
	ctx, span := uc.tracer.Start(ctx, spanPrefix+"CreateSession",
		attribute.String("use_case", useCaseCreateSession),
		attribute.String("order.id", cmd.OrderID),
		attribute.String("payment.method", string(cmd.Method)),
	)
	ctx, logger := logctx.Enrich(ctx, uc.log,
		observability.F("use_case", useCaseCreateSession),
		observability.F("order_id", cmd.OrderID),
		observability.F("payment_method", string(cmd.Method)),
	)

	start := time.Now()
	outcome, statusText := "success", "OK"
	var bankCode string

	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()

		latency := time.Since(start).Seconds()
		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseCreateSession),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(latency,
			observability.L("use_case", useCaseCreateSession),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", latency),
		}
		if bankCode != "" {
			fields = append(fields, observability.F("bank_code", bankCode))
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	if !cmd.Method.Valid() {
		outcome, statusText = "error", "METHOD_INVALID"
		return nil, dompay.NewValidation(dompay.ErrInvalidMethod, string(cmd.Method))
	}
	if strings.TrimSpace(cmd.OrderID) == "" {
		outcome, statusText = "error", "ORDER_ID_REQUIRED"
		return nil, dompay.NewValidation(dompay.ErrOrderNotFound, "order id is required")
	}

	order, err := uc.orders.Get(ctx, cmd.OrderID)
	if errors.Is(err, domorder.ErrNotFound) {
		outcome, statusText = "error", "ORDER_NOT_FOUND"
		return nil, dompay.NewValidation(dompay.ErrOrderNotFound, cmd.OrderID)
	}
	if err != nil {
		outcome, statusText = "error", "ORDER_LOOKUP_FAILED"
		return nil, fmt.Errorf("payment: load order: %w", err)
	}
	if order.IsPaid() {
		outcome, statusText = "error", "ORDER_ALREADY_PAID"
		return nil, dompay.NewValidation(dompay.ErrAlreadyPaid, order.ID)
	}
	if !order.CanAcceptPayment() {
		outcome, statusText = "error", "ORDER_NOT_PAYABLE"
		return nil, dompay.NewValidation(dompay.ErrOrderNotPayable, string(order.Status))
	}

	if err = dompay.ValidateMinimums(cmd.Settings); err != nil {
		outcome, statusText = "error", "SETTINGS_INVALID"
		return nil, err
	}
	if minimum := dompay.MinimumAmount(cmd.Settings, cmd.Method); order.Total() < minimum {
		outcome, statusText = "error", "AMOUNT_BELOW_MINIMUM"
		return nil, dompay.NewValidation(dompay.ErrAmountBelowMinimum,
			fmt.Sprintf("total %d, minimum %d", order.Total(), minimum))
	}

	bankCode, err = resolveBankCode(cmd.Method, cmd.BankCode, cmd.Settings)
	if err != nil {
		outcome, statusText = "error", "BANK_CODE_INVALID"
		return nil, err
	}
	span.SetAttributes(attribute.String("payment.bank_code", bankCode))

	unlock, err := uc.sessions.Lock(ctx, order.ID)
	if err != nil {
		outcome, statusText = "error", "SESSION_LOCK_FAILED"
		return nil, fmt.Errorf("payment: lock session: %w", err)
	}
	defer unlock()

	previous, err := uc.sessions.Get(ctx, order.ID)
	switch {
	case err == nil && previous.Status == dompay.SessionVerified:
		outcome, statusText = "error", "ORDER_ALREADY_PAID"
		return nil, dompay.NewValidation(dompay.ErrAlreadyPaid, order.ID)
	case err == nil:
		span.AddEvent("payment.session_superseded",
			trace.WithAttributes(attribute.String("payment.previous_status", string(previous.Status))),
		)
	case !errors.Is(err, dompay.ErrSessionNotFound):
		outcome, statusText = "error", "SESSION_LOOKUP_FAILED"
		return nil, fmt.Errorf("payment: load session: %w", err)
	}

	session, err := dompay.NewSession(order.ID, cmd.Method, bankCode)
	if err != nil {
		outcome, statusText = "error", "SESSION_CONSTRUCTION_FAILED"
		return nil, err
	}

	resp, err := uc.processor.CreateSession(ctx, dompay.CreateRequest{
		Credentials: cmd.Credentials,
		Method:      cmd.Method,
		Order:       order,
		BankCode:    bankCode,
		ReturnURL:   dompay.SettingOr(cmd.Settings, dompay.SettingReturnURL, ""),
		NotifyURL:   dompay.SettingOr(cmd.Settings, dompay.SettingNotifyURL, ""),
		CancelURL:   dompay.SettingOr(cmd.Settings, dompay.SettingCheckoutURL, ""),
		TimeLimit:   dompay.SettingOr(cmd.Settings, dompay.SettingTimeLimit, dompay.DefaultTimeLimit),
		LangCode:    dompay.SettingOr(cmd.Settings, dompay.SettingLangCode, dompay.DefaultLangCode),
	})
	if err != nil {
		outcome, statusText = "error", remoteStatusText(err)
		return nil, fmt.Errorf("payment: create session: %w", err)
	}
	if err = checkCreateResponse(cmd.Method, resp); err != nil {
		outcome, statusText = "error", "PROCESSOR_RESPONSE_INCOMPLETE"
		return nil, fmt.Errorf("payment: create session: %w", err)
	}

	if err = session.AwaitCallback(resp.Token, resp.QRImageURL); err != nil {
		outcome, statusText = "error", "STATE_TRANSITION_FAILED"
		return nil, fmt.Errorf("payment: session transition: %w", err)
	}
	// The processor session exists now; keep it even if the caller has gone away.
	if err = uc.sessions.Put(context.WithoutCancel(ctx), session); err != nil {
		outcome, statusText = "error", "SESSION_SAVE_FAILED"
		return nil, fmt.Errorf("payment: save session: %w", err)
	}

	span.AddEvent("payment.session_created",
		trace.WithAttributes(attribute.String("order.id", order.ID)),
	)

	result := &CreateSessionResult{
		OrderID: order.ID,
		Status:  session.Status,
		Token:   session.ProcessorToken,
	}
	if cmd.Method == dompay.MethodQRCode {
		result.Instruction = InstructionOrderReceived
		result.RedirectURL = dompay.OrderReceivedURL(cmd.Settings, order.ID)
		result.QRImageURL = session.QRImageRef
	} else {
		result.Instruction = InstructionRedirect
		result.RedirectURL = resp.CheckoutURL
	}
	return result, nil
}

// resolveBankCode picks the customer's bank for online banking, falling back to the
// merchant default. QR payments always use the merchant-configured bank.
func resolveBankCode(m dompay.Method, customer string, settings dompay.Settings) (string, error) {
	if m == dompay.MethodQRCode {
		return dompay.NormalizeBankCode(dompay.SettingOr(settings, dompay.SettingQRBankCode, "")), nil
	}
	code := dompay.NormalizeBankCode(customer)
	if code == "" {
		code = dompay.NormalizeBankCode(dompay.SettingOr(settings, dompay.SettingDefaultBankCode, ""))
	}
	if code == "" {
		return "", dompay.NewValidation(dompay.ErrBankCodeRequired, "")
	}
	if !dompay.SupportedBank(code) {
		return "", dompay.NewValidation(dompay.ErrUnsupportedBank, code)
	}
	return code, nil
}

func checkCreateResponse(m dompay.Method, resp *dompay.Response) error {
	missing := ""
	switch {
	case resp == nil:
		missing = "response"
	case resp.Token == "":
		missing = "token"
	case m == dompay.MethodBankRedirect && resp.CheckoutURL == "":
		missing = "checkout_url"
	case m == dompay.MethodQRCode && resp.QRImageURL == "":
		missing = "qr image"
	}
	if missing == "" {
		return nil
	}
	return &dompay.RemoteError{
		Op:   "SetExpressCheckout",
		Kind: dompay.RemoteMalformed,
		Err:  fmt.Errorf("missing %s", missing),
	}
}

func remoteStatusText(err error) string {
	var rem *dompay.RemoteError
	switch {
	case errors.Is(err, dompay.ErrRejected):
		return "PROCESSOR_REJECTED"
	case errors.As(err, &rem) && rem.Timeout():
		return "PROCESSOR_TIMEOUT"
	case errors.Is(err, dompay.ErrRemote):
		return "PROCESSOR_UNREACHABLE"
	default:
		return "PROCESSOR_CALL_FAILED"
	}
}
