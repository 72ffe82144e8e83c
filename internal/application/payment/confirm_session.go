package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domorder "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/order"
	domoutbox "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/outbox"
	dompay "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/payment"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/observability"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	publishTimeout = 300 * time.Millisecond
	publishPeer    = "outbox"

	noteVerified     = "Payment completed via NganLuong. Transaction ID: %s"
	noteFailed       = "Payment verification failed with error: %s"
	unknownErrorText = "Unknown error"
)

type ConfirmSessionInput struct {
	OrderID     string
	Token       string
	Credentials dompay.Credentials
	Settings    dompay.Settings
}

// ConfirmSessionResult is the terminal outcome of a session. Replayed is set when the
// outcome was recorded by an earlier callback.
type ConfirmSessionResult struct {
	OrderID       string
	Status        dompay.SessionStatus
	FailureReason string
	Replayed      bool
}

// Verified reports whether the customer should see the order-received page.
func (r *ConfirmSessionResult) Verified() bool {
	return r != nil && r.Status == dompay.SessionVerified
}

// ConfirmSessionUseCase settles a session from a processor callback.
type ConfirmSessionUseCase struct {
	sessions  dompay.SessionStore
	orders    domorder.Repository
	processor dompay.Processor
	publisher domoutbox.Publisher

	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	rejected     observability.Counter   // payment_callback_rejected_total{reason}

	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewConfirmSessionUseCase(deps Dependencies) *ConfirmSessionUseCase {
	tracer, logger, metrics := observability.Components(deps.Telemetry, paymentService)
	return &ConfirmSessionUseCase{
		sessions:     deps.Sessions,
		orders:       deps.Orders,
		processor:    deps.Processor,
		publisher:    deps.Publisher,
		log:          logger,
		tracer:       tracer,
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
		rejected:     metrics.Counter(observability.MCallbackRejected),
		extCounter:   metrics.Counter(observability.MExternalRequests),
		extHistogram: metrics.Histogram(observability.MExternalRequestDuration),
	}
}

// Execute verifies the callback token with the processor and records the outcome on both
// the session and the order. The per-order lock is held for the whole call, so concurrent
// callbacks for one order reach the processor at most once.
func (uc *ConfirmSessionUseCase) Execute(ctx context.Context, cmd ConfirmSessionInput) (_ *ConfirmSessionResult, err error) {
	ctx, span := uc.tracer.Start(ctx, spanPrefix+"ConfirmSession",
		attribute.String("use_case", useCaseConfirmSession),
		attribute.String("order.id", cmd.OrderID),
	)
	ctx, logger := logctx.Enrich(ctx, uc.log,
		observability.F("use_case", useCaseConfirmSession),
		observability.F("order_id", cmd.OrderID),
	)

	start := time.Now()
	outcome, statusText := "success", "OK"
	var result *ConfirmSessionResult

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
			observability.L("use_case", useCaseConfirmSession),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(latency,
			observability.L("use_case", useCaseConfirmSession),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", latency),
		}
		if result != nil {
			fields = append(fields,
				observability.F("session_status", string(result.Status)),
				observability.F("replayed", result.Replayed),
			)
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	orderID, token := strings.TrimSpace(cmd.OrderID), strings.TrimSpace(cmd.Token)
	if orderID == "" || token == "" {
		outcome, statusText = "error", "CALLBACK_INCOMPLETE"
		return nil, dompay.NewValidation(dompay.ErrTokenRequired, "order_code and token are required")
	}

	unlock, err := uc.sessions.Lock(ctx, orderID)
	if err != nil {
		outcome, statusText = "error", "SESSION_LOCK_FAILED"
		return nil, fmt.Errorf("payment: lock session: %w", err)
	}
	defer unlock()

	session, err := uc.sessions.Get(ctx, orderID)
	if errors.Is(err, dompay.ErrSessionNotFound) {
		outcome, statusText = "error", "SESSION_UNKNOWN"
		uc.reject(logger, "unknown_session", orderID)
		return nil, dompay.NewValidation(dompay.ErrUnknownSession, orderID)
	}
	if err != nil {
		outcome, statusText = "error", "SESSION_LOOKUP_FAILED"
		return nil, fmt.Errorf("payment: load session: %w", err)
	}
	if !session.MatchesToken(token) {
		outcome, statusText = "error", "TOKEN_MISMATCH"
		uc.reject(logger, "token_mismatch", orderID)
		return nil, dompay.NewValidation(dompay.ErrTokenMismatch, orderID)
	}

	if session.Status.Terminal() {
		statusText = "REPLAYED"
		span.AddEvent("payment.callback_replayed")
		result = resultOf(session, true)
		return result, nil
	}

	order, err := uc.orders.Get(ctx, orderID)
	if errors.Is(err, domorder.ErrNotFound) {
		outcome, statusText = "error", "ORDER_NOT_FOUND"
		return nil, dompay.NewValidation(dompay.ErrOrderNotFound, orderID)
	}
	if err != nil {
		outcome, statusText = "error", "ORDER_LOOKUP_FAILED"
		return nil, fmt.Errorf("payment: load order: %w", err)
	}

	_, verifyErr := uc.processor.VerifySession(ctx, dompay.VerifyRequest{
		Credentials: cmd.Credentials,
		Method:      session.Method,
		Token:       session.ProcessorToken,
	})

	// The processor may already have settled the payment, so the writes below
	// must finish even if the caller has gone away.
	writeCtx := context.WithoutCancel(ctx)

	var event domoutbox.Event
	if verifyErr == nil {
		if err = order.MarkPaid(); err != nil && !errors.Is(err, domorder.ErrAlreadyPaid) {
			outcome, statusText = "error", "ORDER_TRANSITION_FAILED"
			return nil, fmt.Errorf("payment: mark order paid: %w", err)
		}
		order.AddNote(fmt.Sprintf(noteVerified, session.ProcessorToken))
		if err = uc.orders.Update(writeCtx, order); err != nil {
			outcome, statusText = "error", "ORDER_SAVE_FAILED"
			return nil, fmt.Errorf("payment: save order: %w", err)
		}
		if err = session.Verify(); err != nil {
			outcome, statusText = "error", "STATE_TRANSITION_FAILED"
			return nil, fmt.Errorf("payment: session transition: %w", err)
		}
		event = dompay.NewSessionVerifiedEvent(session, order.Total())
	} else {
		reason := dompay.FailureDescription(verifyErr)
		if reason == "" {
			reason = unknownErrorText
		}
		logger.Warn("payment_verification_failed",
			observability.F("reason", reason),
			observability.F("error", verifyErr.Error()),
		)
		span.RecordError(verifyErr)

		order.AddNote(fmt.Sprintf(noteFailed, reason))
		if err = uc.orders.Update(writeCtx, order); err != nil {
			outcome, statusText = "error", "ORDER_SAVE_FAILED"
			return nil, fmt.Errorf("payment: save order: %w", err)
		}
		if err = session.FailVerification(reason); err != nil {
			outcome, statusText = "error", "STATE_TRANSITION_FAILED"
			return nil, fmt.Errorf("payment: session transition: %w", err)
		}
		outcome, statusText = "failure", remoteStatusText(verifyErr)
		event = dompay.NewSessionVerificationFailedEvent(session)
	}

	if err = uc.sessions.Put(writeCtx, session); err != nil {
		outcome, statusText = "error", "SESSION_SAVE_FAILED"
		return nil, fmt.Errorf("payment: save session: %w", err)
	}

	span.AddEvent("payment.session_settled",
		trace.WithAttributes(attribute.String("payment.session_status", string(session.Status))),
	)
	uc.publish(writeCtx, logger, event)

	result = resultOf(session, false)
	return result, nil
}

func (uc *ConfirmSessionUseCase) reject(logger observability.Logger, reason, orderID string) {
	uc.rejected.Add(1, observability.L("reason", reason))
	logger.Warn("callback_rejected",
		observability.F("reason", reason),
		observability.F("order_id", orderID),
	)
}

// publish is best effort. The session and order are already saved.
func (uc *ConfirmSessionUseCase) publish(ctx context.Context, logger observability.Logger, e domoutbox.Event) {
	if uc.publisher == nil || e == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	start := time.Now()
	outcome := "success"
	err := uc.publisher.Publish(pubCtx, e)
	if err != nil {
		outcome = "error"
		logger.Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
	uc.extCounter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", e.EventName()),
		observability.L("outcome", outcome),
	)
	uc.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", e.EventName()),
	)
}

func resultOf(s *dompay.Session, replayed bool) *ConfirmSessionResult {
	return &ConfirmSessionResult{
		OrderID:       s.OrderID,
		Status:        s.Status,
		FailureReason: s.FailureReason,
		Replayed:      replayed,
	}
}
