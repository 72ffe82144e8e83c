package workerpresentation

import (
	"context"

	domoutbox "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/outbox"
	dompay "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/payment"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/observability"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/observability/logctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const componentSettlement = "settlement_worker"

// SettlementWorker consumes settled payment sessions. Verified payments are
// counted; failed verifications are flagged for manual reconciliation since the
// processor may still have captured funds.
type SettlementWorker struct {
	subscriber domoutbox.Subscriber
	tel        observability.Observability

	log      observability.Logger
	tracer   observability.Tracer
	outcomes observability.Counter // payment_outcomes_total{method,outcome}
}

func NewSettlementWorker(subscriber domoutbox.Subscriber, tel observability.Observability) *SettlementWorker {
	tracer, logger, metrics := observability.Components(tel, "")
	return &SettlementWorker{
		subscriber: subscriber,
		tel:        tel,
		log:        logger.With(observability.F("component", componentSettlement)),
		tracer:     tracer,
		outcomes:   metrics.Counter(observability.MPaymentOutcomes),
	}
}

func (w *SettlementWorker) Start() {
	if w.subscriber == nil {
		return
	}
	w.subscriber.Subscribe(dompay.SessionVerifiedEvent{}.EventName(), w.handleVerified)
	w.subscriber.Subscribe(dompay.SessionVerificationFailedEvent{}.EventName(), w.handleVerificationFailed)
}

func (w *SettlementWorker) handleVerified(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(dompay.SessionVerifiedEvent)
	if !ok {
		return nil
	}
	ctx, span := w.start(ctx, evt.EventName(), evt.OrderID, evt.Method)
	defer span.End()

	w.outcomes.Add(1,
		observability.L("method", string(evt.Method)),
		observability.L("outcome", "verified"),
	)
	logctx.FromOr(ctx, w.log).Info("payment_settled",
		observability.F("order_id", evt.OrderID),
		observability.F("payment_method", string(evt.Method)),
		observability.F("amount", evt.Amount),
		observability.F("transaction_id", evt.Token),
	)
	return nil
}

func (w *SettlementWorker) handleVerificationFailed(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(dompay.SessionVerificationFailedEvent)
	if !ok {
		return nil
	}
	ctx, span := w.start(ctx, evt.EventName(), evt.OrderID, evt.Method)
	defer span.End()

	w.outcomes.Add(1,
		observability.L("method", string(evt.Method)),
		observability.L("outcome", "verification_failed"),
	)
	logctx.FromOr(ctx, w.log).Warn("manual_reconciliation_required",
		observability.F("order_id", evt.OrderID),
		observability.F("payment_method", string(evt.Method)),
		observability.F("token", evt.Token),
		observability.F("reason", evt.Reason),
	)
	return nil
}

func (w *SettlementWorker) start(ctx context.Context, event, orderID string, method dompay.Method) (context.Context, trace.Span) {
	ctx, span := w.tracer.Start(ctx, "Worker.Settlement",
		attribute.String("event", event),
		attribute.String("order.id", orderID),
		attribute.String("payment.method", string(method)),
	)
	sc := span.SpanContext()
	ctx = WithEventContext(ctx, w.log, w.tel, sc.TraceID(), sc.SpanID(), map[string]string{
		"event":        event,
		"aggregate_id": orderID,
	})
	return ctx, span
}
