package payment

import (
	"context"

	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/application"
)

// Orchestrator is the entry point used by the transport layer. It keeps no state of
// its own; credentials and settings travel with every call.
type Orchestrator struct {
	create  application.UseCase[CreateSessionInput, *CreateSessionResult]
	confirm application.UseCase[ConfirmSessionInput, *ConfirmSessionResult]
}

func NewOrchestrator(deps Dependencies) *Orchestrator {
	return &Orchestrator{
		create:  NewCreateSessionUseCase(deps),
		confirm: NewConfirmSessionUseCase(deps),
	}
}

func (o *Orchestrator) CreateSession(ctx context.Context, in CreateSessionInput) (*CreateSessionResult, error) {
	return o.create.Execute(ctx, in)
}

func (o *Orchestrator) ConfirmSession(ctx context.Context, in ConfirmSessionInput) (*ConfirmSessionResult, error) {
	return o.confirm.Execute(ctx, in)
}
