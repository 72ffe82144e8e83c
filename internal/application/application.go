package application

import "context"

// UseCase is one application operation. Cross-cutting concerns (span, RED metrics,
// use_case_done log) live inside Execute.
type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}
