package order

import "context"

// Repository is the host's order store.
type Repository interface {
	Get(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, order *Order) error
}
