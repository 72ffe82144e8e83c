package memory

import (
	"context"

	domorder "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/order"
)

// OrderRepository stands in for the host's order storage in the standalone binary.
type OrderRepository struct {
	orders *table[*domorder.Order]
}

var _ domorder.Repository = (*OrderRepository)(nil)

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{orders: newTable((*domorder.Order).Clone)}
}

// Insert registers a new order snapshot. Ids are unique.
func (r *OrderRepository) Insert(_ context.Context, o *domorder.Order) error {
	if o == nil || o.ID == "" {
		return domorder.ErrInvalidID
	}
	if !r.orders.set(o.ID, o, false, true) {
		return domorder.ErrConflict
	}
	return nil
}

func (r *OrderRepository) Get(_ context.Context, id string) (*domorder.Order, error) {
	o, ok := r.orders.get(id)
	if !ok {
		return nil, domorder.ErrNotFound
	}
	return o, nil
}

func (r *OrderRepository) Update(_ context.Context, o *domorder.Order) error {
	if o == nil || o.ID == "" {
		return domorder.ErrInvalidID
	}
	if !r.orders.set(o.ID, o, true, false) {
		return domorder.ErrNotFound
	}
	return nil
}

// Len reports how many orders are registered.
func (r *OrderRepository) Len() int { return r.orders.len() }
