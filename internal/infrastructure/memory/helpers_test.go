package memory

import (
	"testing"

	domorder "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/order"
	"github.com/stretchr/testify/require"
)

func mustOrder(t *testing.T, id string) *domorder.Order {
	t.Helper()
	o, err := domorder.New(id, 100000, domorder.Billing{FirstName: "An"})
	require.NoError(t, err)
	return o
}
