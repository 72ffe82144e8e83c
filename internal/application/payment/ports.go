package payment

import (
	domorder "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/order"
	domoutbox "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/outbox"
	dompay "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/payment"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/observability"
)

// Dependencies are the collaborators shared by the payment use cases.
type Dependencies struct {
	Sessions  dompay.SessionStore
	Orders    domorder.Repository
	Processor dompay.Processor
	// Publisher is optional. Settlement events are dropped when nil.
	Publisher domoutbox.Publisher
	Telemetry observability.Observability
}

// Instruction tells the host what to do with the customer after checkout.
type Instruction string

const (
	// InstructionRedirect sends the customer to the processor's hosted checkout.
	InstructionRedirect Instruction = "redirect"
	// InstructionOrderReceived shows the order-received page with the QR image inline.
	InstructionOrderReceived Instruction = "order_received"
)
