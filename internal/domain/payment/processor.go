package payment

import (
	"context"

	domorder "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/order"
)

// SuccessCode is the processor's error_code for a successful call.
const SuccessCode = "00"

// Processor is the remote payment client.
type Processor interface {
	CreateSession(ctx context.Context, req CreateRequest) (*Response, error)
	VerifySession(ctx context.Context, req VerifyRequest) (*Response, error)
}

// CreateRequest carries everything needed for a SetExpressCheckout call.
type CreateRequest struct {
	Credentials Credentials
	Method      Method
	Order       *domorder.Order
	BankCode    string
	ReturnURL   string
	NotifyURL   string
	CancelURL   string
	TimeLimit   string
	LangCode    string
}

// VerifyRequest carries everything needed for a GetTransactionDetail call.
type VerifyRequest struct {
	Credentials Credentials
	Method      Method
	Token       string
}

// Response is the processor reply decoded into a method-independent shape.
type Response struct {
	ErrorCode         string
	Description       string
	Token             string
	CheckoutURL       string
	QRImageURL        string
	TimeLimit         string
	OrderCode         string
	TotalAmount       string
	TransactionID     string
	TransactionStatus string
}

func (r *Response) Succeeded() bool {
	return r != nil && r.ErrorCode == SuccessCode
}
