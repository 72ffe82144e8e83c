package nganluong

import (
	"encoding/xml"
	"strings"

	dompay "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/payment"
)

// xmlResponse mirrors the processor's reply. The root element name varies between
// endpoints, so it is left unconstrained.
type xmlResponse struct {
	ErrorCode         string `xml:"error_code"`
	Description       string `xml:"description"`
	Token             string `xml:"token"`
	CheckoutURL       string `xml:"checkout_url"`
	TimeLimit         string `xml:"time_limit"`
	QRImage           string `xml:"qr_code>qr_image"`
	QRImageFlat       string `xml:"qr_image"`
	OrderCode         string `xml:"order_code"`
	TotalAmount       string `xml:"total_amount"`
	TransactionID     string `xml:"transaction_id"`
	TransactionStatus string `xml:"transaction_status"`
}

func decodeResponse(body []byte) (*dompay.Response, error) {
	var raw xmlResponse
	if err := xml.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	qr := strings.TrimSpace(raw.QRImage)
	if qr == "" {
		qr = strings.TrimSpace(raw.QRImageFlat)
	}
	return &dompay.Response{
		ErrorCode:         strings.TrimSpace(raw.ErrorCode),
		Description:       strings.TrimSpace(raw.Description),
		Token:             strings.TrimSpace(raw.Token),
		CheckoutURL:       strings.TrimSpace(raw.CheckoutURL),
		QRImageURL:        qr,
		TimeLimit:         strings.TrimSpace(raw.TimeLimit),
		OrderCode:         strings.TrimSpace(raw.OrderCode),
		TotalAmount:       strings.TrimSpace(raw.TotalAmount),
		TransactionID:     strings.TrimSpace(raw.TransactionID),
		TransactionStatus: strings.TrimSpace(raw.TransactionStatus),
	}, nil
}
