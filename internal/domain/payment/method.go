package payment

import "strings"

// Method is the payment method offered by the processor.
type Method string

const (
	MethodBankRedirect Method = "bank_redirect"
	MethodQRCode       Method = "qr_code"
)

// Wire values for the payment_method field.
const (
	wireBankRedirect = "IB_ONLINE"
	wireQRCode       = "QRCODE247"
)

// ParseMethod accepts both the local names and the processor's wire names.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(MethodBankRedirect), strings.ToLower(wireBankRedirect):
		return MethodBankRedirect, nil
	case string(MethodQRCode), strings.ToLower(wireQRCode):
		return MethodQRCode, nil
	default:
		return "", validationf(ErrInvalidMethod, "%q", s)
	}
}

func (m Method) Valid() bool {
	return m == MethodBankRedirect || m == MethodQRCode
}

// WireName is the value sent as payment_method.
func (m Method) WireName() string {
	switch m {
	case MethodBankRedirect:
		return wireBankRedirect
	case MethodQRCode:
		return wireQRCode
	default:
		return ""
	}
}

// Version is the protocol version the processor expects for the method.
func (m Method) Version() string {
	if m == MethodQRCode {
		return "3.2"
	}
	return "3.1"
}

// DefaultBankCode is the merchant bank used when none is configured.
const DefaultBankCode = "VCB"

var supportedBanks = map[string]string{
	"VCB":  "Vietcombank",
	"DAB":  "DongA Bank",
	"TCB":  "Techcombank",
	"MB":   "MB",
	"VIB":  "VIB",
	"AGB":  "Agribank",
	"BIDV": "BIDV",
	"OCB":  "Orient Commercial Bank",
	"SHNB": "Shinhan Bank",
}

// NormalizeBankCode upper-cases and trims a bank code.
func NormalizeBankCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// SupportedBank reports whether the processor accepts the bank code for online banking.
func SupportedBank(code string) bool {
	_, ok := supportedBanks[NormalizeBankCode(code)]
	return ok
}

// BankName returns the display name of a supported bank.
func BankName(code string) string {
	return supportedBanks[NormalizeBankCode(code)]
}
