package payment

import (
	"fmt"
	"strconv"
	"strings"
)

// Credentials identify the merchant to the processor.
type Credentials struct {
	MerchantID     string
	MerchantSecret string
	ReceiverEmail  string
}

// Settings is the host's merchant configuration lookup.
type Settings interface {
	Get(key string) string
}

// Setting keys read by the orchestrator.
const (
	SettingDefaultBankCode = "default_bank_code"
	SettingQRBankCode      = "qr_bank_code"
	SettingMinAmountBank   = "min_amount_bank_redirect"
	SettingMinAmountQR     = "min_amount_qr"
	SettingReturnURL       = "return_url"
	SettingNotifyURL       = "notify_url"
	SettingCheckoutURL     = "checkout_url"
	SettingOrderReceived   = "order_received_url"
	SettingTimeLimit       = "time_limit"
	SettingLangCode        = "lang_code"
)

const (
	DefaultMinAmountBank int64 = 20000
	DefaultMinAmountQR   int64 = 50000
	DefaultTimeLimit           = "1440"
	DefaultLangCode            = "vi"

	orderIDPlaceholder = "{order_id}"
)

// MinimumAmount returns the method-specific minimum order total.
func MinimumAmount(s Settings, m Method) int64 {
	if m == MethodQRCode {
		return settingInt(s, SettingMinAmountQR, DefaultMinAmountQR)
	}
	return settingInt(s, SettingMinAmountBank, DefaultMinAmountBank)
}

// ValidateMinimums checks that the QR minimum is strictly above the bank
// redirect minimum. Both are already positive after MinimumAmount's fallback.
func ValidateMinimums(s Settings) error {
	bank := MinimumAmount(s, MethodBankRedirect)
	qr := MinimumAmount(s, MethodQRCode)
	if qr <= bank {
		return fmt.Errorf("%w: qr minimum %d must exceed bank redirect minimum %d", ErrInvalidSettings, qr, bank)
	}
	return nil
}

// SettingOr returns the trimmed setting or def when unset.
func SettingOr(s Settings, key, def string) string {
	if s == nil {
		return def
	}
	if v := strings.TrimSpace(s.Get(key)); v != "" {
		return v
	}
	return def
}

// OrderReceivedURL expands the order-received page template for an order.
func OrderReceivedURL(s Settings, orderID string) string {
	return strings.ReplaceAll(SettingOr(s, SettingOrderReceived, ""), orderIDPlaceholder, orderID)
}

func settingInt(s Settings, key string, def int64) int64 {
	v := SettingOr(s, key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// StaticSettings is a map-backed Settings.
type StaticSettings map[string]string

func (s StaticSettings) Get(key string) string { return s[key] }
