// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	dompay "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/payment"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/infrastructure/nganluong"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	ServiceName string
	Env         string
	HTTPAddr    string
	LogLevel    string
	LogFile     string

	Credentials dompay.Credentials
	NganLuong   nganluong.Config
	Settings    Settings

	SessionStore string
	SQLiteDSN    string

	CallbackRateRPS   float64
	CallbackRateBurst int
	// TrustProxyHeaders takes the client IP from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool
}

// Settings is the merchant configuration exposed to the payment core by key.
type Settings map[string]string

func (s Settings) Get(key string) string { return s[key] }

var _ dompay.Settings = Settings(nil)

// Load reads the environment and validates the result.
func Load() (Config, error) {
	var errs []error

	timeout, err := getenvInt("NL_TIMEOUT_SECONDS", int(nganluong.DefaultTimeout/time.Second))
	errs = append(errs, err)
	minBank, err := getenvInt("NL_MIN_AMOUNT_BANK", int(dompay.DefaultMinAmountBank))
	errs = append(errs, err)
	minQR, err := getenvInt("NL_MIN_AMOUNT_QR", int(dompay.DefaultMinAmountQR))
	errs = append(errs, err)
	burst, err := getenvInt("CALLBACK_RATE_BURST", 20)
	errs = append(errs, err)
	rps, err := getenvFloat("CALLBACK_RATE_RPS", 5)
	errs = append(errs, err)
	trustProxy, err := getenvBool("TRUST_PROXY_HEADERS", false)
	errs = append(errs, err)

	bankURL := getenvDefault("NL_BANK_CREATE_URL", nganluong.DefaultBankRedirectURL)
	qrURL := getenvDefault("NL_QR_CREATE_URL", nganluong.DefaultQRCodeURL)

	cfg := Config{
		ServiceName: getenvDefault("SERVICE_NAME", "nganluong-gateway"),
		Env:         getenvDefault("ENV", "dev"),
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:    getenvDefault("LOG_LEVEL", "info"),
		LogFile:     os.Getenv("LOG_FILE"),
		Credentials: dompay.Credentials{
			MerchantID:     strings.TrimSpace(os.Getenv("NL_MERCHANT_ID")),
			MerchantSecret: os.Getenv("NL_MERCHANT_SECRET"),
			ReceiverEmail:  strings.TrimSpace(os.Getenv("NL_RECEIVER_EMAIL")),
		},
		NganLuong: nganluong.Config{
			BankRedirect: nganluong.Endpoints{
				CreateURL: bankURL,
				VerifyURL: getenvDefault("NL_BANK_VERIFY_URL", bankURL),
			},
			QRCode: nganluong.Endpoints{
				CreateURL: qrURL,
				VerifyURL: getenvDefault("NL_QR_VERIFY_URL", qrURL),
			},
			Timeout: time.Duration(timeout) * time.Second,
		},
		Settings: Settings{
			dompay.SettingDefaultBankCode: getenvDefault("NL_DEFAULT_BANK_CODE", dompay.DefaultBankCode),
			dompay.SettingQRBankCode:      getenvDefault("NL_QR_BANK_CODE", dompay.DefaultBankCode),
			dompay.SettingMinAmountBank:   strconv.Itoa(minBank),
			dompay.SettingMinAmountQR:     strconv.Itoa(minQR),
			dompay.SettingReturnURL:       os.Getenv("NL_RETURN_URL"),
			dompay.SettingNotifyURL:       os.Getenv("NL_NOTIFY_URL"),
			dompay.SettingCheckoutURL:     getenvDefault("CHECKOUT_URL", "/checkout"),
			dompay.SettingOrderReceived:   getenvDefault("ORDER_RECEIVED_URL", "/checkout/order-received/{order_id}"),
			dompay.SettingTimeLimit:       getenvDefault("NL_TIME_LIMIT", dompay.DefaultTimeLimit),
			dompay.SettingLangCode:        getenvDefault("NL_LANG_CODE", dompay.DefaultLangCode),
		},
		SessionStore:      strings.ToLower(getenvDefault("SESSION_STORE", StoreMemory)),
		SQLiteDSN:         getenvDefault("SQLITE_DSN", "file:sessions.db?_pragma=busy_timeout(5000)"),
		CallbackRateRPS:   rps,
		CallbackRateBurst: burst,
		TrustProxyHeaders: trustProxy,
	}

	errs = append(errs, cfg.validate(int64(minBank), int64(minQR), timeout)...)
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate(minBank, minQR int64, timeout int) []error {
	var errs []error
	if c.Credentials.MerchantID == "" {
		errs = append(errs, fmt.Errorf("%w: NL_MERCHANT_ID is required", ErrInvalid))
	}
	if c.Credentials.MerchantSecret == "" {
		errs = append(errs, fmt.Errorf("%w: NL_MERCHANT_SECRET is required", ErrInvalid))
	}
	if c.Credentials.ReceiverEmail == "" {
		errs = append(errs, fmt.Errorf("%w: NL_RECEIVER_EMAIL is required", ErrInvalid))
	}
	if minBank <= 0 {
		errs = append(errs, fmt.Errorf("%w: NL_MIN_AMOUNT_BANK must be positive", ErrInvalid))
	}
	if minQR <= minBank {
		errs = append(errs, fmt.Errorf("%w: NL_MIN_AMOUNT_QR must exceed NL_MIN_AMOUNT_BANK", ErrInvalid))
	}
	if timeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: NL_TIMEOUT_SECONDS must be positive", ErrInvalid))
	}
	for _, code := range []string{
		c.Settings.Get(dompay.SettingDefaultBankCode),
		c.Settings.Get(dompay.SettingQRBankCode),
	} {
		if !dompay.SupportedBank(dompay.NormalizeBankCode(code)) {
			errs = append(errs, fmt.Errorf("%w: unsupported bank code %q", ErrInvalid, code))
		}
	}
	for _, u := range []string{
		c.NganLuong.BankRedirect.CreateURL, c.NganLuong.BankRedirect.VerifyURL,
		c.NganLuong.QRCode.CreateURL, c.NganLuong.QRCode.VerifyURL,
	} {
		if parsed, err := url.Parse(u); err != nil || parsed.Scheme == "" || parsed.Host == "" {
			errs = append(errs, fmt.Errorf("%w: processor url %q", ErrInvalid, u))
		}
	}
	switch c.SessionStore {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLiteDSN == "" {
			errs = append(errs, fmt.Errorf("%w: SQLITE_DSN is required for the sqlite store", ErrInvalid))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: SESSION_STORE %q", ErrInvalid, c.SessionStore))
	}
	if c.CallbackRateRPS <= 0 || c.CallbackRateBurst <= 0 {
		errs = append(errs, fmt.Errorf("%w: callback rate limit must be positive", ErrInvalid))
	}
	return errs
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, key, v)
	}
	return n, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalid, key, v)
	}
	return b, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, fmt.Errorf("%w: %s=%q is not a number", ErrInvalid, key, v)
	}
	return f, nil
}
