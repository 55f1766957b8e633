package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// App centralises all environment configuration. Values are read once at
// boot via Load; tests swap the active config with Set.
type App struct {
	Port   int    `envconfig:"PORT" default:"4000"`
	APIEnv string `envconfig:"API_ENV" default:"local"`

	FrontendOrigin string `envconfig:"FRONTEND_ORIGIN" default:"*"`

	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     string `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseUser     string `envconfig:"DATABASE_USER" default:"postgres"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"toursdb"`
	DatabaseSSLMode  string `envconfig:"DATABASE_SSLMODE" default:"disable"`
	DatabaseTimezone string `envconfig:"DATABASE_TIMEZONE" default:"Europe/Rome"`
	DatabasePoolSize int    `envconfig:"DATABASE_POOL_SIZE" default:"10"`

	SlotLabels           string `envconfig:"SLOT_LABELS" default:"09:00 - 11:30,11:45 - 14:20,15:00 - 17:30"`
	MaxBookingsPerSlot   int    `envconfig:"MAX_BOOKINGS_PER_SLOT" default:"1"`
	PendingIntentMinutes int    `envconfig:"PENDING_INTENT_MINUTES" default:"15"`
	PaymentMode          string `envconfig:"PAYMENT_MODE"`

	AdminEmail                    string `envconfig:"ADMIN_EMAIL"`
	AdminPasswordHash             string `envconfig:"ADMIN_PASSWORD_HASH"`
	AdminPassword                 string `envconfig:"ADMIN_PASSWORD"`
	AdminTokenTTLMinutes          int    `envconfig:"ADMIN_TOKEN_TTL_MINUTES" default:"480"`
	AdminLoginWindowSeconds       int    `envconfig:"ADMIN_LOGIN_WINDOW_SECONDS" default:"900"`
	AdminLoginMaxAttemptsPerIP    int    `envconfig:"ADMIN_LOGIN_MAX_ATTEMPTS_PER_IP" default:"25"`
	AdminLoginMaxAttemptsPerEmail int    `envconfig:"ADMIN_LOGIN_MAX_ATTEMPTS_PER_EMAIL" default:"8"`
	AdminLoginLockMinutes         int    `envconfig:"ADMIN_LOGIN_LOCK_MINUTES" default:"30"`
}

var app *App

func Load() (*App, error) {
	var c App
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	c.AdminEmail = strings.ToLower(strings.TrimSpace(c.AdminEmail))
	c.AdminPasswordHash = strings.TrimSpace(c.AdminPasswordHash)
	c.AdminPassword = strings.TrimSpace(c.AdminPassword)
	c.PaymentMode = strings.ToLower(strings.TrimSpace(c.PaymentMode))
	app = &c
	return &c, nil
}

// Get returns the active config, loading it on first use.
func Get() *App {
	if app != nil {
		return app
	}
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// Set swaps the active config (test seam).
func Set(c *App) {
	app = c
}

func (c *App) IsProd() bool {
	return c.APIEnv == "production"
}

func (c *App) GetDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.DatabaseHost, c.DatabaseUser, c.DatabasePassword, c.DatabaseName,
		c.DatabasePort, c.DatabaseSSLMode, c.DatabaseTimezone,
	)
}

// Slots returns the configured time-slot labels in display order.
func (c *App) Slots() []string {
	labels := []string{}
	for _, raw := range strings.Split(c.SlotLabels, ",") {
		label := strings.TrimSpace(raw)
		if label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}

func (c *App) HasSlot(label string) bool {
	for _, slot := range c.Slots() {
		if slot == label {
			return true
		}
	}
	return false
}

func (c *App) SlotCapacity() int {
	if c.MaxBookingsPerSlot < 1 {
		return 1
	}
	return c.MaxBookingsPerSlot
}

func (c *App) IntentTTL() time.Duration {
	if c.PendingIntentMinutes < 1 {
		return 15 * time.Minute
	}
	return time.Duration(c.PendingIntentMinutes) * time.Minute
}

var paymentProvidersByMode = map[string][]string{
	"mock":   {"mock", "paypal"},
	"paypal": {"paypal"},
}

func (c *App) defaultPaymentMode() string {
	if c.IsProd() {
		return "paypal"
	}
	return "mock"
}

// EffectivePaymentMode resolves the configured mode, falling back to the
// environment default when unset or unknown.
func (c *App) EffectivePaymentMode() string {
	if _, ok := paymentProvidersByMode[c.PaymentMode]; ok {
		return c.PaymentMode
	}
	return c.defaultPaymentMode()
}

func (c *App) AllowedPaymentProviders() []string {
	return paymentProvidersByMode[c.EffectivePaymentMode()]
}

func (c *App) SupportsPaymentProvider(provider string) bool {
	p := strings.ToLower(strings.TrimSpace(provider))
	for _, allowed := range c.AllowedPaymentProviders() {
		if allowed == p {
			return true
		}
	}
	return false
}

func (c *App) AdminAuthConfigured() bool {
	return c.AdminEmail != "" && (c.AdminPasswordHash != "" || c.AdminPassword != "")
}

func (c *App) SessionTTL() time.Duration {
	return time.Duration(c.AdminTokenTTLMinutes) * time.Minute
}

// Lockout tuning, floored to sane minimums.

func (c *App) LoginWindow() time.Duration {
	w := time.Duration(c.AdminLoginWindowSeconds) * time.Second
	if w < time.Minute {
		return time.Minute
	}
	return w
}

func (c *App) LoginMaxAttemptsPerIP() int {
	if c.AdminLoginMaxAttemptsPerIP < 3 {
		return 3
	}
	return c.AdminLoginMaxAttemptsPerIP
}

func (c *App) LoginMaxAttemptsPerEmail() int {
	if c.AdminLoginMaxAttemptsPerEmail < 3 {
		return 3
	}
	return c.AdminLoginMaxAttemptsPerEmail
}

func (c *App) LoginBaseLock() time.Duration {
	l := time.Duration(c.AdminLoginLockMinutes) * time.Minute
	if l < 30*time.Second {
		return 30 * time.Second
	}
	return l
}

const (
	DATE_KEY_FORMAT  = "2006-01-02"
	MONTH_KEY_FORMAT = "2006-01"
)

// Static tour catalog. Prices are minor currency units (cents).
var TourPriceByIDCents = map[string]int64{
	"roma-mangia-prega-ama": 7900,
	"when-in-rome":          14900,
}

var TourLabelByID = map[string]string{
	"roma-mangia-prega-ama": "Classic Rome Tour",
	"when-in-rome":          "When In Rome Tour",
}

// TourPriceTableJSON feeds the price table to SQL revenue fallbacks.
func TourPriceTableJSON() string {
	b, _ := json.Marshal(TourPriceByIDCents)
	return string(b)
}

// Legacy fixed slots served by the range availability endpoint.
var FixedAvailabilitySlots = []string{"10:00", "14:00", "18:00"}

const FixedAvailabilitySlotCapacity = 1
