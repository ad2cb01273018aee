package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/adilzhm/shopworks-billing/internal/model"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

type InventoryConfig struct {
	BaseURL string
	Timeout time.Duration
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Inventory   InventoryConfig
	Billing     model.BillingPolicy
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	taxRate, err := parseDecimal(v, "BILLING_DEFAULT_TAX_RATE", "0.08")
	if err != nil {
		return nil, err
	}
	laborRate, err := parseDecimal(v, "BILLING_DEFAULT_LABOR_RATE", "85.00")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Inventory: InventoryConfig{
			BaseURL: v.GetString("INVENTORY_BASE_URL"),
			Timeout: v.GetDuration("INVENTORY_TIMEOUT"),
		},
		Billing: model.BillingPolicy{
			DefaultTaxRate:         taxRate,
			DefaultLaborRate:       laborRate,
			QuoteValidityDays:      v.GetInt("BILLING_QUOTE_VALIDITY_DAYS"),
			InvoiceNetDays:         v.GetInt("BILLING_INVOICE_NET_DAYS"),
			AllowOverpaymentCredit: v.GetBool("BILLING_ALLOW_OVERPAYMENT_CREDIT"),
			AllowMultipleInvoices:  v.GetBool("BILLING_ALLOW_MULTIPLE_INVOICES"),
		},
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if cfg.Inventory.Timeout == 0 {
		cfg.Inventory.Timeout = 5 * time.Second
	}
	if cfg.Billing.QuoteValidityDays == 0 {
		cfg.Billing.QuoteValidityDays = 30
	}
	if cfg.Billing.InvoiceNetDays == 0 {
		cfg.Billing.InvoiceNetDays = 14
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Billing.DefaultTaxRate.IsNegative() {
		return fmt.Errorf("BILLING_DEFAULT_TAX_RATE must not be negative")
	}
	if cfg.Billing.DefaultLaborRate.IsNegative() {
		return fmt.Errorf("BILLING_DEFAULT_LABOR_RATE must not be negative")
	}
	return nil
}

func parseDecimal(v *viper.Viper, key, fallback string) (decimal.Decimal, error) {
	raw := v.GetString(key)
	if raw == "" {
		raw = fallback
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
