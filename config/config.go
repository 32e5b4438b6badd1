package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RelayConfig holds the relay server configuration.
type RelayConfig struct {
	Port               string
	StripeSecretKey    string
	StripeConnectURL   string
	StripeAPIURL       string
	WebhookSecret      string
	TerminalLocationID string
	AllowedOrigins     []string
	SlackBotToken      string
	SlackChannelID     string
	ProcessorTimeout   time.Duration
}

// KioskConfig holds the client configuration. None of these values are
// compiled into the client; they differ per deployment.
type KioskConfig struct {
	ClientID            string
	RedirectURI         string
	APIBaseURL          string
	OAuthScopes         string
	AuthorizeURL        string
	SupportedCurrencies []string
	DefaultCurrency     string
	MinAmount           int64
	MaxAmount           int64
	PaymentStartDelay   time.Duration
	PaymentSettleDelay  time.Duration
	SettlePollInterval  time.Duration
	SlackBotToken       string
	SlackChannelID      string
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.AutomaticEnv()
	if path == "" {
		return v, nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return v, nil
}

// LoadRelayConfig reads relay settings from the environment and, when path is
// set, from a config file. Environment variables win over file values.
func LoadRelayConfig(path string) (*RelayConfig, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	v.SetDefault("port", "3000")
	v.SetDefault("stripe_connect_url", "https://connect.stripe.com")
	v.SetDefault("allowed_origins", "http://localhost:8081,http://localhost:3000,exp://localhost:8081")

	cfg := &RelayConfig{
		Port:               v.GetString("port"),
		StripeSecretKey:    v.GetString("stripe_secret_key"),
		StripeConnectURL:   strings.TrimRight(v.GetString("stripe_connect_url"), "/"),
		StripeAPIURL:       strings.TrimRight(v.GetString("stripe_api_url"), "/"),
		WebhookSecret:      v.GetString("stripe_webhook_secret"),
		TerminalLocationID: v.GetString("terminal_location_id"),
		AllowedOrigins:     splitList(v.GetString("allowed_origins")),
		SlackBotToken:      v.GetString("slack_bot_token"),
		SlackChannelID:     v.GetString("slack_channel_id"),
		ProcessorTimeout:   v.GetDuration("processor_timeout"),
	}

	if cfg.StripeSecretKey == "" {
		return nil, errors.New("STRIPE_SECRET_KEY is not set")
	}
	if cfg.WebhookSecret == "" {
		log.Printf("STRIPE_WEBHOOK_SECRET not set, webhook endpoint disabled")
	}
	return cfg, nil
}

// LoadKioskConfig reads client settings the same way as LoadRelayConfig.
func LoadKioskConfig(path string) (*KioskConfig, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	v.SetDefault("redirect_uri", "http://localhost:8081/inventory")
	v.SetDefault("api_base_url", "http://localhost:3000")
	v.SetDefault("oauth_scopes", "read_write")
	v.SetDefault("stripe_authorize_url", "https://connect.stripe.com/oauth/authorize")
	v.SetDefault("supported_currencies", "usd,eur,gbp,cad,aud")
	v.SetDefault("default_currency", "usd")
	v.SetDefault("min_amount", 50)
	v.SetDefault("max_amount", 1000000)
	v.SetDefault("payment_start_delay", "1s")
	v.SetDefault("payment_settle_delay", "2s")
	v.SetDefault("settle_poll_interval", "1s")

	cfg := &KioskConfig{
		ClientID:            v.GetString("stripe_client_id"),
		RedirectURI:         v.GetString("redirect_uri"),
		APIBaseURL:          strings.TrimRight(v.GetString("api_base_url"), "/"),
		OAuthScopes:         v.GetString("oauth_scopes"),
		AuthorizeURL:        v.GetString("stripe_authorize_url"),
		SupportedCurrencies: splitList(v.GetString("supported_currencies")),
		DefaultCurrency:     strings.ToLower(v.GetString("default_currency")),
		MinAmount:           v.GetInt64("min_amount"),
		MaxAmount:           v.GetInt64("max_amount"),
		PaymentStartDelay:   v.GetDuration("payment_start_delay"),
		PaymentSettleDelay:  v.GetDuration("payment_settle_delay"),
		SettlePollInterval:  v.GetDuration("settle_poll_interval"),
		SlackBotToken:       v.GetString("slack_bot_token"),
		SlackChannelID:      v.GetString("slack_channel_id"),
	}

	if cfg.ClientID == "" {
		return nil, errors.New("STRIPE_CLIENT_ID is not set")
	}
	if cfg.MinAmount > cfg.MaxAmount {
		return nil, fmt.Errorf("MIN_AMOUNT %d is greater than MAX_AMOUNT %d", cfg.MinAmount, cfg.MaxAmount)
	}
	return cfg, nil
}

// splitList turns "a, b,,c" into [a b c].
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
