package core

import (
	"fmt"
	"strings"
	"time"
)

type ShopifyConfig struct {
	WebhookSecret string `koanf:"webhook_secret" mapstructure:"webhook_secret"`
	ProxySecret   string `koanf:"proxy_secret" mapstructure:"proxy_secret"`
}

type SeventeenTrackConfig struct {
	APIKey  string        `koanf:"api_key" mapstructure:"api_key"`
	BaseURL string        `koanf:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `koanf:"timeout" mapstructure:"timeout"`
}

type WorkerConfig struct {
	MaxAttempts int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	MaxDelay    time.Duration `koanf:"max_delay" mapstructure:"max_delay"`
}

type WebhookConfig struct {
	MaxAttempts int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	ClaimLease  time.Duration `koanf:"claim_lease" mapstructure:"claim_lease"`
}

type StorageConfig struct {
	Dialect string `koanf:"dialect" mapstructure:"dialect"`
	DSN     string `koanf:"dsn" mapstructure:"dsn"`
}

type Config struct {
	ServiceName    string               `koanf:"service_name" mapstructure:"service_name"`
	Storage        StorageConfig        `koanf:"storage" mapstructure:"storage"`
	Shopify        ShopifyConfig        `koanf:"shopify" mapstructure:"shopify"`
	SeventeenTrack SeventeenTrackConfig `koanf:"seventeen_track" mapstructure:"seventeen_track"`
	Worker         WorkerConfig         `koanf:"worker" mapstructure:"worker"`
	Webhook        WebhookConfig        `koanf:"webhook" mapstructure:"webhook"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "tracking",
		Storage: StorageConfig{
			Dialect: "sqlite",
		},
		SeventeenTrack: SeventeenTrackConfig{
			BaseURL: "https://api.17track.net",
			Timeout: 15 * time.Second,
		},
		Worker: WorkerConfig{
			MaxAttempts: 5,
			MaxDelay:    5 * time.Minute,
		},
		Webhook: WebhookConfig{
			MaxAttempts: 8,
			ClaimLease:  30 * time.Second,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Worker.MaxAttempts < 1 {
		return fmt.Errorf("core: worker max_attempts must be at least 1")
	}
	if c.Webhook.MaxAttempts < 1 {
		return fmt.Errorf("core: webhook max_attempts must be at least 1")
	}
	if strings.TrimSpace(c.SeventeenTrack.BaseURL) == "" {
		return fmt.Errorf("core: seventeen_track base_url is required")
	}
	return nil
}
