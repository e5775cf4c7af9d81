// Package shopify receives fulfillment webhooks from the commerce
// platform and turns them into tracked shipments. It owns both inbound
// surfaces: the admin webhook (body HMAC) and the customer-facing app
// proxy (query signature).
package shopify

import (
	"strings"
	"time"

	"github.com/goliatone/go-tracking/core"
	"github.com/goliatone/go-tracking/webhooks"
)

const ProviderID = core.ProviderShopify

const (
	headerShopDomain = "X-Shopify-Shop-Domain"
	headerDeliveryID = "X-Shopify-Webhook-Id"
	headerTopic      = "X-Shopify-Topic"
)

type Config struct {
	WebhookSecret string
	ProxySecret   string
	ClaimLease    time.Duration
	MaxAttempts   int
}

func DefaultConfig(webhookSecret, proxySecret string) Config {
	return Config{
		WebhookSecret: strings.TrimSpace(webhookSecret),
		ProxySecret:   strings.TrimSpace(proxySecret),
		ClaimLease:    30 * time.Second,
		MaxAttempts:   8,
	}
}

// NewWebhookVerifier verifies the platform's admin webhook signature,
// a base64 keyed SHA-256 over the raw body.
func NewWebhookVerifier(cfg Config) webhooks.HeaderHMACVerifier {
	return webhooks.NewPlatformWebhookVerifier(cfg.WebhookSecret)
}

// NewProxyVerifier verifies customer-facing app-proxy requests signed
// with the shared app secret.
func NewProxyVerifier(cfg Config) webhooks.ProxySignatureVerifier {
	return webhooks.NewProxyVerifier(cfg.ProxySecret)
}

// ExtractDeliveryID resolves the platform's per-delivery id used for
// webhook dedupe.
func ExtractDeliveryID(req core.InboundRequest) (string, error) {
	return webhooks.DefaultDeliveryIDExtractor(req)
}
