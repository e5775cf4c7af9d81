package tracking

import (
	"github.com/goliatone/go-tracking/core"
	"github.com/goliatone/go-tracking/providers/shopify"
	"github.com/goliatone/go-tracking/webhooks"
)

// ShopifyWebhookProcessor builds the inbound processor for the
// commerce platform's fulfillment webhooks: body HMAC verification,
// ledger-backed dedupe, and the supplied fulfillment handler.
func ShopifyWebhookProcessor(
	cfg shopify.Config,
	ledger webhooks.DeliveryLedger,
	handler core.WebhookHandler,
) *webhooks.Processor {
	processor := webhooks.NewProcessor(shopify.NewWebhookVerifier(cfg), ledger, handler)
	processor.ExtractID = shopify.ExtractDeliveryID
	if cfg.ClaimLease > 0 {
		processor.ClaimLease = cfg.ClaimLease
	}
	if cfg.MaxAttempts > 0 {
		processor.MaxAttempts = cfg.MaxAttempts
	}
	return processor
}

// SeventeenTrackWebhookProcessor builds the inbound processor for the
// tracking provider's event pushes. The provider sends no delivery id,
// so dedupe falls back to a digest of the body; it signs nothing, so
// no verifier runs ahead of the ledger claim.
func SeventeenTrackWebhookProcessor(
	cfg core.WebhookConfig,
	ledger webhooks.DeliveryLedger,
	handler core.WebhookHandler,
) *webhooks.Processor {
	processor := webhooks.NewProcessor(nil, ledger, handler)
	if cfg.ClaimLease > 0 {
		processor.ClaimLease = cfg.ClaimLease
	}
	if cfg.MaxAttempts > 0 {
		processor.MaxAttempts = cfg.MaxAttempts
	}
	return processor
}
