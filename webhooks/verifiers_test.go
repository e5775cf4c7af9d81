package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/goliatone/go-tracking/core"
)

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func signProxyQuery(secret string, canonical string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestHeaderHMACVerifier_AcceptsValidTag(t *testing.T) {
	body := []byte(`{"order_id":1001,"tracking_number":"RR123456789CN"}`)
	verifier := NewPlatformWebhookVerifier("shh")

	err := verifier.Verify(context.Background(), core.InboundRequest{
		Headers: map[string]string{"X-Shopify-Hmac-Sha256": signBody("shh", body)},
		Body:    body,
	})
	if err != nil {
		t.Fatalf("expected valid signature to pass: %v", err)
	}
}

func TestHeaderHMACVerifier_RejectsMissingHeader(t *testing.T) {
	verifier := NewPlatformWebhookVerifier("shh")
	err := verifier.Verify(context.Background(), core.InboundRequest{Body: []byte("{}")})
	if err == nil {
		t.Fatalf("expected missing header to fail closed")
	}
}

func TestHeaderHMACVerifier_RejectsWrongSecret(t *testing.T) {
	body := []byte(`{}`)
	verifier := NewPlatformWebhookVerifier("shh")
	err := verifier.Verify(context.Background(), core.InboundRequest{
		Headers: map[string]string{"X-Shopify-Hmac-Sha256": signBody("other", body)},
		Body:    body,
	})
	if err == nil {
		t.Fatalf("expected signature from wrong secret to be rejected")
	}
}

func TestHeaderHMACVerifier_RejectsTamperedBody(t *testing.T) {
	body := []byte(`{"tracking_number":"RR123456789CN"}`)
	verifier := NewPlatformWebhookVerifier("shh")
	err := verifier.Verify(context.Background(), core.InboundRequest{
		Headers: map[string]string{"X-Shopify-Hmac-Sha256": signBody("shh", body)},
		Body:    []byte(`{"tracking_number":"RR999999999CN"}`),
	})
	if err == nil {
		t.Fatalf("expected tampered body to be rejected")
	}
}

func TestHeaderHMACVerifier_RejectsMalformedEncoding(t *testing.T) {
	verifier := NewPlatformWebhookVerifier("shh")
	err := verifier.Verify(context.Background(), core.InboundRequest{
		Headers: map[string]string{"X-Shopify-Hmac-Sha256": "%%%not-base64%%%"},
		Body:    []byte("{}"),
	})
	if err == nil {
		t.Fatalf("expected malformed signature to be treated as invalid")
	}
}

func TestProxySignatureVerifier_AcceptsCanonicalizedQuery(t *testing.T) {
	verifier := NewProxyVerifier("shh")
	// Params are supplied out of order; canonical form sorts by key
	// and joins key=value with no separators.
	signature := signProxyQuery("shh", "pathprefix=/apps/trackshop=demo.myshopify.comtimestamp=1700000000")

	err := verifier.Verify(context.Background(), core.InboundRequest{
		Query: map[string][]string{
			"timestamp":  {"1700000000"},
			"shop":       {"demo.myshopify.com"},
			"pathprefix": {"/apps/track"},
			"signature":  {signature},
		},
	})
	if err != nil {
		t.Fatalf("expected canonicalized query to verify: %v", err)
	}
}

func TestProxySignatureVerifier_RejectsMissingSignature(t *testing.T) {
	verifier := NewProxyVerifier("shh")
	err := verifier.Verify(context.Background(), core.InboundRequest{
		Query: map[string][]string{"shop": {"demo.myshopify.com"}},
	})
	if err == nil {
		t.Fatalf("expected missing signature to fail closed")
	}
}

func TestProxySignatureVerifier_RejectsLengthMismatch(t *testing.T) {
	verifier := NewProxyVerifier("shh")
	err := verifier.Verify(context.Background(), core.InboundRequest{
		Query: map[string][]string{
			"shop":      {"demo.myshopify.com"},
			"signature": {"deadbeef"},
		},
	})
	if err == nil {
		t.Fatalf("expected short signature to be rejected before comparison")
	}
}

func TestProxySignatureVerifier_RejectsWrongSecret(t *testing.T) {
	verifier := NewProxyVerifier("shh")
	signature := signProxyQuery("other", "shop=demo.myshopify.com")
	err := verifier.Verify(context.Background(), core.InboundRequest{
		Query: map[string][]string{
			"shop":      {"demo.myshopify.com"},
			"signature": {signature},
		},
	})
	if err == nil {
		t.Fatalf("expected signature from wrong secret to be rejected")
	}
}
