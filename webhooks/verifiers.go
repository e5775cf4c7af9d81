package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-tracking/core"
)

// HeaderHMACVerifier checks a keyed SHA-256 tag over the exact request
// body bytes against a header-supplied value. Verification fails closed
// when the header or secret is absent; the comparison is constant-time.
type HeaderHMACVerifier struct {
	Header   string
	Prefix   string
	Secret   string
	Encoding string // hex | base64
}

func (v HeaderHMACVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	header := strings.TrimSpace(headerValue(req.Headers, v.Header))
	if header == "" {
		return fmt.Errorf("webhooks: %s signature header is required", strings.TrimSpace(v.Header))
	}
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return fmt.Errorf("webhooks: signature secret is required")
	}
	signature := strings.TrimPrefix(header, strings.TrimSpace(v.Prefix))
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return fmt.Errorf("webhooks: signature value is required")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(req.Body)
	expected := mac.Sum(nil)

	switch strings.ToLower(strings.TrimSpace(v.Encoding)) {
	case "base64":
		decoded, err := base64.StdEncoding.DecodeString(signature)
		if err != nil {
			return fmt.Errorf("webhooks: decode base64 signature: %w", err)
		}
		if subtle.ConstantTimeCompare(decoded, expected) != 1 {
			return fmt.Errorf("webhooks: signature verification failed")
		}
	default:
		decoded, err := hex.DecodeString(signature)
		if err != nil {
			return fmt.Errorf("webhooks: decode hex signature: %w", err)
		}
		if subtle.ConstantTimeCompare(decoded, expected) != 1 {
			return fmt.Errorf("webhooks: signature verification failed")
		}
	}
	return nil
}

const proxySignatureParam = "signature"

// ProxySignatureVerifier checks the proxied customer-facing request.
// The tag is a hex keyed SHA-256 over the query parameters excluding
// the signature parameter itself, sorted lexicographically by key and
// concatenated as key=value with no separators. This canonicalization
// must match the platform's app-proxy scheme exactly; any parameter
// ordering in the request is normalized before hashing.
type ProxySignatureVerifier struct {
	Secret string
}

func (v ProxySignatureVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return fmt.Errorf("webhooks: proxy signature secret is required")
	}
	if len(req.Query) == 0 {
		return fmt.Errorf("webhooks: proxy query parameters are required")
	}

	var signature string
	if values := req.Query[proxySignatureParam]; len(values) > 0 {
		signature = strings.TrimSpace(values[0])
	}
	if signature == "" {
		return fmt.Errorf("webhooks: %s query parameter is required", proxySignatureParam)
	}

	keys := make([]string, 0, len(req.Query))
	for key := range req.Query {
		if key == proxySignatureParam {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var canonical strings.Builder
	for _, key := range keys {
		canonical.WriteString(key)
		canonical.WriteString("=")
		canonical.WriteString(strings.Join(req.Query[key], ","))
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(canonical.String()))
	expected := []byte(hex.EncodeToString(mac.Sum(nil)))

	supplied := []byte(signature)
	if len(supplied) != len(expected) {
		return fmt.Errorf("webhooks: signature verification failed")
	}
	if subtle.ConstantTimeCompare(supplied, expected) != 1 {
		return fmt.Errorf("webhooks: signature verification failed")
	}
	return nil
}

// NewPlatformWebhookVerifier builds the verifier for platform
// fulfillment webhooks (base64 body HMAC in X-Shopify-Hmac-Sha256).
func NewPlatformWebhookVerifier(secret string) HeaderHMACVerifier {
	return HeaderHMACVerifier{
		Header:   "X-Shopify-Hmac-Sha256",
		Secret:   strings.TrimSpace(secret),
		Encoding: "base64",
	}
}

// NewProxyVerifier builds the verifier for customer-facing proxy
// requests signed with the shared app secret.
func NewProxyVerifier(secret string) ProxySignatureVerifier {
	return ProxySignatureVerifier{Secret: strings.TrimSpace(secret)}
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
