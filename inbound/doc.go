// Package inbound routes provider-originated and customer-facing
// requests to their surface handlers.
//
// Verification happens before routing; a rejected request produces an
// opaque 401 so callers cannot enumerate shops or shipments.
package inbound
