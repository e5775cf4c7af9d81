// Package providers contains the built-in provider integrations: the
// commerce platform that originates shipments (shopify) and the
// tracking aggregator that pushes transit events (seventeentrack).
package providers
