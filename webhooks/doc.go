// Package webhooks contains the signature verifiers for the two
// inbound trust boundaries (platform webhook body HMAC and the proxied
// customer request query HMAC) plus the delivery processor.
//
// Delivery processing is driven by a claim lifecycle:
// pending/retry_ready -> processing -> processed|dead.
// This makes retries and crash-recovery explicit and prevents transient
// failures from being deduped as permanently processed.
package webhooks
