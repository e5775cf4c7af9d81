// Package tasks implements the durable pipeline behind shipment
// tracking: register announces a tracking number upstream, ingest
// projects one raw provider event into its redacted form, and
// recompute re-derives the canonical status from the full history.
// Every task is safe to re-run; duplicates are absorbed by store-level
// idempotency rather than delivery guarantees.
package tasks
