package core

import (
	"fmt"
	"strings"
	"time"
)

// CanonicalStatus is the normalized lifecycle stage shown to customers.
// The set is closed; provider codes are folded into it by the status
// package and never stored raw on a shipment.
type CanonicalStatus string

const (
	StatusOrdered        CanonicalStatus = "ordered"
	StatusOrderReady     CanonicalStatus = "order_ready"
	StatusInTransit      CanonicalStatus = "in_transit"
	StatusOutForDelivery CanonicalStatus = "out_for_delivery"
	StatusDelivered      CanonicalStatus = "delivered"
)

func (s CanonicalStatus) Known() bool {
	switch s {
	case StatusOrdered, StatusOrderReady, StatusInTransit, StatusOutForDelivery, StatusDelivered:
		return true
	default:
		return false
	}
}

func (s CanonicalStatus) Validate() error {
	if !s.Known() {
		return fmt.Errorf("core: unknown canonical status %q", string(s))
	}
	return nil
}

const (
	ProviderShopify        = "shopify"
	ProviderSeventeenTrack = "17track"
)

type Shop struct {
	ID         string
	Domain     string
	Credential string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Order struct {
	ID              string
	ShopID          string
	ExternalOrderID string
	Name            string
	CreatedAt       time.Time
}

// LastMile carries the handoff carrier once the origin leg completes.
type LastMile struct {
	Carrier string
	Number  string
	URL     string
}

func (l LastMile) Empty() bool {
	return strings.TrimSpace(l.Carrier) == "" && strings.TrimSpace(l.Number) == ""
}

// Shipment is the tracked entity, keyed by (shop, tracking number).
// Status is a cache of a pure function over the shipment's redacted
// event history; only the recompute task writes it.
type Shipment struct {
	ID             string
	ShopID         string
	OrderID        string
	TrackingNumber string
	CarrierHint    string
	Status         CanonicalStatus
	Registered     bool
	LastMile       LastMile
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (s Shipment) Validate() error {
	if strings.TrimSpace(s.ShopID) == "" {
		return fmt.Errorf("core: shipment shop id is required")
	}
	if strings.TrimSpace(s.TrackingNumber) == "" {
		return fmt.Errorf("core: shipment tracking number is required")
	}
	return nil
}

// RawEvent is an immutable provider-reported fact. Rows are append-only
// and never mutated; the redacted history is regenerable from them.
type RawEvent struct {
	ID         string
	ShipmentID string
	Provider   string
	Payload    []byte
	OccurredAt time.Time
	IngestedAt time.Time
}

// RedactedEvent is the customer-safe projection of exactly one RawEvent.
// Sequence is the per-shipment ingestion sequence and is the documented
// tie-break when two events share an occurrence timestamp.
type RedactedEvent struct {
	ID         string
	ShipmentID string
	RawEventID string
	StatusCode string
	Message    string
	City       string
	OccurredAt time.Time
	Sequence   int64
}

// TrackingPage is the read model served to the customer-facing proxy.
// HasEvents distinguishes "found but quiet" from not-found, which is
// reported separately by the query layer.
type TrackingPage struct {
	Shipment  Shipment
	Events    []RedactedEvent
	HasEvents bool
}
