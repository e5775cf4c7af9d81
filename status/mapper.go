// Package status folds provider status codes into the canonical
// shipment lifecycle and derives a shipment's canonical status from
// its redacted event history.
package status

import (
	"sort"
	"strings"

	"github.com/goliatone/go-tracking/core"
)

// canonicalByCode maps the 17TRACK simplified code set. Unknown codes
// fall back to in_transit: unknown progress must neither regress the
// apparent status nor claim completion.
var canonicalByCode = map[string]core.CanonicalStatus{
	"InfoReceived":       core.StatusOrdered,
	"InTransit":          core.StatusInTransit,
	"OutForDelivery":     core.StatusOutForDelivery,
	"Delivered":          core.StatusDelivered,
	"AvailableForPickup": core.StatusOutForDelivery,
	"Expired":            core.StatusInTransit,
	"Failed":             core.StatusInTransit,
}

// MapToCanonical maps a provider status code to a canonical status.
// The fulfillment platform only ever signals creation, so its codes
// always map to ordered.
func MapToCanonical(providerCode string, provider string) core.CanonicalStatus {
	if strings.TrimSpace(provider) == core.ProviderSeventeenTrack {
		if status, ok := canonicalByCode[strings.TrimSpace(providerCode)]; ok {
			return status
		}
		return core.StatusInTransit
	}
	return core.StatusOrdered
}

// IsDeliveryCode reports whether a normalized code denotes delivery.
func IsDeliveryCode(code string) bool {
	return strings.EqualFold(strings.TrimSpace(code), "Delivered")
}

// DetermineCanonicalStatus computes the canonical status for a full,
// unsorted redacted history. Delivery is absorbing: any delivery-coded
// event yields delivered regardless of its position in time order.
// Otherwise the most recent event wins, ordered by occurrence time
// descending with the ingestion sequence as the deterministic
// tie-break.
func DetermineCanonicalStatus(events []core.RedactedEvent) core.CanonicalStatus {
	if len(events) == 0 {
		return core.StatusOrdered
	}

	for _, event := range events {
		if IsDeliveryCode(event.StatusCode) {
			return core.StatusDelivered
		}
	}

	sorted := append([]core.RedactedEvent(nil), events...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].OccurredAt.Equal(sorted[j].OccurredAt) {
			return sorted[i].OccurredAt.After(sorted[j].OccurredAt)
		}
		return sorted[i].Sequence > sorted[j].Sequence
	})

	return MapToCanonical(sorted[0].StatusCode, core.ProviderSeventeenTrack)
}

// ExtractLastMile scans raw provider payloads for last-mile handoff
// details and returns the most recent non-empty one. Payloads that do
// not decode as the versioned event schema are skipped.
func ExtractLastMile(events []core.RawEvent) (core.LastMile, bool) {
	sorted := append([]core.RawEvent(nil), events...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].OccurredAt.After(sorted[j].OccurredAt)
	})

	for _, event := range sorted {
		payload, err := core.DecodeEventPayload(event.Payload)
		if err != nil {
			continue
		}
		lastMile := core.LastMile{
			Carrier: strings.TrimSpace(payload.LastMileCarrier),
			Number:  strings.TrimSpace(payload.LastMileNumber),
			URL:     strings.TrimSpace(payload.LastMileURL),
		}
		if !lastMile.Empty() {
			return lastMile, true
		}
	}
	return core.LastMile{}, false
}
