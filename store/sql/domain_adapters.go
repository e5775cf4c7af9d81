package sqlstore

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-tracking/core"
)

func (r *shopRecord) toDomain() core.Shop {
	if r == nil {
		return core.Shop{}
	}
	return core.Shop{
		ID:         r.ID,
		Domain:     r.Domain,
		Credential: r.Credential,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func (r *orderRecord) toDomain() core.Order {
	if r == nil {
		return core.Order{}
	}
	return core.Order{
		ID:              r.ID,
		ShopID:          r.ShopID,
		ExternalOrderID: r.ExternalOrderID,
		Name:            r.Name,
		CreatedAt:       r.CreatedAt,
	}
}

func newShipmentRecord(shipment core.Shipment, now time.Time) *shipmentRecord {
	record := &shipmentRecord{
		ID:              strings.TrimSpace(shipment.ID),
		ShopID:          strings.TrimSpace(shipment.ShopID),
		TrackingNumber:  strings.TrimSpace(shipment.TrackingNumber),
		CarrierHint:     strings.TrimSpace(shipment.CarrierHint),
		Status:          string(shipment.Status),
		Registered:      shipment.Registered,
		LastMileCarrier: shipment.LastMile.Carrier,
		LastMileNumber:  shipment.LastMile.Number,
		LastMileURL:     shipment.LastMile.URL,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if orderID := strings.TrimSpace(shipment.OrderID); orderID != "" {
		record.OrderID = &orderID
	}
	return record
}

func (r *shipmentRecord) toDomain() core.Shipment {
	if r == nil {
		return core.Shipment{}
	}
	shipment := core.Shipment{
		ID:             r.ID,
		ShopID:         r.ShopID,
		TrackingNumber: r.TrackingNumber,
		CarrierHint:    r.CarrierHint,
		Status:         core.CanonicalStatus(r.Status),
		Registered:     r.Registered,
		LastMile: core.LastMile{
			Carrier: r.LastMileCarrier,
			Number:  r.LastMileNumber,
			URL:     r.LastMileURL,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.OrderID != nil {
		shipment.OrderID = *r.OrderID
	}
	return shipment
}

func (r *rawEventRecord) toDomain() core.RawEvent {
	if r == nil {
		return core.RawEvent{}
	}
	return core.RawEvent{
		ID:         r.ID,
		ShipmentID: r.ShipmentID,
		Provider:   r.Provider,
		Payload:    append([]byte(nil), r.Payload...),
		OccurredAt: r.OccurredAt,
		IngestedAt: r.IngestedAt,
	}
}

func (r *redactedEventRecord) toDomain() core.RedactedEvent {
	if r == nil {
		return core.RedactedEvent{}
	}
	return core.RedactedEvent{
		ID:         r.ID,
		ShipmentID: r.ShipmentID,
		RawEventID: r.RawEventID,
		StatusCode: r.StatusCode,
		Message:    r.Message,
		City:       r.City,
		OccurredAt: r.OccurredAt,
		Sequence:   r.Seq,
	}
}

// asNotFound normalizes driver and repository lookup misses into the
// categorized not-found error the pipeline branches on.
func asNotFound(err error, message string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) || strings.Contains(strings.ToLower(err.Error()), "not found") {
		return core.NewNotFound(message)
	}
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
