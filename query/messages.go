package query

import (
	"strings"
)

const (
	TypeTrackingPage       = "tracking.query.page.load"
	TypeGetShipment        = "tracking.query.shipment.get"
	TypeListShipmentEvents = "tracking.query.shipment.events"
)

// TrackingPageMessage loads the customer-facing view for a tracking
// number scoped to one shop. A shipment owned by another shop is
// reported as not found, never as foreign.
type TrackingPageMessage struct {
	ShopDomain     string
	TrackingNumber string
}

func (TrackingPageMessage) Type() string { return TypeTrackingPage }

func (m TrackingPageMessage) Validate() error {
	if strings.TrimSpace(m.ShopDomain) == "" {
		return queryValidationError("shop_domain", "shop domain is required")
	}
	if strings.TrimSpace(m.TrackingNumber) == "" {
		return queryValidationError("tracking_number", "tracking number is required")
	}
	return nil
}

type GetShipmentMessage struct {
	ShipmentID string
}

func (GetShipmentMessage) Type() string { return TypeGetShipment }

func (m GetShipmentMessage) Validate() error {
	if strings.TrimSpace(m.ShipmentID) == "" {
		return queryValidationError("shipment_id", "shipment id is required")
	}
	return nil
}

type ListShipmentEventsMessage struct {
	ShipmentID string
}

func (ListShipmentEventsMessage) Type() string { return TypeListShipmentEvents }

func (m ListShipmentEventsMessage) Validate() error {
	if strings.TrimSpace(m.ShipmentID) == "" {
		return queryValidationError("shipment_id", "shipment id is required")
	}
	return nil
}
