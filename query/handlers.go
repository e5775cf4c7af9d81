// Package query exposes the read-side tracking operations as
// go-command queries.
package query

import (
	"context"

	"github.com/goliatone/go-tracking/core"
)

// TrackingPageReader resolves the customer-facing read model. A result
// with HasEvents=false means the shipment exists but nothing has been
// ingested yet; a missing (shop, number) pair is a NotFound error.
type TrackingPageReader interface {
	LoadTrackingPage(ctx context.Context, shopDomain string, trackingNumber string) (core.TrackingPage, error)
}

type ShipmentReader interface {
	GetShipment(ctx context.Context, id string) (core.Shipment, error)
	ListShipmentEvents(ctx context.Context, id string) ([]core.RedactedEvent, error)
}

type TrackingPageQuery struct {
	reader TrackingPageReader
}

func NewTrackingPageQuery(reader TrackingPageReader) *TrackingPageQuery {
	return &TrackingPageQuery{reader: reader}
}

func (q *TrackingPageQuery) Query(ctx context.Context, msg TrackingPageMessage) (core.TrackingPage, error) {
	if q == nil || q.reader == nil {
		return core.TrackingPage{}, queryDependencyError("query: tracking page reader is required")
	}
	return q.reader.LoadTrackingPage(ctx, msg.ShopDomain, msg.TrackingNumber)
}

type GetShipmentQuery struct {
	reader ShipmentReader
}

func NewGetShipmentQuery(reader ShipmentReader) *GetShipmentQuery {
	return &GetShipmentQuery{reader: reader}
}

func (q *GetShipmentQuery) Query(ctx context.Context, msg GetShipmentMessage) (core.Shipment, error) {
	if q == nil || q.reader == nil {
		return core.Shipment{}, queryDependencyError("query: shipment reader is required")
	}
	return q.reader.GetShipment(ctx, msg.ShipmentID)
}

type ListShipmentEventsQuery struct {
	reader ShipmentReader
}

func NewListShipmentEventsQuery(reader ShipmentReader) *ListShipmentEventsQuery {
	return &ListShipmentEventsQuery{reader: reader}
}

func (q *ListShipmentEventsQuery) Query(ctx context.Context, msg ListShipmentEventsMessage) ([]core.RedactedEvent, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: shipment reader is required")
	}
	return q.reader.ListShipmentEvents(ctx, msg.ShipmentID)
}
