package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-tracking/core"
)

var (
	_ gocmd.Querier[TrackingPageMessage, core.TrackingPage]          = (*TrackingPageQuery)(nil)
	_ gocmd.Querier[GetShipmentMessage, core.Shipment]               = (*GetShipmentQuery)(nil)
	_ gocmd.Querier[ListShipmentEventsMessage, []core.RedactedEvent] = (*ListShipmentEventsQuery)(nil)
)
