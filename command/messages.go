package command

import (
	"strings"
)

const (
	TypeRegisterShipment = "tracking.command.shipment.register"
	TypeIngestEvent      = "tracking.command.event.ingest"
	TypeRecomputeStatus  = "tracking.command.status.recompute"
	TypeReplayShipment   = "tracking.command.shipment.replay"
)

// RegisterShipmentMessage announces a shipment's tracking number to the
// upstream tracking provider.
type RegisterShipmentMessage struct {
	ShipmentID string
}

func (RegisterShipmentMessage) Type() string { return TypeRegisterShipment }

func (m RegisterShipmentMessage) Validate() error {
	if strings.TrimSpace(m.ShipmentID) == "" {
		return commandValidationError("shipment_id", "shipment id is required")
	}
	return nil
}

// IngestEventMessage redacts one stored raw event into its
// customer-safe projection.
type IngestEventMessage struct {
	RawEventID string
}

func (IngestEventMessage) Type() string { return TypeIngestEvent }

func (m IngestEventMessage) Validate() error {
	if strings.TrimSpace(m.RawEventID) == "" {
		return commandValidationError("raw_event_id", "raw event id is required")
	}
	return nil
}

// RecomputeStatusMessage re-derives a shipment's canonical status from
// its full redacted history.
type RecomputeStatusMessage struct {
	ShipmentID string
}

func (RecomputeStatusMessage) Type() string { return TypeRecomputeStatus }

func (m RecomputeStatusMessage) Validate() error {
	if strings.TrimSpace(m.ShipmentID) == "" {
		return commandValidationError("shipment_id", "shipment id is required")
	}
	return nil
}

// ReplayShipmentMessage regenerates a shipment's redacted history from
// its immutable raw events, re-running ingest for each one.
type ReplayShipmentMessage struct {
	ShipmentID string
}

func (ReplayShipmentMessage) Type() string { return TypeReplayShipment }

func (m ReplayShipmentMessage) Validate() error {
	if strings.TrimSpace(m.ShipmentID) == "" {
		return commandValidationError("shipment_id", "shipment id is required")
	}
	return nil
}
