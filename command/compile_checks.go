package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[RegisterShipmentMessage] = (*RegisterShipmentCommand)(nil)
	_ gocmd.Commander[IngestEventMessage]      = (*IngestEventCommand)(nil)
	_ gocmd.Commander[RecomputeStatusMessage]  = (*RecomputeStatusCommand)(nil)
	_ gocmd.Commander[ReplayShipmentMessage]   = (*ReplayShipmentCommand)(nil)
)
