// Package command exposes the mutating pipeline operations as
// go-command messages so operators and inbound surfaces can dispatch
// them through the shared bus.
package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
)

// MutatingService is the pipeline surface the commands delegate to.
// The root facade implements it on top of the task handlers.
type MutatingService interface {
	RegisterShipment(ctx context.Context, shipmentID string) error
	IngestEvent(ctx context.Context, rawEventID string) error
	RecomputeStatus(ctx context.Context, shipmentID string) error
	ReplayShipment(ctx context.Context, shipmentID string) (int, error)
}

type RegisterShipmentCommand struct {
	service MutatingService
}

func NewRegisterShipmentCommand(service MutatingService) *RegisterShipmentCommand {
	return &RegisterShipmentCommand{service: service}
}

func (c *RegisterShipmentCommand) Execute(ctx context.Context, msg RegisterShipmentMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: register shipment service is required")
	}
	return c.service.RegisterShipment(ctx, msg.ShipmentID)
}

type IngestEventCommand struct {
	service MutatingService
}

func NewIngestEventCommand(service MutatingService) *IngestEventCommand {
	return &IngestEventCommand{service: service}
}

func (c *IngestEventCommand) Execute(ctx context.Context, msg IngestEventMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: ingest service is required")
	}
	return c.service.IngestEvent(ctx, msg.RawEventID)
}

type RecomputeStatusCommand struct {
	service MutatingService
}

func NewRecomputeStatusCommand(service MutatingService) *RecomputeStatusCommand {
	return &RecomputeStatusCommand{service: service}
}

func (c *RecomputeStatusCommand) Execute(ctx context.Context, msg RecomputeStatusMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: recompute service is required")
	}
	return c.service.RecomputeStatus(ctx, msg.ShipmentID)
}

type ReplayShipmentCommand struct {
	service MutatingService
}

func NewReplayShipmentCommand(service MutatingService) *ReplayShipmentCommand {
	return &ReplayShipmentCommand{service: service}
}

func (c *ReplayShipmentCommand) Execute(ctx context.Context, msg ReplayShipmentMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: replay service is required")
	}
	count, err := c.service.ReplayShipment(ctx, msg.ShipmentID)
	if err != nil {
		return err
	}
	storeResult(ctx, count)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
