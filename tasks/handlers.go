package tasks

import (
	"context"
	"fmt"

	"github.com/goliatone/go-tracking/core"
	"github.com/goliatone/go-tracking/redaction"
	"github.com/goliatone/go-tracking/status"
)

// RegisterTask announces a shipment's tracking number to the tracking
// provider. The task is re-runnable: the registered flag is rechecked
// before the external call, so repeated delivery after first success
// is a no-op.
type RegisterTask struct {
	Shipments core.ShipmentStore
	Registrar core.RegistrationClient
	Logger    core.Logger
}

func NewRegisterTask(shipments core.ShipmentStore, registrar core.RegistrationClient, logger core.Logger) *RegisterTask {
	return &RegisterTask{Shipments: shipments, Registrar: registrar, Logger: logger}
}

func (t *RegisterTask) Execute(ctx context.Context, msg RegisterMessage) error {
	if t == nil || t.Shipments == nil || t.Registrar == nil {
		return fmt.Errorf("tasks: register task requires shipment store and registration client")
	}
	if err := msg.Validate(); err != nil {
		return core.WrapBadInput(err, "tasks: register message invalid")
	}

	shipment, err := t.Shipments.Get(ctx, msg.ShipmentID)
	if err != nil {
		if core.IsNotFound(err) {
			t.logError("shipment not found for registration", "shipment_id", msg.ShipmentID)
			return nil
		}
		return err
	}

	if shipment.Registered {
		t.logInfo("shipment already registered with provider", "shipment_id", shipment.ID)
		return nil
	}

	// The client error is surfaced unmodified so the retry policy can
	// distinguish transient from permanent failures.
	if err := t.Registrar.Register(ctx, shipment.TrackingNumber, shipment.CarrierHint); err != nil {
		t.logError("provider registration failed", "shipment_id", shipment.ID, "error", err)
		return err
	}

	if err := t.Shipments.MarkRegistered(ctx, shipment.ID); err != nil {
		return err
	}
	t.logInfo("shipment registered with provider", "shipment_id", shipment.ID)
	return nil
}

// IngestTask turns exactly one raw event into its redacted projection
// and signals a status recompute. Duplicate delivery cannot create a
// second redacted row: the store dedupes on the raw event id.
type IngestTask struct {
	RawEvents      core.RawEventStore
	RedactedEvents core.RedactedEventStore
	Enqueuer       core.JobEnqueuer
	Logger         core.Logger
}

func NewIngestTask(
	rawEvents core.RawEventStore,
	redactedEvents core.RedactedEventStore,
	enqueuer core.JobEnqueuer,
	logger core.Logger,
) *IngestTask {
	return &IngestTask{
		RawEvents:      rawEvents,
		RedactedEvents: redactedEvents,
		Enqueuer:       enqueuer,
		Logger:         logger,
	}
}

func (t *IngestTask) Execute(ctx context.Context, msg IngestMessage) error {
	if t == nil || t.RawEvents == nil || t.RedactedEvents == nil || t.Enqueuer == nil {
		return fmt.Errorf("tasks: ingest task requires event stores and enqueuer")
	}
	if err := msg.Validate(); err != nil {
		return core.WrapBadInput(err, "tasks: ingest message invalid")
	}

	raw, err := t.RawEvents.Get(ctx, msg.RawEventID)
	if err != nil {
		if core.IsNotFound(err) {
			// Lost race or bad reference; retrying cannot make the row
			// appear, so stop here.
			t.logError("raw event not found for ingest", "raw_event_id", msg.RawEventID)
			return nil
		}
		return err
	}

	payload, err := core.DecodeEventPayload(raw.Payload)
	if err != nil {
		return err
	}

	message := redaction.ApplyRedaction(payload.Message)
	city := ""
	if payload.Location != "" {
		city = redaction.ApplyRedaction(payload.Location)
	}

	if err := redaction.VerifyClean(message); err != nil {
		return err
	}
	if err := redaction.VerifyClean(city); err != nil {
		return err
	}

	redacted := core.RedactedEvent{
		ShipmentID: raw.ShipmentID,
		RawEventID: raw.ID,
		StatusCode: payload.StatusCode,
		Message:    message,
		City:       city,
		OccurredAt: payload.OccurredAt,
	}
	_, created, err := t.RedactedEvents.Append(ctx, redacted)
	if err != nil {
		return err
	}
	if !created {
		t.logInfo("raw event already ingested", "raw_event_id", raw.ID, "shipment_id", raw.ShipmentID)
	}

	// Recompute is signalled even on the duplicate path: the task is
	// idempotent and the earlier signal may have been lost.
	return t.Enqueuer.Enqueue(ctx, RecomputeMessage{ShipmentID: raw.ShipmentID}.Execution())
}

// RecomputeTask re-derives the canonical status from the full redacted
// history and persists it only when it changed. Concurrent recomputes
// are last-writer-wins: status is a pure function of persisted events,
// so the latest run dominates.
type RecomputeTask struct {
	Shipments      core.ShipmentStore
	RawEvents      core.RawEventStore
	RedactedEvents core.RedactedEventStore
	Logger         core.Logger
}

func NewRecomputeTask(
	shipments core.ShipmentStore,
	rawEvents core.RawEventStore,
	redactedEvents core.RedactedEventStore,
	logger core.Logger,
) *RecomputeTask {
	return &RecomputeTask{
		Shipments:      shipments,
		RawEvents:      rawEvents,
		RedactedEvents: redactedEvents,
		Logger:         logger,
	}
}

func (t *RecomputeTask) Execute(ctx context.Context, msg RecomputeMessage) error {
	if t == nil || t.Shipments == nil || t.RedactedEvents == nil {
		return fmt.Errorf("tasks: recompute task requires shipment and redacted event stores")
	}
	if err := msg.Validate(); err != nil {
		return core.WrapBadInput(err, "tasks: recompute message invalid")
	}

	shipment, err := t.Shipments.Get(ctx, msg.ShipmentID)
	if err != nil {
		if core.IsNotFound(err) {
			t.logError("shipment not found for status recompute", "shipment_id", msg.ShipmentID)
			return nil
		}
		return err
	}

	events, err := t.RedactedEvents.ListByShipment(ctx, shipment.ID)
	if err != nil {
		return err
	}

	next := status.DetermineCanonicalStatus(events)
	changed, err := t.Shipments.UpdateStatus(ctx, shipment.ID, next)
	if err != nil {
		return err
	}
	if changed {
		t.logInfo("shipment status updated", "shipment_id", shipment.ID, "status", string(next))
	}

	if t.RawEvents != nil && shipment.LastMile.Empty() {
		raws, err := t.RawEvents.ListByShipment(ctx, shipment.ID)
		if err != nil {
			return err
		}
		if lastMile, ok := status.ExtractLastMile(raws); ok {
			if err := t.Shipments.UpdateLastMile(ctx, shipment.ID, lastMile); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *RegisterTask) logInfo(msg string, args ...any) {
	if t != nil && t.Logger != nil {
		t.Logger.Info(msg, args...)
	}
}

func (t *RegisterTask) logError(msg string, args ...any) {
	if t != nil && t.Logger != nil {
		t.Logger.Error(msg, args...)
	}
}

func (t *IngestTask) logInfo(msg string, args ...any) {
	if t != nil && t.Logger != nil {
		t.Logger.Info(msg, args...)
	}
}

func (t *IngestTask) logError(msg string, args ...any) {
	if t != nil && t.Logger != nil {
		t.Logger.Error(msg, args...)
	}
}

func (t *RecomputeTask) logInfo(msg string, args ...any) {
	if t != nil && t.Logger != nil {
		t.Logger.Info(msg, args...)
	}
}

func (t *RecomputeTask) logError(msg string, args ...any) {
	if t != nil && t.Logger != nil {
		t.Logger.Error(msg, args...)
	}
}
