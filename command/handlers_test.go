package command

import (
	"context"
	"errors"
	"testing"
)

type stubService struct {
	registerCalls  int
	ingestCalls    int
	recomputeCalls int
	replayCalls    int
	lastShipmentID string
	lastRawEventID string
	replayCount    int
	err            error
}

func (s *stubService) RegisterShipment(_ context.Context, shipmentID string) error {
	s.registerCalls++
	s.lastShipmentID = shipmentID
	return s.err
}

func (s *stubService) IngestEvent(_ context.Context, rawEventID string) error {
	s.ingestCalls++
	s.lastRawEventID = rawEventID
	return s.err
}

func (s *stubService) RecomputeStatus(_ context.Context, shipmentID string) error {
	s.recomputeCalls++
	s.lastShipmentID = shipmentID
	return s.err
}

func (s *stubService) ReplayShipment(_ context.Context, shipmentID string) (int, error) {
	s.replayCalls++
	s.lastShipmentID = shipmentID
	return s.replayCount, s.err
}

func TestRegisterShipmentCommand_DelegatesToService(t *testing.T) {
	svc := &stubService{}
	cmd := NewRegisterShipmentCommand(svc)

	if err := cmd.Execute(context.Background(), RegisterShipmentMessage{ShipmentID: "ship-1"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if svc.registerCalls != 1 || svc.lastShipmentID != "ship-1" {
		t.Fatalf("expected register delegation, got calls=%d id=%q", svc.registerCalls, svc.lastShipmentID)
	}
}

func TestIngestEventCommand_DelegatesToService(t *testing.T) {
	svc := &stubService{}
	cmd := NewIngestEventCommand(svc)

	if err := cmd.Execute(context.Background(), IngestEventMessage{RawEventID: "raw-1"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if svc.ingestCalls != 1 || svc.lastRawEventID != "raw-1" {
		t.Fatalf("expected ingest delegation, got calls=%d id=%q", svc.ingestCalls, svc.lastRawEventID)
	}
}

func TestRecomputeStatusCommand_SurfacesServiceError(t *testing.T) {
	svc := &stubService{err: errors.New("store offline")}
	cmd := NewRecomputeStatusCommand(svc)

	err := cmd.Execute(context.Background(), RecomputeStatusMessage{ShipmentID: "ship-1"})
	if err == nil || err.Error() != "store offline" {
		t.Fatalf("expected service error to surface unmodified, got %v", err)
	}
}

func TestReplayShipmentCommand_DelegatesToService(t *testing.T) {
	svc := &stubService{replayCount: 3}
	cmd := NewReplayShipmentCommand(svc)

	if err := cmd.Execute(context.Background(), ReplayShipmentMessage{ShipmentID: "ship-1"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if svc.replayCalls != 1 || svc.lastShipmentID != "ship-1" {
		t.Fatalf("expected replay delegation, got calls=%d id=%q", svc.replayCalls, svc.lastShipmentID)
	}
}

func TestMessageTypesAreStable(t *testing.T) {
	cases := map[string]string{
		RegisterShipmentMessage{}.Type(): TypeRegisterShipment,
		IngestEventMessage{}.Type():      TypeIngestEvent,
		RecomputeStatusMessage{}.Type():  TypeRecomputeStatus,
		ReplayShipmentMessage{}.Type():   TypeReplayShipment,
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("expected message type %q, got %q", want, got)
		}
	}
}
