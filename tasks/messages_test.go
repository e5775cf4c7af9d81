package tasks

import (
	"testing"

	"github.com/goliatone/go-tracking/core"
)

func TestMessages_ExecutionRoundTrip(t *testing.T) {
	messages := []Message{
		RegisterMessage{ShipmentID: "ship-1"},
		IngestMessage{RawEventID: "raw-1"},
		RecomputeMessage{ShipmentID: "ship-1"},
	}
	for _, msg := range messages {
		execution := msg.Execution()
		if execution.JobID != msg.Type() {
			t.Fatalf("job id %q does not match message type %q", execution.JobID, msg.Type())
		}
		if execution.IdempotencyKey == "" {
			t.Fatalf("%s execution is missing its idempotency key", msg.Type())
		}
		decoded, err := Decode(execution)
		if err != nil {
			t.Fatalf("decode %s: %v", msg.Type(), err)
		}
		if decoded != msg {
			t.Fatalf("round trip changed the message: %+v != %+v", decoded, msg)
		}
	}
}

func TestMessages_ValidateRejectsEmptyIDs(t *testing.T) {
	invalid := []Message{
		RegisterMessage{},
		IngestMessage{RawEventID: "  "},
		RecomputeMessage{},
	}
	for _, msg := range invalid {
		if err := msg.Validate(); err == nil {
			t.Fatalf("%s must reject a blank id", msg.Type())
		}
	}
}

func TestDecode_UnknownJobID(t *testing.T) {
	_, err := Decode(&core.JobExecutionMessage{JobID: "tracking.unknown"})
	if err == nil {
		t.Fatalf("unknown job id must fail to decode")
	}
	if core.IsRetryable(err) {
		t.Fatalf("an unknown job id can never succeed on retry: %v", err)
	}
}

func TestDecode_NilMessage(t *testing.T) {
	if _, err := Decode(nil); err == nil {
		t.Fatalf("nil execution message must fail to decode")
	}
}

func TestMessages_DedupPolicies(t *testing.T) {
	if got := (RegisterMessage{ShipmentID: "s"}).Execution().DedupPolicy; got != "ignore" {
		t.Fatalf("register should drop duplicates, got %q", got)
	}
	if got := (IngestMessage{RawEventID: "r"}).Execution().DedupPolicy; got != "ignore" {
		t.Fatalf("ingest should drop duplicates, got %q", got)
	}
	if got := (RecomputeMessage{ShipmentID: "s"}).Execution().DedupPolicy; got != "replace" {
		t.Fatalf("recompute should coalesce to the latest signal, got %q", got)
	}
}
