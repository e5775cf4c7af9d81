package tasks

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-tracking/core"
)

const (
	JobIDRegister  = "tracking.register"
	JobIDIngest    = "tracking.event.ingest"
	JobIDRecompute = "tracking.status.recompute"
)

// Message is the closed set of pipeline task kinds. Adding a kind
// means adding a typed message here and a case to the runner's
// dispatch, both compile-checked.
type Message interface {
	Type() string
	Validate() error
	Execution() *core.JobExecutionMessage
}

// RegisterMessage asks the register task to announce a shipment to the
// tracking provider.
type RegisterMessage struct {
	ShipmentID string
}

func (RegisterMessage) Type() string { return JobIDRegister }

func (m RegisterMessage) Validate() error {
	if strings.TrimSpace(m.ShipmentID) == "" {
		return fmt.Errorf("tasks: shipment id is required")
	}
	return nil
}

func (m RegisterMessage) Execution() *core.JobExecutionMessage {
	shipmentID := strings.TrimSpace(m.ShipmentID)
	return &core.JobExecutionMessage{
		JobID:          JobIDRegister,
		Parameters:     map[string]any{"shipment_id": shipmentID},
		IdempotencyKey: "register:" + shipmentID,
		DedupPolicy:    "ignore",
	}
}

// IngestMessage asks the ingest task to redact one raw event.
type IngestMessage struct {
	RawEventID string
}

func (IngestMessage) Type() string { return JobIDIngest }

func (m IngestMessage) Validate() error {
	if strings.TrimSpace(m.RawEventID) == "" {
		return fmt.Errorf("tasks: raw event id is required")
	}
	return nil
}

func (m IngestMessage) Execution() *core.JobExecutionMessage {
	rawEventID := strings.TrimSpace(m.RawEventID)
	return &core.JobExecutionMessage{
		JobID:          JobIDIngest,
		Parameters:     map[string]any{"raw_event_id": rawEventID},
		IdempotencyKey: "ingest:" + rawEventID,
		DedupPolicy:    "ignore",
	}
}

// RecomputeMessage asks the recompute task to re-derive a shipment's
// canonical status from its full redacted history.
type RecomputeMessage struct {
	ShipmentID string
}

func (RecomputeMessage) Type() string { return JobIDRecompute }

func (m RecomputeMessage) Validate() error {
	if strings.TrimSpace(m.ShipmentID) == "" {
		return fmt.Errorf("tasks: shipment id is required")
	}
	return nil
}

func (m RecomputeMessage) Execution() *core.JobExecutionMessage {
	shipmentID := strings.TrimSpace(m.ShipmentID)
	return &core.JobExecutionMessage{
		JobID:          JobIDRecompute,
		Parameters:     map[string]any{"shipment_id": shipmentID},
		IdempotencyKey: "recompute:" + shipmentID,
		DedupPolicy:    "replace",
	}
}

// Decode maps a queue execution message back into its typed task
// message. Unknown job ids are rejected so the runner can dead-letter
// them instead of guessing.
func Decode(msg *core.JobExecutionMessage) (Message, error) {
	if msg == nil {
		return nil, core.NewBadInput("tasks: execution message is required")
	}
	switch strings.TrimSpace(msg.JobID) {
	case JobIDRegister:
		decoded := RegisterMessage{ShipmentID: stringParam(msg.Parameters, "shipment_id")}
		if err := decoded.Validate(); err != nil {
			return nil, core.WrapBadInput(err, "tasks: decode register message")
		}
		return decoded, nil
	case JobIDIngest:
		decoded := IngestMessage{RawEventID: stringParam(msg.Parameters, "raw_event_id")}
		if err := decoded.Validate(); err != nil {
			return nil, core.WrapBadInput(err, "tasks: decode ingest message")
		}
		return decoded, nil
	case JobIDRecompute:
		decoded := RecomputeMessage{ShipmentID: stringParam(msg.Parameters, "shipment_id")}
		if err := decoded.Validate(); err != nil {
			return nil, core.WrapBadInput(err, "tasks: decode recompute message")
		}
		return decoded, nil
	default:
		return nil, core.NewBadInput(fmt.Sprintf("tasks: unknown job id %q", msg.JobID))
	}
}

func stringParam(params map[string]any, key string) string {
	if len(params) == 0 {
		return ""
	}
	value, ok := params[key]
	if !ok {
		return ""
	}
	text, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(text)
}
