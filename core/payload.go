package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventPayloadVersion identifies the current raw-event payload schema.
// Payloads are validated at the ingestion boundary; untyped provider
// JSON never travels past it.
const EventPayloadVersion = 1

// EventPayload is the normalized, versioned form a provider update is
// stored in. It is the only shape the ingest task will decode.
type EventPayload struct {
	Version         int       `json:"version"`
	StatusCode      string    `json:"status_code"`
	Message         string    `json:"message"`
	Location        string    `json:"location,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
	LastMileCarrier string    `json:"last_mile_carrier,omitempty"`
	LastMileNumber  string    `json:"last_mile_number,omitempty"`
	LastMileURL     string    `json:"last_mile_url,omitempty"`
}

func (p EventPayload) Validate() error {
	if p.Version != EventPayloadVersion {
		return NewBadInput(fmt.Sprintf("core: unsupported event payload version %d", p.Version))
	}
	if strings.TrimSpace(p.StatusCode) == "" {
		return NewBadInput("core: event payload status_code is required")
	}
	if p.OccurredAt.IsZero() {
		return NewBadInput("core: event payload occurred_at is required")
	}
	return nil
}

func (p EventPayload) Encode() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(p)
}

func DecodeEventPayload(data []byte) (EventPayload, error) {
	var payload EventPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return EventPayload{}, WrapBadInput(err, "core: decode event payload")
	}
	if err := payload.Validate(); err != nil {
		return EventPayload{}, err
	}
	return payload, nil
}
