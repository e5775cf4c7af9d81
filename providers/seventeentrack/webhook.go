package seventeentrack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-tracking/core"
	"github.com/goliatone/go-tracking/tasks"
)

// TrackingEvent is one provider-reported progress update, already
// flattened out of the webhook envelope.
type TrackingEvent struct {
	TrackingNumber string
	StatusCode     string
	Message        string
	Location       string
	OccurredAt     time.Time
	LastMile       core.LastMile
}

type webhookEnvelope struct {
	Event string        `json:"event"`
	Data  []webhookItem `json:"data"`
}

type webhookItem struct {
	Number string         `json:"number"`
	Track  []webhookTrack `json:"track"`
}

// The provider's wire format uses single-letter keys: z and c carry the
// event description, a the location/timestamp. The long names are
// accepted as fallbacks for replayed or normalized payloads.
type webhookTrack struct {
	Event       string           `json:"event"`
	Status      string           `json:"status"`
	Z           string           `json:"z"`
	C           string           `json:"c"`
	A           string           `json:"a"`
	Description string           `json:"description"`
	Location    string           `json:"location"`
	Time        string           `json:"time"`
	LastMile    *webhookLastMile `json:"last_mile"`
}

type webhookLastMile struct {
	Carrier string `json:"carrier"`
	Number  string `json:"number"`
	URL     string `json:"url"`
}

// ParseWebhookPayload flattens a webhook body into tracking events.
// Entries without a tracking number are dropped; a missing or
// unparseable timestamp falls back to now so the event is still
// ordered into the history rather than lost.
func ParseWebhookPayload(body []byte, now func() time.Time) ([]TrackingEvent, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, core.WrapBadInput(err, "providers/seventeentrack: decode webhook payload")
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	var events []TrackingEvent
	for _, item := range envelope.Data {
		number := strings.TrimSpace(item.Number)
		if number == "" {
			continue
		}
		for _, track := range item.Track {
			statusCode := strings.TrimSpace(track.Event)
			if statusCode == "" {
				statusCode = strings.TrimSpace(track.Status)
			}
			if statusCode == "" {
				statusCode = "Unknown"
			}

			message := strings.TrimSpace(track.Z)
			if message == "" {
				message = strings.TrimSpace(track.C)
			}
			if message == "" {
				message = strings.TrimSpace(track.Description)
			}

			location := strings.TrimSpace(track.A)
			if location == "" {
				location = strings.TrimSpace(track.Location)
			}

			occurredAt := now()
			for _, raw := range []string{track.A, track.Time} {
				if parsed, ok := parseEventTime(raw); ok {
					occurredAt = parsed
					break
				}
			}

			event := TrackingEvent{
				TrackingNumber: number,
				StatusCode:     statusCode,
				Message:        message,
				Location:       location,
				OccurredAt:     occurredAt,
			}
			if track.LastMile != nil {
				event.LastMile = core.LastMile{
					Carrier: strings.TrimSpace(track.LastMile.Carrier),
					Number:  strings.TrimSpace(track.LastMile.Number),
					URL:     strings.TrimSpace(track.LastMile.URL),
				}
			}
			events = append(events, event)
		}
	}
	return events, nil
}

func parseEventTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

// EventHandler processes a verified provider webhook: append each event
// to the raw history of the shipment it names and signal ingestion.
// Events for unknown tracking numbers are logged and skipped, the
// provider pushes for numbers registered by other consumers too.
type EventHandler struct {
	Shipments core.ShipmentStore
	RawEvents core.RawEventStore
	Enqueuer  core.JobEnqueuer
	Logger    core.Logger
	Now       func() time.Time
}

var _ core.WebhookHandler = (*EventHandler)(nil)

func NewEventHandler(
	shipments core.ShipmentStore,
	rawEvents core.RawEventStore,
	enqueuer core.JobEnqueuer,
	logger core.Logger,
) *EventHandler {
	return &EventHandler{
		Shipments: shipments,
		RawEvents: rawEvents,
		Enqueuer:  enqueuer,
		Logger:    logger,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (h *EventHandler) Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if h == nil || h.Shipments == nil || h.RawEvents == nil || h.Enqueuer == nil {
		return core.InboundResult{}, fmt.Errorf("providers/seventeentrack: event handler requires stores and enqueuer")
	}

	events, err := ParseWebhookPayload(req.Body, h.Now)
	if err != nil {
		return core.InboundResult{}, err
	}

	stored := 0
	skipped := 0
	for _, event := range events {
		shipment, err := h.Shipments.GetByTrackingNumber(ctx, event.TrackingNumber)
		if err != nil {
			if core.IsNotFound(err) {
				skipped++
				h.logError("tracking event for unknown shipment", "tracking_number", event.TrackingNumber)
				continue
			}
			return core.InboundResult{}, err
		}

		payload, err := core.EventPayload{
			Version:         core.EventPayloadVersion,
			StatusCode:      event.StatusCode,
			Message:         event.Message,
			Location:        event.Location,
			OccurredAt:      event.OccurredAt,
			LastMileCarrier: event.LastMile.Carrier,
			LastMileNumber:  event.LastMile.Number,
			LastMileURL:     event.LastMile.URL,
		}.Encode()
		if err != nil {
			return core.InboundResult{}, err
		}

		raw, err := h.RawEvents.Append(ctx, core.RawEvent{
			ID:         uuid.NewString(),
			ShipmentID: shipment.ID,
			Provider:   ProviderID,
			Payload:    payload,
			OccurredAt: event.OccurredAt,
		})
		if err != nil {
			return core.InboundResult{}, err
		}
		if err := h.Enqueuer.Enqueue(ctx, tasks.IngestMessage{RawEventID: raw.ID}.Execution()); err != nil {
			return core.InboundResult{}, err
		}
		stored++
	}

	h.logInfo("provider webhook processed", "events", len(events), "stored", stored, "skipped", skipped)
	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Metadata: map[string]any{
			"events":  len(events),
			"stored":  stored,
			"skipped": skipped,
		},
	}, nil
}

func (h *EventHandler) logInfo(msg string, args ...any) {
	if h != nil && h.Logger != nil {
		h.Logger.Info(msg, args...)
	}
}

func (h *EventHandler) logError(msg string, args ...any) {
	if h != nil && h.Logger != nil {
		h.Logger.Error(msg, args...)
	}
}
