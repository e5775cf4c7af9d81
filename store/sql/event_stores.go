package sqlstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-tracking/core"
)

// RawEventStore is the append-only provider fact log. Rows are never
// updated or deleted; the redacted history is regenerable from them.
// Appends dedupe on (shipment, provider, payload digest) so a redelivered
// or retried webhook batch cannot duplicate history.
type RawEventStore struct {
	db   *bun.DB
	repo repository.Repository[*rawEventRecord]
}

func NewRawEventStore(db *bun.DB) (*RawEventStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*rawEventRecord](db, rawEventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid raw event repository wiring: %w", err)
		}
	}
	return &RawEventStore{db: db, repo: repo}, nil
}

func (s *RawEventStore) Append(ctx context.Context, event core.RawEvent) (core.RawEvent, error) {
	if s == nil || s.repo == nil {
		return core.RawEvent{}, fmt.Errorf("sqlstore: raw event store is not configured")
	}
	shipmentID := strings.TrimSpace(event.ShipmentID)
	if shipmentID == "" {
		return core.RawEvent{}, core.NewBadInput("sqlstore: raw event shipment id is required")
	}
	if len(event.Payload) == 0 {
		return core.RawEvent{}, core.NewBadInput("sqlstore: raw event payload is required")
	}
	record := &rawEventRecord{
		ID:         strings.TrimSpace(event.ID),
		ShipmentID: shipmentID,
		Provider:   strings.TrimSpace(event.Provider),
		Payload:    append([]byte(nil), event.Payload...),
		Digest:     payloadDigest(event.Payload),
		OccurredAt: event.OccurredAt.UTC(),
		IngestedAt: time.Now().UTC(),
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		if isUniqueViolation(err) {
			existing, getErr := s.getByDigest(ctx, record.ShipmentID, record.Provider, record.Digest)
			if getErr == nil {
				return existing, nil
			}
		}
		return core.RawEvent{}, err
	}
	return created.toDomain(), nil
}

func (s *RawEventStore) getByDigest(ctx context.Context, shipmentID, provider, digest string) (core.RawEvent, error) {
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("shipment_id", "=", shipmentID),
		repository.SelectBy("provider", "=", provider),
		repository.SelectBy("digest", "=", digest),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.RawEvent{}, err
	}
	if len(records) == 0 {
		return core.RawEvent{}, core.NewNotFound(
			fmt.Sprintf("sqlstore: raw event with digest %q not found", digest),
		)
	}
	return records[0].toDomain(), nil
}

func payloadDigest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func (s *RawEventStore) Get(ctx context.Context, id string) (core.RawEvent, error) {
	if s == nil || s.repo == nil {
		return core.RawEvent{}, fmt.Errorf("sqlstore: raw event store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return core.RawEvent{}, asNotFound(err, fmt.Sprintf("sqlstore: raw event %q not found", id))
	}
	return record.toDomain(), nil
}

func (s *RawEventStore) ListByShipment(ctx context.Context, shipmentID string) ([]core.RawEvent, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: raw event store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("shipment_id", "=", strings.TrimSpace(shipmentID)),
		repository.OrderBy("occurred_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.RawEvent, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

// seqAssignAttempts bounds the retry loop for per-shipment sequence
// assignment under concurrent appends.
const seqAssignAttempts = 5

// RedactedEventStore holds the customer-safe projection, exactly one
// row per raw event. The unique raw_event_id constraint is what makes
// ingest re-runs harmless.
type RedactedEventStore struct {
	db   *bun.DB
	repo repository.Repository[*redactedEventRecord]
}

func NewRedactedEventStore(db *bun.DB) (*RedactedEventStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*redactedEventRecord](db, redactedEventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid redacted event repository wiring: %w", err)
		}
	}
	return &RedactedEventStore{db: db, repo: repo}, nil
}

func (s *RedactedEventStore) Append(ctx context.Context, event core.RedactedEvent) (core.RedactedEvent, bool, error) {
	if s == nil || s.db == nil {
		return core.RedactedEvent{}, false, fmt.Errorf("sqlstore: redacted event store is not configured")
	}
	shipmentID := strings.TrimSpace(event.ShipmentID)
	rawEventID := strings.TrimSpace(event.RawEventID)
	if shipmentID == "" || rawEventID == "" {
		return core.RedactedEvent{}, false, core.NewBadInput(
			"sqlstore: redacted event shipment id and raw event id are required",
		)
	}

	record := &redactedEventRecord{
		ID:         uuid.NewString(),
		ShipmentID: shipmentID,
		RawEventID: rawEventID,
		StatusCode: strings.TrimSpace(event.StatusCode),
		Message:    event.Message,
		City:       event.City,
		OccurredAt: event.OccurredAt.UTC(),
		CreatedAt:  time.Now().UTC(),
	}

	// The unique (shipment_id, seq) index turns a concurrent sequence
	// assignment into an insert conflict; losing writers re-read the
	// max and try again.
	for attempt := 0; attempt < seqAssignAttempts; attempt++ {
		err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			// The ingestion sequence is per shipment and assigned inside the
			// insert transaction so ties on occurred_at break deterministically.
			var maxSeq int64
			if err := tx.NewSelect().
				Model((*redactedEventRecord)(nil)).
				ColumnExpr("COALESCE(MAX(seq), 0)").
				Where("shipment_id = ?", shipmentID).
				Scan(ctx, &maxSeq); err != nil {
				return err
			}
			record.Seq = maxSeq + 1
			_, err := tx.NewInsert().Model(record).Exec(ctx)
			return err
		})
		if err == nil {
			return record.toDomain(), true, nil
		}
		if !isUniqueViolation(err) {
			return core.RedactedEvent{}, false, err
		}
		existing, getErr := s.getByRawEventID(ctx, rawEventID)
		if getErr == nil {
			return existing, false, nil
		}
		if !core.IsNotFound(getErr) {
			return core.RedactedEvent{}, false, getErr
		}
		// No row for this raw event, so the conflict was a sequence
		// collision with a concurrent append.
	}
	return core.RedactedEvent{}, false, fmt.Errorf(
		"sqlstore: could not assign redacted event sequence for shipment %q", shipmentID,
	)
}

func (s *RedactedEventStore) ListByShipment(ctx context.Context, shipmentID string) ([]core.RedactedEvent, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: redacted event store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("shipment_id", "=", strings.TrimSpace(shipmentID)),
		repository.OrderBy("occurred_at ASC, seq ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.RedactedEvent, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *RedactedEventStore) getByRawEventID(ctx context.Context, rawEventID string) (core.RedactedEvent, error) {
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("raw_event_id", "=", rawEventID),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.RedactedEvent{}, err
	}
	if len(records) == 0 {
		return core.RedactedEvent{}, core.NewNotFound(
			fmt.Sprintf("sqlstore: redacted event for raw event %q not found", rawEventID),
		)
	}
	return records[0].toDomain(), nil
}

var (
	_ core.RawEventStore      = (*RawEventStore)(nil)
	_ core.RedactedEventStore = (*RedactedEventStore)(nil)
)
