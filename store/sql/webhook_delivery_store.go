package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-tracking/core"
	"github.com/goliatone/go-tracking/webhooks"
)

// WebhookDeliveryStore is the durable dedup ledger for inbound
// deliveries. One row per (provider, delivery id); the row id doubles
// as the claim id.
type WebhookDeliveryStore struct {
	db  *bun.DB
	now func() time.Time
}

func NewWebhookDeliveryStore(db *bun.DB) (*WebhookDeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &WebhookDeliveryStore{
		db: db,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// Claim reserves a delivery for processing. The first caller wins; a
// second claim succeeds only once the delivery is retry-ready or its
// processing lease expired.
func (s *WebhookDeliveryStore) Claim(
	ctx context.Context,
	providerID string,
	deliveryID string,
	payload []byte,
	lease time.Duration,
) (webhooks.DeliveryRecord, bool, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	providerID = strings.TrimSpace(providerID)
	deliveryID = strings.TrimSpace(deliveryID)
	if providerID == "" || deliveryID == "" {
		return webhooks.DeliveryRecord{}, false, core.NewBadInput(
			"sqlstore: provider id and delivery id are required",
		)
	}
	if lease <= 0 {
		lease = 30 * time.Second
	}

	now := s.now()
	record := &webhookDeliveryRecord{
		ID:         uuid.NewString(),
		ProviderID: providerID,
		DeliveryID: deliveryID,
		Status:     webhooks.DeliveryStatusProcessing,
		Attempts:   1,
		Payload:    append([]byte(nil), payload...),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err == nil {
		return deliveryToDomain(record), true, nil
	} else if !isUniqueViolation(err) {
		return webhooks.DeliveryRecord{}, false, err
	}

	existing, err := s.Get(ctx, providerID, deliveryID)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}

	reclaimable := false
	switch existing.Status {
	case webhooks.DeliveryStatusRetryReady:
		reclaimable = existing.NextAttemptAt == nil || !existing.NextAttemptAt.After(now)
	case webhooks.DeliveryStatusProcessing:
		reclaimable = existing.UpdatedAt.Add(lease).Before(now)
	}
	if !reclaimable {
		return existing, false, nil
	}

	result, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusProcessing).
		Set("attempts = attempts + 1").
		Set("updated_at = ?", now).
		Where("id = ?", existing.ID).
		Where("status = ?", existing.Status).
		Where("updated_at = ?", existing.UpdatedAt).
		Exec(ctx)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	if affected, err := result.RowsAffected(); err != nil || affected == 0 {
		// Another worker won the reclaim race.
		return existing, false, err
	}

	existing.Status = webhooks.DeliveryStatusProcessing
	existing.Attempts++
	existing.UpdatedAt = now
	return existing, true, nil
}

func (s *WebhookDeliveryStore) Get(
	ctx context.Context,
	providerID string,
	deliveryID string,
) (webhooks.DeliveryRecord, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	record := &webhookDeliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.provider_id = ?", strings.TrimSpace(providerID)).
		Where("?TableAlias.delivery_id = ?", strings.TrimSpace(deliveryID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return webhooks.DeliveryRecord{}, core.NewNotFound(fmt.Sprintf(
				"sqlstore: webhook delivery not found for provider %q delivery %q",
				providerID, deliveryID,
			))
		}
		return webhooks.DeliveryRecord{}, err
	}
	return deliveryToDomain(record), nil
}

func (s *WebhookDeliveryStore) Complete(ctx context.Context, claimID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	_, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusProcessed).
		Set("next_attempt_at = NULL").
		Set("last_error = ''").
		Set("updated_at = ?", s.now()).
		Where("id = ?", strings.TrimSpace(claimID)).
		Exec(ctx)
	return err
}

// Fail records a handler failure: schedule a retry, or park the
// delivery as dead once the attempt budget is spent.
func (s *WebhookDeliveryStore) Fail(
	ctx context.Context,
	claimID string,
	cause error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return core.NewBadInput("sqlstore: claim id is required")
	}
	if maxAttempts <= 0 {
		maxAttempts = 8
	}
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}

	record := &webhookDeliveryRecord{}
	if err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", claimID).
		Limit(1).
		Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.NewNotFound(fmt.Sprintf("sqlstore: webhook delivery claim %q not found", claimID))
		}
		return err
	}

	status := webhooks.DeliveryStatusRetryReady
	if record.Attempts >= maxAttempts {
		status = webhooks.DeliveryStatusDead
	}
	query := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", status).
		Set("last_error = ?", reason).
		Set("updated_at = ?", s.now()).
		Where("id = ?", claimID)
	if status == webhooks.DeliveryStatusRetryReady {
		query = query.Set("next_attempt_at = ?", nextAttemptAt.UTC())
	} else {
		query = query.Set("next_attempt_at = NULL")
	}
	_, err := query.Exec(ctx)
	return err
}

func deliveryToDomain(record *webhookDeliveryRecord) webhooks.DeliveryRecord {
	if record == nil {
		return webhooks.DeliveryRecord{}
	}
	result := webhooks.DeliveryRecord{
		ID:         record.ID,
		ClaimID:    record.ID,
		ProviderID: record.ProviderID,
		DeliveryID: record.DeliveryID,
		Status:     record.Status,
		Attempts:   record.Attempts,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
	if record.NextAttemptAt != nil {
		value := *record.NextAttemptAt
		result.NextAttemptAt = &value
	}
	return result
}

var _ webhooks.DeliveryLedger = (*WebhookDeliveryStore)(nil)
