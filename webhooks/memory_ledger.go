package webhooks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-tracking/core"
)

// InMemoryDeliveryLedger keeps delivery claims in process memory. It
// honors the same claim/lease/retry semantics as the SQL ledger and is
// meant for tests and single-process deployments without a database.
type InMemoryDeliveryLedger struct {
	mu      sync.Mutex
	entries map[string]DeliveryRecord
	claims  map[string]string
	nextID  int
	Now     func() time.Time
}

func NewInMemoryDeliveryLedger() *InMemoryDeliveryLedger {
	return &InMemoryDeliveryLedger{
		entries: map[string]DeliveryRecord{},
		claims:  map[string]string{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (l *InMemoryDeliveryLedger) Claim(
	_ context.Context,
	providerID string,
	deliveryID string,
	_ []byte,
	lease time.Duration,
) (DeliveryRecord, bool, error) {
	if l == nil {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: delivery ledger is nil")
	}
	providerID = strings.TrimSpace(providerID)
	deliveryID = strings.TrimSpace(deliveryID)
	if providerID == "" || deliveryID == "" {
		return DeliveryRecord{}, false, core.NewBadInput("webhooks: provider id and delivery id are required")
	}
	if lease <= 0 {
		lease = 30 * time.Second
	}
	now := l.now()
	key := providerID + ":" + deliveryID

	l.mu.Lock()
	defer l.mu.Unlock()
	entry, exists := l.entries[key]
	if !exists {
		record := DeliveryRecord{
			ID:         l.nextRecordID(),
			ProviderID: providerID,
			DeliveryID: deliveryID,
			Status:     DeliveryStatusProcessing,
			Attempts:   1,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		record.ClaimID = record.ID
		l.entries[key] = record
		l.claims[record.ClaimID] = key
		return record, true, nil
	}

	if !l.reclaimable(entry, now, lease) {
		return entry, false, nil
	}

	if entry.ClaimID != "" {
		delete(l.claims, entry.ClaimID)
	}
	entry.Status = DeliveryStatusProcessing
	entry.ClaimID = entry.ID
	entry.Attempts++
	entry.NextAttemptAt = nil
	entry.UpdatedAt = now
	l.entries[key] = entry
	l.claims[entry.ClaimID] = key
	return entry, true, nil
}

func (l *InMemoryDeliveryLedger) Get(_ context.Context, providerID string, deliveryID string) (DeliveryRecord, error) {
	if l == nil {
		return DeliveryRecord{}, fmt.Errorf("webhooks: delivery ledger is nil")
	}
	key := strings.TrimSpace(providerID) + ":" + strings.TrimSpace(deliveryID)

	l.mu.Lock()
	defer l.mu.Unlock()
	entry, exists := l.entries[key]
	if !exists {
		return DeliveryRecord{}, core.NewNotFound("webhooks: delivery not found")
	}
	return entry, nil
}

func (l *InMemoryDeliveryLedger) Complete(_ context.Context, claimID string) error {
	if l == nil {
		return fmt.Errorf("webhooks: delivery ledger is nil")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return core.NewBadInput("webhooks: claim id is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	key, ok := l.claims[claimID]
	if !ok {
		return core.NewNotFound("webhooks: claim not found")
	}
	entry := l.entries[key]
	entry.Status = DeliveryStatusProcessed
	entry.NextAttemptAt = nil
	entry.UpdatedAt = l.now()
	l.entries[key] = entry
	delete(l.claims, claimID)
	return nil
}

func (l *InMemoryDeliveryLedger) Fail(
	_ context.Context,
	claimID string,
	_ error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	if l == nil {
		return fmt.Errorf("webhooks: delivery ledger is nil")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return core.NewBadInput("webhooks: claim id is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	key, ok := l.claims[claimID]
	if !ok {
		return core.NewNotFound("webhooks: claim not found")
	}
	entry := l.entries[key]
	now := l.now()
	if maxAttempts > 0 && entry.Attempts >= maxAttempts {
		entry.Status = DeliveryStatusDead
		entry.NextAttemptAt = nil
	} else {
		if nextAttemptAt.IsZero() {
			nextAttemptAt = now
		}
		retryAt := nextAttemptAt.UTC()
		entry.Status = DeliveryStatusRetryReady
		entry.NextAttemptAt = &retryAt
	}
	entry.UpdatedAt = now
	l.entries[key] = entry
	delete(l.claims, claimID)
	return nil
}

func (l *InMemoryDeliveryLedger) reclaimable(entry DeliveryRecord, now time.Time, lease time.Duration) bool {
	switch entry.Status {
	case DeliveryStatusRetryReady:
		return entry.NextAttemptAt == nil || !now.Before(*entry.NextAttemptAt)
	case DeliveryStatusProcessing:
		// A processing claim past its lease belongs to a crashed worker.
		return now.After(entry.UpdatedAt.Add(lease))
	default:
		return false
	}
}

func (l *InMemoryDeliveryLedger) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func (l *InMemoryDeliveryLedger) nextRecordID() string {
	l.nextID++
	return fmt.Sprintf("delivery_%d", l.nextID)
}

var _ DeliveryLedger = (*InMemoryDeliveryLedger)(nil)
