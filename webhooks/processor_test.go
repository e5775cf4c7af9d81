package webhooks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-tracking/core"
)

func TestProcessor_DedupesDeliveries(t *testing.T) {
	ledger := newMemoryDeliveryLedger()
	handler := &stubWebhookHandler{
		result: core.InboundResult{Accepted: true, StatusCode: 202},
	}
	processor := NewProcessor(stubVerifier{}, ledger, handler)

	req := core.InboundRequest{
		ProviderID: core.ProviderShopify,
		Metadata:   map[string]any{"delivery_id": "delivery-1"},
	}

	first, err := processor.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process first webhook: %v", err)
	}
	if !first.Accepted {
		t.Fatalf("expected first delivery accepted")
	}
	if handler.calls != 1 {
		t.Fatalf("expected handler to be called once")
	}

	second, err := processor.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process duplicate webhook: %v", err)
	}
	if second.Metadata["deduped"] != true {
		t.Fatalf("expected deduped metadata marker")
	}
	if handler.calls != 1 {
		t.Fatalf("expected handler call count to remain unchanged for duplicate")
	}
}

func TestProcessor_DedupesByBodyDigestWhenNoDeliveryID(t *testing.T) {
	ledger := newMemoryDeliveryLedger()
	handler := &stubWebhookHandler{
		result: core.InboundResult{Accepted: true, StatusCode: 202},
	}
	processor := NewProcessor(stubVerifier{}, ledger, handler)

	req := core.InboundRequest{
		ProviderID: core.ProviderSeventeenTrack,
		Body:       []byte(`{"data":[{"number":"RR1","track":[]}]}`),
	}
	if _, err := processor.Process(context.Background(), req); err != nil {
		t.Fatalf("process webhook: %v", err)
	}
	if _, err := processor.Process(context.Background(), req); err != nil {
		t.Fatalf("process duplicate webhook: %v", err)
	}
	if handler.calls != 1 {
		t.Fatalf("expected identical bodies to dedupe, handler ran %d times", handler.calls)
	}
}

func TestProcessor_RecordsRetryOnHandlerFailure(t *testing.T) {
	ledger := newMemoryDeliveryLedger()
	handler := &stubWebhookHandler{err: errors.New("temporary failure")}
	processor := NewProcessor(stubVerifier{}, ledger, handler)
	processor.RetryPolicy = ExponentialRetryPolicy{Initial: time.Second, Max: 4 * time.Second}
	processor.Now = func() time.Time {
		return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	}

	req := core.InboundRequest{
		ProviderID: core.ProviderShopify,
		Metadata:   map[string]any{"delivery_id": "delivery-42"},
	}
	if _, err := processor.Process(context.Background(), req); err == nil {
		t.Fatalf("expected retryable handler failure")
	}

	record, err := ledger.Get(context.Background(), core.ProviderShopify, "delivery-42")
	if err != nil {
		t.Fatalf("load delivery record: %v", err)
	}
	if record.Status != DeliveryStatusRetryReady {
		t.Fatalf("expected retry-ready status, got %q", record.Status)
	}
	if record.NextAttemptAt == nil {
		t.Fatalf("expected next attempt time to be scheduled")
	}
}

func TestProcessor_RejectsInvalidSignature(t *testing.T) {
	ledger := newMemoryDeliveryLedger()
	handler := &stubWebhookHandler{}
	processor := NewProcessor(stubVerifier{err: errors.New("signature mismatch")}, ledger, handler)

	result, err := processor.Process(context.Background(), core.InboundRequest{
		ProviderID: core.ProviderShopify,
		Metadata:   map[string]any{"delivery_id": "delivery-2"},
	})
	if err == nil {
		t.Fatalf("expected verifier error")
	}
	if result.StatusCode != 401 {
		t.Fatalf("expected unauthorized status code, got %d", result.StatusCode)
	}
	if handler.calls != 0 {
		t.Fatalf("expected handler not to run when verification fails")
	}
	if len(ledger.records) != 0 {
		t.Fatalf("expected no delivery claim for rejected request")
	}
}

func TestExponentialRetryPolicy_CapsDelay(t *testing.T) {
	policy := ExponentialRetryPolicy{Initial: time.Second, Max: 8 * time.Second}
	if got := policy.NextDelay(1); got != time.Second {
		t.Fatalf("attempt 1 delay = %v", got)
	}
	if got := policy.NextDelay(3); got != 4*time.Second {
		t.Fatalf("attempt 3 delay = %v", got)
	}
	if got := policy.NextDelay(10); got != 8*time.Second {
		t.Fatalf("expected delay capped at max, got %v", got)
	}
}

type stubVerifier struct {
	err error
}

func (v stubVerifier) Verify(context.Context, core.InboundRequest) error {
	return v.err
}

type stubWebhookHandler struct {
	result core.InboundResult
	err    error
	calls  int
}

func (h *stubWebhookHandler) Handle(context.Context, core.InboundRequest) (core.InboundResult, error) {
	h.calls++
	if h.err != nil {
		return core.InboundResult{}, h.err
	}
	return h.result, nil
}

type memoryDeliveryLedger struct {
	records map[string]DeliveryRecord
}

func newMemoryDeliveryLedger() *memoryDeliveryLedger {
	return &memoryDeliveryLedger{records: map[string]DeliveryRecord{}}
}

func (l *memoryDeliveryLedger) Claim(
	_ context.Context,
	providerID string,
	deliveryID string,
	_ []byte,
	_ time.Duration,
) (DeliveryRecord, bool, error) {
	key := providerID + ":" + deliveryID
	if record, ok := l.records[key]; ok {
		return record, false, nil
	}
	now := time.Now().UTC()
	record := DeliveryRecord{
		ID:         key,
		ClaimID:    key,
		ProviderID: providerID,
		DeliveryID: deliveryID,
		Status:     DeliveryStatusProcessing,
		Attempts:   1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	l.records[key] = record
	return record, true, nil
}

func (l *memoryDeliveryLedger) Get(_ context.Context, providerID string, deliveryID string) (DeliveryRecord, error) {
	record, ok := l.records[providerID+":"+deliveryID]
	if !ok {
		return DeliveryRecord{}, errors.New("missing delivery")
	}
	return record, nil
}

func (l *memoryDeliveryLedger) Complete(_ context.Context, claimID string) error {
	record, ok := l.records[claimID]
	if !ok {
		return errors.New("missing claim")
	}
	record.Status = DeliveryStatusProcessed
	record.UpdatedAt = time.Now().UTC()
	l.records[claimID] = record
	return nil
}

func (l *memoryDeliveryLedger) Fail(
	_ context.Context,
	claimID string,
	_ error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	record, ok := l.records[claimID]
	if !ok {
		return errors.New("missing claim")
	}
	record.Attempts++
	record.Status = DeliveryStatusRetryReady
	if record.Attempts >= maxAttempts {
		record.Status = DeliveryStatusDead
	}
	record.NextAttemptAt = &nextAttemptAt
	record.UpdatedAt = time.Now().UTC()
	l.records[claimID] = record
	return nil
}
