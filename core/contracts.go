package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Logger mirrors the glog contract so packages depend on core only.
type Logger = glog.Logger

// LoggerProvider mirrors the glog provider contract.
type LoggerProvider = glog.LoggerProvider

// FieldsLogger mirrors the glog structured-fields contract.
type FieldsLogger = glog.FieldsLogger

type ShopStore interface {
	GetByDomain(ctx context.Context, domain string) (Shop, error)
	Create(ctx context.Context, shop Shop) (Shop, error)
}

type OrderStore interface {
	Get(ctx context.Context, id string) (Order, error)
	Upsert(ctx context.Context, order Order) (Order, error)
}

// ShipmentStore persists shipments. UpdateStatus implementations must
// skip the write entirely when the stored status already equals the
// requested one.
type ShipmentStore interface {
	Get(ctx context.Context, id string) (Shipment, error)
	GetByTrackingNumber(ctx context.Context, trackingNumber string) (Shipment, error)
	GetByShopAndNumber(ctx context.Context, shopID string, trackingNumber string) (Shipment, error)
	Create(ctx context.Context, shipment Shipment) (Shipment, error)
	MarkRegistered(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status CanonicalStatus) (bool, error)
	UpdateLastMile(ctx context.Context, id string, lastMile LastMile) error
}

// RawEventStore is append-only; rows are never mutated or deleted.
type RawEventStore interface {
	Append(ctx context.Context, event RawEvent) (RawEvent, error)
	Get(ctx context.Context, id string) (RawEvent, error)
	ListByShipment(ctx context.Context, shipmentID string) ([]RawEvent, error)
}

// RedactedEventStore derives one row per raw event. Append must be
// idempotent on RawEventID: a second append for the same raw event
// reports created=false and leaves the original row untouched.
type RedactedEventStore interface {
	Append(ctx context.Context, event RedactedEvent) (RedactedEvent, bool, error)
	ListByShipment(ctx context.Context, shipmentID string) ([]RedactedEvent, error)
}

// RegistrationClient registers a tracking number with the upstream
// tracking provider. Transport and non-2xx failures are retryable.
type RegistrationClient interface {
	Register(ctx context.Context, trackingNumber string, carrierHint string) error
}

type InboundRequest struct {
	ProviderID string
	Surface    string
	Headers    map[string]string
	Query      map[string][]string
	Body       []byte
	Metadata   map[string]any
}

type InboundResult struct {
	Accepted   bool
	StatusCode int
	Metadata   map[string]any
}

type WebhookHandler interface {
	Handle(ctx context.Context, req InboundRequest) (InboundResult, error)
}

type InboundHandler interface {
	Surface() string
	Handle(ctx context.Context, req InboundRequest) (InboundResult, error)
}

type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// StoreProvider exposes the persistence surface the pipeline needs
// without binding callers to the SQL implementation.
type StoreProvider interface {
	ShopStore() ShopStore
	OrderStore() OrderStore
	ShipmentStore() ShipmentStore
	RawEventStore() RawEventStore
	RedactedEventStore() RedactedEventStore
}
