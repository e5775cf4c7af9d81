package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type shopRecord struct {
	bun.BaseModel `bun:"table:tracking_shops,alias:ts"`

	ID         string    `bun:"id,pk"`
	Domain     string    `bun:"domain,notnull,unique"`
	Credential string    `bun:"credential,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type orderRecord struct {
	bun.BaseModel `bun:"table:tracking_orders,alias:to"`

	ID              string    `bun:"id,pk"`
	ShopID          string    `bun:"shop_id,notnull"`
	ExternalOrderID string    `bun:"external_order_id,notnull"`
	Name            string    `bun:"name"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type shipmentRecord struct {
	bun.BaseModel `bun:"table:tracking_shipments,alias:tsh"`

	ID              string    `bun:"id,pk"`
	ShopID          string    `bun:"shop_id,notnull"`
	OrderID         *string   `bun:"order_id"`
	TrackingNumber  string    `bun:"tracking_number,notnull"`
	CarrierHint     string    `bun:"carrier_hint"`
	Status          string    `bun:"status,notnull"`
	Registered      bool      `bun:"registered,notnull"`
	LastMileCarrier string    `bun:"last_mile_carrier"`
	LastMileNumber  string    `bun:"last_mile_number"`
	LastMileURL     string    `bun:"last_mile_url"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type rawEventRecord struct {
	bun.BaseModel `bun:"table:tracking_raw_events,alias:tre"`

	ID         string    `bun:"id,pk"`
	ShipmentID string    `bun:"shipment_id,notnull"`
	Provider   string    `bun:"provider,notnull"`
	Payload    []byte    `bun:"payload,notnull"`
	Digest     string    `bun:"digest,notnull"`
	OccurredAt time.Time `bun:"occurred_at,notnull"`
	IngestedAt time.Time `bun:"ingested_at,nullzero,notnull,default:current_timestamp"`
}

type redactedEventRecord struct {
	bun.BaseModel `bun:"table:tracking_redacted_events,alias:tde"`

	ID         string    `bun:"id,pk"`
	ShipmentID string    `bun:"shipment_id,notnull"`
	RawEventID string    `bun:"raw_event_id,notnull,unique"`
	StatusCode string    `bun:"status_code,notnull"`
	Message    string    `bun:"message,notnull"`
	City       string    `bun:"city"`
	OccurredAt time.Time `bun:"occurred_at,notnull"`
	Seq        int64     `bun:"seq,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type webhookDeliveryRecord struct {
	bun.BaseModel `bun:"table:tracking_webhook_deliveries,alias:twd"`

	ID            string     `bun:"id,pk"`
	ProviderID    string     `bun:"provider_id,notnull"`
	DeliveryID    string     `bun:"delivery_id,notnull"`
	Status        string     `bun:"status,notnull"`
	Attempts      int        `bun:"attempts,notnull"`
	NextAttemptAt *time.Time `bun:"next_attempt_at,nullzero"`
	LastError     string     `bun:"last_error"`
	Payload       []byte     `bun:"payload"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
