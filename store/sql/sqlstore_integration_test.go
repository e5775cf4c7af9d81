package sqlstore_test

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-tracking/core"
	trackingmigrations "github.com/goliatone/go-tracking/migrations"
	sqlstore "github.com/goliatone/go-tracking/store/sql"
	"github.com/goliatone/go-tracking/webhooks"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-tracking-tests"
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:tracking-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = trackingmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != trackingmigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, trackingmigrations.WithValidationTargets(trackingmigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}

func seedShop(t *testing.T, factory *sqlstore.RepositoryFactory) core.Shop {
	t.Helper()
	shop, err := factory.ShopStore().Create(context.Background(), core.Shop{
		Domain:     "demo.myshopify.com",
		Credential: "token",
	})
	if err != nil {
		t.Fatalf("seed shop: %v", err)
	}
	return shop
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	var tableName string
	if err := client.DB().NewRaw(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		"tracking_shipments",
	).Scan(context.Background(), &tableName); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	if tableName != "tracking_shipments" {
		t.Fatalf("expected tracking_shipments table, got %q", tableName)
	}
}

func TestShipmentStore_UniqueShopNumberAndStatusWrites(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	shop := seedShop(t, factory)
	shipments := factory.ShipmentStore()

	created, err := shipments.Create(ctx, core.Shipment{
		ShopID:         shop.ID,
		TrackingNumber: "YT2026000001",
		CarrierHint:    "yunexpress",
	})
	if err != nil {
		t.Fatalf("create shipment: %v", err)
	}
	if created.Status != core.StatusOrdered {
		t.Fatalf("new shipment must default to ordered, got %q", created.Status)
	}

	// A second create for the same label resolves to the surviving row.
	duplicate, err := shipments.Create(ctx, core.Shipment{
		ShopID:         shop.ID,
		TrackingNumber: "YT2026000001",
	})
	if err != nil {
		t.Fatalf("duplicate create: %v", err)
	}
	if duplicate.ID != created.ID {
		t.Fatalf("duplicate create must resolve to the existing shipment")
	}

	changed, err := shipments.UpdateStatus(ctx, created.ID, core.StatusInTransit)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if !changed {
		t.Fatalf("first status change must report changed")
	}
	changed, err = shipments.UpdateStatus(ctx, created.ID, core.StatusInTransit)
	if err != nil {
		t.Fatalf("repeat update status: %v", err)
	}
	if changed {
		t.Fatalf("equal status must skip the write")
	}

	if _, err := shipments.UpdateStatus(ctx, "ghost", core.StatusInTransit); !core.IsNotFound(err) {
		t.Fatalf("missing shipment should be not-found, got %v", err)
	}

	byNumber, err := shipments.GetByShopAndNumber(ctx, shop.ID, "YT2026000001")
	if err != nil {
		t.Fatalf("get by shop and number: %v", err)
	}
	if byNumber.Status != core.StatusInTransit {
		t.Fatalf("expected in_transit, got %q", byNumber.Status)
	}
}

func TestRedactedEventStore_DedupesOnRawEventAndAssignsSequence(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	shop := seedShop(t, factory)
	shipment, err := factory.ShipmentStore().Create(ctx, core.Shipment{
		ShopID:         shop.ID,
		TrackingNumber: "YT2026000001",
	})
	if err != nil {
		t.Fatalf("create shipment: %v", err)
	}

	occurredAt := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	payload, err := core.EventPayload{
		Version:    core.EventPayloadVersion,
		StatusCode: "InTransit",
		Message:    "In transit",
		OccurredAt: occurredAt,
	}.Encode()
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	raw, err := factory.RawEventStore().Append(ctx, core.RawEvent{
		ShipmentID: shipment.ID,
		Provider:   core.ProviderSeventeenTrack,
		Payload:    payload,
		OccurredAt: occurredAt,
	})
	if err != nil {
		t.Fatalf("append raw event: %v", err)
	}

	first, created, err := factory.RedactedEventStore().Append(ctx, core.RedactedEvent{
		ShipmentID: shipment.ID,
		RawEventID: raw.ID,
		StatusCode: "InTransit",
		Message:    "In transit",
		OccurredAt: occurredAt,
	})
	if err != nil {
		t.Fatalf("append redacted event: %v", err)
	}
	if !created || first.Sequence != 1 {
		t.Fatalf("expected first append with seq=1, got created=%v seq=%d", created, first.Sequence)
	}

	second, created, err := factory.RedactedEventStore().Append(ctx, core.RedactedEvent{
		ShipmentID: shipment.ID,
		RawEventID: raw.ID,
		StatusCode: "InTransit",
		Message:    "In transit",
		OccurredAt: occurredAt,
	})
	if err != nil {
		t.Fatalf("repeat append: %v", err)
	}
	if created {
		t.Fatalf("repeat append for the same raw event must not create a row")
	}
	if second.ID != first.ID {
		t.Fatalf("repeat append must return the original row")
	}

	events, err := factory.RedactedEventStore().ListByShipment(ctx, shipment.ID)
	if err != nil {
		t.Fatalf("list redacted events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected exactly one redacted event, got %d", len(events))
	}
}

func TestRawEventStore_AppendDedupesIdenticalPayload(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	shop := seedShop(t, factory)
	shipment, err := factory.ShipmentStore().Create(ctx, core.Shipment{
		ShopID:         shop.ID,
		TrackingNumber: "YT2026000001",
	})
	if err != nil {
		t.Fatalf("create shipment: %v", err)
	}

	occurredAt := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	payload, err := core.EventPayload{
		Version:    core.EventPayloadVersion,
		StatusCode: "InTransit",
		Message:    "Departed facility",
		OccurredAt: occurredAt,
	}.Encode()
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}

	first, err := factory.RawEventStore().Append(ctx, core.RawEvent{
		ShipmentID: shipment.ID,
		Provider:   core.ProviderSeventeenTrack,
		Payload:    payload,
		OccurredAt: occurredAt,
	})
	if err != nil {
		t.Fatalf("append raw event: %v", err)
	}

	// A retried delivery replays the same payload; the content index
	// resolves it to the stored row instead of a duplicate.
	replayed, err := factory.RawEventStore().Append(ctx, core.RawEvent{
		ShipmentID: shipment.ID,
		Provider:   core.ProviderSeventeenTrack,
		Payload:    payload,
		OccurredAt: occurredAt,
	})
	if err != nil {
		t.Fatalf("replayed append: %v", err)
	}
	if replayed.ID != first.ID {
		t.Fatalf("identical payload must resolve to the existing row, got %q and %q", first.ID, replayed.ID)
	}

	otherPayload, err := core.EventPayload{
		Version:    core.EventPayloadVersion,
		StatusCode: "OutForDelivery",
		Message:    "Out with courier",
		OccurredAt: occurredAt.Add(time.Hour),
	}.Encode()
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	if _, err := factory.RawEventStore().Append(ctx, core.RawEvent{
		ShipmentID: shipment.ID,
		Provider:   core.ProviderSeventeenTrack,
		Payload:    otherPayload,
		OccurredAt: occurredAt.Add(time.Hour),
	}); err != nil {
		t.Fatalf("append distinct payload: %v", err)
	}

	events, err := factory.RawEventStore().ListByShipment(ctx, shipment.ID)
	if err != nil {
		t.Fatalf("list raw events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected two raw events after replay, got %d", len(events))
	}
}

func TestRedactedEventStore_SequenceIsUniquePerShipment(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}

	var indexName string
	if err := client.DB().NewRaw(
		"SELECT name FROM sqlite_master WHERE type = 'index' AND name = ?",
		"idx_tracking_redacted_events_shipment_seq",
	).Scan(ctx, &indexName); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	if indexName != "idx_tracking_redacted_events_shipment_seq" {
		t.Fatalf("sequence assignment requires the unique (shipment_id, seq) index")
	}

	shop := seedShop(t, factory)
	shipment, err := factory.ShipmentStore().Create(ctx, core.Shipment{
		ShopID:         shop.ID,
		TrackingNumber: "YT2026000001",
	})
	if err != nil {
		t.Fatalf("create shipment: %v", err)
	}

	occurredAt := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		payload, err := core.EventPayload{
			Version:    core.EventPayloadVersion,
			StatusCode: "InTransit",
			Message:    fmt.Sprintf("scan %d", i),
			OccurredAt: occurredAt,
		}.Encode()
		if err != nil {
			t.Fatalf("encode payload: %v", err)
		}
		raw, err := factory.RawEventStore().Append(ctx, core.RawEvent{
			ShipmentID: shipment.ID,
			Provider:   core.ProviderSeventeenTrack,
			Payload:    payload,
			OccurredAt: occurredAt,
		})
		if err != nil {
			t.Fatalf("append raw event %d: %v", i, err)
		}
		if _, _, err := factory.RedactedEventStore().Append(ctx, core.RedactedEvent{
			ShipmentID: shipment.ID,
			RawEventID: raw.ID,
			StatusCode: "InTransit",
			Message:    fmt.Sprintf("scan %d", i),
			OccurredAt: occurredAt,
		}); err != nil {
			t.Fatalf("append redacted event %d: %v", i, err)
		}
	}

	events, err := factory.RedactedEventStore().ListByShipment(ctx, shipment.ID)
	if err != nil {
		t.Fatalf("list redacted events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected two redacted events, got %d", len(events))
	}
	seen := map[int64]bool{}
	for _, event := range events {
		if seen[event.Sequence] {
			t.Fatalf("sequence %d assigned twice", event.Sequence)
		}
		seen[event.Sequence] = true
	}
	if !seen[1] || !seen[2] {
		t.Fatalf("expected contiguous sequences 1 and 2, got %v", seen)
	}
}

func TestWebhookDeliveryStore_ClaimLifecycle(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	ledger := factory.WebhookDeliveryStore()

	record, claimed, err := ledger.Claim(ctx, "shopify", "delivery-1", []byte(`{}`), time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !claimed || record.Status != webhooks.DeliveryStatusProcessing {
		t.Fatalf("first claim must win, got claimed=%v status=%q", claimed, record.Status)
	}

	_, claimed, err = ledger.Claim(ctx, "shopify", "delivery-1", []byte(`{}`), time.Minute)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if claimed {
		t.Fatalf("concurrent claim within the lease must lose")
	}

	if err := ledger.Fail(ctx, record.ClaimID, fmt.Errorf("handler failed"), time.Now().UTC().Add(-time.Second), 8); err != nil {
		t.Fatalf("fail: %v", err)
	}
	reclaimed, claimed, err := ledger.Claim(ctx, "shopify", "delivery-1", []byte(`{}`), time.Minute)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if !claimed {
		t.Fatalf("retry-ready delivery must be claimable")
	}
	if reclaimed.Attempts != 2 {
		t.Fatalf("reclaim must increment attempts, got %d", reclaimed.Attempts)
	}

	if err := ledger.Complete(ctx, reclaimed.ClaimID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	final, err := ledger.Get(ctx, "shopify", "delivery-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.Status != webhooks.DeliveryStatusProcessed {
		t.Fatalf("expected processed, got %q", final.Status)
	}

	_, claimed, err = ledger.Claim(ctx, "shopify", "delivery-1", []byte(`{}`), time.Minute)
	if err != nil {
		t.Fatalf("post-complete claim: %v", err)
	}
	if claimed {
		t.Fatalf("processed delivery must never be reclaimed")
	}
}

func TestWebhookDeliveryStore_DeadAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	ledger := factory.WebhookDeliveryStore()

	record, _, err := ledger.Claim(ctx, "17track", "delivery-1", nil, time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := ledger.Fail(ctx, record.ClaimID, fmt.Errorf("boom"), time.Now().UTC(), 1); err != nil {
		t.Fatalf("fail: %v", err)
	}

	final, err := ledger.Get(ctx, "17track", "delivery-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.Status != webhooks.DeliveryStatusDead {
		t.Fatalf("attempt budget spent must park the delivery dead, got %q", final.Status)
	}

	_, claimed, err := ledger.Claim(ctx, "17track", "delivery-1", nil, time.Minute)
	if err != nil {
		t.Fatalf("post-dead claim: %v", err)
	}
	if claimed {
		t.Fatalf("dead delivery must not be reclaimed")
	}
}
