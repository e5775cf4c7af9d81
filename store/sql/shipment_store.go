package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-tracking/core"
)

type ShipmentStore struct {
	db   *bun.DB
	repo repository.Repository[*shipmentRecord]
}

func NewShipmentStore(db *bun.DB) (*ShipmentStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*shipmentRecord](db, shipmentHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid shipment repository wiring: %w", err)
		}
	}
	return &ShipmentStore{db: db, repo: repo}, nil
}

func (s *ShipmentStore) Get(ctx context.Context, id string) (core.Shipment, error) {
	if s == nil || s.repo == nil {
		return core.Shipment{}, fmt.Errorf("sqlstore: shipment store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return core.Shipment{}, asNotFound(err, fmt.Sprintf("sqlstore: shipment %q not found", id))
	}
	return record.toDomain(), nil
}

func (s *ShipmentStore) GetByTrackingNumber(ctx context.Context, trackingNumber string) (core.Shipment, error) {
	if s == nil || s.repo == nil {
		return core.Shipment{}, fmt.Errorf("sqlstore: shipment store is not configured")
	}
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return core.Shipment{}, core.NewBadInput("sqlstore: tracking number is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("tracking_number", "=", trackingNumber),
		repository.OrderBy("created_at ASC"),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Shipment{}, err
	}
	if len(records) == 0 {
		return core.Shipment{}, core.NewNotFound(
			fmt.Sprintf("sqlstore: shipment for tracking number %q not found", trackingNumber),
		)
	}
	return records[0].toDomain(), nil
}

func (s *ShipmentStore) GetByShopAndNumber(ctx context.Context, shopID string, trackingNumber string) (core.Shipment, error) {
	if s == nil || s.repo == nil {
		return core.Shipment{}, fmt.Errorf("sqlstore: shipment store is not configured")
	}
	shopID = strings.TrimSpace(shopID)
	trackingNumber = strings.TrimSpace(trackingNumber)
	if shopID == "" || trackingNumber == "" {
		return core.Shipment{}, core.NewBadInput("sqlstore: shop id and tracking number are required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("shop_id", "=", shopID),
		repository.SelectBy("tracking_number", "=", trackingNumber),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Shipment{}, err
	}
	if len(records) == 0 {
		return core.Shipment{}, core.NewNotFound(
			fmt.Sprintf("sqlstore: shipment for tracking number %q not found", trackingNumber),
		)
	}
	return records[0].toDomain(), nil
}

func (s *ShipmentStore) Create(ctx context.Context, shipment core.Shipment) (core.Shipment, error) {
	if s == nil || s.repo == nil {
		return core.Shipment{}, fmt.Errorf("sqlstore: shipment store is not configured")
	}
	if err := shipment.Validate(); err != nil {
		return core.Shipment{}, core.WrapBadInput(err, "sqlstore: invalid shipment")
	}
	if !shipment.Status.Known() {
		shipment.Status = core.StatusOrdered
	}
	record := newShipmentRecord(shipment, time.Now().UTC())
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		// The (shop, tracking number) key is unique; a concurrent insert
		// of the same label resolves to the surviving row.
		if isUniqueViolation(err) {
			return s.GetByShopAndNumber(ctx, shipment.ShopID, shipment.TrackingNumber)
		}
		return core.Shipment{}, err
	}
	return created.toDomain(), nil
}

func (s *ShipmentStore) MarkRegistered(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: shipment store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.NewBadInput("sqlstore: shipment id is required")
	}
	result, err := s.db.NewUpdate().
		Model((*shipmentRecord)(nil)).
		Set("registered = ?", true).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return core.NewNotFound(fmt.Sprintf("sqlstore: shipment %q not found", id))
	}
	return nil
}

// UpdateStatus writes the status only when it differs from the stored
// value. The guard lives in the WHERE clause so concurrent recomputes
// cannot interleave a stale write between read and update.
func (s *ShipmentStore) UpdateStatus(ctx context.Context, id string, status core.CanonicalStatus) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: shipment store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return false, core.NewBadInput("sqlstore: shipment id is required")
	}
	if err := status.Validate(); err != nil {
		return false, core.WrapBadInput(err, "sqlstore: invalid canonical status")
	}

	result, err := s.db.NewUpdate().
		Model((*shipmentRecord)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("status != ?", string(status)).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected > 0 {
		return true, nil
	}

	// No row changed: either the status already matched or the shipment
	// is gone. Distinguish the two.
	if _, err := s.Get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *ShipmentStore) UpdateLastMile(ctx context.Context, id string, lastMile core.LastMile) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: shipment store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.NewBadInput("sqlstore: shipment id is required")
	}
	if lastMile.Empty() {
		return core.NewBadInput("sqlstore: last-mile details are required")
	}
	result, err := s.db.NewUpdate().
		Model((*shipmentRecord)(nil)).
		Set("last_mile_carrier = ?", strings.TrimSpace(lastMile.Carrier)).
		Set("last_mile_number = ?", strings.TrimSpace(lastMile.Number)).
		Set("last_mile_url = ?", strings.TrimSpace(lastMile.URL)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return core.NewNotFound(fmt.Sprintf("sqlstore: shipment %q not found", id))
	}
	return nil
}

var _ core.ShipmentStore = (*ShipmentStore)(nil)
