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

type OrderStore struct {
	db   *bun.DB
	repo repository.Repository[*orderRecord]
}

func NewOrderStore(db *bun.DB) (*OrderStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*orderRecord](db, orderHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid order repository wiring: %w", err)
		}
	}
	return &OrderStore{db: db, repo: repo}, nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (core.Order, error) {
	if s == nil || s.repo == nil {
		return core.Order{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return core.Order{}, asNotFound(err, fmt.Sprintf("sqlstore: order %q not found", id))
	}
	return record.toDomain(), nil
}

// Upsert keys orders by (shop, external order id); re-delivered
// webhooks update the display name instead of duplicating the row.
func (s *OrderStore) Upsert(ctx context.Context, order core.Order) (core.Order, error) {
	if s == nil || s.repo == nil {
		return core.Order{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	shopID := strings.TrimSpace(order.ShopID)
	externalID := strings.TrimSpace(order.ExternalOrderID)
	if shopID == "" || externalID == "" {
		return core.Order{}, core.NewBadInput("sqlstore: shop id and external order id are required")
	}

	records, _, err := s.repo.List(ctx,
		repository.SelectBy("shop_id", "=", shopID),
		repository.SelectBy("external_order_id", "=", externalID),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Order{}, err
	}
	if len(records) > 0 {
		existing := records[0]
		name := strings.TrimSpace(order.Name)
		if name != "" && name != existing.Name {
			existing.Name = name
			if _, err := s.repo.Update(ctx, existing, repository.UpdateByID(existing.ID)); err != nil {
				return core.Order{}, err
			}
		}
		return existing.toDomain(), nil
	}

	record := &orderRecord{
		ID:              strings.TrimSpace(order.ID),
		ShopID:          shopID,
		ExternalOrderID: externalID,
		Name:            strings.TrimSpace(order.Name),
		CreatedAt:       time.Now().UTC(),
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		if isUniqueViolation(err) {
			return s.Upsert(ctx, order)
		}
		return core.Order{}, err
	}
	return created.toDomain(), nil
}

var _ core.OrderStore = (*OrderStore)(nil)
