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

type ShopStore struct {
	db   *bun.DB
	repo repository.Repository[*shopRecord]
}

func NewShopStore(db *bun.DB) (*ShopStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*shopRecord](db, shopHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid shop repository wiring: %w", err)
		}
	}
	return &ShopStore{db: db, repo: repo}, nil
}

func (s *ShopStore) GetByDomain(ctx context.Context, domain string) (core.Shop, error) {
	if s == nil || s.repo == nil {
		return core.Shop{}, fmt.Errorf("sqlstore: shop store is not configured")
	}
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return core.Shop{}, core.NewBadInput("sqlstore: shop domain is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("domain", "=", domain),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Shop{}, err
	}
	if len(records) == 0 {
		return core.Shop{}, core.NewNotFound(fmt.Sprintf("sqlstore: shop %q not found", domain))
	}
	return records[0].toDomain(), nil
}

func (s *ShopStore) Create(ctx context.Context, shop core.Shop) (core.Shop, error) {
	if s == nil || s.repo == nil {
		return core.Shop{}, fmt.Errorf("sqlstore: shop store is not configured")
	}
	domain := strings.TrimSpace(shop.Domain)
	if domain == "" {
		return core.Shop{}, core.NewBadInput("sqlstore: shop domain is required")
	}
	now := time.Now().UTC()
	record := &shopRecord{
		ID:         strings.TrimSpace(shop.ID),
		Domain:     domain,
		Credential: strings.TrimSpace(shop.Credential),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Shop{}, err
	}
	return created.toDomain(), nil
}

var _ core.ShopStore = (*ShopStore)(nil)
