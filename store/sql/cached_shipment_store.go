package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-tracking/core"
)

const shipmentCacheKeyPrefix = "go-tracking::shipment::v1"

// CachedShipmentStore fronts shipment reads with a cache so the
// customer-facing proxy does not hit the database on every page view.
// Writes go to the base store and invalidate every key that can name
// the shipment.
type CachedShipmentStore struct {
	base  core.ShipmentStore
	cache repositorycache.CacheService
}

func NewCachedShipmentStore(
	base core.ShipmentStore,
	cacheService repositorycache.CacheService,
) (*CachedShipmentStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base shipment store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: shipment cache service is required")
	}
	return &CachedShipmentStore{base: base, cache: cacheService}, nil
}

// ShipmentCacheKey returns the deterministic cache key for a shipment
// lookup: go-tracking::shipment::v1::<kind>::<segments...> with each
// segment URL-path escaped.
func ShipmentCacheKey(kind string, segments ...string) string {
	parts := append([]string{shipmentCacheKeyPrefix, kind}, segments...)
	for i, part := range parts[2:] {
		parts[i+2] = url.PathEscape(strings.TrimSpace(part))
	}
	return strings.Join(parts, "::")
}

func (s *CachedShipmentStore) Get(ctx context.Context, id string) (core.Shipment, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Shipment{}, fmt.Errorf("sqlstore: cached shipment store is not configured")
	}
	return repositorycache.GetOrFetch(ctx, s.cache, ShipmentCacheKey("id", id),
		func(ctx context.Context) (core.Shipment, error) {
			return s.base.Get(ctx, id)
		})
}

func (s *CachedShipmentStore) GetByTrackingNumber(ctx context.Context, trackingNumber string) (core.Shipment, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Shipment{}, fmt.Errorf("sqlstore: cached shipment store is not configured")
	}
	return repositorycache.GetOrFetch(ctx, s.cache, ShipmentCacheKey("number", trackingNumber),
		func(ctx context.Context) (core.Shipment, error) {
			return s.base.GetByTrackingNumber(ctx, trackingNumber)
		})
}

func (s *CachedShipmentStore) GetByShopAndNumber(ctx context.Context, shopID string, trackingNumber string) (core.Shipment, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Shipment{}, fmt.Errorf("sqlstore: cached shipment store is not configured")
	}
	return repositorycache.GetOrFetch(ctx, s.cache, ShipmentCacheKey("shop_number", shopID, trackingNumber),
		func(ctx context.Context) (core.Shipment, error) {
			return s.base.GetByShopAndNumber(ctx, shopID, trackingNumber)
		})
}

func (s *CachedShipmentStore) Create(ctx context.Context, shipment core.Shipment) (core.Shipment, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Shipment{}, fmt.Errorf("sqlstore: cached shipment store is not configured")
	}
	created, err := s.base.Create(ctx, shipment)
	if err != nil {
		return core.Shipment{}, err
	}
	if err := s.invalidate(ctx, created); err != nil {
		return core.Shipment{}, err
	}
	return created, nil
}

func (s *CachedShipmentStore) MarkRegistered(ctx context.Context, id string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached shipment store is not configured")
	}
	if err := s.base.MarkRegistered(ctx, id); err != nil {
		return err
	}
	return s.invalidateByID(ctx, id)
}

func (s *CachedShipmentStore) UpdateStatus(ctx context.Context, id string, status core.CanonicalStatus) (bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return false, fmt.Errorf("sqlstore: cached shipment store is not configured")
	}
	changed, err := s.base.UpdateStatus(ctx, id, status)
	if err != nil {
		return false, err
	}
	if changed {
		if err := s.invalidateByID(ctx, id); err != nil {
			return false, err
		}
	}
	return changed, nil
}

func (s *CachedShipmentStore) UpdateLastMile(ctx context.Context, id string, lastMile core.LastMile) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached shipment store is not configured")
	}
	if err := s.base.UpdateLastMile(ctx, id, lastMile); err != nil {
		return err
	}
	return s.invalidateByID(ctx, id)
}

func (s *CachedShipmentStore) invalidateByID(ctx context.Context, id string) error {
	shipment, err := s.base.Get(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return s.cache.Delete(ctx, ShipmentCacheKey("id", id))
		}
		return err
	}
	return s.invalidate(ctx, shipment)
}

func (s *CachedShipmentStore) invalidate(ctx context.Context, shipment core.Shipment) error {
	keys := []string{
		ShipmentCacheKey("id", shipment.ID),
		ShipmentCacheKey("number", shipment.TrackingNumber),
		ShipmentCacheKey("shop_number", shipment.ShopID, shipment.TrackingNumber),
	}
	for _, key := range keys {
		if err := s.cache.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

var _ core.ShipmentStore = (*CachedShipmentStore)(nil)
