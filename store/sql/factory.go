package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-tracking/core"
)

// RepositoryFactory builds every SQL-backed store off one bun handle
// and serves them through the core.StoreProvider contract.
type RepositoryFactory struct {
	db *bun.DB

	shopStore          *ShopStore
	orderStore         *OrderStore
	shipmentStore      core.ShipmentStore
	rawEventStore      *RawEventStore
	redactedEventStore *RedactedEventStore
	deliveryStore      *WebhookDeliveryStore

	shipmentCache repositorycache.CacheService
}

type FactoryOption func(*RepositoryFactory)

// WithShipmentCache layers a cache over shipment reads.
func WithShipmentCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.shipmentCache = cacheService
	}
}

func NewRepositoryFactory(options ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, option := range options {
		if option != nil {
			option(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, options ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(options...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, options ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(options...)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.shipmentStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) ShopStore() core.ShopStore {
	if f == nil {
		return nil
	}
	return f.shopStore
}

func (f *RepositoryFactory) OrderStore() core.OrderStore {
	if f == nil {
		return nil
	}
	return f.orderStore
}

func (f *RepositoryFactory) ShipmentStore() core.ShipmentStore {
	if f == nil {
		return nil
	}
	return f.shipmentStore
}

func (f *RepositoryFactory) RawEventStore() core.RawEventStore {
	if f == nil {
		return nil
	}
	return f.rawEventStore
}

func (f *RepositoryFactory) RedactedEventStore() core.RedactedEventStore {
	if f == nil {
		return nil
	}
	return f.redactedEventStore
}

func (f *RepositoryFactory) WebhookDeliveryStore() *WebhookDeliveryStore {
	if f == nil {
		return nil
	}
	return f.deliveryStore
}

func (f *RepositoryFactory) initStores() error {
	shopStore, err := NewShopStore(f.db)
	if err != nil {
		return err
	}
	f.shopStore = shopStore

	orderStore, err := NewOrderStore(f.db)
	if err != nil {
		return err
	}
	f.orderStore = orderStore

	shipmentStore, err := NewShipmentStore(f.db)
	if err != nil {
		return err
	}
	if f.shipmentCache != nil {
		cached, err := NewCachedShipmentStore(shipmentStore, f.shipmentCache)
		if err != nil {
			return err
		}
		f.shipmentStore = cached
	} else {
		f.shipmentStore = shipmentStore
	}

	rawEventStore, err := NewRawEventStore(f.db)
	if err != nil {
		return err
	}
	f.rawEventStore = rawEventStore

	redactedEventStore, err := NewRedactedEventStore(f.db)
	if err != nil {
		return err
	}
	f.redactedEventStore = redactedEventStore

	deliveryStore, err := NewWebhookDeliveryStore(f.db)
	if err != nil {
		return err
	}
	f.deliveryStore = deliveryStore

	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
