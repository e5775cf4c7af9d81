// Package tracking assembles the shipment tracking pipeline: inbound
// webhook and proxy surfaces, the durable register, ingest, and
// recompute tasks, and the command and query handlers layered on top.
//
// Most callers only need New plus the With* options re-exported here;
// the subpackages stay importable for compositions that swap pieces.
package tracking

import (
	"github.com/goliatone/go-tracking/core"
)

// Config is the resolved service configuration.
type Config = core.Config

// Option customizes service construction.
type Option = core.Option

// DefaultConfig returns the baseline configuration New starts from.
func DefaultConfig() Config {
	return core.DefaultConfig()
}

func WithConfig(cfg Config) Option {
	return core.WithConfig(cfg)
}

func WithLogger(logger core.Logger) Option {
	return core.WithLogger(logger)
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return core.WithLoggerProvider(provider)
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return core.WithConfigProvider(provider)
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return core.WithOptionsResolver(resolver)
}

func WithErrorFactory(factory core.ErrorFactory) Option {
	return core.WithErrorFactory(factory)
}

func WithErrorMapper(mapper core.ErrorMapper) Option {
	return core.WithErrorMapper(mapper)
}

func WithPersistenceClient(client any) Option {
	return core.WithPersistenceClient(client)
}

func WithStoreProvider(provider core.StoreProvider) Option {
	return core.WithStoreProvider(provider)
}

func WithJobEnqueuer(enqueuer core.JobEnqueuer) Option {
	return core.WithJobEnqueuer(enqueuer)
}

func WithJobDequeuer(dequeuer core.JobDequeuer) Option {
	return core.WithJobDequeuer(dequeuer)
}

func WithRegistrationClient(client core.RegistrationClient) Option {
	return core.WithRegistrationClient(client)
}
