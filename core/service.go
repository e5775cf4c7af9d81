package core

import (
	"context"
)

// Dependencies is the resolved wiring a tracking service runs with.
// Config has been layered (defaults < loaded < runtime) and validated.
type Dependencies struct {
	Config             Config
	Logger             Logger
	LoggerProvider     LoggerProvider
	ErrorFactory       ErrorFactory
	ErrorMapper        ErrorMapper
	PersistenceClient  any
	StoreProvider      StoreProvider
	Enqueuer           JobEnqueuer
	Dequeuer           JobDequeuer
	RegistrationClient RegistrationClient
}

// ResolveDependencies applies the options, loads configuration through
// the configured provider and merges it with the runtime overrides.
func ResolveDependencies(ctx context.Context, opts ...Option) (Dependencies, error) {
	builder := defaultServiceBuilder(Config{})
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	defaults := DefaultConfig()
	loaded := defaults
	if builder.configProvider != nil {
		var err error
		loaded, err = builder.configProvider.Load(ctx, defaults)
		if err != nil {
			return Dependencies{}, err
		}
	}

	resolved := loaded
	if builder.optionsResolver != nil {
		var err error
		resolved, err = builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
		if err != nil {
			return Dependencies{}, err
		}
	}
	if err := resolved.Validate(); err != nil {
		return Dependencies{}, err
	}

	return Dependencies{
		Config:             resolved,
		Logger:             builder.logger,
		LoggerProvider:     builder.loggerProvider,
		ErrorFactory:       builder.errorFactory,
		ErrorMapper:        builder.errorMapper,
		PersistenceClient:  builder.persistenceClient,
		StoreProvider:      builder.storeProvider,
		Enqueuer:           builder.enqueuer,
		Dequeuer:           builder.dequeuer,
		RegistrationClient: builder.registrationClient,
	}, nil
}
