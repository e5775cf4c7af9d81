package tracking

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"

	"github.com/goliatone/go-tracking/adapters/gocommand"
	"github.com/goliatone/go-tracking/command"
	"github.com/goliatone/go-tracking/core"
	"github.com/goliatone/go-tracking/inbound"
	"github.com/goliatone/go-tracking/providers/seventeentrack"
	"github.com/goliatone/go-tracking/providers/shopify"
	"github.com/goliatone/go-tracking/query"
	"github.com/goliatone/go-tracking/ratelimit"
	sqlstore "github.com/goliatone/go-tracking/store/sql"
	"github.com/goliatone/go-tracking/tasks"
	"github.com/goliatone/go-tracking/webhooks"
)

// Service is the assembled tracking pipeline. It routes inbound
// webhooks and proxy requests, runs the register/ingest/recompute
// tasks, and serves the read models behind the query handlers.
type Service struct {
	cfg       core.Config
	logger    core.Logger
	stores    core.StoreProvider
	ledger    webhooks.DeliveryLedger
	enqueuer  core.JobEnqueuer
	registrar core.RegistrationClient

	registerTask  *tasks.RegisterTask
	ingestTask    *tasks.IngestTask
	recomputeTask *tasks.RecomputeTask
	runner        *tasks.Runner

	dispatcher *inbound.Dispatcher

	mu            sync.RWMutex
	processors    map[string]*webhooks.Processor
	registry      *gocommand.RegistryAdapter
	subscriptions []commanddispatcher.Subscription
	closed        bool
}

var (
	_ command.MutatingService  = (*Service)(nil)
	_ query.TrackingPageReader = (*Service)(nil)
	_ query.ShipmentReader     = (*Service)(nil)
)

// New resolves configuration and wires the pipeline. Storage comes
// from a store provider, a persistence client, or a configured storage
// dsn, in that order; a registration client can be supplied directly
// or built from the configured provider api key.
// Without a configured enqueuer, tasks execute inline and
// synchronously, which keeps single-process deployments working
// without a queue.
func New(ctx context.Context, opts ...Option) (*Service, error) {
	deps, err := core.ResolveDependencies(ctx, opts...)
	if err != nil {
		return nil, err
	}
	cfg := deps.Config

	stores := deps.StoreProvider
	var ledger webhooks.DeliveryLedger
	if stores == nil {
		persistenceClient := deps.PersistenceClient
		if persistenceClient == nil {
			if strings.TrimSpace(cfg.Storage.DSN) == "" {
				return nil, fmt.Errorf("tracking: store provider, persistence client, or storage dsn is required")
			}
			db, err := sqlstore.Open(cfg.Storage.Dialect, cfg.Storage.DSN)
			if err != nil {
				return nil, err
			}
			persistenceClient = db
		}
		factory := sqlstore.NewRepositoryFactory()
		built, err := factory.BuildStores(persistenceClient)
		if err != nil {
			return nil, err
		}
		stores = built
		ledger = factory.WebhookDeliveryStore()
	} else if provider, ok := stores.(interface {
		WebhookDeliveryStore() *sqlstore.WebhookDeliveryStore
	}); ok {
		if store := provider.WebhookDeliveryStore(); store != nil {
			ledger = store
		}
	}
	if ledger == nil {
		ledger = webhooks.NewInMemoryDeliveryLedger()
	}

	registrar := deps.RegistrationClient
	if registrar == nil {
		apiKey := strings.TrimSpace(cfg.SeventeenTrack.APIKey)
		if apiKey == "" {
			return nil, fmt.Errorf("tracking: registration client or provider api key is required")
		}
		client, err := seventeentrack.NewClient(apiKey,
			seventeentrack.WithBaseURL(cfg.SeventeenTrack.BaseURL),
			seventeentrack.WithTimeout(cfg.SeventeenTrack.Timeout),
			seventeentrack.WithLogger(deps.Logger),
			seventeentrack.WithRateLimiter(ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore())),
		)
		if err != nil {
			return nil, err
		}
		registrar = client
	}

	svc := &Service{
		cfg:        cfg,
		logger:     deps.Logger,
		stores:     stores,
		ledger:     ledger,
		registrar:  registrar,
		processors: map[string]*webhooks.Processor{},
		registry:   gocommand.NewRegistryAdapter(nil),
	}

	enqueuer := deps.Enqueuer
	inline := &inlineEnqueuer{}
	if enqueuer == nil {
		enqueuer = inline
	}
	svc.enqueuer = enqueuer

	svc.registerTask = tasks.NewRegisterTask(stores.ShipmentStore(), registrar, deps.Logger)
	svc.ingestTask = tasks.NewIngestTask(
		stores.RawEventStore(),
		stores.RedactedEventStore(),
		enqueuer,
		deps.Logger,
	)
	svc.recomputeTask = tasks.NewRecomputeTask(
		stores.ShipmentStore(),
		stores.RawEventStore(),
		stores.RedactedEventStore(),
		deps.Logger,
	)
	inline.register = svc.registerTask
	inline.ingest = svc.ingestTask
	inline.recompute = svc.recomputeTask

	if deps.Dequeuer != nil {
		svc.runner = tasks.NewRunner(
			deps.Dequeuer,
			svc.registerTask,
			svc.ingestTask,
			svc.recomputeTask,
			deps.Logger,
		)
		if cfg.Worker.MaxDelay > 0 {
			svc.runner.MaxDelay = cfg.Worker.MaxDelay
		}
		if cfg.Worker.MaxAttempts > 0 {
			svc.runner.MaxAttempts = cfg.Worker.MaxAttempts
		}
	}

	shopifyCfg := shopify.Config{
		WebhookSecret: cfg.Shopify.WebhookSecret,
		ProxySecret:   cfg.Shopify.ProxySecret,
		ClaimLease:    cfg.Webhook.ClaimLease,
		MaxAttempts:   cfg.Webhook.MaxAttempts,
	}
	fulfillments := shopify.NewFulfillmentHandler(
		stores.ShopStore(),
		stores.OrderStore(),
		stores.ShipmentStore(),
		enqueuer,
		deps.Logger,
	)
	svc.processors[core.ProviderShopify] = ShopifyWebhookProcessor(shopifyCfg, ledger, fulfillments)

	events := seventeentrack.NewEventHandler(
		stores.ShipmentStore(),
		stores.RawEventStore(),
		enqueuer,
		deps.Logger,
	)
	svc.processors[core.ProviderSeventeenTrack] = SeventeenTrackWebhookProcessor(cfg.Webhook, ledger, events)

	svc.dispatcher = inbound.NewDispatcher(nil)
	if err := svc.dispatcher.Register(&webhookRouter{service: svc}); err != nil {
		return nil, err
	}
	proxy := &proxyHandler{
		service:  svc,
		verifier: shopify.NewProxyVerifier(shopifyCfg),
	}
	if err := svc.dispatcher.Register(proxy); err != nil {
		return nil, err
	}

	if err := svc.registerHandlers(); err != nil {
		svc.unsubscribeAll()
		return nil, err
	}

	svc.logInfo("tracking service ready",
		"service", cfg.ServiceName,
		"worker", svc.runner != nil,
		"inline_queue", deps.Enqueuer == nil,
	)
	return svc, nil
}

func (s *Service) registerHandlers() error {
	subscribers := []func() (commanddispatcher.Subscription, error){
		func() (commanddispatcher.Subscription, error) {
			return gocommand.RegisterAndSubscribe(s.registry, command.NewRegisterShipmentCommand(s))
		},
		func() (commanddispatcher.Subscription, error) {
			return gocommand.RegisterAndSubscribe(s.registry, command.NewIngestEventCommand(s))
		},
		func() (commanddispatcher.Subscription, error) {
			return gocommand.RegisterAndSubscribe(s.registry, command.NewRecomputeStatusCommand(s))
		},
		func() (commanddispatcher.Subscription, error) {
			return gocommand.RegisterAndSubscribe(s.registry, command.NewReplayShipmentCommand(s))
		},
		func() (commanddispatcher.Subscription, error) {
			return gocommand.RegisterAndSubscribeQuery(s.registry, query.NewTrackingPageQuery(s))
		},
		func() (commanddispatcher.Subscription, error) {
			return gocommand.RegisterAndSubscribeQuery(s.registry, query.NewGetShipmentQuery(s))
		},
		func() (commanddispatcher.Subscription, error) {
			return gocommand.RegisterAndSubscribeQuery(s.registry, query.NewListShipmentEventsQuery(s))
		},
	}
	for _, subscribe := range subscribers {
		subscription, err := subscribe()
		if err != nil {
			return err
		}
		s.subscriptions = append(s.subscriptions, subscription)
	}
	return s.registry.Initialize()
}

// RegisterWebhookProcessor adds an inbound processor for an extra
// provider id. Builtin provider ids cannot be replaced.
func (s *Service) RegisterWebhookProcessor(providerID string, processor *webhooks.Processor) error {
	if s == nil {
		return fmt.Errorf("tracking: service is nil")
	}
	providerID = strings.TrimSpace(strings.ToLower(providerID))
	if providerID == "" {
		return core.NewBadInput("tracking: provider id is required")
	}
	if processor == nil {
		return core.NewBadInput("tracking: webhook processor is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.processors[providerID]; exists {
		return fmt.Errorf("tracking: webhook processor %q already registered", providerID)
	}
	s.processors[providerID] = processor
	return nil
}

func (s *Service) processorFor(providerID string) *webhooks.Processor {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processors[strings.TrimSpace(strings.ToLower(providerID))]
}

// HandleShopifyWebhook processes one fulfillment webhook delivery from
// the commerce platform.
func (s *Service) HandleShopifyWebhook(
	ctx context.Context,
	headers map[string]string,
	body []byte,
) (core.InboundResult, error) {
	return s.HandleProviderWebhook(ctx, core.ProviderShopify, headers, body)
}

// HandleProviderWebhook processes one webhook delivery for any
// registered provider id.
func (s *Service) HandleProviderWebhook(
	ctx context.Context,
	providerID string,
	headers map[string]string,
	body []byte,
) (core.InboundResult, error) {
	if s == nil || s.dispatcher == nil {
		return core.InboundResult{}, fmt.Errorf("tracking: service is not initialized")
	}
	return s.dispatcher.Dispatch(ctx, core.InboundRequest{
		ProviderID: providerID,
		Surface:    inbound.SurfaceWebhook,
		Headers:    headers,
		Body:       body,
	})
}

// HandleProxyRequest serves the customer-facing tracking page. The
// query must carry the platform's proxy signature plus the shop domain
// and tracking number; verification failures and unknown shipments
// both come back as opaque errors.
func (s *Service) HandleProxyRequest(
	ctx context.Context,
	headers map[string]string,
	queryParams map[string][]string,
) (core.TrackingPage, error) {
	if s == nil || s.dispatcher == nil {
		return core.TrackingPage{}, fmt.Errorf("tracking: service is not initialized")
	}
	result, err := s.dispatcher.Dispatch(ctx, core.InboundRequest{
		ProviderID: core.ProviderShopify,
		Surface:    inbound.SurfaceProxy,
		Headers:    headers,
		Query:      queryParams,
	})
	if err != nil {
		return core.TrackingPage{}, err
	}
	page, ok := result.Metadata["page"].(core.TrackingPage)
	if !ok {
		return core.TrackingPage{}, fmt.Errorf("tracking: proxy handler returned no page")
	}
	return page, nil
}

// Worker returns the queue runner, or nil when no dequeuer was
// configured and tasks run inline.
func (s *Service) Worker() *tasks.Runner {
	if s == nil {
		return nil
	}
	return s.runner
}

// Shutdown detaches the command and query handlers. Safe to call more
// than once.
func (s *Service) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, subscription := range s.subscriptions {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
	s.subscriptions = nil
	s.logInfo("tracking service stopped", "service", s.cfg.ServiceName)
	return nil
}

func (s *Service) unsubscribeAll() {
	for _, subscription := range s.subscriptions {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
	s.subscriptions = nil
}

// RegisterShipment enqueues provider registration for a shipment.
func (s *Service) RegisterShipment(ctx context.Context, shipmentID string) error {
	msg := tasks.RegisterMessage{ShipmentID: shipmentID}
	if err := msg.Validate(); err != nil {
		return core.WrapBadInput(err, "tracking: register shipment")
	}
	return s.enqueuer.Enqueue(ctx, msg.Execution())
}

// IngestEvent enqueues redaction of one stored raw event.
func (s *Service) IngestEvent(ctx context.Context, rawEventID string) error {
	msg := tasks.IngestMessage{RawEventID: rawEventID}
	if err := msg.Validate(); err != nil {
		return core.WrapBadInput(err, "tracking: ingest event")
	}
	return s.enqueuer.Enqueue(ctx, msg.Execution())
}

// RecomputeStatus enqueues a full status recomputation for a shipment.
func (s *Service) RecomputeStatus(ctx context.Context, shipmentID string) error {
	msg := tasks.RecomputeMessage{ShipmentID: shipmentID}
	if err := msg.Validate(); err != nil {
		return core.WrapBadInput(err, "tracking: recompute status")
	}
	return s.enqueuer.Enqueue(ctx, msg.Execution())
}

// ReplayShipment re-enqueues ingestion for every raw event of a
// shipment and reports how many were scheduled. The ingest task is
// idempotent per raw event, so replays repair missing redacted rows
// without duplicating existing ones.
func (s *Service) ReplayShipment(ctx context.Context, shipmentID string) (int, error) {
	shipmentID = strings.TrimSpace(shipmentID)
	if shipmentID == "" {
		return 0, core.NewBadInput("tracking: shipment id is required")
	}
	if _, err := s.stores.ShipmentStore().Get(ctx, shipmentID); err != nil {
		return 0, err
	}
	rawEvents, err := s.stores.RawEventStore().ListByShipment(ctx, shipmentID)
	if err != nil {
		return 0, err
	}
	for _, raw := range rawEvents {
		msg := tasks.IngestMessage{RawEventID: raw.ID}
		if err := s.enqueuer.Enqueue(ctx, msg.Execution()); err != nil {
			return 0, err
		}
	}
	return len(rawEvents), nil
}

// LoadTrackingPage resolves the customer-facing read model. A missing
// shop or shipment reports the same opaque not-found; a shipment owned
// by another shop is never served.
func (s *Service) LoadTrackingPage(
	ctx context.Context,
	shopDomain string,
	trackingNumber string,
) (core.TrackingPage, error) {
	shopDomain = strings.TrimSpace(strings.ToLower(shopDomain))
	trackingNumber = strings.TrimSpace(trackingNumber)
	if shopDomain == "" || trackingNumber == "" {
		return core.TrackingPage{}, core.NewBadInput("tracking: shop domain and tracking number are required")
	}

	shop, err := s.stores.ShopStore().GetByDomain(ctx, shopDomain)
	if err != nil {
		if core.IsNotFound(err) {
			return core.TrackingPage{}, core.NewNotFound("tracking: shipment not found")
		}
		return core.TrackingPage{}, err
	}
	shipment, err := s.stores.ShipmentStore().GetByShopAndNumber(ctx, shop.ID, trackingNumber)
	if err != nil {
		if core.IsNotFound(err) {
			return core.TrackingPage{}, core.NewNotFound("tracking: shipment not found")
		}
		return core.TrackingPage{}, err
	}
	events, err := s.stores.RedactedEventStore().ListByShipment(ctx, shipment.ID)
	if err != nil {
		return core.TrackingPage{}, err
	}
	return core.TrackingPage{
		Shipment:  shipment,
		Events:    events,
		HasEvents: len(events) > 0,
	}, nil
}

// GetShipment returns one shipment by id.
func (s *Service) GetShipment(ctx context.Context, id string) (core.Shipment, error) {
	return s.stores.ShipmentStore().Get(ctx, strings.TrimSpace(id))
}

// ListShipmentEvents returns the redacted history of a shipment in
// sequence order.
func (s *Service) ListShipmentEvents(ctx context.Context, id string) ([]core.RedactedEvent, error) {
	return s.stores.RedactedEventStore().ListByShipment(ctx, strings.TrimSpace(id))
}

func (s *Service) logInfo(msg string, args ...any) {
	if s != nil && s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

// inlineEnqueuer executes task messages synchronously. It backs
// single-process deployments where no durable queue is wired in.
type inlineEnqueuer struct {
	register  *tasks.RegisterTask
	ingest    *tasks.IngestTask
	recompute *tasks.RecomputeTask
}

var _ core.JobEnqueuer = (*inlineEnqueuer)(nil)

func (e *inlineEnqueuer) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	if e == nil {
		return fmt.Errorf("tracking: inline enqueuer is nil")
	}
	decoded, err := tasks.Decode(msg)
	if err != nil {
		return err
	}
	switch typed := decoded.(type) {
	case tasks.RegisterMessage:
		return e.register.Execute(ctx, typed)
	case tasks.IngestMessage:
		return e.ingest.Execute(ctx, typed)
	case tasks.RecomputeMessage:
		return e.recompute.Execute(ctx, typed)
	default:
		return core.NewBadInput(fmt.Sprintf("tracking: unsupported task message %T", decoded))
	}
}

// webhookRouter fans webhook-surface requests out to the processor
// registered for the request's provider id.
type webhookRouter struct {
	service *Service
}

var _ core.InboundHandler = (*webhookRouter)(nil)

func (r *webhookRouter) Surface() string { return inbound.SurfaceWebhook }

func (r *webhookRouter) Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if r == nil || r.service == nil {
		return core.InboundResult{}, fmt.Errorf("tracking: webhook router is not initialized")
	}
	processor := r.service.processorFor(req.ProviderID)
	if processor == nil {
		return core.InboundResult{}, core.NewNotFound(
			fmt.Sprintf("tracking: no webhook processor for provider %q", req.ProviderID),
		)
	}
	return processor.Process(ctx, req)
}

// proxyHandler serves the customer tracking page behind the platform's
// signed app proxy. Verification runs before any store access so
// unauthenticated callers cannot enumerate shipments.
type proxyHandler struct {
	service  *Service
	verifier webhooks.ProxySignatureVerifier
}

var _ core.InboundHandler = (*proxyHandler)(nil)

func (h *proxyHandler) Surface() string { return inbound.SurfaceProxy }

func (h *proxyHandler) Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if h == nil || h.service == nil {
		return core.InboundResult{}, fmt.Errorf("tracking: proxy handler is not initialized")
	}
	if err := h.verifier.Verify(ctx, req); err != nil {
		return core.InboundResult{
			Accepted:   false,
			StatusCode: http.StatusUnauthorized,
			Metadata:   map[string]any{"rejected": true},
		}, core.WrapUnauthorized(err, "tracking: proxy signature verification failed")
	}

	page, err := h.service.LoadTrackingPage(
		ctx,
		queryValue(req.Query, "shop"),
		firstQueryValue(req.Query, "number", "tracking_number"),
	)
	if err != nil {
		return core.InboundResult{}, err
	}
	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Metadata:   map[string]any{"page": page},
	}, nil
}

func queryValue(query map[string][]string, key string) string {
	if len(query) == 0 {
		return ""
	}
	values := query[key]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func firstQueryValue(query map[string][]string, keys ...string) string {
	for _, key := range keys {
		if value := queryValue(query, key); value != "" {
			return value
		}
	}
	return ""
}
