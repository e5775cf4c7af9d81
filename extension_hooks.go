package tracking

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-tracking/webhooks"
)

// ProcessorPack bundles a named webhook processor for an extra
// carrier or platform provider id.
type ProcessorPack struct {
	Name       string
	ProviderID string
	Processor  *webhooks.Processor
}

// CommandQueryBundleFactory builds a downstream command/query bundle
// on top of an assembled service.
type CommandQueryBundleFactory func(service *Service) (any, error)

// ExtensionHooks collects downstream extensions before a service is
// assembled: extra webhook processors and command/query bundles.
type ExtensionHooks struct {
	mu sync.RWMutex

	processorPacks map[string]ProcessorPack
	bundles        map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		processorPacks: map[string]ProcessorPack{},
		bundles:        map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterProcessorPack(pack ProcessorPack) error {
	if h == nil {
		return fmt.Errorf("tracking: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	providerID := strings.TrimSpace(strings.ToLower(pack.ProviderID))
	if name == "" {
		return fmt.Errorf("tracking: processor pack name is required")
	}
	if providerID == "" {
		return fmt.Errorf("tracking: processor pack %q provider id is required", name)
	}
	if pack.Processor == nil {
		return fmt.Errorf("tracking: processor pack %q has no processor", name)
	}

	normalized := ProcessorPack{
		Name:       name,
		ProviderID: providerID,
		Processor:  pack.Processor,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.processorPacks[name]; exists {
		return fmt.Errorf("tracking: processor pack %q already registered", name)
	}
	h.processorPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("tracking: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("tracking: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("tracking: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("tracking: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// ApplyProcessorPacks registers every pack's processor on the service.
// Packs are applied in name order so conflicts surface
// deterministically.
func (h *ExtensionHooks) ApplyProcessorPacks(service *Service) error {
	if h == nil {
		return nil
	}
	if service == nil {
		return fmt.Errorf("tracking: service is required")
	}

	for _, pack := range h.ProcessorPacks() {
		if err := service.RegisterWebhookProcessor(pack.ProviderID, pack.Processor); err != nil {
			return err
		}
	}
	return nil
}

func (h *ExtensionHooks) BuildCommandQueryBundles(service *Service) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("tracking: service is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) ProcessorPacks() []ProcessorPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.processorPacks))
	for name := range h.processorPacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ProcessorPack, 0, len(names))
	for _, name := range names {
		out = append(out, h.processorPacks[name])
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
