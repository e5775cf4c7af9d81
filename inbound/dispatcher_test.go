package inbound

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-tracking/core"
)

type stubHandler struct {
	surface string
	calls   int
	lastReq core.InboundRequest
	result  core.InboundResult
	err     error
}

func (h *stubHandler) Surface() string { return h.surface }

func (h *stubHandler) Handle(_ context.Context, req core.InboundRequest) (core.InboundResult, error) {
	h.calls++
	h.lastReq = req
	return h.result, h.err
}

type stubVerifier struct {
	err error
}

func (v *stubVerifier) Verify(context.Context, core.InboundRequest) error {
	return v.err
}

func TestDispatcher_RoutesBySurface(t *testing.T) {
	dispatcher := NewDispatcher(nil)
	webhook := &stubHandler{
		surface: SurfaceWebhook,
		result:  core.InboundResult{Accepted: true, StatusCode: http.StatusOK},
	}
	proxy := &stubHandler{
		surface: SurfaceProxy,
		result:  core.InboundResult{Accepted: true, StatusCode: http.StatusOK},
	}
	if err := dispatcher.Register(webhook); err != nil {
		t.Fatalf("register webhook handler: %v", err)
	}
	if err := dispatcher.Register(proxy); err != nil {
		t.Fatalf("register proxy handler: %v", err)
	}

	result, err := dispatcher.Dispatch(context.Background(), core.InboundRequest{
		ProviderID: core.ProviderShopify,
		Surface:    SurfaceWebhook,
		Body:       []byte(`{}`),
	})
	if err != nil {
		t.Fatalf("dispatch webhook: %v", err)
	}
	if webhook.calls != 1 || proxy.calls != 0 {
		t.Fatalf("expected webhook handler only, got webhook=%d proxy=%d", webhook.calls, proxy.calls)
	}
	if result.Metadata["provider_id"] != core.ProviderShopify || result.Metadata["surface"] != SurfaceWebhook {
		t.Fatalf("expected result metadata enrichment, got %v", result.Metadata)
	}
}

func TestDispatcher_VerifierRejectionIsOpaque(t *testing.T) {
	dispatcher := NewDispatcher(&stubVerifier{err: fmt.Errorf("signature mismatch")})
	handler := &stubHandler{surface: SurfaceProxy}
	if err := dispatcher.Register(handler); err != nil {
		t.Fatalf("register: %v", err)
	}

	result, err := dispatcher.Dispatch(context.Background(), core.InboundRequest{
		ProviderID: core.ProviderShopify,
		Surface:    SurfaceProxy,
	})
	if err == nil {
		t.Fatalf("expected verification failure")
	}
	if handler.calls != 0 {
		t.Fatalf("rejected request must never reach the handler")
	}
	if result.StatusCode != http.StatusUnauthorized || result.Accepted {
		t.Fatalf("expected opaque 401, got %+v", result)
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryAuth || rich.TextCode != core.TrackingErrorUnauthorized {
		t.Fatalf("expected auth envelope, got category=%q text=%q", rich.Category, rich.TextCode)
	}
}

func TestDispatcher_UnsupportedSurfaceFails(t *testing.T) {
	dispatcher := NewDispatcher(nil)

	if err := dispatcher.Register(&stubHandler{surface: "event_callback"}); err == nil {
		t.Fatalf("expected unsupported surface registration to fail")
	}

	_, err := dispatcher.Dispatch(context.Background(), core.InboundRequest{
		ProviderID: core.ProviderShopify,
		Surface:    "event_callback",
	})
	if err == nil {
		t.Fatalf("expected unsupported surface dispatch to fail")
	}
}

func TestDispatcher_MissingHandlerReportsNotFound(t *testing.T) {
	dispatcher := NewDispatcher(nil)

	_, err := dispatcher.Dispatch(context.Background(), core.InboundRequest{
		ProviderID: core.ProviderSeventeenTrack,
		Surface:    SurfaceWebhook,
	})
	if err == nil {
		t.Fatalf("expected missing handler error")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rich.Code)
	}
}

func TestDispatcher_DuplicateRegistrationConflicts(t *testing.T) {
	dispatcher := NewDispatcher(nil)
	if err := dispatcher.Register(&stubHandler{surface: SurfaceWebhook}); err != nil {
		t.Fatalf("register: %v", err)
	}

	err := dispatcher.Register(&stubHandler{surface: SurfaceWebhook})
	if err == nil {
		t.Fatalf("expected duplicate registration to conflict")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryConflict {
		t.Fatalf("expected conflict category, got %q", rich.Category)
	}
}

func TestDispatcher_HandlerErrorPassesThrough(t *testing.T) {
	dispatcher := NewDispatcher(nil)
	handler := &stubHandler{
		surface: SurfaceProxy,
		err:     core.NewNotFound("inbound: shipment not found"),
	}
	if err := dispatcher.Register(handler); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := dispatcher.Dispatch(context.Background(), core.InboundRequest{
		ProviderID: core.ProviderShopify,
		Surface:    SurfaceProxy,
	})
	if !core.IsNotFound(err) {
		t.Fatalf("expected handler not-found to pass through, got %v", err)
	}
}
