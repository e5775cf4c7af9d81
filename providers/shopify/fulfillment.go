package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/goliatone/go-tracking/core"
	"github.com/goliatone/go-tracking/tasks"
)

// FulfillmentPayload is the subset of the platform's fulfillment
// webhook body the pipeline consumes.
type FulfillmentPayload struct {
	ID              int64    `json:"id"`
	OrderID         int64    `json:"order_id"`
	Name            string   `json:"name"`
	Status          string   `json:"status"`
	TrackingCompany string   `json:"tracking_company"`
	TrackingNumber  string   `json:"tracking_number"`
	TrackingNumbers []string `json:"tracking_numbers"`
}

// ParseFulfillmentPayload decodes and validates a fulfillment webhook
// body. A missing order id is a hard failure; a missing tracking
// number is not, fulfillments are frequently created before the label.
func ParseFulfillmentPayload(body []byte) (FulfillmentPayload, error) {
	var payload FulfillmentPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return FulfillmentPayload{}, core.WrapBadInput(err, "providers/shopify: decode fulfillment payload")
	}
	if payload.OrderID == 0 {
		return FulfillmentPayload{}, core.NewBadInput("providers/shopify: fulfillment payload is missing order_id")
	}
	return payload, nil
}

// Numbers returns every tracking number on the fulfillment, deduplicated
// and trimmed, preserving webhook order.
func (p FulfillmentPayload) Numbers() []string {
	seen := map[string]bool{}
	var out []string
	candidates := append([]string{p.TrackingNumber}, p.TrackingNumbers...)
	for _, number := range candidates {
		number = strings.TrimSpace(number)
		if number == "" || seen[number] {
			continue
		}
		seen[number] = true
		out = append(out, number)
	}
	return out
}

// FulfillmentHandler processes a verified fulfillment webhook: resolve
// the shop, upsert the order, create any missing shipments and enqueue
// their provider registration. Re-delivery of the same fulfillment is a
// no-op because shipments are keyed by (shop, tracking number).
type FulfillmentHandler struct {
	Shops     core.ShopStore
	Orders    core.OrderStore
	Shipments core.ShipmentStore
	Enqueuer  core.JobEnqueuer
	Logger    core.Logger
}

var _ core.WebhookHandler = (*FulfillmentHandler)(nil)

func NewFulfillmentHandler(
	shops core.ShopStore,
	orders core.OrderStore,
	shipments core.ShipmentStore,
	enqueuer core.JobEnqueuer,
	logger core.Logger,
) *FulfillmentHandler {
	return &FulfillmentHandler{
		Shops:     shops,
		Orders:    orders,
		Shipments: shipments,
		Enqueuer:  enqueuer,
		Logger:    logger,
	}
}

func (h *FulfillmentHandler) Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if h == nil || h.Shops == nil || h.Orders == nil || h.Shipments == nil || h.Enqueuer == nil {
		return core.InboundResult{}, fmt.Errorf("providers/shopify: fulfillment handler requires stores and enqueuer")
	}

	domain := strings.TrimSpace(headerValue(req.Headers, headerShopDomain))
	if domain == "" {
		return core.InboundResult{}, core.NewBadInput(
			fmt.Sprintf("providers/shopify: %s header is required", headerShopDomain),
		)
	}

	payload, err := ParseFulfillmentPayload(req.Body)
	if err != nil {
		return core.InboundResult{}, err
	}

	shop, err := h.Shops.GetByDomain(ctx, domain)
	if err != nil {
		if core.IsNotFound(err) {
			// The signature already proved the sender; an unknown domain
			// means the install record is gone. Ack so the platform stops
			// redelivering.
			h.logError("fulfillment webhook for unknown shop", "shop_domain", domain)
			return acceptedNoop("unknown_shop"), nil
		}
		return core.InboundResult{}, err
	}

	order, err := h.Orders.Upsert(ctx, core.Order{
		ShopID:          shop.ID,
		ExternalOrderID: fmt.Sprintf("%d", payload.OrderID),
		Name:            strings.TrimSpace(payload.Name),
	})
	if err != nil {
		return core.InboundResult{}, err
	}

	numbers := payload.Numbers()
	if len(numbers) == 0 {
		h.logInfo("fulfillment has no tracking number yet", "shop_id", shop.ID, "order_id", order.ID)
		return acceptedNoop("no_tracking_number"), nil
	}

	created := 0
	for _, number := range numbers {
		shipment, err := h.ensureShipment(ctx, shop.ID, order.ID, number, payload.TrackingCompany)
		if err != nil {
			return core.InboundResult{}, err
		}
		if shipment.Registered {
			continue
		}
		if err := h.Enqueuer.Enqueue(ctx, tasks.RegisterMessage{ShipmentID: shipment.ID}.Execution()); err != nil {
			return core.InboundResult{}, err
		}
		created++
	}

	h.logInfo("fulfillment webhook processed",
		"shop_id", shop.ID,
		"order_id", order.ID,
		"tracking_numbers", len(numbers),
		"registrations_enqueued", created,
	)
	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Metadata: map[string]any{
			"order_id":  order.ID,
			"shipments": len(numbers),
		},
	}, nil
}

// ensureShipment returns the existing shipment for (shop, number) or
// creates it in the ordered state.
func (h *FulfillmentHandler) ensureShipment(ctx context.Context, shopID, orderID, number, carrierHint string) (core.Shipment, error) {
	existing, err := h.Shipments.GetByShopAndNumber(ctx, shopID, number)
	if err == nil {
		return existing, nil
	}
	if !core.IsNotFound(err) {
		return core.Shipment{}, err
	}

	shipment := core.Shipment{
		ID:             uuid.NewString(),
		ShopID:         shopID,
		OrderID:        orderID,
		TrackingNumber: number,
		CarrierHint:    strings.TrimSpace(carrierHint),
		Status:         core.StatusOrdered,
	}
	if err := shipment.Validate(); err != nil {
		return core.Shipment{}, core.WrapBadInput(err, "providers/shopify: invalid shipment")
	}
	created, err := h.Shipments.Create(ctx, shipment)
	if err != nil {
		return core.Shipment{}, err
	}
	return created, nil
}

func acceptedNoop(reason string) core.InboundResult {
	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Metadata:   map[string]any{"skipped": reason},
	}
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func (h *FulfillmentHandler) logInfo(msg string, args ...any) {
	if h != nil && h.Logger != nil {
		h.Logger.Info(msg, args...)
	}
}

func (h *FulfillmentHandler) logError(msg string, args ...any) {
	if h != nil && h.Logger != nil {
		h.Logger.Error(msg, args...)
	}
}
