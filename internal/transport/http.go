package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"campusmart-be/internal/dispute"
	"campusmart-be/internal/fulfillment"
	"campusmart-be/internal/handoff"
	"campusmart-be/internal/logger"
	"campusmart-be/internal/order"
	"campusmart-be/internal/payment"
	"campusmart-be/internal/status"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler is the thin JSON surface over the fulfillment core. All domain
// rules live in the services; this layer only decodes, dispatches, and
// maps errors onto HTTP statuses.
type Handler struct {
	Orders      order.Service
	Fulfillment fulfillment.Service
	Handoff     handoff.Service
	Disputes    dispute.Service
	Gateway     payment.Gateway
	Payments    payment.Repository
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /payments/verify", h.verifyPayment)
	mux.HandleFunc("POST /intents/{id}/order", h.createOrder)
	mux.HandleFunc("GET /orders/{id}", h.getOrder)
	mux.HandleFunc("GET /orders/{id}/payment", h.getOrderPayment)
	mux.HandleFunc("GET /orders", h.listOrders)

	mux.HandleFunc("POST /handoff/scan", h.scan)
	mux.HandleFunc("POST /shipments/{id}/ready", h.markReady)
	mux.HandleFunc("POST /shipments/{id}/confirm-delivery", h.confirmDelivery)
	mux.HandleFunc("POST /shipments/{id}/status", h.updateShipmentStatus)
	mux.HandleFunc("POST /handovers/{id}/pickup", h.pickup)

	mux.HandleFunc("POST /shipments/{id}/disputes", h.openDispute)
	mux.HandleFunc("POST /disputes/{id}/responses", h.respondDispute)
	mux.HandleFunc("POST /disputes/{id}/resolve", h.resolveDispute)
}

// verifyPayment is the synchronous fulfillment trigger, driven by the
// buyer's browser after the gateway redirect. It races the webhook; both
// land on the same idempotent handler.
func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	reference := r.URL.Query().Get("reference")
	if reference == "" {
		writeJSONError(w, "missing reference", http.StatusBadRequest)
		return
	}

	event, err := h.Gateway.VerifyTransaction(r.Context(), reference)
	if err != nil {
		logger.FromCtx(r.Context()).Error("gateway verify failed",
			zap.String("reference", reference),
			zap.Error(err),
		)
		writeJSONError(w, "payment verification unavailable", http.StatusBadGateway)
		return
	}

	if !event.Successful() {
		writeJSONError(w, "payment not settled", http.StatusBadRequest)
		return
	}

	o, err := h.Fulfillment.FulfillOrder(r.Context(), reference)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// createOrder converts a captured payment intent into the pending order
// that verify/webhook will later settle. Replays return the existing order.
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, "invalid intent id", http.StatusBadRequest)
		return
	}

	o, err := h.Fulfillment.CreatePendingOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, "invalid order id", http.StatusBadRequest)
		return
	}

	o, err := h.Orders.GetOrderDetail(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getOrderPayment exposes the settlement audit row for an order. The
// order read runs first so its ownership check gates the payment too.
func (h *Handler) getOrderPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, "invalid order id", http.StatusBadRequest)
		return
	}

	if _, err := h.Orders.GetOrderDetail(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.Payments.GetPaymentByOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.ListOrders(r.Context(), 20, 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) scan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
		Token      string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	result, err := h.Handoff.HandoverItem(r.Context(), req.Identifier, req.Token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) markReady(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, "invalid shipment id", http.StatusBadRequest)
		return
	}

	shipment, err := h.Handoff.MarkAsReadyForPickup(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shipment)
}

func (h *Handler) confirmDelivery(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, "invalid shipment id", http.StatusBadRequest)
		return
	}

	shipment, err := h.Handoff.ConfirmDirectDelivery(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shipment)
}

func (h *Handler) updateShipmentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, "invalid shipment id", http.StatusBadRequest)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	shipment, err := h.Orders.UpdateShipmentStatus(r.Context(), id, status.ShipmentStatus(req.Status))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shipment)
}

func (h *Handler) pickup(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, "invalid handover id", http.StatusBadRequest)
		return
	}

	var req struct {
		Token    string  `json:"token"`
		Feedback *string `json:"feedback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	rec, err := h.Handoff.PickupItem(r.Context(), id, req.Token, req.Feedback)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) openDispute(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, "invalid shipment id", http.StatusBadRequest)
		return
	}

	var req struct {
		Reason      string   `json:"reason"`
		Description string   `json:"description"`
		Evidence    []string `json:"evidence"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	d, err := h.Disputes.OpenDispute(r.Context(), id, dispute.Reason(req.Reason), req.Description, req.Evidence)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *Handler) respondDispute(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, "invalid dispute id", http.StatusBadRequest)
		return
	}

	var req struct {
		Message  string   `json:"message"`
		Evidence []string `json:"evidence"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	d, err := h.Disputes.SubmitResponse(r.Context(), id, req.Message, req.Evidence)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) resolveDispute(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, "invalid dispute id", http.StatusBadRequest)
		return
	}

	var req struct {
		Outcome        string  `json:"outcome"`
		RefundedAmount float64 `json:"refunded_amount"`
		Notes          string  `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	d, err := h.Disputes.ResolveDispute(r.Context(), id, dispute.Outcome(req.Outcome), req.RefundedAmount, req.Notes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// writeError maps the core's error taxonomy onto HTTP statuses:
// not-found -> 404, authorization -> 403, precondition/invalid-transition/
// token-mismatch/validation -> 400.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var invalidTransition *status.InvalidTransitionError
	var precondition *handoff.PreconditionError

	switch {
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, order.ErrShipmentNotFound),
		errors.Is(err, order.ErrStoreNotFound),
		errors.Is(err, handoff.ErrHandoverNotFound),
		errors.Is(err, fulfillment.ErrIntentNotFound),
		errors.Is(err, payment.ErrPaymentNotFound),
		errors.Is(err, dispute.ErrDisputeNotFound):
		writeJSONError(w, err.Error(), http.StatusNotFound)

	case errors.Is(err, order.ErrUnauthorized),
		errors.Is(err, handoff.ErrUnauthorized),
		errors.Is(err, fulfillment.ErrUnauthorized),
		errors.Is(err, dispute.ErrUnauthorized):
		writeJSONError(w, err.Error(), http.StatusForbidden)

	case errors.As(err, &invalidTransition),
		errors.As(err, &precondition),
		errors.Is(err, handoff.ErrTokenMismatch),
		errors.Is(err, handoff.ErrAlreadyCollected),
		errors.Is(err, handoff.ErrAlreadyDelivered),
		errors.Is(err, handoff.ErrNotPickupOrder),
		errors.Is(err, order.ErrStaleStatus),
		errors.Is(err, fulfillment.ErrEmptyIntent),
		errors.Is(err, dispute.ErrActiveDisputeExists),
		errors.Is(err, dispute.ErrShipmentNotDelivered),
		errors.Is(err, dispute.ErrDisputeNotActive),
		errors.Is(err, dispute.ErrInvalidReason),
		errors.Is(err, dispute.ErrInvalidOutcome):
		writeJSONError(w, err.Error(), http.StatusBadRequest)

	default:
		logger.FromCtx(r.Context()).Error("unhandled service error", zap.Error(err))
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
