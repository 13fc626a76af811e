package webhook

import (
	"encoding/json"
	"io"
	"net/http"

	"campusmart-be/internal/fulfillment"
	"campusmart-be/internal/logger"
	"campusmart-be/internal/payment"

	"go.uber.org/zap"
)

// WebhookPayload represents the JSON Paystack sends
type WebhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference string  `json:"reference"`
		Status    string  `json:"status"`
		Amount    float64 `json:"amount"`
	} `json:"data"`
}

// Handler is the asynchronous half of the dual fulfillment trigger; the
// synchronous verify endpoint is the other. Both land on the same
// idempotent FulfillOrder.
type Handler struct {
	Fulfillment fulfillment.Service
	Gateway     payment.Gateway
}

func NewWebhookHandler(svc fulfillment.Service, gateway payment.Gateway) *Handler {
	return &Handler{
		Fulfillment: svc,
		Gateway:     gateway,
	}
}

// WebhookHandler is the actual route handler
func (h *Handler) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	log := logger.FromCtx(r.Context())

	// 1. Read the raw body; the signature covers it byte for byte
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// 2. Verify signature for security
	if err := h.Gateway.VerifySignature(r, body); err != nil {
		log.Warn("webhook signature rejected", zap.Error(err))
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	// 3. Parse the event
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	log.Info("webhook received",
		zap.String("event", payload.Event),
		zap.String("reference", payload.Data.Reference),
	)

	// 4. Only settled charges trigger fulfillment; everything else acks
	if payload.Event != "charge.success" {
		w.WriteHeader(http.StatusOK)
		return
	}

	if _, err := h.Fulfillment.FulfillOrder(r.Context(), payload.Data.Reference); err != nil {
		log.Error("webhook fulfillment failed",
			zap.String("reference", payload.Data.Reference),
			zap.Error(err),
		)
		http.Error(w, "failed to fulfill order", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
