package proof

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"campusmart-be/internal/logger"

	"go.uber.org/zap"
)

// StatusFailed is the degraded marker persisted when the proof service is
// unreachable. The custody transition that triggered the submission has
// already committed and must not be rolled back over this.
const StatusFailed = "failed"

const (
	EventVendorHandoff   = "vendor_handoff"
	EventBuyerPickup     = "buyer_pickup"
	EventDirectDelivery  = "direct_delivery"
	defaultSubmitTimeout = 10 * time.Second
)

// Event is the tamper-evident record of one custody transfer.
type Event struct {
	OrderID    string    `json:"orderId"`
	ShipmentID string    `json:"shipmentId"`
	ActorID    uint      `json:"actorId"`
	EventType  string    `json:"eventType"`
	Timestamp  time.Time `json:"timestamp"`
}

type Receipt struct {
	ProofID string `json:"proofId"`
	Status  string `json:"status"`
}

type Client interface {
	Submit(ctx context.Context, ev Event) (*Receipt, error)
}

type httpClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) Client {
	if baseURL == "" {
		logger.L().Warn("proof service URL is empty, submissions will fail soft")
	}

	return &httpClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultSubmitTimeout,
		},
	}
}

func (c *httpClient) Submit(ctx context.Context, ev Event) (*Receipt, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/proofs", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read proof response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("proof service error: %s", string(respBody))
	}

	var receipt Receipt
	if err := json.Unmarshal(respBody, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// SubmitQuiet is the best-effort call every transfer site uses: it returns
// a proof id or the failed marker, never an error. Failures are logged at
// warn since the local transition already holds.
func SubmitQuiet(ctx context.Context, c Client, ev Event) string {
	receipt, err := c.Submit(ctx, ev)
	if err != nil {
		logger.FromCtx(ctx).Warn("proof submission degraded",
			zap.String("event_type", ev.EventType),
			zap.String("shipment_id", ev.ShipmentID),
			zap.Error(err),
		)
		return StatusFailed
	}
	return receipt.ProofID
}
