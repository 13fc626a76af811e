package payment

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"context"

	"campusmart-be/internal/logger"

	"go.uber.org/zap"
)

const paystackBaseURL = "https://api.paystack.co"

type paystackGateway struct {
	secretKey  string
	httpClient *http.Client
}

// ----------------- Constructor -----------------

func NewPaystackGateway(secretKey string) Gateway {
	if secretKey == "" {
		logger.L().Warn("Paystack secret key is empty")
	}

	return &paystackGateway{
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ----------------- VerifyTransaction -----------------

func (p *paystackGateway) VerifyTransaction(ctx context.Context, reference string) (*VerificationEvent, error) {
	log := logger.L().With(zap.String("reference", reference))

	url := fmt.Sprintf("%s/transaction/verify/%s", paystackBaseURL, reference)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		log.Error("Failed building request", zap.Error(err))
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+p.secretKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		log.Error("Paystack request failed", zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("Failed to read response body", zap.Error(err))
		return nil, fmt.Errorf("failed to read paystack response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Error("Paystack returned error",
			zap.Int("http_status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		return nil, fmt.Errorf("paystack error: %s", string(bodyBytes))
	}

	var envelope struct {
		Status  bool              `json:"status"`
		Message string            `json:"message"`
		Data    VerificationEvent `json:"data"`
	}
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		log.Error("Failed decoding verification response", zap.Error(err))
		return nil, err
	}

	if !envelope.Status {
		return nil, fmt.Errorf("paystack verify failed: %s", envelope.Message)
	}

	// Paystack reports kobo; the ledger holds naira.
	envelope.Data.Amount = envelope.Data.Amount / 100

	log.Info("Transaction verified",
		zap.String("status", envelope.Data.Status),
		zap.Float64("amount", envelope.Data.Amount),
	)

	return &envelope.Data, nil
}

// ----------------- RequestRefund -----------------

func (p *paystackGateway) RequestRefund(ctx context.Context, reference string, amount float64) error {
	log := logger.L().With(
		zap.String("reference", reference),
		zap.Float64("amount", amount),
	)

	body := map[string]interface{}{
		"transaction": reference,
		"amount":      int64(amount * 100),
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", paystackBaseURL+"/refund", bytes.NewBuffer(jsonBody))
	if err != nil {
		log.Error("Failed creating refund request", zap.Error(err))
		return err
	}

	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		log.Error("Paystack refund request failed", zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read paystack response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		log.Error("Refund rejected",
			zap.Int("http_status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		return fmt.Errorf("paystack refund error: %s", string(bodyBytes))
	}

	log.Info("Refund requested")
	return nil
}

// ----------------- VerifySignature -----------------

// Paystack signs the raw body with HMAC-SHA512 of the secret key.
func (p *paystackGateway) VerifySignature(r *http.Request, body []byte) error {
	sig := r.Header.Get("x-paystack-signature")
	if p.secretKey == "" {
		return nil // skip in dev
	}

	mac := hmac.New(sha512.New, []byte(p.secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return errors.New("invalid webhook signature")
	}
	return nil
}
