package proof

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() Event {
	return Event{
		OrderID:    "ord-1",
		ShipmentID: "shp-1",
		ActorID:    30,
		EventType:  EventVendorHandoff,
		Timestamp:  time.Now(),
	}
}

func TestClient_Submit(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/proofs", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var ev Event
			require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
			assert.Equal(t, EventVendorHandoff, ev.EventType)

			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(Receipt{ProofID: "prf_42", Status: "recorded"})
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "test-key")
		receipt, err := c.Submit(context.Background(), sampleEvent())
		assert.NoError(t, err)
		assert.Equal(t, "prf_42", receipt.ProofID)
	})

	t.Run("ServerError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "")
		_, err := c.Submit(context.Background(), sampleEvent())
		assert.Error(t, err)
	})
}

func TestSubmitQuiet(t *testing.T) {
	t.Run("ReturnsProofID", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(Receipt{ProofID: "prf_7", Status: "recorded"})
		}))
		defer srv.Close()

		got := SubmitQuiet(context.Background(), NewClient(srv.URL, ""), sampleEvent())
		assert.Equal(t, "prf_7", got)
	})

	t.Run("DegradesToFailedMarker", func(t *testing.T) {
		// Unreachable service: the caller gets the marker, never an error.
		got := SubmitQuiet(context.Background(), NewClient("http://127.0.0.1:1", ""), sampleEvent())
		assert.Equal(t, StatusFailed, got)
	})
}
