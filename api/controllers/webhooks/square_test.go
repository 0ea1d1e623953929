package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptlyprinted/promptly-backend/internal/webhooks"
	squarewebhook "github.com/promptlyprinted/promptly-backend/internal/webhooks/square"
)

const squareHookURL = "https://api.promptlyprinted.com/api/v1/webhooks/square"

type fakeSquareWebhookService struct {
	calls int
	last  *squarewebhook.SquareWebhookEvent
}

func (f *fakeSquareWebhookService) HandleEvent(ctx context.Context, event *squarewebhook.SquareWebhookEvent) error {
	f.calls++
	f.last = event
	return nil
}

func TestSquareWebhook_SuccessAndIdempotent(t *testing.T) {
	payload := buildSquareEvent(t, "payment.updated")
	header := buildSquareSignature(payload, squareHookURL, "secret")
	service := &fakeSquareWebhookService{}
	handler := SquareWebhook(service, &fakeSigningClient{secret: "secret"}, squareHookURL, newGuard(newInMemoryStore(), webhooks.ScopeSquare), nil, nil)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/square", bytes.NewReader(payload))
		req.Header.Set(squareSignatureHeader, header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	assert.Equal(t, 1, service.calls)
	require.NotNil(t, service.last.Data.Object.Payment)
	assert.Equal(t, "COMPLETED", service.last.Data.Object.Payment.Status)
}

func TestSquareWebhook_InvalidSignature(t *testing.T) {
	payload := buildSquareEvent(t, "payment.updated")
	service := &fakeSquareWebhookService{}
	handler := SquareWebhook(service, &fakeSigningClient{secret: "secret"}, squareHookURL, newGuard(newInMemoryStore(), webhooks.ScopeSquare), nil, nil)

	// Signed for a different notification URL.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/square", bytes.NewReader(payload))
	req.Header.Set(squareSignatureHeader, buildSquareSignature(payload, "https://elsewhere.example.com/hook", "secret"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Zero(t, service.calls)
}

func TestValidateSquareSignature(t *testing.T) {
	body := []byte(`{"event_id":"1"}`)
	sig := buildSquareSignature(body, squareHookURL, "secret")
	assert.True(t, validateSquareSignature(body, squareHookURL, "secret", sig))
	assert.False(t, validateSquareSignature(body, squareHookURL, "other", sig))
	assert.False(t, validateSquareSignature(body, squareHookURL, "", sig))
	assert.False(t, validateSquareSignature([]byte(`{"event_id":"2"}`), squareHookURL, "secret", sig))
}

func buildSquareEvent(t *testing.T, eventType string) []byte {
	t.Helper()
	paymentID := "sq_pay_" + uuid.NewString()
	event := &squarewebhook.SquareWebhookEvent{
		EventID: "evt_" + uuid.NewString(),
		Type:    eventType,
		Data: squarewebhook.SquareWebhookData{
			Type: "payment",
			ID:   paymentID,
			Object: squarewebhook.SquareWebhookObject{
				Payment: &squarewebhook.SquarePayment{ID: paymentID, Status: "COMPLETED", ReferenceID: "12"},
			},
		},
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return payload
}

func buildSquareSignature(payload []byte, url, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(url))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
