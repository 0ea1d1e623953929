package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptlyprinted/promptly-backend/pkg/enums"
	pkgerrors "github.com/promptlyprinted/promptly-backend/pkg/errors"
)

const retryPath = "/api/admin/v1/orders/7/fulfillment/retry"

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key], _ = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.data[key], _ = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func retryRequest(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, retryPath, strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	return req
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	called := false
	h := Idempotency(newFakeStore(), time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, retryRequest("", `{}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)
}

func TestIdempotencyReplaysCompletedResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	h := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, retryRequest("abc", `{"note":"x"}`))
	require.Equal(t, http.StatusAccepted, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, retryRequest("abc", `{"note":"x"}`))

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusAccepted, second.Code)
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, `{"ok":true}`, second.Body.String())

	for key, ttl := range store.ttls {
		assert.Equal(t, time.Hour, ttl, key)
	}
}

func TestIdempotencyRejectsChangedBody(t *testing.T) {
	h := Idempotency(newFakeStore(), time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	h.ServeHTTP(httptest.NewRecorder(), retryRequest("xyz", `{"note":"a"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, retryRequest("xyz", `{"note":"b"}`))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeConflict), errorCode(t, rec))
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, time.Hour, nil)

	var inner *httptest.ResponseRecorder
	outer := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// A second delivery arrives while the first still holds the key.
		inner = httptest.NewRecorder()
		mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("duplicate must not run the handler")
		})).ServeHTTP(inner, retryRequest("dup", `{}`))
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	outer.ServeHTTP(rec, retryRequest("dup", `{}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, inner)
	assert.Equal(t, http.StatusConflict, inner.Code)
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := newFakeStore()
	status := http.StatusBadGateway
	calls := 0
	h := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(status)
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, retryRequest("k", `{}`))
	assert.Equal(t, http.StatusBadGateway, first.Code)
	assert.Empty(t, store.data)

	status = http.StatusOK
	second := httptest.NewRecorder()
	h.ServeHTTP(second, retryRequest("k", `{}`))
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, 2, calls)
	assert.Len(t, store.data, 1)
}

func TestIdempotencyKeepsClientErrors(t *testing.T) {
	calls := 0
	h := Idempotency(newFakeStore(), time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, retryRequest("k422", `{}`))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	}
	assert.Equal(t, 1, calls)
}

func TestIdempotencyScopesByStaff(t *testing.T) {
	calls := 0
	h := Idempotency(newFakeStore(), time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	for _, staff := range []string{"staff-a", "staff-b"} {
		req := retryRequest("same", `{}`)
		req = req.WithContext(WithStaff(req.Context(), staff, enums.StaffRoleAdmin))
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotencyWithoutStorePassesThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	Idempotency(nil, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rec, retryRequest("", `{}`))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
