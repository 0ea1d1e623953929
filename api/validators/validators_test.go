package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/promptlyprinted/promptly-backend/pkg/errors"
)

type noteBody struct {
	Reason string `json:"reason" validate:"omitempty,max=5"`
}

func TestDecodeJSONBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{name: "empty body", body: "", want: ""},
		{name: "valid", body: `{"reason":"late"}`, want: "late"},
		{name: "unknown field", body: `{"why":"x"}`, wantErr: true},
		{name: "too long", body: `{"reason":"much too long"}`, wantErr: true},
		{name: "malformed", body: `{"reason":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dest noteBody
			err := DecodeJSONBody(req, &dest)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, dest.Reason)
		})
	}
}

func TestPathID(t *testing.T) {
	withParam := func(v string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("orderId", v)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	id, err := PathID(withParam("42"), "orderId")
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)

	for _, raw := range []string{"", "0", "-1", "abc"} {
		_, err := PathID(withParam(raw), "orderId")
		assert.Error(t, err, raw)
	}
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=25&bad=x&big=500", nil)

	v, err := QueryInt(req, "limit", 10, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 25, v)

	v, err = QueryInt(req, "missing", 10, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	_, err = QueryInt(req, "bad", 10, 1, 100)
	assert.Error(t, err)
	_, err = QueryInt(req, "big", 10, 1, 100)
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("  abc  ", 10))
	assert.Equal(t, "ab", Truncate("abcdef", 2))
	assert.Equal(t, "né", Truncate("néé", 2))
	assert.Equal(t, "whole", Truncate("whole", 0))
}
