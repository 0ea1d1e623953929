package square

import (
	"context"
	"errors"
	"net/http"
	"testing"

	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptlyprinted/promptly-backend/pkg/config"
	pkgerrors "github.com/promptlyprinted/promptly-backend/pkg/errors"
)

func TestCodeForStatus(t *testing.T) {
	tests := map[int]pkgerrors.Code{
		http.StatusUnauthorized:        pkgerrors.CodeUnauthorized,
		http.StatusNotFound:            pkgerrors.CodeNotFound,
		http.StatusTooManyRequests:     pkgerrors.CodeDependency,
		http.StatusUnprocessableEntity: pkgerrors.CodeStateConflict,
		http.StatusGone:                pkgerrors.CodeValidation,
		http.StatusBadGateway:          pkgerrors.CodeDependency,
	}
	for status, want := range tests {
		assert.Equal(t, want, codeForStatus(status), "status %d", status)
	}
}

func TestMapErrorPrefersAuthenticationCategory(t *testing.T) {
	body := `{"errors":[{"category":"AUTHENTICATION_ERROR","code":"UNAUTHORIZED"}]}`
	err := mapError(sqcore.NewAPIError(http.StatusBadRequest, errors.New(body)), "get payment")
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.CodeOf(err))
}

func TestMapErrorTransportFailureIsDependency(t *testing.T) {
	err := mapError(errors.New("dial tcp: timeout"), "get payment")
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
}

func TestAPIErrorsDecodesBody(t *testing.T) {
	body := `{"errors":[{"category":"API_ERROR","code":"NOT_FOUND","detail":"missing"}]}`
	got := apiErrors(sqcore.NewAPIError(http.StatusNotFound, errors.New(body)))
	require.Len(t, got, 1)
	assert.Equal(t, sq.ErrorCodeNotFound, got[0].GetCode())

	assert.Empty(t, apiErrors(sqcore.NewAPIError(http.StatusBadGateway, errors.New("<html>bad gateway</html>"))))
}

func TestGetPaymentGuards(t *testing.T) {
	var nilClient *Client
	_, err := nilClient.GetPayment(context.Background(), "pay_1")
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))

	c, err := NewClient(context.Background(), config.SquareConfig{AccessToken: "tok"}, nil)
	require.NoError(t, err)
	_, err = c.GetPayment(context.Background(), "  ")
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(context.Background(), config.SquareConfig{Env: "sandbox"}, nil)
	assert.Error(t, err, "missing access token")

	_, err = NewClient(context.Background(), config.SquareConfig{AccessToken: "tok", Env: "staging"}, nil)
	assert.Error(t, err, "unknown environment")

	c, err := NewClient(context.Background(), config.SquareConfig{AccessToken: "tok", WebhookSecret: " sig "}, nil)
	require.NoError(t, err)
	assert.Equal(t, "sandbox", c.Environment())
	assert.Equal(t, "sig", c.SigningSecret())
}
