// Package square looks up Square payments for checkout finalization and
// holds the webhook signature key.
package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/promptlyprinted/promptly-backend/pkg/config"
	pkgerrors "github.com/promptlyprinted/promptly-backend/pkg/errors"
	"github.com/promptlyprinted/promptly-backend/pkg/logger"
)

var environments = map[string]string{
	"sandbox":    "https://connect.squareupsandbox.com",
	"production": "https://connect.squareup.com",
}

var errNotConfigured = errors.New("square client not configured")

type Client struct {
	payments     *sqclient.Client
	environment  string
	signatureKey string
	logg         *logger.Logger
}

// NewClient builds the SDK client for the configured environment, which
// defaults to sandbox.
func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	env := strings.ToLower(strings.TrimSpace(cfg.Environment()))
	if env == "" {
		env = "sandbox"
	}
	baseURL, ok := environments[env]
	if !ok {
		return nil, fmt.Errorf("square environment must be sandbox or production, got %q", env)
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, errors.New("square access token is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}

	c := &Client{
		payments:     sqclient.NewClient(sqoption.WithBaseURL(baseURL), sqoption.WithToken(token)),
		environment:  env,
		signatureKey: strings.TrimSpace(cfg.WebhookSecret),
		logg:         logg,
	}
	logg.Info(logg.WithFields(ctx, map[string]any{
		"square_env":        env,
		"webhook_signature": c.signatureKey != "",
	}), "square client ready")
	return c, nil
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret is the webhook subscription's signature key.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signatureKey
}

// GetPayment fetches a payment. Storefront payments carry the internal
// order id in reference_id.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error) {
	if c == nil || c.payments == nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, errNotConfigured, "square get payment")
	}
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "square payment id is required")
	}
	ctx = c.logg.WithField(ctx, "square_payment_id", paymentID)

	resp, err := c.payments.Payments.Get(ctx, &sq.GetPaymentsRequest{PaymentID: paymentID})
	if err != nil {
		mapped := mapError(err, "get payment")
		c.logg.Warn(c.logg.WithField(ctx, "error_code", pkgerrors.CodeOf(mapped)), "square payment lookup failed")
		return nil, mapped
	}
	payment := resp.GetPayment()
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "square payment not found")
	}
	c.logg.Debug(c.logg.WithField(ctx, "square_status", deref(payment.GetStatus())), "square payment fetched")
	return payment, nil
}

// statusCodes maps Square HTTP statuses onto domain codes. Statuses not
// listed fall back by class.
var statusCodes = map[int]pkgerrors.Code{
	http.StatusBadRequest:          pkgerrors.CodeValidation,
	http.StatusUnauthorized:        pkgerrors.CodeUnauthorized,
	http.StatusForbidden:           pkgerrors.CodeForbidden,
	http.StatusNotFound:            pkgerrors.CodeNotFound,
	http.StatusConflict:            pkgerrors.CodeConflict,
	http.StatusUnprocessableEntity: pkgerrors.CodeStateConflict,
	http.StatusTooManyRequests:     pkgerrors.CodeDependency,
}

func codeForStatus(status int) pkgerrors.Code {
	if code, ok := statusCodes[status]; ok {
		return code
	}
	if status >= 400 && status < 500 {
		return pkgerrors.CodeValidation
	}
	return pkgerrors.CodeDependency
}

func mapError(err error, op string) error {
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "square "+op)
	}
	code := codeForStatus(apiErr.StatusCode)
	for _, e := range apiErrors(apiErr) {
		if e.Category == sq.ErrorCategoryAuthenticationError {
			code = pkgerrors.CodeUnauthorized
			break
		}
	}
	return pkgerrors.Wrap(code, err, "square "+op)
}

// apiErrors decodes the {"errors":[...]} body the SDK wraps in APIError.
func apiErrors(apiErr *sqcore.APIError) []*sq.Error {
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	var body struct {
		Errors []*sq.Error `json:"errors"`
	}
	if json.Unmarshal([]byte(inner.Error()), &body) != nil {
		return nil
	}
	out := body.Errors[:0]
	for _, e := range body.Errors {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
