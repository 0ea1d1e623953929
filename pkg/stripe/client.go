package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/promptlyprinted/promptly-backend/pkg/config"
	pkgerrors "github.com/promptlyprinted/promptly-backend/pkg/errors"
	"github.com/promptlyprinted/promptly-backend/pkg/logger"
)

var errAPIKeyRequired = errors.New("stripe api key is required")

// keyPrefixes lists the secret and restricted key prefixes each
// environment accepts.
var keyPrefixes = map[string][]string{
	"test": {"sk_test", "rk_test"},
	"live": {"sk_live", "rk_live"},
}

// Client reads Checkout Sessions and carries the webhook signing secret.
type Client struct {
	api           *stripe.Client
	environment   string
	signingSecret string
}

// NewClient checks the key against the configured environment. The signing
// secret may be empty, in which case the webhook route refuses deliveries.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env := cfg.Environment()
	prefixes, ok := keyPrefixes[env]
	if !ok {
		return nil, fmt.Errorf("stripe environment %q is not test or live", env)
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if !slices.ContainsFunc(prefixes, func(p string) bool { return strings.HasPrefix(apiKey, p) }) {
		return nil, fmt.Errorf("stripe %s environment needs a key starting with %s", env, strings.Join(prefixes, " or "))
	}

	c := &Client{
		api:           stripe.NewClient(apiKey),
		environment:   env,
		signingSecret: strings.TrimSpace(cfg.Secret),
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"stripe_env":      env,
			"webhook_signing": c.signingSecret != "",
		}), "stripe client ready")
	}
	return c, nil
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// GetCheckoutSession fetches a session with its payment intent and line
// items expanded.
func (c *Client) GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	if c == nil || c.api == nil {
		return nil, errors.New("stripe client not initialized")
	}
	params := &stripe.CheckoutSessionRetrieveParams{}
	params.AddExpand("line_items")
	params.AddExpand("payment_intent")
	sess, err := c.api.V1CheckoutSessions.Retrieve(ctx, sessionID, params)
	if err != nil {
		return nil, mapError(err)
	}
	return sess, nil
}

func mapError(err error) error {
	var apiErr *stripe.Error
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stripe request")
	}
	code := pkgerrors.CodeUpstream
	switch {
	case apiErr.HTTPStatusCode == http.StatusNotFound:
		code = pkgerrors.CodeNotFound
	case apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden:
		code = pkgerrors.CodeUnauthorized
	case apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= http.StatusInternalServerError:
		code = pkgerrors.CodeDependency
	}
	return pkgerrors.Wrap(code, err, "stripe request").
		WithDetails(map[string]any{"stripe_code": string(apiErr.Code), "request_id": apiErr.RequestID})
}
