package prodigi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/promptlyprinted/promptly-backend/pkg/config"
	pkgerrors "github.com/promptlyprinted/promptly-backend/pkg/errors"
	"github.com/promptlyprinted/promptly-backend/pkg/logger"
)

const (
	sandboxEnv = "sandbox"
	liveEnv    = "live"

	sandboxBaseURL = "https://api.sandbox.prodigi.com/v4.0"
	liveBaseURL    = "https://api.prodigi.com/v4.0"

	defaultTimeout = 20 * time.Second
	maxErrorBody   = 4096
)

var (
	errAPIKeyRequired    = errors.New("prodigi api key is required")
	errInvalidProdigiEnv = fmt.Errorf("prodigi environment must be %q or %q", sandboxEnv, liveEnv)
)

// Client talks to the Prodigi Print API v4.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	environment string
	validate    *validator.Validate
	logg        *logger.Logger
}

// NewClient builds a Prodigi client from configuration.
func NewClient(ctx context.Context, cfg config.ProdigiConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = sandboxBaseURL
		if env == liveEnv {
			baseURL = liveBaseURL
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("prodigi client initialized (%s)", env))
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		apiKey:      apiKey,
		environment: env,
		validate:    validator.New(),
		logg:        logg,
	}, nil
}

// Environment reports the normalized Prodigi environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// KeyDiagnostics reports whether an API key is configured and its length,
// never the key itself.
func (c *Client) KeyDiagnostics() (present bool, length int) {
	if c == nil {
		return false, 0
	}
	return c.apiKey != "", len(c.apiKey)
}

// CreateOrder validates and submits a fulfillment order.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "prodigi client not initialized")
	}
	if err := c.validate.Struct(req); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid prodigi order request")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode prodigi order request")
	}

	raw, err := c.do(ctx, http.MethodPost, "/Orders", body)
	if err != nil {
		return nil, err
	}

	var resp CreateOrderResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "decode prodigi order response")
	}
	if resp.Order == nil || resp.Order.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUpstream, "prodigi order response missing order id").
			WithDetails(map[string]any{"outcome": resp.Outcome})
	}
	resp.Raw = raw
	return &resp, nil
}

// GetOrder fetches the provider's current view of an order.
func (c *Client) GetOrder(ctx context.Context, prodigiOrderID string) (*Order, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "prodigi client not initialized")
	}
	if !strings.HasPrefix(prodigiOrderID, "ord_") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "prodigi order id must start with ord_")
	}
	raw, err := c.do(ctx, http.MethodGet, "/Orders/"+prodigiOrderID, nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Outcome string `json:"outcome"`
		Order   *Order `json:"order"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "decode prodigi order")
	}
	if resp.Order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "prodigi order not found")
	}
	return resp.Order, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build prodigi request")
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "prodigi request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read prodigi response")
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return raw, nil
	}
	return nil, mapStatusError(resp.StatusCode, raw)
}

func mapStatusError(status int, raw []byte) error {
	snippet := raw
	if len(snippet) > maxErrorBody {
		snippet = snippet[:maxErrorBody]
	}
	details := map[string]any{
		"status": status,
		"body":   strings.TrimSpace(string(snippet)),
	}
	var envelope struct {
		Outcome    string `json:"outcome"`
		StatusText string `json:"statusText"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Outcome != "" {
		details["outcome"] = envelope.Outcome
	}

	msg := fmt.Sprintf("prodigi returned %d", status)
	switch {
	case status == http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, msg).WithDetails(details)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return pkgerrors.New(pkgerrors.CodeDependency, msg+" (check api key)").WithDetails(details)
	case status >= 500 || status == http.StatusTooManyRequests:
		return pkgerrors.New(pkgerrors.CodeDependency, msg).WithDetails(details)
	default:
		return pkgerrors.New(pkgerrors.CodeUpstream, msg).WithDetails(details)
	}
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidProdigiEnv
	}
}
