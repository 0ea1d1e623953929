// Package gcs turns design-asset references stored on line items into URLs
// Prodigi can download: public CDN links for the configured bucket, V2
// signed URLs otherwise.
package gcs

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/promptlyprinted/promptly-backend/pkg/config"
	"github.com/promptlyprinted/promptly-backend/pkg/logger"
)

const (
	readOnlyScope = "https://www.googleapis.com/auth/devstorage.read_only"
	storageHost   = "storage.googleapis.com"
	pingTimeout   = 5 * time.Second
)

type Client struct {
	http           *http.Client
	defaultBucket  string
	publicBaseURL  string
	urlExpiry      time.Duration
	serviceAccount *serviceAccountInfo
}

// serviceAccountInfo is present only when explicit credentials were given;
// metadata-server credentials cannot sign URLs.
type serviceAccountInfo struct {
	clientEmail string
	privateKey  *rsa.PrivateKey
}

// NewClient authenticates with the service-account JSON from gcp, or with
// application default credentials, and checks the bucket is listable.
func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("gcs bucket name is required")
	}
	credsJSON, err := credentialsJSON(gcp)
	if err != nil {
		return nil, err
	}

	var (
		creds *google.Credentials
		sa    *serviceAccountInfo
	)
	if len(credsJSON) > 0 {
		creds, err = google.CredentialsFromJSON(ctx, credsJSON, readOnlyScope)
		if err != nil {
			return nil, fmt.Errorf("parse gcp credentials: %w", err)
		}
		if sa, err = parseServiceAccount(credsJSON); err != nil {
			return nil, err
		}
	} else if creds, err = google.FindDefaultCredentials(ctx, readOnlyScope); err != nil {
		return nil, fmt.Errorf("find default gcp credentials: %w", err)
	}

	base := &http.Client{Timeout: 10 * time.Second}
	client := &Client{
		http:           oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, base), creds.TokenSource),
		defaultBucket:  cfg.BucketName,
		publicBaseURL:  strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
		urlExpiry:      cfg.DownloadURLExpiry,
		serviceAccount: sa,
	}
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"bucket":  cfg.BucketName,
			"signing": sa != nil,
		}), "gcs client ready")
	}
	return client, nil
}

func credentialsJSON(gcp config.GCPConfig) ([]byte, error) {
	if inline := strings.TrimSpace(gcp.CredentialsJSON); inline != "" {
		return []byte(inline), nil
	}
	if gcp.ApplicationCredentials == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(gcp.ApplicationCredentials)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}
	return raw, nil
}

// parseServiceAccount extracts the signing identity. Non service-account
// credentials (user or external account) yield nil and no error.
func parseServiceAccount(credsJSON []byte) (*serviceAccountInfo, error) {
	var sa struct {
		Type        string `json:"type"`
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
	}
	if err := json.Unmarshal(credsJSON, &sa); err != nil {
		return nil, fmt.Errorf("parse service account: %w", err)
	}
	if sa.Type != "service_account" {
		return nil, nil
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}
	return &serviceAccountInfo{clientEmail: sa.ClientEmail, privateKey: key}, nil
}

func (c *Client) DefaultBucket() string {
	if c == nil {
		return ""
	}
	return c.defaultBucket
}

func (c *Client) Close() error {
	return nil
}

// Ping lists at most one object from the default bucket.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.http == nil {
		return errors.New("gcs client not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	endpoint := (&url.URL{
		Scheme:   "https",
		Host:     storageHost,
		Path:     "/storage/v1/b/" + c.defaultBucket + "/o",
		RawQuery: "maxResults=1&fields=kind",
	}).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return fmt.Errorf("gcs bucket check: %s %s", resp.Status, strings.TrimSpace(string(snippet)))
}
