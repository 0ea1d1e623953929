package gcs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const defaultURLExpiry = 7 * 24 * time.Hour

// ErrUnresolvableAsset is returned when an asset reference cannot be turned
// into a fetchable URL.
var ErrUnresolvableAsset = errors.New("asset url cannot be resolved")

// ResolveAssetURL turns a stored design reference into a URL the print
// provider can download.
//
// gs://bucket/key and storage.googleapis.com/bucket/key references, as well
// as bare object keys, resolve to a public URL when a public base is
// configured and a signed URL otherwise. Any other http(s) URL is returned
// unchanged.
func (c *Client) ResolveAssetURL(ctx context.Context, raw string) (string, error) {
	if c == nil {
		return "", errors.New("gcs client not initialized")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty reference", ErrUnresolvableAsset)
	}

	bucket, object, ok := c.splitReference(raw)
	if !ok {
		return raw, nil
	}
	if object == "" {
		return "", fmt.Errorf("%w: %q has no object key", ErrUnresolvableAsset, raw)
	}

	if c.publicBaseURL != "" && bucket == c.defaultBucket {
		return c.publicBaseURL + "/" + object, nil
	}

	expiry := c.urlExpiry
	if expiry <= 0 {
		expiry = defaultURLExpiry
	}
	signed, err := c.SignedReadURL(bucket, object, expiry)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnresolvableAsset, err)
	}
	return signed, nil
}

// splitReference reports the bucket and object for references that live in
// GCS. ok is false for foreign URLs.
func (c *Client) splitReference(raw string) (bucket, object string, ok bool) {
	if strings.HasPrefix(raw, "gs://") {
		rest := strings.TrimPrefix(raw, "gs://")
		bucket, object, _ = strings.Cut(rest, "/")
		return bucket, object, true
	}

	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		u, err := url.Parse(raw)
		if err != nil || !strings.EqualFold(u.Host, storageHost) || u.RawQuery != "" {
			return "", "", false
		}
		bucket, object, _ = strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if bucket == "" {
			return "", "", false
		}
		return bucket, object, true
	}

	return c.defaultBucket, strings.TrimLeft(raw, "/"), true
}
