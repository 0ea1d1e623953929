package gcs

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SignedReadURL returns a V2 signed GET URL for the object.
func (c *Client) SignedReadURL(bucket, object string, expires time.Duration) (string, error) {
	if c == nil || c.serviceAccount == nil || c.serviceAccount.privateKey == nil {
		return "", errors.New("gcs signing requires service account credentials")
	}
	if bucket == "" {
		bucket = c.defaultBucket
	}
	if bucket == "" {
		return "", errors.New("bucket is required")
	}
	object = strings.TrimLeft(object, "/")
	if object == "" {
		return "", errors.New("object is required")
	}
	if expires <= 0 {
		return "", errors.New("expiry must be positive")
	}

	expiration := strconv.FormatInt(time.Now().Add(expires).Unix(), 10)
	stringToSign := "GET\n\n\n" + expiration + "\n/" + bucket + "/" + object

	hash := sha256.Sum256([]byte(stringToSign))
	sig, err := rsa.SignPKCS1v15(rand.Reader, c.serviceAccount.privateKey, crypto.SHA256, hash[:])
	if err != nil {
		return "", fmt.Errorf("sign url: %w", err)
	}

	q := url.Values{}
	q.Set("GoogleAccessId", c.serviceAccount.clientEmail)
	q.Set("Expires", expiration)
	q.Set("Signature", base64.StdEncoding.EncodeToString(sig))

	u := url.URL{
		Scheme:   "https",
		Host:     storageHost,
		Path:     "/" + bucket + "/" + object,
		RawQuery: q.Encode(),
	}
	return u.String(), nil
}
