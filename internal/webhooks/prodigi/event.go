package prodigiwebhook

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	pkgerrors "github.com/promptlyprinted/promptly-backend/pkg/errors"
	"github.com/promptlyprinted/promptly-backend/pkg/prodigi"
)

// SpecVersion is the only CloudEvents version Prodigi sends.
const SpecVersion = "1.0"

const subjectPrefix = "ord_"

var typePattern = regexp.MustCompile(`^com\.prodigi\.([a-z]+)\.([a-z]+(?:\.[a-z]+)*)#([A-Za-z]+)$`)

// CloudEvent is the envelope Prodigi posts to the callback URL.
type CloudEvent struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	Source          string    `json:"source"`
	SpecVersion     string    `json:"specversion"`
	Subject         string    `json:"subject"`
	Time            string    `json:"time"`
	DataContentType string    `json:"datacontenttype,omitempty"`
	Data            EventData `json:"data"`
}

// EventData holds the event payload. Decoding it is deferred to DecodeOrder
// so that a malformed provider field cannot fail envelope validation.
type EventData struct {
	Order *prodigi.Order `json:"order"`

	raw json.RawMessage
}

// UnmarshalJSON keeps the payload bytes for DecodeOrder.
func (d *EventData) UnmarshalJSON(b []byte) error {
	d.raw = append(d.raw[:0], b...)
	return nil
}

// EventType is the decoded form of an event type such as
// com.prodigi.order.status.stage.changed#Complete.
type EventType struct {
	Object        string
	Path          string
	Value         string
	IsStageChange bool
	IsShipment    bool
}

// ParseType splits a Prodigi event type into its parts.
func ParseType(raw string) (EventType, error) {
	m := typePattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return EventType{}, pkgerrors.New(pkgerrors.CodeValidation, "unrecognised event type").
			WithDetails(map[string]any{"type": raw})
	}
	return EventType{
		Object:        m[1],
		Path:          m[2],
		Value:         m[3],
		IsStageChange: strings.HasPrefix(m[2], "status.stage"),
		IsShipment:    strings.HasPrefix(m[2], "shipments"),
	}, nil
}

// Validate checks the envelope and returns its parsed type.
func (e *CloudEvent) Validate() (EventType, error) {
	if e == nil {
		return EventType{}, pkgerrors.New(pkgerrors.CodeValidation, "event body required")
	}
	if e.SpecVersion != SpecVersion {
		return EventType{}, pkgerrors.New(pkgerrors.CodeValidation, "unsupported specversion").
			WithDetails(map[string]any{"specversion": e.SpecVersion})
	}
	parsed, err := ParseType(e.Type)
	if err != nil {
		return EventType{}, err
	}
	if !strings.HasPrefix(e.Subject, subjectPrefix) {
		return EventType{}, pkgerrors.New(pkgerrors.CodeValidation, "subject must be a prodigi order id").
			WithDetails(map[string]any{"subject": e.Subject})
	}
	return parsed, nil
}

// EnsureID fills a missing event id with a digest of type, subject and time
// so that redeliveries of the same event collapse onto one id.
func (e *CloudEvent) EnsureID() string {
	if id := strings.TrimSpace(e.ID); id != "" {
		e.ID = id
		return id
	}
	sum := sha256.Sum256([]byte(e.Type + "|" + e.Subject + "|" + e.Time))
	e.ID = "derived_" + hex.EncodeToString(sum[:])
	return e.ID
}

// OccurredAt is the event time, or fallback when absent or unparseable.
func (e *CloudEvent) OccurredAt(fallback time.Time) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(e.Time)); err == nil {
		return t.UTC()
	}
	return fallback
}

// DecodeOrder parses the order carried in the payload. It is a no-op when the
// order is already set or the event has no data.
func (e *CloudEvent) DecodeOrder() error {
	if e.Data.Order != nil {
		return nil
	}
	raw := strings.TrimSpace(string(e.Data.raw))
	if raw == "" || raw == "null" {
		return nil
	}
	var payload struct {
		Order *prodigi.Order `json:"order"`
	}
	if err := json.Unmarshal(e.Data.raw, &payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode order payload").
			WithDetails(map[string]any{"subject": e.Subject})
	}
	e.Data.Order = payload.Order
	return nil
}

// Order returns the provider order payload, never nil.
func (e *CloudEvent) Order() prodigi.Order {
	if e.Data.Order == nil {
		return prodigi.Order{}
	}
	return *e.Data.Order
}
