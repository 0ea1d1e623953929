package orders

import (
	"sort"
	"time"

	"github.com/promptlyprinted/promptly-backend/pkg/db/models"
	"github.com/promptlyprinted/promptly-backend/pkg/enums"
)

// Event outcomes recorded on provider.update payloads.
const (
	OutcomeApplied  = "applied"
	OutcomeNoop     = "noop"
	OutcomeRejected = "rejected"
)

// Metadata is the read view of an order's history. It is never stored; it is
// recomputed from the order's events on every read.
type Metadata struct {
	CompletedAt      *time.Time     `json:"completedAt,omitempty"`
	CanceledAt       *time.Time     `json:"canceledAt,omitempty"`
	Issues           []any          `json:"issues,omitempty"`
	LastEvent        *LastEvent     `json:"lastEvent,omitempty"`
	Fulfillment      map[string]any `json:"fulfillment,omitempty"`
	FulfillmentError map[string]any `json:"fulfillmentError,omitempty"`
}

// LastEvent summarises the most recent provider callback.
type LastEvent struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Time   time.Time      `json:"time"`
	Stage  string         `json:"stage,omitempty"`
	Status map[string]any `json:"status,omitempty"`
}

// sortedEvents orders by occurrence, using insertion id to break ties.
func sortedEvents(events []models.OrderEvent) []models.OrderEvent {
	out := make([]models.OrderEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.Before(out[j].OccurredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ProjectMetadata folds events into the metadata view. The result depends
// only on the set of events, not on the order they were passed in.
func ProjectMetadata(events []models.OrderEvent) Metadata {
	var meta Metadata
	for _, ev := range sortedEvents(events) {
		switch ev.Kind {
		case enums.OrderEventProviderUpdate:
			at := ev.OccurredAt
			meta.LastEvent = &LastEvent{
				ID:     stringField(ev.Payload, "eventId"),
				Type:   stringField(ev.Payload, "type"),
				Time:   at,
				Stage:  stringField(ev.Payload, "stage"),
				Status: mapField(ev.Payload, "status"),
			}
			// Only stage-change deliveries carry an outcome.
			if outcome := stringField(ev.Payload, "outcome"); outcome != OutcomeApplied && outcome != OutcomeNoop {
				continue
			}
			switch enums.ProdigiStage(stringField(ev.Payload, "stage")) {
			case enums.ProdigiStageComplete:
				meta.CompletedAt = &at
			case enums.ProdigiStageCancelled:
				meta.CanceledAt = &at
			}
		case enums.OrderEventIssuesReported:
			if issues, ok := ev.Payload["issues"].([]any); ok {
				meta.Issues = issues
			}
		case enums.OrderEventFulfillmentPlaced:
			meta.Fulfillment = copyPayload(ev.Payload)
			meta.FulfillmentError = nil
		case enums.OrderEventFulfillmentFailed:
			meta.FulfillmentError = copyPayload(ev.Payload)
		}
	}
	return meta
}

// CurrentStage is the stage of the latest provider update, falling back to
// the stage stored on the order and finally to OnHold.
func CurrentStage(order *models.Order, events []models.OrderEvent) string {
	sorted := sortedEvents(events)
	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i].Kind != enums.OrderEventProviderUpdate {
			continue
		}
		if stage := stringField(sorted[i].Payload, "stage"); stage != "" {
			return stage
		}
	}
	if order != nil && order.ProdigiStage != nil && *order.ProdigiStage != "" {
		return *order.ProdigiStage
	}
	return string(enums.ProdigiStageOnHold)
}

func stringField(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	v, _ := payload[key].(string)
	return v
}

func mapField(payload map[string]any, key string) map[string]any {
	if payload == nil {
		return nil
	}
	v, _ := payload[key].(map[string]any)
	return v
}

func copyPayload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	return out
}
