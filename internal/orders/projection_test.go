package orders

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptlyprinted/promptly-backend/pkg/db/models"
	"github.com/promptlyprinted/promptly-backend/pkg/enums"
)

func providerUpdate(id uint, eventID, stage, outcome string, at time.Time) models.OrderEvent {
	return models.OrderEvent{
		ID:      id,
		EventID: eventID,
		Source:  enums.OrderEventSourceProdigi,
		Kind:    enums.OrderEventProviderUpdate,
		Payload: map[string]any{
			"eventId": eventID,
			"type":    "com.prodigi.order.status.stage.changed#" + stage,
			"stage":   stage,
			"outcome": outcome,
			"status":  map[string]any{"stage": stage},
		},
		OccurredAt: at,
	}
}

func TestProjectMetadata_StageTimestamps(t *testing.T) {
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	events := []models.OrderEvent{
		providerUpdate(1, "evt_1", "InProgress", OutcomeApplied, base),
		providerUpdate(2, "evt_2", "Complete", OutcomeApplied, base.Add(time.Hour)),
	}

	meta := ProjectMetadata(events)
	require.NotNil(t, meta.CompletedAt)
	assert.True(t, meta.CompletedAt.Equal(base.Add(time.Hour)))
	assert.Nil(t, meta.CanceledAt)
	require.NotNil(t, meta.LastEvent)
	assert.Equal(t, "evt_2", meta.LastEvent.ID)
	assert.Equal(t, "Complete", meta.LastEvent.Stage)
	assert.Equal(t, "Complete", meta.LastEvent.Status["stage"])
}

func TestProjectMetadata_RejectedUpdateLeavesTimestamps(t *testing.T) {
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	events := []models.OrderEvent{
		providerUpdate(1, "evt_1", "Cancelled", OutcomeRejected, base),
	}
	meta := ProjectMetadata(events)
	assert.Nil(t, meta.CanceledAt)
	require.NotNil(t, meta.LastEvent)
	assert.Equal(t, "evt_1", meta.LastEvent.ID)
}

func TestProjectMetadata_NonStageUpdateDoesNotStamp(t *testing.T) {
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	shipped := providerUpdate(1, "evt_ship", "Complete", "", base)
	noop := providerUpdate(2, "evt_done", "Complete", OutcomeNoop, base.Add(time.Minute))

	meta := ProjectMetadata([]models.OrderEvent{shipped})
	assert.Nil(t, meta.CompletedAt)
	require.NotNil(t, meta.LastEvent)

	meta = ProjectMetadata([]models.OrderEvent{shipped, noop})
	require.NotNil(t, meta.CompletedAt)
	assert.True(t, meta.CompletedAt.Equal(base.Add(time.Minute)))
}

func TestProjectMetadata_IsOrderIndependent(t *testing.T) {
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	events := []models.OrderEvent{
		providerUpdate(1, "evt_1", "InProgress", OutcomeApplied, base),
		{
			ID: 2, EventID: "evt_1:issues", Kind: enums.OrderEventIssuesReported,
			Payload:    map[string]any{"issues": []any{map[string]any{"errorCode": "items.assets.NotDownloaded"}}},
			OccurredAt: base,
		},
		{
			ID: 3, EventID: "f1", Kind: enums.OrderEventFulfillmentFailed,
			Payload:    map[string]any{"message": "boom"},
			OccurredAt: base.Add(time.Minute),
		},
		{
			ID: 4, EventID: "f2", Kind: enums.OrderEventFulfillmentPlaced,
			Payload:    map[string]any{"prodigiOrderId": "ord_1"},
			OccurredAt: base.Add(2 * time.Minute),
		},
		providerUpdate(5, "evt_2", "Cancelled", OutcomeApplied, base.Add(3*time.Minute)),
		providerUpdate(6, "evt_3", "Complete", OutcomeApplied, base.Add(3*time.Minute)),
	}

	want := ProjectMetadata(events)
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := make([]models.OrderEvent, len(events))
		copy(shuffled, events)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, ProjectMetadata(shuffled))
	}

	require.NotNil(t, want.CanceledAt)
	require.NotNil(t, want.CompletedAt)
	assert.Len(t, want.Issues, 1)
	assert.Equal(t, "ord_1", want.Fulfillment["prodigiOrderId"])
	assert.Nil(t, want.FulfillmentError)
	assert.Equal(t, "evt_3", want.LastEvent.ID)
}

func TestCurrentStage(t *testing.T) {
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	stored := "InProgress"

	assert.Equal(t, "OnHold", CurrentStage(&models.Order{}, nil))
	assert.Equal(t, "OnHold", CurrentStage(nil, nil))
	assert.Equal(t, "InProgress", CurrentStage(&models.Order{ProdigiStage: &stored}, nil))

	events := []models.OrderEvent{
		providerUpdate(2, "evt_2", "Complete", OutcomeApplied, base.Add(time.Hour)),
		providerUpdate(1, "evt_1", "InProgress", OutcomeApplied, base),
		{ID: 3, Kind: enums.OrderEventStatusChanged, OccurredAt: base.Add(2 * time.Hour)},
	}
	assert.Equal(t, "Complete", CurrentStage(&models.Order{ProdigiStage: &stored}, events))
}
