package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/promptlyprinted/promptly-backend/pkg/config"
	"github.com/promptlyprinted/promptly-backend/pkg/db/models"
	"github.com/promptlyprinted/promptly-backend/pkg/enums"
	"github.com/promptlyprinted/promptly-backend/pkg/logger"
	"github.com/promptlyprinted/promptly-backend/pkg/outbox"
	"github.com/promptlyprinted/promptly-backend/pkg/outbox/registry"
)

func orderRow(t *testing.T, orderID string, eventType enums.OutboxEventType) models.OutboxEvent {
	t.Helper()
	env := outbox.PayloadEnvelope{Version: 1, EventID: uuid.NewString(), OccurredAt: time.Now(), Data: json.RawMessage(`{}`)}
	payload, err := json.Marshal(env)
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       payload,
	}
}

func TestProcessBatchHoldsBackLaterEventsOfAFailedOrder(t *testing.T) {
	first := orderRow(t, "17", enums.EventOrderStatusChanged)
	second := orderRow(t, "17", enums.EventOrderShipped)
	other := orderRow(t, "18", enums.EventOrderFulfillmentPlaced)
	repo := &fakeRepo{events: []models.OutboxEvent{first, second, other}}
	pub := &fakePublisher{errs: map[uuid.UUID]error{first.ID: errors.New("transient")}}
	svc := newTestService(t, repo, pub, &fakeRegistry{}, &fakeDLQRepo{}, nil)

	outcome, err := svc.processBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, batchOutcome{fetched: 3, published: 1, retried: 1, deferred: 1}, outcome)
	assert.Equal(t, []uuid.UUID{first.ID}, repo.failed)
	assert.Equal(t, []uuid.UUID{other.ID}, repo.published)
	assert.Equal(t, []string{"order:17"}, pub.resumed)
}

func TestProcessBatchDeadLettersUndecodableRows(t *testing.T) {
	event := orderRow(t, "17", enums.EventOrderStatusChanged)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQRepo{}
	reg := &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	svc := newTestService(t, repo, &fakePublisher{}, reg, dlq, nil)

	outcome, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.deadLettered)

	require.Len(t, dlq.entries, 1)
	entry := dlq.entries[0]
	assert.Equal(t, event.ID, entry.EventID)
	assert.JSONEq(t, string(event.Payload), string(entry.Payload))
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
	require.NotNil(t, entry.ErrorMessage)
	assert.Contains(t, *entry.ErrorMessage, "invalid payload")
	assert.Equal(t, []uuid.UUID{event.ID}, repo.terminal)
}

func TestProcessBatchDeadLettersAfterMaxAttempts(t *testing.T) {
	event := orderRow(t, "17", enums.EventOrderStatusChanged)
	event.AttemptCount = 1
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQRepo{}
	pub := &fakePublisher{errs: map[uuid.UUID]error{event.ID: errors.New("deadline exceeded")}}
	svc := newTestService(t, repo, pub, &fakeRegistry{}, dlq, &config.OutboxConfig{BatchSize: 1, PollIntervalMS: 100, MaxAttempts: 2})

	outcome, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.deadLettered)
	require.Len(t, dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, dlq.entries[0].ErrorReason)
	assert.Empty(t, repo.failed)
}

func TestProcessBatchWithoutPublisherIsTerminal(t *testing.T) {
	event := orderRow(t, "3", enums.EventOrderShipped)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQRepo{}
	svc := newTestService(t, repo, nil, &fakeRegistry{}, dlq, nil)

	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, dlq.entries[0].ErrorReason)
}

func TestBuildMessageCarriesOrderAttributes(t *testing.T) {
	event := orderRow(t, "42", enums.EventOrderFulfillmentFailed)
	occurred := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	msg := buildMessage(event, &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: "orders"},
		Envelope:   outbox.PayloadEnvelope{Version: 1, EventID: "evt-1", OccurredAt: occurred},
	})

	assert.Equal(t, "order:42", msg.OrderingKey)
	assert.Equal(t, "42", msg.Attributes["order_id"])
	assert.Equal(t, "evt-1", msg.Attributes["event_id"])
	assert.Equal(t, string(enums.EventOrderFulfillmentFailed), msg.Attributes["event_type"])
	assert.Equal(t, "1", msg.Attributes["schema_version"])
	assert.Equal(t, "2026-05-01T12:00:00Z", msg.Attributes["occurred_at"])
	assert.Equal(t, []byte(event.Payload), msg.Data)
}

func TestPublisherCacheReusesAndStops(t *testing.T) {
	calls := 0
	pub := &fakePublisher{}
	cache := newPublisherCache(func(string) publisher {
		calls++
		return pub
	})
	assert.Same(t, pub, cache.get("orders"))
	assert.Same(t, pub, cache.get("orders"))
	assert.Equal(t, 1, calls)

	cache.stop()
	assert.True(t, pub.stopped)
	cache.get("orders")
	assert.Equal(t, 2, calls)
}

func TestNextBackoffIsCapped(t *testing.T) {
	assert.Equal(t, time.Second, nextBackoff(0, 500*time.Millisecond, 10*time.Second))
	assert.Equal(t, 10*time.Second, nextBackoff(8*time.Second, time.Second, 10*time.Second))
}

func newTestService(t *testing.T, repo outboxRepository, pub *fakePublisher, reg registryResolver, dlq dlqRepository, override *config.OutboxConfig) *Service {
	t.Helper()
	outboxCfg := config.OutboxConfig{BatchSize: 10, PollIntervalMS: 100, MaxAttempts: 5}
	if override != nil {
		outboxCfg = *override
	}
	svc, err := NewService(ServiceParams{
		Config:     &config.Config{Outbox: outboxCfg},
		Logger:     logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:         fakeDB{},
		PubSub:     fakePubSubClient{},
		Repository: repo,
		Registry:   reg,
		PublisherFactory: func(string) publisher {
			if pub == nil {
				return nil
			}
			return pub
		},
		DLQRepository: dlq,
	})
	require.NoError(t, err)
	return svc
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (f *fakeRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakePubSubClient struct{}

func (fakePubSubClient) Ping(context.Context) error { return nil }

func (fakePubSubClient) Publisher(string) *gcppubsub.Publisher { return nil }

// fakePublisher fails the rows listed in errs, matched on the event_id
// attribute the fake registry copies from the outbox row id.
type fakePublisher struct {
	errs    map[uuid.UUID]error
	resumed []string
	stopped bool
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	id, _ := uuid.Parse(msg.Attributes["event_id"])
	return fakePublishResult{err: f.errs[id]}
}

func (f *fakePublisher) ResumePublish(key string) { f.resumed = append(f.resumed, key) }

func (f *fakePublisher) Stop() { f.stopped = true }

type fakePublishResult struct{ err error }

func (f fakePublishResult) Get(context.Context) (string, error) { return "server-id", f.err }

type fakeRegistry struct{ err error }

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: "promptly-order-events", EventType: event.EventType, AggregateType: event.AggregateType},
		Envelope:   outbox.PayloadEnvelope{Version: 1, EventID: event.ID.String(), OccurredAt: time.Now()},
	}, nil
}

type fakeDLQRepo struct{ entries []models.OutboxDLQ }

func (f *fakeDLQRepo) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}
