package fulfillment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/promptlyprinted/promptly-backend/internal/orders"
	"github.com/promptlyprinted/promptly-backend/pkg/db"
	"github.com/promptlyprinted/promptly-backend/pkg/db/dbtest"
	"github.com/promptlyprinted/promptly-backend/pkg/enums"
	"github.com/promptlyprinted/promptly-backend/pkg/logger"
	"github.com/promptlyprinted/promptly-backend/pkg/outbox"
	"github.com/promptlyprinted/promptly-backend/pkg/prodigi"
	"github.com/promptlyprinted/promptly-backend/pkg/redis"
)

type fakeGateway struct {
	session *CheckoutSession
	err     error
	calls   int
}

func (g *fakeGateway) RetrieveSession(_ context.Context, sessionID string) (*CheckoutSession, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	s := *g.session
	if s.ID == "" {
		s.ID = sessionID
	}
	return &s, nil
}

type fakeProdigi struct {
	mu          sync.Mutex
	requests    []prodigi.CreateOrderRequest
	err         error
	orderID     string
	afterCreate func()
	lookups     []string
	lookupErr   error
}

func (p *fakeProdigi) CreateOrder(_ context.Context, req prodigi.CreateOrderRequest) (*prodigi.CreateOrderResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	id := p.orderID
	if id == "" {
		id = "ord_840000"
	}
	if p.afterCreate != nil {
		defer p.afterCreate()
	}
	created := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	return &prodigi.CreateOrderResponse{
		Outcome: "Created",
		Order: &prodigi.Order{
			ID:      id,
			Created: &created,
			Status:  prodigi.Status{Stage: "InProgress"},
		},
		Raw: []byte(`{"outcome":"Created","order":{"id":"` + id + `"}}`),
	}, nil
}

func (p *fakeProdigi) GetOrder(_ context.Context, prodigiOrderID string) (*prodigi.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lookups = append(p.lookups, prodigiOrderID)
	if p.lookupErr != nil {
		return nil, p.lookupErr
	}
	return &prodigi.Order{ID: prodigiOrderID, Status: prodigi.Status{Stage: "InProgress"}}, nil
}

func (p *fakeProdigi) KeyDiagnostics() (bool, int) { return true, 36 }

// switchableTx runs transactions on the real connection until err is set.
type switchableTx struct {
	inner txRunner
	err   error
}

func (s *switchableTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.err != nil {
		return s.err
	}
	return s.inner.WithTx(ctx, fn)
}

type fakeResolver struct {
	err error
}

func (r fakeResolver) ResolveAssetURL(_ context.Context, raw string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "https://cdn.example.com/" + raw, nil
}

type memoryLocks struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryLocks() *memoryLocks {
	return &memoryLocks{data: map[string]string{}}
}

func (m *memoryLocks) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func (m *memoryLocks) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryLocks) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryLocks) LockKey(scope, id string) string {
	return "pp:lock:" + scope + ":" + id
}

type harness struct {
	conn     *gorm.DB
	svc      Service
	gateway  *fakeGateway
	prodigi  *fakeProdigi
	locks    *memoryLocks
	resolver *fakeResolver
	tx       *switchableTx
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	repo := orders.NewRepository(conn)
	publisher := outbox.NewService(outbox.NewRepository(conn), logger.Nop())
	orderSvc, err := orders.NewService(repo, publisher, logger.Nop())
	require.NoError(t, err)

	h := &harness{
		conn:     conn,
		gateway:  &fakeGateway{session: &CheckoutSession{}},
		prodigi:  &fakeProdigi{},
		locks:    newMemoryLocks(),
		resolver: &fakeResolver{},
		tx:       &switchableTx{inner: db.Wrap(conn)},
	}
	svc, err := NewService(ServiceParams{
		Gateways:     map[enums.PaymentProvider]PaymentGateway{enums.PaymentProviderStripe: h.gateway},
		Orders:       repo,
		OrderService: orderSvc,
		Tx:           h.tx,
		Outbox:       publisher,
		Prodigi:      h.prodigi,
		Assets:       h.resolver,
		Locks:        h.locks,
		Logger:       logger.Nop(),
		CallbackURL:  "https://api.promptlyprinted.com/api/v1/webhooks/prodigi",
		Now:          func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func paidSession(orderRef string) *CheckoutSession {
	return &CheckoutSession{
		ID:            "cs_test_123",
		Provider:      enums.PaymentProviderStripe,
		PaymentStatus: enums.PaymentStatusPaid,
		Metadata:      map[string]string{OrderIDMetadataKey: orderRef},
		Currency:      "USD",
		TransactionID: "pi_test_123",
		Customer: Customer{
			Name:  "Grace Hopper",
			Email: "grace@example.com",
			Address: Address{
				Line1:      "1 Navy Yard",
				City:       "Arlington",
				State:      "VA",
				PostalCode: "22202",
				Country:    "us",
			},
		},
	}
}

var errProviderDown = errors.New("prodigi: 503 service unavailable")
