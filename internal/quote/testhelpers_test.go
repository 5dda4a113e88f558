package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/events"
	"github.com/noah-isme/quotedesk/internal/lock"
	"github.com/noah-isme/quotedesk/internal/pricing"
)

type stubCatalog map[string]catalog.Product

func (c stubCatalog) GetProduct(_ context.Context, id string) (catalog.Product, error) {
	p, ok := c[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

// memStore mimics the conditional updates of the Postgres store.
type memStore struct {
	mu     sync.Mutex
	quotes map[string]Quote
	// collide makes the next n writes report a duplicate token
	collide int
}

func newMemStore() *memStore {
	return &memStore{quotes: make(map[string]Quote)}
}

func (s *memStore) Create(_ context.Context, q *Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkToken(q.TokenHash, ""); err != nil {
		return err
	}
	q.ID = uuid.NewString()
	s.quotes[q.ID] = cloneQuote(*q)
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[id]
	if !ok {
		return Quote{}, ErrNotFound
	}
	return cloneQuote(q), nil
}

func (s *memStore) GetByTokenHash(_ context.Context, hash string) (Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.quotes {
		if q.TokenHash == hash {
			return cloneQuote(q), nil
		}
	}
	return Quote{}, ErrTokenNotFound
}

func (s *memStore) MarkSent(_ context.Context, q Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.quotes[q.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Status != StatusDraft && current.Status != StatusSent {
		return ErrInvalidTransition
	}
	if err := s.checkToken(q.TokenHash, q.ID); err != nil {
		return err
	}
	s.quotes[q.ID] = cloneQuote(q)
	return nil
}

func (s *memStore) ConsumeToken(_ context.Context, hash string, to Status, reason string, now time.Time) (Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, q := range s.quotes {
		if q.TokenHash != hash {
			continue
		}
		if err := q.CheckToken(now); err != nil {
			return Quote{}, err
		}
		q.Status = to
		q.DecidedAt = &now
		q.DecisionReason = reason
		s.quotes[id] = q
		return cloneQuote(q), nil
	}
	return Quote{}, ErrTokenNotFound
}

func (s *memStore) ExpireStale(_ context.Context, now time.Time) ([]Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Quote
	for id, q := range s.quotes {
		if q.Status == StatusSent && q.ExpiresAt.Before(now) {
			q.Status = StatusExpired
			s.quotes[id] = q
			out = append(out, cloneQuote(q))
		}
	}
	return out, nil
}

func (s *memStore) List(_ context.Context, filter ListFilter) ([]Quote, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []Quote
	for _, q := range s.quotes {
		if filter.Status == "" || q.Status == filter.Status {
			all = append(all, cloneQuote(q))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	if filter.Offset >= len(all) {
		return []Quote{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[filter.Offset:end], total, nil
}

func (s *memStore) checkToken(hash, ownID string) error {
	if s.collide > 0 {
		s.collide--
		return ErrDuplicateToken
	}
	if hash == "" {
		return nil
	}
	for id, q := range s.quotes {
		if id != ownID && q.TokenHash == hash {
			return ErrDuplicateToken
		}
	}
	return nil
}

// cloneQuote deep-copies through JSON the way the database does.
func cloneQuote(q Quote) Quote {
	data, err := json.Marshal(q)
	if err != nil {
		panic(err)
	}
	var out Quote
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	out.TokenHash = q.TokenHash
	out.TokenExpiresAt = q.TokenExpiresAt
	return out
}

type seqNumberer struct {
	mu sync.Mutex
	n  int
}

func (s *seqNumberer) Next(_ context.Context, at time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return FormatNumber("Q", at.Year(), int64(s.n)), nil
}

type recordedEvent struct {
	Topic   string
	Payload EventPayload
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (r *recordingEmitter) Emit(_ context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return events.Event{}, r.err
	}
	p, ok := payload.(EventPayload)
	if !ok {
		return events.Event{}, fmt.Errorf("unexpected payload %T", payload)
	}
	r.events = append(r.events, recordedEvent{Topic: topic, Payload: p})
	return events.Event{ID: uuid.New(), Topic: topic, AggregateID: aggregateID, Data: payload}, nil
}

func (r *recordingEmitter) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Topic)
	}
	return out
}

func (r *recordingEmitter) last() recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type serviceFixture struct {
	svc    *Service
	store  *memStore
	events *recordingEmitter
	clock  *clock
	redis  *miniredis.Miniredis
}

func newServiceFixture(t *testing.T) serviceFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clk := &clock{now: time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)}
	store := newMemStore()
	emitter := &recordingEmitter{}
	lifecycle := NewLifecycle(7 * 24 * time.Hour)
	lifecycle.Now = clk.Now

	svc, err := NewService(ServiceConfig{
		Catalog: stubCatalog{
			"valve":  flatValve(),
			"gate":   sizedGate(),
			"straub": straubCoupling(),
		},
		Carts:     RedisCartStore{R: client},
		Store:     store,
		Numbers:   &seqNumberer{},
		Locker:    lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond, Prefix: "lock:"},
		Events:    emitter,
		Builder:   testBuilder(),
		Assembler: Assembler{Calculator: pricing.NewCalculator(pricing.DefaultPolicy())},
		Lifecycle: lifecycle,
		Logger:    zerolog.Nop(),
		Now:       clk.Now,
	})
	require.NoError(t, err)
	return serviceFixture{svc: svc, store: store, events: emitter, clock: clk, redis: mr}
}

func testCustomer() Customer {
	return Customer{
		Name:    "Jo Citizen",
		Email:   "jo@example.com",
		Phone:   "0400 000 000",
		Company: "Citizen Plumbing",
		Address: Address{Line1: "1 Hay St", Suburb: "Perth", State: "WA", Postcode: "6000"},
	}
}
