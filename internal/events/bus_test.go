package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quotedesk/internal/events"
)

type stubStore struct {
	topic   string
	payload []byte
	err     error
}

func (s *stubStore) InsertDomainEvent(_ context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.Event, error) {
	if s.err != nil {
		return events.Event{}, s.err
	}
	s.topic = topic
	s.payload = payload
	return events.Event{ID: uuid.New(), Topic: topic, AggregateID: aggregateID, Payload: payload, OccurredAt: time.Now()}, nil
}

type captureNotifier struct {
	events []events.Event
	err    error
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return c.err
}

func TestEmitPersistsEvent(t *testing.T) {
	store := &stubStore{}
	notifier := &captureNotifier{}
	bus := events.Bus{Store: store, Notifiers: []events.Notifier{notifier}}

	payload := map[string]any{"quoteId": "123"}
	event, err := bus.Emit(context.Background(), events.TopicQuoteSubmitted, uuid.New(), payload)
	require.NoError(t, err)
	require.Equal(t, events.TopicQuoteSubmitted, store.topic)
	require.JSONEq(t, `{"quoteId":"123"}`, string(store.payload))
	require.Len(t, notifier.events, 1)
	require.Equal(t, event.ID, notifier.events[0].ID)
	require.Equal(t, payload, notifier.events[0].Data)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	require.Equal(t, "123", decoded["quoteId"])
}

func TestEmitJoinsNotifierErrors(t *testing.T) {
	failing := &captureNotifier{err: errors.New("smtp down")}
	healthy := &captureNotifier{}
	bus := events.Bus{Store: &stubStore{}, Notifiers: []events.Notifier{failing, nil, healthy}}

	_, err := bus.Emit(context.Background(), events.TopicQuoteSent, uuid.New(), nil)
	require.ErrorContains(t, err, "smtp down")
	require.Len(t, healthy.events, 1)
}

func TestEmitValidatesInput(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}
	_, err := bus.Emit(context.Background(), " ", uuid.New(), nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicQuoteSent, uuid.Nil, nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicQuoteSent, uuid.New(), "not json")
	require.Error(t, err)

	var empty *events.Bus
	_, err = empty.Emit(context.Background(), events.TopicQuoteSent, uuid.New(), nil)
	require.Error(t, err)
}

func TestEmitDoesNotNotifyWhenPersistFails(t *testing.T) {
	notifier := &captureNotifier{}
	bus := events.Bus{Store: &stubStore{err: errors.New("db down")}, Notifiers: []events.Notifier{notifier}}
	_, err := bus.Emit(context.Background(), events.TopicQuoteApproved, uuid.New(), nil)
	require.Error(t, err)
	require.Empty(t, notifier.events)
}
