package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/quotedesk/internal/events"
	"github.com/noah-isme/quotedesk/internal/quote"
)

// Enqueuer is the subset of *asynq.Client used by the dispatcher.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher implements events.Notifier by enqueuing one email task per
// recipient for each quote event.
type Dispatcher struct {
	Client   Enqueuer
	Queue    string
	MaxRetry int
	Logger   zerolog.Logger
}

// Notify enqueues the emails for event. Tasks are keyed by event and kind so
// a replayed event does not send twice.
func (d Dispatcher) Notify(ctx context.Context, event events.Event) error {
	if d.Client == nil {
		return nil
	}
	kinds := kindsFor(event.Topic)
	if len(kinds) == 0 {
		return nil
	}
	payload, _ := event.Data.(quote.EventPayload)
	quoteID := payload.QuoteID
	if quoteID == "" {
		quoteID = event.AggregateID.String()
	}

	var joined error
	for _, kind := range kinds {
		t := EmailTask{
			EventID: event.ID.String(),
			Kind:    kind,
			QuoteID: quoteID,
			Reason:  payload.Reason,
		}
		if kind == KindSent {
			if payload.ApprovalToken == "" {
				joined = errors.Join(joined, fmt.Errorf("notify: %s event %s has no approval token", event.Topic, event.ID))
				continue
			}
			t.ApprovalToken = payload.ApprovalToken
		}
		if err := d.enqueue(ctx, t); err != nil {
			joined = errors.Join(joined, err)
		}
	}
	return joined
}

func (d Dispatcher) enqueue(ctx context.Context, t EmailTask) error {
	opts := []asynq.Option{
		asynq.TaskID(t.DedupKey()),
		asynq.MaxRetry(d.maxRetry()),
		asynq.Timeout(2 * time.Minute),
	}
	if d.Queue != "" {
		opts = append(opts, asynq.Queue(d.Queue))
	}
	task, err := NewEmailTask(t)
	if err != nil {
		return fmt.Errorf("notify: encode task: %w", err)
	}
	info, err := d.Client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		d.Logger.Debug().Str("task_id", t.DedupKey()).Msg("notification already queued")
		return nil
	}
	if err != nil {
		return fmt.Errorf("notify: enqueue %s: %w", t.Kind, err)
	}
	d.Logger.Debug().Str("task_id", info.ID).Str("kind", string(t.Kind)).Str("quote_id", t.QuoteID).Msg("notification queued")
	return nil
}

func (d Dispatcher) maxRetry() int {
	if d.MaxRetry > 0 {
		return d.MaxRetry
	}
	return 8
}
