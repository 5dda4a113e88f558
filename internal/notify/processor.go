package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/quotedesk/internal/obs"
	"github.com/noah-isme/quotedesk/internal/quote"
)

const deliveryGuardTTL = 7 * 24 * time.Hour

// QuoteReader loads the quote an email is about.
type QuoteReader interface {
	Get(ctx context.Context, id string) (quote.Quote, error)
}

// Processor handles TypeQuoteEmail tasks in the worker.
type Processor struct {
	Quotes      QuoteReader
	Renderer    *Renderer
	PDF         PDFRenderer
	Sender      Sender
	Guard       DeliveryGuard
	From        string
	SalesEmail  string
	ApprovalURL func(token string) string
	Logger      zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (p *Processor) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var t EmailTask
	if err := json.Unmarshal(task.Payload(), &t); err != nil {
		return fmt.Errorf("notify: decode task: %v: %w", err, asynq.SkipRetry)
	}
	err := p.deliver(ctx, t)
	switch {
	case err == nil:
		obs.ObserveNotification(string(t.Kind), "sent")
	case errors.Is(err, asynq.SkipRetry):
		obs.ObserveNotification(string(t.Kind), "dropped")
		p.Logger.Warn().Err(err).Str("kind", string(t.Kind)).Str("quote_id", t.QuoteID).Msg("notification dropped")
	default:
		obs.ObserveNotification(string(t.Kind), "failed")
	}
	return err
}

func (p *Processor) deliver(ctx context.Context, t EmailTask) error {
	q, err := p.Quotes.Get(ctx, t.QuoteID)
	if errors.Is(err, quote.ErrNotFound) {
		return fmt.Errorf("notify: quote %s: %v: %w", t.QuoteID, err, asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("notify: load quote %s: %w", t.QuoteID, err)
	}

	to := p.recipient(t.Kind, q)
	if to == "" {
		return fmt.Errorf("notify: no recipient for %s: %w", t.Kind, asynq.SkipRetry)
	}
	doc := p.Renderer.Document(q)
	doc.Reason = t.Reason
	if t.Kind == KindSent && p.ApprovalURL != nil && t.ApprovalToken != "" {
		doc.ApprovalURL = p.ApprovalURL(t.ApprovalToken)
	}
	subject, html, err := p.Renderer.Render(t.Kind, doc)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	email := Email{
		From:    p.From,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
		Tags:    map[string]string{"kind": string(t.Kind)},
	}
	if t.Kind == KindSubmittedSales || t.Kind == KindApproved || t.Kind == KindRejected {
		email.ReplyTo = q.Customer.Email
	}
	if t.Kind == KindSent && p.PDF != nil {
		pdf, err := p.PDF.RenderPDF(ctx, html)
		if err != nil {
			p.Logger.Warn().Err(err).Str("quote_id", q.ID).Msg("quote pdf failed, sending without attachment")
		} else {
			email.Attachments = append(email.Attachments, Attachment{
				Filename:    q.Number + ".pdf",
				ContentType: "application/pdf",
				Content:     pdf,
			})
		}
	}

	key := t.DedupKey()
	if p.Guard != nil {
		ok, err := p.Guard.Acquire(ctx, key, deliveryGuardTTL)
		if err != nil {
			return fmt.Errorf("notify: delivery guard: %w", err)
		}
		if !ok {
			p.Logger.Info().Str("task", key).Msg("notification already delivered")
			return nil
		}
	}
	id, err := p.Sender.Send(ctx, email)
	if err != nil {
		if p.Guard != nil {
			if relErr := p.Guard.Release(ctx, key); relErr != nil {
				p.Logger.Warn().Err(relErr).Str("task", key).Msg("release delivery guard")
			}
		}
		return fmt.Errorf("notify: send %s: %w", t.Kind, err)
	}
	p.Logger.Info().
		Str("kind", string(t.Kind)).
		Str("quote_id", q.ID).
		Str("number", q.Number).
		Str("message_id", id).
		Msg("notification_sent")
	return nil
}

func (p *Processor) recipient(kind Kind, q quote.Quote) string {
	switch kind {
	case KindSubmittedCustomer, KindSent:
		return q.Customer.Email
	default:
		return p.SalesEmail
	}
}
