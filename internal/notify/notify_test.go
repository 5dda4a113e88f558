package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quotedesk/internal/events"
	"github.com/noah-isme/quotedesk/internal/pricing"
	"github.com/noah-isme/quotedesk/internal/quote"
)

type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	ids   map[string]bool
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.ids == nil {
		f.ids = map[string]bool{}
	}
	var id string
	for _, o := range opts {
		if o.Type() == asynq.TaskIDOpt {
			id = o.Value().(string)
		}
	}
	if f.ids[id] {
		return nil, asynq.ErrTaskIDConflict
	}
	f.ids[id] = true
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: id, Type: task.Type()}, nil
}

func (f *fakeEnqueuer) decoded(t *testing.T) []EmailTask {
	t.Helper()
	out := make([]EmailTask, 0, len(f.tasks))
	for _, task := range f.tasks {
		var et EmailTask
		require.NoError(t, json.Unmarshal(task.Payload(), &et))
		out = append(out, et)
	}
	return out
}

type stubQuotes map[string]quote.Quote

func (s stubQuotes) Get(_ context.Context, id string) (quote.Quote, error) {
	q, ok := s[id]
	if !ok {
		return quote.Quote{}, quote.ErrNotFound
	}
	return q, nil
}

type captureSender struct {
	sent []Email
	err  error
}

func (c *captureSender) Send(_ context.Context, email Email) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.sent = append(c.sent, email)
	return "msg-1", nil
}

type fakePDF struct {
	err   error
	calls int
}

func (f *fakePDF) RenderPDF(context.Context, string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.7"), nil
}

func sampleQuote() quote.Quote {
	return quote.Quote{
		ID:        uuid.NewString(),
		Number:    "Q-2025-000042",
		Status:    quote.StatusSent,
		ExpiresAt: time.Date(2025, 3, 21, 9, 30, 0, 0, time.UTC),
		Customer: quote.Customer{
			Name:    "Jo Citizen",
			Email:   "jo@example.com",
			Phone:   "0400 000 000",
			Company: "Pipe Co",
			Address: quote.Address{Postcode: "6725", Suburb: "Broome", State: "WA"},
		},
		Items: []quote.Item{
			{ID: "1", Name: "Ball valve", Quantity: 3, Source: quote.Flat{Price: pricing.Cents(10_000), SKU: "VALVE-100"}},
			{ID: "2", Name: "Straub coupling", Brand: "Straub", Quantity: 1, Source: quote.CustomSpecs{SKU: "STRAUB-GRIP"}},
		},
		Totals: pricing.Summary{
			TotalQuantity: 4, DiscountPercent: 5, DiscountLabel: "2+ items",
			Subtotal: 30_000, Savings: 1_500, PreTax: 28_500, Tax: 2_850, Total: 31_350,
			HasUnpricedItems: true,
		},
		Flags: quote.Flags{TotalQuantity: 4, DeliveryZone: quote.ZoneRemote, NonMetro: true, Remote: true},
	}
}

func newTestProcessor(t *testing.T, q quote.Quote) (*Processor, *captureSender, *fakePDF) {
	t.Helper()
	renderer, err := NewRenderer("AUD", nil)
	require.NoError(t, err)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sender := &captureSender{}
	pdf := &fakePDF{}
	return &Processor{
		Quotes:      stubQuotes{q.ID: q},
		Renderer:    renderer,
		PDF:         pdf,
		Sender:      sender,
		Guard:       RedisDeliveryGuard{Client: client, Prefix: "notify:"},
		From:        "Quotes <quotes@example.com>",
		SalesEmail:  "sales@example.com",
		ApprovalURL: func(token string) string { return "https://shop.example.com/quote/approve/" + token },
		Logger:      zerolog.Nop(),
	}, sender, pdf
}

func mustTask(t *testing.T, et EmailTask) *asynq.Task {
	t.Helper()
	task, err := NewEmailTask(et)
	require.NoError(t, err)
	return task
}

func TestDispatcherEnqueuesPerRecipient(t *testing.T) {
	enq := &fakeEnqueuer{}
	d := Dispatcher{Client: enq, Logger: zerolog.Nop()}
	quoteID := uuid.New()
	ev := events.Event{
		ID:          uuid.New(),
		Topic:       events.TopicQuoteSubmitted,
		AggregateID: quoteID,
		Data:        quote.EventPayload{QuoteID: quoteID.String(), Number: "Q-2025-000001"},
	}

	require.NoError(t, d.Notify(context.Background(), ev))
	// replaying the same event is absorbed by the task id
	require.NoError(t, d.Notify(context.Background(), ev))

	tasks := enq.decoded(t)
	require.Len(t, tasks, 2)
	require.Equal(t, KindSubmittedSales, tasks[0].Kind)
	require.Equal(t, KindSubmittedCustomer, tasks[1].Kind)
	require.Equal(t, quoteID.String(), tasks[0].QuoteID)
	require.Empty(t, tasks[0].ApprovalToken)
}

func TestDispatcherCarriesApprovalTokenForSent(t *testing.T) {
	enq := &fakeEnqueuer{}
	d := Dispatcher{Client: enq, Logger: zerolog.Nop()}
	id := uuid.New()

	err := d.Notify(context.Background(), events.Event{
		ID: uuid.New(), Topic: events.TopicQuoteSent, AggregateID: id,
		Data: quote.EventPayload{QuoteID: id.String()},
	})
	require.Error(t, err)
	require.Empty(t, enq.tasks)

	require.NoError(t, d.Notify(context.Background(), events.Event{
		ID: uuid.New(), Topic: events.TopicQuoteSent, AggregateID: id,
		Data: quote.EventPayload{QuoteID: id.String(), ApprovalToken: "raw-token"},
	}))
	tasks := enq.decoded(t)
	require.Len(t, tasks, 1)
	require.Equal(t, "raw-token", tasks[0].ApprovalToken)
}

func TestDispatcherIgnoresUnknownTopicsAndReportsErrors(t *testing.T) {
	enq := &fakeEnqueuer{}
	d := Dispatcher{Client: enq}
	require.NoError(t, d.Notify(context.Background(), events.Event{ID: uuid.New(), Topic: "cart.updated", AggregateID: uuid.New()}))
	require.Empty(t, enq.tasks)

	enq.err = errors.New("redis down")
	err := d.Notify(context.Background(), events.Event{ID: uuid.New(), Topic: events.TopicQuoteApproved, AggregateID: uuid.New()})
	require.ErrorContains(t, err, "redis down")
}

func TestRendererSentQuote(t *testing.T) {
	renderer, err := NewRenderer("AUD", nil)
	require.NoError(t, err)
	q := sampleQuote()
	doc := renderer.Document(q)
	doc.ApprovalURL = "https://shop.example.com/quote/approve/abc"

	subject, html, err := renderer.Render(KindSent, doc)
	require.NoError(t, err)
	require.Equal(t, "Your quote Q-2025-000042", subject)
	require.Contains(t, html, "<title>Your quote Q-2025-000042</title>")
	require.Contains(t, html, "21 March 2025")
	require.Contains(t, html, "$313.50")
	require.Contains(t, html, "-$15.00")
	require.Contains(t, html, "POA")
	require.Contains(t, html, "STRAUB-GRIP")
	require.Contains(t, html, "https://shop.example.com/quote/approve/abc")
	require.Contains(t, html, "priced on application")
}

func TestRendererEscapesCustomerInput(t *testing.T) {
	renderer, err := NewRenderer("AUD", nil)
	require.NoError(t, err)
	q := sampleQuote()
	q.Notes = `<script>alert(1)</script>`
	_, html, err := renderer.Render(KindSubmittedSales, renderer.Document(q))
	require.NoError(t, err)
	require.NotContains(t, html, "<script>")
	require.Contains(t, html, "Delivery zone is remote")
}

func TestProcessorSendsQuoteWithPDF(t *testing.T) {
	q := sampleQuote()
	p, sender, pdf := newTestProcessor(t, q)

	task := mustTask(t, EmailTask{EventID: "ev1", Kind: KindSent, QuoteID: q.ID, ApprovalToken: "tok"})
	require.NoError(t, p.ProcessTask(context.Background(), task))

	require.Len(t, sender.sent, 1)
	email := sender.sent[0]
	require.Equal(t, []string{"jo@example.com"}, email.To)
	require.Contains(t, email.HTML, "/quote/approve/tok")
	require.Equal(t, 1, pdf.calls)
	require.Len(t, email.Attachments, 1)
	require.Equal(t, "Q-2025-000042.pdf", email.Attachments[0].Filename)

	// a retry after a successful send is suppressed
	require.NoError(t, p.ProcessTask(context.Background(), task))
	require.Len(t, sender.sent, 1)
}

func TestProcessorSendsWithoutPDFOnRenderFailure(t *testing.T) {
	q := sampleQuote()
	p, sender, pdf := newTestProcessor(t, q)
	pdf.err = errors.New("chrome missing")

	require.NoError(t, p.ProcessTask(context.Background(), mustTask(t, EmailTask{EventID: "ev1", Kind: KindSent, QuoteID: q.ID, ApprovalToken: "tok"})))
	require.Len(t, sender.sent, 1)
	require.Empty(t, sender.sent[0].Attachments)
}

func TestProcessorRoutesStaffEmails(t *testing.T) {
	q := sampleQuote()
	p, sender, pdf := newTestProcessor(t, q)

	require.NoError(t, p.ProcessTask(context.Background(), mustTask(t, EmailTask{EventID: "ev2", Kind: KindRejected, QuoteID: q.ID, Reason: "too pricey"})))
	require.Len(t, sender.sent, 1)
	require.Equal(t, []string{"sales@example.com"}, sender.sent[0].To)
	require.Equal(t, "jo@example.com", sender.sent[0].ReplyTo)
	require.Contains(t, sender.sent[0].HTML, "too pricey")
	require.Zero(t, pdf.calls)
}

func TestProcessorRetryableAndPermanentFailures(t *testing.T) {
	q := sampleQuote()
	p, sender, _ := newTestProcessor(t, q)

	sender.err = errors.New("provider 500")
	task := mustTask(t, EmailTask{EventID: "ev3", Kind: KindApproved, QuoteID: q.ID})
	err := p.ProcessTask(context.Background(), task)
	require.Error(t, err)
	require.False(t, errors.Is(err, asynq.SkipRetry))

	// the guard was released, so the retry goes out
	sender.err = nil
	require.NoError(t, p.ProcessTask(context.Background(), task))
	require.Len(t, sender.sent, 1)

	err = p.ProcessTask(context.Background(), mustTask(t, EmailTask{EventID: "ev4", Kind: KindApproved, QuoteID: uuid.NewString()}))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = p.ProcessTask(context.Background(), asynq.NewTask(TypeQuoteEmail, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestResendSenderPostsEmail(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/emails", r.URL.Path)
		require.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"email_123"}`))
	}))
	t.Cleanup(srv.Close)

	sender, err := NewResendSender("re_test", nil)
	require.NoError(t, err)
	sender.client.BaseURL, err = url.Parse(srv.URL + "/")
	require.NoError(t, err)

	id, err := sender.Send(context.Background(), Email{
		From:    "quotes@example.com",
		To:      []string{"jo@example.com"},
		Subject: "Your quote",
		HTML:    "<p>hi</p>",
		Attachments: []Attachment{
			{Filename: "Q-1.pdf", ContentType: "application/pdf", Content: []byte("%PDF")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "email_123", id)
	require.Equal(t, "Your quote", got["subject"])
	require.True(t, strings.HasPrefix(got["html"].(string), "<p>"))
	require.Len(t, got["attachments"], 1)

	_, err = NewResendSender(" ", nil)
	require.Error(t, err)
}
