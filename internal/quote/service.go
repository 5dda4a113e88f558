package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/events"
	"github.com/noah-isme/quotedesk/internal/obs"
	"github.com/noah-isme/quotedesk/internal/pricing"
)

const (
	lockTTL          = 30 * time.Second
	maxTokenAttempts = 3
)

// Locker serialises work on a key across processes.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// EventEmitter records domain events.
type EventEmitter interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Event, error)
}

// EventPayload is the body of quote domain events. The raw approval token is
// passed to in-process notifiers only and never persisted.
type EventPayload struct {
	QuoteID       string `json:"quoteId"`
	Number        string `json:"number"`
	Status        Status `json:"status"`
	CustomerEmail string `json:"customerEmail"`
	TotalCents    int64  `json:"totalCents"`
	Reason        string `json:"reason,omitempty"`
	ApprovalToken string `json:"-"`
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Catalog   catalog.Reader
	Carts     CartStore
	Store     Store
	Numbers   Numberer
	Locker    Locker
	Events    EventEmitter
	Builder   Builder
	Assembler Assembler
	Lifecycle Lifecycle
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Service runs the quote workflow from cart to customer decision.
type Service struct {
	catalog   catalog.Reader
	carts     CartStore
	store     Store
	numbers   Numberer
	locker    Locker
	events    EventEmitter
	builder   Builder
	assembler Assembler
	lifecycle Lifecycle
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService validates dependencies and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	switch {
	case cfg.Catalog == nil:
		return nil, errors.New("quote: catalog reader is required")
	case cfg.Carts == nil:
		return nil, errors.New("quote: cart store is required")
	case cfg.Store == nil:
		return nil, errors.New("quote: quote store is required")
	case cfg.Numbers == nil:
		return nil, errors.New("quote: numberer is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	lifecycle := cfg.Lifecycle
	if lifecycle.Now == nil {
		lifecycle.Now = now
	}
	return &Service{
		catalog:   cfg.Catalog,
		carts:     cfg.Carts,
		store:     cfg.Store,
		numbers:   cfg.Numbers,
		locker:    cfg.Locker,
		events:    cfg.Events,
		builder:   cfg.Builder,
		assembler: cfg.Assembler,
		lifecycle: lifecycle,
		logger:    cfg.Logger,
		now:       now,
	}, nil
}

// CartView is a cart with its current pricing.
type CartView struct {
	ID        string          `json:"id"`
	Items     []Item          `json:"items"`
	Totals    pricing.Summary `json:"totals"`
	NextTier  *pricing.Tier   `json:"nextTier,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// AddItemInput is a customer's selection for one product.
type AddItemInput struct {
	ProductID        string
	Size             string
	Quantity         int
	MaterialTestCert bool
	CustomSpecs      json.RawMessage
}

// AddResult reports the stored line and whether a discount tier was unlocked.
type AddResult struct {
	Cart   CartView   `json:"cart"`
	Item   Item       `json:"item"`
	Merged bool       `json:"merged"`
	Tier   TierChange `json:"tierChange"`
}

// UpdateItemInput changes a cart line. Nil fields are left alone.
type UpdateItemInput struct {
	Quantity         *int
	MaterialTestCert *bool
}

// SubmitInput carries the customer's details for a quote request.
type SubmitInput struct {
	Customer Customer
	Notes    string
}

// SendInput carries staff adjustments made before sending a quote.
type SendInput struct {
	ShippingCost  *pricing.Money
	ShippingNotes string
}

// PreviewInput prices a selection without storing anything.
type PreviewInput struct {
	Items        []AddItemInput
	ShippingCost *pricing.Money
}

// PreviewResult is an unsaved priced selection.
type PreviewResult struct {
	Items  []Item          `json:"items"`
	Totals pricing.Summary `json:"totals"`
	Tiers  []pricing.Tier  `json:"tiers"`
}

// CreateCart starts an empty cart.
func (s *Service) CreateCart(ctx context.Context) (CartView, error) {
	cart := Cart{ID: uuid.NewString(), Items: []Item{}, UpdatedAt: s.now()}
	if err := s.carts.Save(ctx, cart); err != nil {
		return CartView{}, err
	}
	return s.view(cart), nil
}

// GetCart loads a cart with its pricing.
func (s *Service) GetCart(ctx context.Context, cartID string) (CartView, error) {
	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return CartView{}, err
	}
	return s.view(cart), nil
}

// AddToCart builds an item from the catalog and merges it into the cart.
func (s *Service) AddToCart(ctx context.Context, cartID string, in AddItemInput) (AddResult, error) {
	product, err := s.catalog.GetProduct(ctx, in.ProductID)
	if err != nil {
		return AddResult{}, err
	}
	item, err := s.builder.Build(product, BuildOptions{
		Size:             in.Size,
		Quantity:         in.Quantity,
		MaterialTestCert: in.MaterialTestCert,
		CustomSpecs:      in.CustomSpecs,
	})
	if err != nil {
		return AddResult{}, err
	}

	var result AddResult
	err = s.withCart(ctx, cartID, func(cart *Cart) error {
		before := cart.TotalQuantity()
		stored, merged := cart.Add(item)
		result.Item = stored
		result.Merged = merged
		result.Tier = CompareTiers(s.assembler.Calculator.Discounts, before, cart.TotalQuantity())
		result.Cart = s.view(*cart)
		return nil
	})
	if err != nil {
		return AddResult{}, err
	}
	if result.Tier.Unlocked {
		s.logger.Debug().Str("cart_id", cartID).Int("discount_percent", result.Tier.Tier.Percentage).Msg("discount tier unlocked")
	}
	return result, nil
}

// UpdateCartItem changes quantity or certificate on a line. A quantity of
// zero or less removes the line.
func (s *Service) UpdateCartItem(ctx context.Context, cartID, itemID string, in UpdateItemInput) (CartView, error) {
	var view CartView
	err := s.withCart(ctx, cartID, func(cart *Cart) error {
		if in.MaterialTestCert != nil {
			if err := cart.SetCertificate(itemID, *in.MaterialTestCert); err != nil {
				return err
			}
		}
		if in.Quantity != nil {
			if err := cart.UpdateQuantity(itemID, *in.Quantity); err != nil {
				return err
			}
		}
		view = s.view(*cart)
		return nil
	})
	return view, err
}

// RemoveCartItem deletes a line.
func (s *Service) RemoveCartItem(ctx context.Context, cartID, itemID string) (CartView, error) {
	var view CartView
	err := s.withCart(ctx, cartID, func(cart *Cart) error {
		if err := cart.Remove(itemID); err != nil {
			return err
		}
		view = s.view(*cart)
		return nil
	})
	return view, err
}

// Preview prices a selection. Nothing is persisted.
func (s *Service) Preview(ctx context.Context, in PreviewInput) (PreviewResult, error) {
	if len(in.Items) == 0 {
		return PreviewResult{}, ErrEmptyCart
	}
	items := make([]Item, 0, len(in.Items))
	for _, sel := range in.Items {
		product, err := s.catalog.GetProduct(ctx, sel.ProductID)
		if err != nil {
			return PreviewResult{}, err
		}
		item, err := s.builder.Build(product, BuildOptions{
			Size:             sel.Size,
			Quantity:         sel.Quantity,
			MaterialTestCert: sel.MaterialTestCert,
			CustomSpecs:      sel.CustomSpecs,
		})
		if err != nil {
			return PreviewResult{}, fmt.Errorf("product %s: %w", sel.ProductID, err)
		}
		items = append(items, item)
	}
	return PreviewResult{
		Items:  items,
		Totals: s.assembler.Price(items, in.ShippingCost).Summary(),
		Tiers:  s.assembler.Calculator.Discounts.Tiers(),
	}, nil
}

// Submit turns the cart into a draft quote and clears the cart.
func (s *Service) Submit(ctx context.Context, cartID string, in SubmitInput) (Quote, error) {
	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return Quote{}, err
	}
	if len(cart.Items) == 0 {
		return Quote{}, ErrEmptyCart
	}
	now := s.now()
	q := s.assembler.Draft(cart.Items, in.Customer, in.Notes, now)
	if q.Number, err = s.numbers.Next(ctx, now); err != nil {
		return Quote{}, err
	}
	if _, err := s.withFreshToken(&q, func() error { return s.store.Create(ctx, &q) }); err != nil {
		return Quote{}, err
	}

	if err := s.carts.Delete(ctx, cartID); err != nil {
		s.logger.Warn().Err(err).Str("cart_id", cartID).Msg("clear submitted cart")
	}
	obs.ObserveSubmitted(q.Totals.Total)
	s.logger.Info().
		Str("quote_id", q.ID).
		Str("number", q.Number).
		Int("items", len(q.Items)).
		Int64("total_cents", q.Totals.Total).
		Bool("unpriced", q.Totals.HasUnpricedItems).
		Bool("flagged", !q.Flags.Standard()).
		Msg("quote_submitted")
	s.emit(ctx, events.TopicQuoteSubmitted, q, "", "")
	return q, nil
}

// Get loads a quote by id.
func (s *Service) Get(ctx context.Context, id string) (Quote, error) {
	return s.store.Get(ctx, id)
}

// List returns quotes for the back office.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Quote, int64, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.store.List(ctx, filter)
}

// Send prices the quote with shipping, issues a fresh approval link and
// moves it to sent. Sending an already sent quote replaces the link.
func (s *Service) Send(ctx context.Context, id string, in SendInput) (Quote, error) {
	if in.ShippingCost != nil && *in.ShippingCost < 0 {
		return Quote{}, ErrInvalidShipping
	}
	var (
		sent  Quote
		token ApprovalToken
	)
	err := s.withLock(ctx, "quote:"+id, func(ctx context.Context) error {
		q, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		if q.IsExpired(now) {
			return fmt.Errorf("%w: quote validity ended %s", ErrInvalidTransition, q.ExpiresAt.Format(time.DateOnly))
		}
		if err := q.Transition(StatusSent, now); err != nil {
			return err
		}
		s.assembler.Reprice(&q, in.ShippingCost, in.ShippingNotes)
		token, err = s.withFreshToken(&q, func() error { return s.store.MarkSent(ctx, q) })
		if err != nil {
			return err
		}
		sent = q
		return nil
	})
	if err != nil {
		return Quote{}, err
	}
	obs.ObserveSent()
	s.logger.Info().Str("quote_id", sent.ID).Str("number", sent.Number).Int64("total_cents", sent.Totals.Total).Msg("quote_sent")
	s.emit(ctx, events.TopicQuoteSent, sent, "", token.Value)
	return sent, nil
}

// ViewByToken loads the quote behind an approval link, failing when the
// link can no longer be used.
func (s *Service) ViewByToken(ctx context.Context, token string) (Quote, error) {
	if token == "" {
		return Quote{}, ErrTokenNotFound
	}
	q, err := s.store.GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		return Quote{}, err
	}
	if err := q.CheckToken(s.now()); err != nil {
		return q, err
	}
	return q, nil
}

// Approve accepts the quote behind token. A token approves at most once.
func (s *Service) Approve(ctx context.Context, token string) (Quote, error) {
	return s.decide(ctx, token, StatusApproved, "")
}

// Reject declines the quote behind token.
func (s *Service) Reject(ctx context.Context, token, reason string) (Quote, error) {
	return s.decide(ctx, token, StatusRejected, reason)
}

func (s *Service) decide(ctx context.Context, token string, to Status, reason string) (Quote, error) {
	if token == "" {
		obs.ObserveApproval(approvalResult(ErrTokenNotFound))
		return Quote{}, ErrTokenNotFound
	}
	q, err := s.store.ConsumeToken(ctx, HashToken(token), to, reason, s.now())
	if err != nil {
		obs.ObserveApproval(approvalResult(err))
		return Quote{}, err
	}
	obs.ObserveApproval(string(to))
	s.logger.Info().Str("quote_id", q.ID).Str("number", q.Number).Str("status", string(to)).Msg("quote_decided")

	topic := events.TopicQuoteApproved
	if to == StatusRejected {
		topic = events.TopicQuoteRejected
	}
	s.emit(ctx, topic, q, reason, "")
	return q, nil
}

// ExpireStale moves sent quotes past their validity to expired and returns
// how many were moved.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	expired, err := s.store.ExpireStale(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for _, q := range expired {
		s.emit(ctx, events.TopicQuoteExpired, q, "", "")
	}
	obs.ObserveExpired(len(expired))
	if len(expired) > 0 {
		s.logger.Info().Int("count", len(expired)).Msg("quotes_expired")
	}
	return len(expired), nil
}

func (s *Service) view(cart Cart) CartView {
	totals := s.assembler.Price(cart.Items, nil)
	v := CartView{ID: cart.ID, Items: cart.Items, Totals: totals.Summary(), UpdatedAt: cart.UpdatedAt}
	if v.Items == nil {
		v.Items = []Item{}
	}
	if next, ok := s.assembler.Calculator.Discounts.NextTier(totals.TotalQuantity); ok {
		v.NextTier = &next
	}
	return v
}

// withCart loads, mutates and saves a cart under the cart lock.
func (s *Service) withCart(ctx context.Context, cartID string, fn func(*Cart) error) error {
	return s.withLock(ctx, "cart:"+cartID, func(ctx context.Context) error {
		cart, err := s.carts.Get(ctx, cartID)
		if err != nil {
			return err
		}
		if err := fn(&cart); err != nil {
			return err
		}
		cart.UpdatedAt = s.now()
		return s.carts.Save(ctx, cart)
	})
}

func (s *Service) withLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	return s.locker.WithLock(ctx, key, lockTTL, fn)
}

// withFreshToken issues a token onto q and runs persist, retrying with a new
// token if storage reports a collision.
func (s *Service) withFreshToken(q *Quote, persist func() error) (ApprovalToken, error) {
	var lastErr error
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := s.lifecycle.IssueApprovalToken()
		if err != nil {
			return ApprovalToken{}, err
		}
		q.TokenHash = token.Hash()
		q.TokenExpiresAt = token.ExpiresAt
		lastErr = persist()
		if !errors.Is(lastErr, ErrDuplicateToken) {
			return token, lastErr
		}
		s.logger.Warn().Str("number", q.Number).Msg("approval token collision, reissuing")
	}
	return ApprovalToken{}, lastErr
}

func (s *Service) emit(ctx context.Context, topic string, q Quote, reason, rawToken string) {
	if s.events == nil {
		return
	}
	id, err := uuid.Parse(q.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("topic", topic).Msg("skip event for quote without id")
		return
	}
	payload := EventPayload{
		QuoteID:       q.ID,
		Number:        q.Number,
		Status:        q.Status,
		CustomerEmail: q.Customer.Email,
		TotalCents:    q.Totals.Total,
		Reason:        reason,
		ApprovalToken: rawToken,
	}
	if _, err := s.events.Emit(ctx, topic, id, payload); err != nil {
		s.logger.Error().Err(err).Str("topic", topic).Str("quote_id", q.ID).Msg("emit quote event")
	}
}

func approvalResult(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenAlreadyConsumed):
		return "consumed"
	case errors.Is(err, ErrTokenNotFound):
		return "not_found"
	case errors.Is(err, ErrNotSent):
		return "not_sent"
	default:
		return "error"
	}
}
