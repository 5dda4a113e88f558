package quote

import (
	"fmt"
	"time"

	"github.com/noah-isme/quotedesk/internal/pricing"
)

// Customer holds the contact details captured on the quote form.
type Customer struct {
	Name    string  `json:"name" validate:"required,max=200"`
	Email   string  `json:"email" validate:"required,email,max=320"`
	Phone   string  `json:"phone" validate:"required,max=40"`
	Company string  `json:"company,omitempty" validate:"max=200"`
	Address Address `json:"address"`
}

// Address is the delivery address used for zone classification.
type Address struct {
	Line1    string `json:"line1,omitempty" validate:"max=200"`
	Suburb   string `json:"suburb,omitempty" validate:"max=100"`
	State    string `json:"state,omitempty" validate:"max=10"`
	Postcode string `json:"postcode,omitempty" validate:"omitempty,numeric,len=4"`
}

// Quote is a priced, time-bounded offer. Items are snapshots.
type Quote struct {
	ID             string          `json:"id"`
	Number         string          `json:"number"`
	CreatedAt      time.Time       `json:"createdAt"`
	ExpiresAt      time.Time       `json:"expiresAt"`
	Status         Status          `json:"status"`
	Customer       Customer        `json:"customer"`
	Notes          string          `json:"notes,omitempty"`
	Items          []Item          `json:"items"`
	Totals         pricing.Summary `json:"totals"`
	ShippingCost   *pricing.Money  `json:"shippingCost,omitempty"`
	ShippingNotes  string          `json:"shippingNotes,omitempty"`
	Flags          Flags           `json:"flags"`
	SentAt         *time.Time      `json:"sentAt,omitempty"`
	DecidedAt      *time.Time      `json:"decidedAt,omitempty"`
	DecisionReason string          `json:"decisionReason,omitempty"`

	TokenHash      string    `json:"-"`
	TokenExpiresAt time.Time `json:"-"`
}

// Transition moves the quote to status to, stamping the relevant time.
func (q *Quote) Transition(to Status, at time.Time) error {
	if !CanTransition(q.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, q.Status, to)
	}
	switch to {
	case StatusSent:
		q.SentAt = &at
	case StatusApproved, StatusRejected:
		q.DecidedAt = &at
	}
	q.Status = to
	return nil
}

// CheckToken reports why the quote's approval link cannot be used at now,
// or nil when it can.
func (q Quote) CheckToken(now time.Time) error {
	switch q.Status {
	case StatusApproved, StatusRejected:
		return ErrTokenAlreadyConsumed
	case StatusExpired:
		return ErrTokenExpired
	case StatusDraft:
		return ErrNotSent
	}
	if q.TokenHash == "" {
		return ErrTokenNotFound
	}
	if !now.Before(q.TokenExpiresAt) || now.After(q.ExpiresAt) {
		return ErrTokenExpired
	}
	return nil
}

// IsExpired reports whether the quote validity window has passed.
func (q Quote) IsExpired(now time.Time) bool {
	return now.After(q.ExpiresAt)
}
