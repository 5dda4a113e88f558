package quote

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/noah-isme/quotedesk/internal/common"
)

// DefaultTokenTTL is how long an approval link stays valid after issue.
const DefaultTokenTTL = 7 * 24 * time.Hour

const tokenBytes = 32

// ExpiryOf returns the last instant of the month after createdAt's month.
// A quote created on Jan 31 expires at the end of February, and one created
// in December expires at the end of January the following year.
func ExpiryOf(createdAt time.Time) time.Time {
	y, m, _ := createdAt.Date()
	// day 0 of month m+2 normalises to the last day of month m+1
	return time.Date(y, m+2, 0, 23, 59, 59, int(time.Second-time.Nanosecond), createdAt.Location())
}

// ApprovalToken is a one-time credential for accepting a quote.
type ApprovalToken struct {
	Value     string
	ExpiresAt time.Time
}

// Hash returns the value stored in place of the raw token.
func (t ApprovalToken) Hash() string {
	return HashToken(t.Value)
}

// HashToken hashes a raw approval token for lookup.
func HashToken(value string) string {
	return common.Sha256Hex(value)
}

// Lifecycle issues approval tokens and computes validity windows.
type Lifecycle struct {
	TokenTTL time.Duration
	Now      func() time.Time
	Random   io.Reader
}

// NewLifecycle returns a lifecycle with the given token TTL.
func NewLifecycle(tokenTTL time.Duration) Lifecycle {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return Lifecycle{TokenTTL: tokenTTL, Now: time.Now, Random: rand.Reader}
}

func (l Lifecycle) now() time.Time {
	if l.Now == nil {
		return time.Now()
	}
	return l.Now()
}

// IssueApprovalToken generates an unguessable URL-safe token.
func (l Lifecycle) IssueApprovalToken() (ApprovalToken, error) {
	r := l.Random
	if r == nil {
		r = rand.Reader
	}
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return ApprovalToken{}, fmt.Errorf("quote: generate approval token: %w", err)
	}
	ttl := l.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return ApprovalToken{
		Value:     base64.RawURLEncoding.EncodeToString(buf),
		ExpiresAt: l.now().Add(ttl),
	}, nil
}

// Status is the approval state of a quote.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

var transitions = map[Status][]Status{
	StatusDraft: {StatusSent},
	StatusSent:  {StatusSent, StatusApproved, StatusRejected, StatusExpired},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusApproved, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether a quote may move from one status to another.
// Re-sending a sent quote is allowed so staff can issue a fresh link.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
