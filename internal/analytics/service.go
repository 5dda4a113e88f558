// Package analytics reports quote volume and outcomes for admins.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotConfigured is returned when the service has no querier.
var ErrNotConfigured = errors.New("analytics: service not configured")

// DailyRow aggregates the quotes created on one day by their current status.
type DailyRow struct {
	Day           time.Time `json:"day"`
	Submitted     int64     `json:"submitted"`
	Sent          int64     `json:"sent"`
	Approved      int64     `json:"approved"`
	Rejected      int64     `json:"rejected"`
	Expired       int64     `json:"expired"`
	QuotedCents   int64     `json:"quotedCents"`
	ApprovedCents int64     `json:"approvedCents"`
}

// ProductRow counts how often a product appears on quotes.
type ProductRow struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Brand     string `json:"brand"`
	Quotes    int64  `json:"quotes"`
	Quantity  int64  `json:"quantity"`
}

// Summary is the funnel over a date range.
type Summary struct {
	From          time.Time  `json:"from"`
	To            time.Time  `json:"to"`
	Days          []DailyRow `json:"days"`
	Submitted     int64      `json:"submitted"`
	Decided       int64      `json:"decided"`
	Approved      int64      `json:"approved"`
	ApprovalRate  float64    `json:"approvalRate"`
	ApprovedCents int64      `json:"approvedCents"`
}

// Querier runs the aggregate queries.
type Querier interface {
	DailyQuotes(ctx context.Context, from, to time.Time) ([]DailyRow, error)
	TopProducts(ctx context.Context, from, to time.Time, limit, offset int) ([]ProductRow, error)
}

// Service provides cached access to quote aggregates.
type Service struct {
	Q            Querier
	R            *redis.Client
	TTL          time.Duration
	DefaultRange int
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts))
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

// Funnel summarises quotes created in [from, to). The approval rate is taken
// over decided quotes: approved, rejected and expired.
func (s *Service) Funnel(ctx context.Context, from, to time.Time) (Summary, error) {
	if s == nil || s.Q == nil {
		return Summary{}, ErrNotConfigured
	}
	key := cacheKey("an", "funnel", from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	var days []DailyRow
	if !s.load(ctx, key, &days) {
		rows, err := s.Q.DailyQuotes(ctx, from, to)
		if err != nil {
			return Summary{}, err
		}
		days = rows
		s.store(ctx, key, days)
	}

	sum := Summary{From: from, To: to, Days: days}
	if sum.Days == nil {
		sum.Days = []DailyRow{}
	}
	for _, d := range days {
		sum.Submitted += d.Submitted
		sum.Approved += d.Approved
		sum.Decided += d.Approved + d.Rejected + d.Expired
		sum.ApprovedCents += d.ApprovedCents
	}
	if sum.Decided > 0 {
		sum.ApprovalRate = float64(sum.Approved) / float64(sum.Decided)
	}
	return sum, nil
}

// TopProducts returns the products quoted most often in [from, to).
func (s *Service) TopProducts(ctx context.Context, from, to time.Time, limit, offset int) ([]ProductRow, error) {
	if s == nil || s.Q == nil {
		return nil, ErrNotConfigured
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	key := cacheKey("an", "top", from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339), limit, offset)
	var rows []ProductRow
	if s.load(ctx, key, &rows) {
		return rows, nil
	}
	rows, err := s.Q.TopProducts(ctx, from, to, limit, offset)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, rows)
	return rows, nil
}

func (s *Service) load(ctx context.Context, key string, dst any) bool {
	if s.R == nil || s.TTL <= 0 {
		return false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, data, s.TTL).Err()
}
