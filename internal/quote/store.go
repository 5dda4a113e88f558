package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStoreUnavailable indicates the quote store dependency is not configured.
var ErrStoreUnavailable = errors.New("quote: store unavailable")

// ErrDuplicateToken is returned when an approval token hash collides.
var ErrDuplicateToken = errors.New("quote: duplicate approval token")

// ListFilter narrows admin quote listings.
type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}

// Store persists quotes. The approval token hash is unique, and consuming a
// token is a single conditional update so a link can approve at most once.
type Store interface {
	Create(ctx context.Context, q *Quote) error
	Get(ctx context.Context, id string) (Quote, error)
	GetByTokenHash(ctx context.Context, hash string) (Quote, error)
	MarkSent(ctx context.Context, q Quote) error
	ConsumeToken(ctx context.Context, hash string, to Status, reason string, now time.Time) (Quote, error)
	ExpireStale(ctx context.Context, now time.Time) ([]Quote, error)
	List(ctx context.Context, filter ListFilter) ([]Quote, int64, error)
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

const quoteColumns = `id, number, status, customer, notes, items, totals, shipping_cents, shipping_notes, flags,
approval_token_hash, approval_token_expires_at, created_at, expires_at, sent_at, decided_at, decision_reason`

func (s *pgStore) Create(ctx context.Context, q *Quote) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	customer, items, totals, flags, err := encodeQuote(*q)
	if err != nil {
		return err
	}
	var id uuid.UUID
	err = s.pool.QueryRow(ctx, `INSERT INTO quotes (number, status, customer, notes, items, totals, total_cents,
shipping_cents, shipping_notes, flags, approval_token_hash, approval_token_expires_at, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) RETURNING id`,
		q.Number, string(q.Status), customer, q.Notes, items, totals, q.Totals.Total,
		q.ShippingCost, q.ShippingNotes, flags, nullableString(q.TokenHash), nullableTime(q.TokenExpiresAt),
		q.CreatedAt, q.ExpiresAt).Scan(&id)
	if err != nil {
		if isUniqueViolation(err, "quotes_approval_token_hash_key") {
			return ErrDuplicateToken
		}
		return fmt.Errorf("quote: insert: %w", err)
	}
	q.ID = id.String()
	return nil
}

func (s *pgStore) Get(ctx context.Context, id string) (Quote, error) {
	if s == nil || s.pool == nil {
		return Quote{}, ErrStoreUnavailable
	}
	qid, err := uuid.Parse(id)
	if err != nil {
		return Quote{}, ErrNotFound
	}
	return s.one(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1`, qid)
}

func (s *pgStore) GetByTokenHash(ctx context.Context, hash string) (Quote, error) {
	if s == nil || s.pool == nil {
		return Quote{}, ErrStoreUnavailable
	}
	q, err := s.one(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE approval_token_hash = $1`, hash)
	if errors.Is(err, ErrNotFound) {
		return Quote{}, ErrTokenNotFound
	}
	return q, err
}

func (s *pgStore) MarkSent(ctx context.Context, q Quote) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	qid, err := uuid.Parse(q.ID)
	if err != nil {
		return ErrNotFound
	}
	totals, err := json.Marshal(q.Totals)
	if err != nil {
		return fmt.Errorf("quote: encode totals: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `UPDATE quotes SET status = 'sent', totals = $2, total_cents = $3, shipping_cents = $4,
shipping_notes = $5, approval_token_hash = $6, approval_token_expires_at = $7, sent_at = $8
WHERE id = $1 AND status IN ('draft', 'sent')`,
		qid, totals, q.Totals.Total, q.ShippingCost, q.ShippingNotes, q.TokenHash, q.TokenExpiresAt, q.SentAt)
	if err != nil {
		if isUniqueViolation(err, "quotes_approval_token_hash_key") {
			return ErrDuplicateToken
		}
		return fmt.Errorf("quote: mark sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (s *pgStore) ConsumeToken(ctx context.Context, hash string, to Status, reason string, now time.Time) (Quote, error) {
	if s == nil || s.pool == nil {
		return Quote{}, ErrStoreUnavailable
	}
	if to != StatusApproved && to != StatusRejected {
		return Quote{}, fmt.Errorf("%w: token cannot move a quote to %s", ErrInvalidTransition, to)
	}
	q, err := s.one(ctx, `UPDATE quotes SET status = $2, decided_at = $3, decision_reason = $4
WHERE approval_token_hash = $1 AND status = 'sent' AND approval_token_expires_at > $3 AND expires_at >= $3
RETURNING `+quoteColumns, hash, string(to), now, reason)
	if err == nil {
		return q, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Quote{}, err
	}
	current, err := s.GetByTokenHash(ctx, hash)
	return Quote{}, consumeMiss(current, err, now)
}

// consumeMiss explains why a conditional token update touched no rows,
// given the quote read back afterwards. A quote that still looks
// consumable lost a race to a concurrent decision.
func consumeMiss(current Quote, lookupErr error, now time.Time) error {
	if lookupErr != nil {
		return lookupErr
	}
	if cause := current.CheckToken(now); cause != nil {
		return cause
	}
	return ErrTokenAlreadyConsumed
}

func (s *pgStore) ExpireStale(ctx context.Context, now time.Time) ([]Quote, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	return s.many(ctx, `UPDATE quotes SET status = 'expired'
WHERE status = 'sent' AND expires_at < $1
RETURNING `+quoteColumns, now)
}

func (s *pgStore) List(ctx context.Context, filter ListFilter) ([]Quote, int64, error) {
	if s == nil || s.pool == nil {
		return nil, 0, ErrStoreUnavailable
	}
	var status any
	if filter.Status != "" {
		status = string(filter.Status)
	}
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quotes WHERE ($1::text IS NULL OR status = $1)`, status).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("quote: count: %w", err)
	}
	quotes, err := s.many(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE ($1::text IS NULL OR status = $1)
ORDER BY created_at DESC LIMIT $2 OFFSET $3`, status, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	return quotes, total, nil
}

func (s *pgStore) one(ctx context.Context, sql string, args ...any) (Quote, error) {
	q, err := scanQuote(s.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quote{}, ErrNotFound
		}
		return Quote{}, fmt.Errorf("quote: query: %w", err)
	}
	return q, nil
}

func (s *pgStore) many(ctx context.Context, sql string, args ...any) ([]Quote, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("quote: query: %w", err)
	}
	defer rows.Close()
	out := make([]Quote, 0)
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func scanQuote(row pgx.Row) (Quote, error) {
	var (
		q                               Quote
		id                              uuid.UUID
		status                          string
		customer, items, totals, flags  []byte
		notes, shippingNotes, tokenHash *string
		reason                          *string
		tokenExpires                    *time.Time
	)
	err := row.Scan(&id, &q.Number, &status, &customer, &notes, &items, &totals, &q.ShippingCost, &shippingNotes, &flags,
		&tokenHash, &tokenExpires, &q.CreatedAt, &q.ExpiresAt, &q.SentAt, &q.DecidedAt, &reason)
	if err != nil {
		return Quote{}, err
	}
	q.ID = id.String()
	q.Status = Status(status)
	q.Notes = deref(notes)
	q.ShippingNotes = deref(shippingNotes)
	q.TokenHash = deref(tokenHash)
	q.DecisionReason = deref(reason)
	if tokenExpires != nil {
		q.TokenExpiresAt = *tokenExpires
	}
	if err := json.Unmarshal(customer, &q.Customer); err != nil {
		return Quote{}, fmt.Errorf("quote: decode customer: %w", err)
	}
	if err := json.Unmarshal(items, &q.Items); err != nil {
		return Quote{}, fmt.Errorf("quote: decode items: %w", err)
	}
	if err := json.Unmarshal(totals, &q.Totals); err != nil {
		return Quote{}, fmt.Errorf("quote: decode totals: %w", err)
	}
	if len(flags) > 0 {
		if err := json.Unmarshal(flags, &q.Flags); err != nil {
			return Quote{}, fmt.Errorf("quote: decode flags: %w", err)
		}
	}
	return q, nil
}

func encodeQuote(q Quote) (customer, items, totals, flags []byte, err error) {
	if customer, err = json.Marshal(q.Customer); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("quote: encode customer: %w", err)
	}
	if items, err = json.Marshal(q.Items); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("quote: encode items: %w", err)
	}
	if totals, err = json.Marshal(q.Totals); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("quote: encode totals: %w", err)
	}
	if flags, err = json.Marshal(q.Flags); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("quote: encode flags: %w", err)
	}
	return customer, items, totals, flags, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
