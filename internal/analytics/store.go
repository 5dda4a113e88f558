package analytics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewQuerier returns a Querier over the quotes table.
func NewQuerier(pool *pgxpool.Pool) Querier {
	return &pgQuerier{pool: pool}
}

type pgQuerier struct {
	pool *pgxpool.Pool
}

func (q *pgQuerier) DailyQuotes(ctx context.Context, from, to time.Time) ([]DailyRow, error) {
	rows, err := q.pool.Query(ctx, `SELECT date_trunc('day', created_at) AS day,
       count(*),
       count(*) FILTER (WHERE status = 'sent'),
       count(*) FILTER (WHERE status = 'approved'),
       count(*) FILTER (WHERE status = 'rejected'),
       count(*) FILTER (WHERE status = 'expired'),
       coalesce(sum(total_cents), 0)::bigint,
       coalesce(sum(total_cents) FILTER (WHERE status = 'approved'), 0)::bigint
FROM quotes
WHERE created_at >= $1 AND created_at < $2
GROUP BY day
ORDER BY day`, from, to)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (DailyRow, error) {
		var d DailyRow
		err := row.Scan(&d.Day, &d.Submitted, &d.Sent, &d.Approved, &d.Rejected, &d.Expired, &d.QuotedCents, &d.ApprovedCents)
		return d, err
	})
}

func (q *pgQuerier) TopProducts(ctx context.Context, from, to time.Time, limit, offset int) ([]ProductRow, error) {
	rows, err := q.pool.Query(ctx, `SELECT item->>'productId' AS product_id,
       max(item->>'name'),
       max(item->>'brand'),
       count(DISTINCT q.id),
       coalesce(sum((item->>'quantity')::int), 0)::bigint AS quantity
FROM quotes q, jsonb_array_elements(q.items) AS item
WHERE q.created_at >= $1 AND q.created_at < $2
GROUP BY product_id
ORDER BY quantity DESC, product_id
LIMIT $3 OFFSET $4`, from, to, limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ProductRow, error) {
		var p ProductRow
		err := row.Scan(&p.ProductID, &p.Name, &p.Brand, &p.Quotes, &p.Quantity)
		return p, err
	})
}
