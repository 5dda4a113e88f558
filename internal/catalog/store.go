package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStoreUnavailable indicates the catalog store dependency is not configured.
var ErrStoreUnavailable = errors.New("catalog: store unavailable")

// NewStore constructs a Reader backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Reader {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

// GetProduct loads a product with its images and size options.
func (s *pgStore) GetProduct(ctx context.Context, id string) (Product, error) {
	if s == nil || s.pool == nil {
		return Product{}, ErrStoreUnavailable
	}
	pid, err := uuid.Parse(id)
	if err != nil {
		return Product{}, ErrProductNotFound
	}

	var (
		p        Product
		price    *int64
		leadTime *string
	)
	err = s.pool.QueryRow(ctx, `SELECT id, slug, sku, name, brand, category, lead_time, price_varies, price_cents
FROM products WHERE id = $1 AND archived_at IS NULL`, pid).
		Scan(&pid, &p.Slug, &p.SKU, &p.Name, &p.Brand, &p.Category, &leadTime, &p.PriceVaries, &price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	p.ID = pid.String()
	p.Price = price
	if leadTime != nil {
		p.LeadTime = *leadTime
	}

	if p.Images, err = s.listImages(ctx, pid); err != nil {
		return Product{}, err
	}
	if p.SizeOptions, err = s.listSizeOptions(ctx, pid); err != nil {
		return Product{}, err
	}
	return p, nil
}

func (s *pgStore) listImages(ctx context.Context, productID uuid.UUID) ([]Image, error) {
	rows, err := s.pool.Query(ctx, `SELECT url, COALESCE(alt, '') FROM product_images WHERE product_id = $1 ORDER BY position, id`, productID)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()
	images := make([]Image, 0)
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.URL, &img.Alt); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (s *pgStore) listSizeOptions(ctx context.Context, productID uuid.UUID) ([]SizeOption, error) {
	rows, err := s.pool.Query(ctx, `SELECT value, label, price_cents, COALESCE(sku, '') FROM product_size_options
WHERE product_id = $1 ORDER BY position, value`, productID)
	if err != nil {
		return nil, fmt.Errorf("list size options: %w", err)
	}
	defer rows.Close()
	options := make([]SizeOption, 0)
	for rows.Next() {
		var (
			opt   SizeOption
			price *int64
		)
		if err := rows.Scan(&opt.Value, &opt.Label, &price, &opt.SKU); err != nil {
			return nil, err
		}
		opt.Price = price
		options = append(options, opt)
	}
	return options, rows.Err()
}
