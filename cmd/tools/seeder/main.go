package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/noah-isme/quotedesk/internal/config"
)

type sizeOption struct {
	Value string
	Label string
	Price *int64
	SKU   string
}

type product struct {
	Slug        string
	SKU         string
	Name        string
	Brand       string
	Category    string
	LeadTime    string
	PriceVaries bool
	Price       *int64
	Images      []string
	Sizes       []sizeOption
}

func cents(v int64) *int64 { return &v }

var catalog = []product{
	{
		Slug: "gate-valve-cast-iron", SKU: "GV-CI", Name: "Cast Iron Gate Valve", Brand: "Tyco", Category: "Valves",
		LeadTime: "In stock", PriceVaries: true,
		Images: []string{"/images/gate-valve.jpg"},
		Sizes: []sizeOption{
			{Value: "dn50", Label: "DN50", Price: cents(18_500), SKU: "GV-CI-50"},
			{Value: "dn80", Label: "DN80", Price: cents(24_900), SKU: "GV-CI-80"},
			{Value: "dn100", Label: "DN100", Price: cents(31_200), SKU: "GV-CI-100"},
			{Value: "dn150", Label: "DN150", SKU: "GV-CI-150"},
		},
	},
	{
		Slug: "butterfly-valve-wafer", SKU: "BV-W", Name: "Wafer Butterfly Valve", Brand: "Keystone", Category: "Valves",
		LeadTime: "2-3 weeks", PriceVaries: true,
		Images: []string{"/images/butterfly-valve.jpg", "/images/butterfly-valve-side.jpg"},
		Sizes: []sizeOption{
			{Value: "dn100", Label: "DN100", Price: cents(42_000), SKU: "BV-W-100"},
			{Value: "dn200", Label: "DN200", Price: cents(87_500), SKU: "BV-W-200"},
		},
	},
	{
		Slug: "y-strainer-bronze", SKU: "YS-BR-25", Name: "Bronze Y Strainer 25mm", Brand: "Zetco", Category: "Strainers",
		LeadTime: "In stock", Price: cents(6_450),
		Images: []string{"/images/y-strainer.jpg"},
	},
	{
		Slug: "check-valve-swing", SKU: "CV-SW-80", Name: "Swing Check Valve DN80", Brand: "Tyco", Category: "Valves",
		LeadTime: "4-6 weeks", Price: cents(35_900),
	},
	{
		Slug: "straub-metal-grip", SKU: "STRAUB-MG", Name: "Straub Metal Grip Coupling", Brand: "Straub", Category: "Couplings",
		LeadTime: "6-8 weeks", PriceVaries: true,
		Images: []string{"/images/straub-metal-grip.jpg"},
	},
	{
		Slug: "pressure-gauge-100", SKU: "PG-100", Name: "Pressure Gauge 100mm Dial", Brand: "Wika", Category: "Instruments",
		LeadTime: "1 week",
	},
}

func main() {
	dryRun := flag.Bool("dry-run", false, "print the products without writing them")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment variables")
	}
	if *dryRun {
		for _, p := range catalog {
			log.Printf("would seed %s (%s) with %d size(s)", p.Slug, p.Brand, len(p.Sizes))
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()

	for _, p := range catalog {
		if err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error { return seedProduct(ctx, tx, p) }); err != nil {
			log.Fatalf("seed %s: %v", p.Slug, err)
		}
		log.Printf("seeded %s", p.Slug)
	}
	log.Printf("seeded %d products", len(catalog))
}

func seedProduct(ctx context.Context, tx pgx.Tx, p product) error {
	var leadTime *string
	if lt := strings.TrimSpace(p.LeadTime); lt != "" {
		leadTime = &lt
	}
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO products (slug, sku, name, brand, category, lead_time, price_varies, price_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (slug) DO UPDATE SET
			sku = EXCLUDED.sku, name = EXCLUDED.name, brand = EXCLUDED.brand, category = EXCLUDED.category,
			lead_time = EXCLUDED.lead_time, price_varies = EXCLUDED.price_varies, price_cents = EXCLUDED.price_cents,
			updated_at = now(), archived_at = NULL
		RETURNING id`,
		p.Slug, p.SKU, p.Name, p.Brand, p.Category, leadTime, p.PriceVaries, p.Price,
	).Scan(&id)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM product_images WHERE product_id = $1`, id); err != nil {
		return err
	}
	for i, url := range p.Images {
		if _, err := tx.Exec(ctx, `INSERT INTO product_images (product_id, url, alt, position) VALUES ($1, $2, $3, $4)`,
			id, url, p.Name, i); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM product_size_options WHERE product_id = $1`, id); err != nil {
		return err
	}
	for i, s := range p.Sizes {
		if _, err := tx.Exec(ctx, `
			INSERT INTO product_size_options (product_id, value, label, price_cents, sku, position)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			id, s.Value, s.Label, s.Price, s.SKU, i); err != nil {
			return err
		}
	}
	return nil
}
