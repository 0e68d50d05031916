// Package seed populates the products table with a deterministic demo
// catalog. Re-running it is safe: rows are keyed by stable IDs and existing
// rows are left untouched.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
)

// DefaultBatchSize is the number of rows per INSERT statement.
const DefaultBatchSize = 500

// productNamespace scopes the name-based product IDs.
var productNamespace = uuid.MustParse("5b0c7e6a-2f1d-4c9e-9a51-0d3c8f4e7b21")

var brands = []string{"Northwind", "Contoso", "Fabrikam", "Tailspin", "Woodgrove", "Litware"}

var kinds = []struct {
	name     string
	image    string
	minPrice string
	maxPrice string
}{
	{"Airpods Wireless Headphones", "/images/airpods.jpg", "49.99", "199.99"},
	{"Cannon EOS Camera", "/images/camera.jpg", "349.00", "1299.00"},
	{"Logitech Gaming Mouse", "/images/mouse.jpg", "19.99", "89.99"},
	{"Amazon Echo Speaker", "/images/alexa.jpg", "29.99", "99.99"},
	{"Sony Playstation Controller", "/images/playstation.jpg", "39.99", "79.99"},
	{"iPhone Case", "/images/phone.jpg", "9.99", "49.99"},
}

// ProductID returns the stable ID of the i-th generated product.
func ProductID(i int) string {
	return uuid.NewSHA1(productNamespace, []byte(fmt.Sprintf("product:%d", i))).String()
}

// Generate builds n products. The same seed always yields the same catalog.
func Generate(n int, seed uint64, now time.Time) []domain.Product {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	products := make([]domain.Product, 0, n)
	for i := range n {
		k := kinds[i%len(kinds)]
		brand := brands[rng.IntN(len(brands))]
		products = append(products, domain.Product{
			ID:           ProductID(i),
			Name:         fmt.Sprintf("%s %s #%d", brand, k.name, i+1),
			Image:        k.image,
			Brand:        brand,
			Price:        pickPrice(rng, k.minPrice, k.maxPrice),
			CountInStock: rng.IntN(25),
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	return products
}

// pickPrice returns a price in cents between lo and hi, ending in .99 or .00.
func pickPrice(rng *rand.Rand, lo, hi string) int64 {
	low := decimal.RequireFromString(lo)
	high := decimal.RequireFromString(hi)
	span := high.Sub(low)
	v := low.Add(span.Mul(decimal.NewFromFloat(rng.Float64()))).Floor()
	if rng.IntN(2) == 0 {
		v = v.Add(decimal.RequireFromString("0.99"))
	}
	if v.GreaterThan(high) {
		v = high
	}
	return v.Shift(2).IntPart()
}

// Insert writes products in batches of batchSize, skipping IDs that already
// exist. It returns the number of rows inserted.
func Insert(ctx context.Context, db database.DBTX, products []domain.Product, batchSize int, logger *slog.Logger) (int64, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var inserted int64
	for start := 0; start < len(products); start += batchSize {
		end := min(start+batchSize, len(products))
		batch := products[start:end]

		var sb strings.Builder
		args := make([]any, 0, len(batch)*8)
		sb.WriteString("INSERT INTO products (id, name, image, brand, price, count_in_stock, created_at, updated_at) VALUES ")
		for i, p := range batch {
			if i > 0 {
				sb.WriteString(", ")
			}
			base := i * 8
			fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
				base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8)
			args = append(args, p.ID, p.Name, p.Image, p.Brand, p.Price, p.CountInStock, p.CreatedAt, p.UpdatedAt)
		}
		sb.WriteString(" ON CONFLICT (id) DO NOTHING")

		tag, err := db.Exec(ctx, sb.String(), args...)
		if err != nil {
			return inserted, fmt.Errorf("insert products %d-%d: %w", start, end-1, err)
		}
		inserted += tag.RowsAffected()
		logger.Debug("product batch inserted",
			slog.Int("from", start),
			slog.Int("to", end-1),
			slog.Int64("rows", tag.RowsAffected()),
		)
	}
	return inserted, nil
}
