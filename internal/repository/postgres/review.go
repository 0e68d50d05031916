package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// reviewUniqueConstraint enforces one review per user and product.
const reviewUniqueConstraint = "reviews_product_user_key"

const recomputeRatingQuery = `
	UPDATE products p
	SET rating = agg.avg_rating, num_reviews = agg.review_count, updated_at = $2
	FROM (
		SELECT COALESCE(AVG(rating), 0)::DOUBLE PRECISION AS avg_rating, COUNT(*)::INTEGER AS review_count
		FROM reviews
		WHERE product_id = $1
	) agg
	WHERE p.id = $1
	RETURNING p.rating, p.num_reviews, p.updated_at`

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create appends the review and recomputes the product aggregate while
// holding the product row lock, so concurrent reviews of one product
// serialize and the aggregate always matches the review set.
func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) (product *domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, "reviews.Create", "INSERT INTO reviews")
	defer func() { end(err) }()

	err = database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		p, err := scanProduct(tx.QueryRow(ctx,
			`SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, rv.ProductID,
		).Scan)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NotFound("product", rv.ProductID)
			}
			return fmt.Errorf("lock product: %w", err)
		}

		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM reviews WHERE product_id = $1 AND user_id = $2)`,
			rv.ProductID, rv.UserID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check existing review: %w", err)
		}
		if exists {
			return apperrors.DuplicateReview(rv.ProductID)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO reviews (id, product_id, user_id, name, rating, comment, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			rv.ID,
			rv.ProductID,
			rv.UserID,
			rv.Name,
			rv.Rating,
			rv.Comment,
			rv.CreatedAt,
		)
		if err != nil {
			if database.IsUniqueViolation(err, reviewUniqueConstraint) {
				return apperrors.DuplicateReview(rv.ProductID)
			}
			return fmt.Errorf("insert review: %w", err)
		}

		if err := tx.QueryRow(ctx, recomputeRatingQuery, rv.ProductID, rv.CreatedAt).
			Scan(&p.Rating, &p.NumReviews, &p.UpdatedAt); err != nil {
			return fmt.Errorf("recompute product rating: %w", err)
		}

		product = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// ListByProduct returns a product's reviews, newest first.
func (r *ReviewRepository) ListByProduct(ctx context.Context, productID string) ([]domain.Review, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, product_id, user_id, name, rating, comment, created_at
		FROM reviews
		WHERE product_id = $1
		ORDER BY created_at DESC`, productID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]domain.Review, 0)
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(
			&rv.ID,
			&rv.ProductID,
			&rv.UserID,
			&rv.Name,
			&rv.Rating,
			&rv.Comment,
			&rv.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review rows: %w", err)
	}
	return reviews, nil
}
