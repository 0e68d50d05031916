package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/metrics"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// ReviewService accepts product reviews and keeps the product rating in
// step with them.
type ReviewService struct {
	reviews   repository.ReviewRepository
	products  repository.ProductRepository
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewReviewService creates a new review service.
func NewReviewService(
	reviews repository.ReviewRepository,
	products repository.ProductRepository,
	publisher EventPublisher,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		reviews:   reviews,
		products:  products,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SubmitReviewInput holds a review body.
type SubmitReviewInput struct {
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// ReviewResult is an accepted review with the product's new aggregate.
type ReviewResult struct {
	Review  *domain.Review  `json:"review"`
	Product *domain.Product `json:"product"`
}

// SubmitReview records the actor's review of productID. Each user reviews a
// product once.
func (s *ReviewService) SubmitReview(ctx context.Context, productID string, actor domain.Actor, input SubmitReviewInput) (*ReviewResult, error) {
	if actor.UserID == "" {
		return nil, apperrors.Unauthorized("user is required")
	}
	if !domain.ValidRating(input.Rating) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("rating must be between %d and %d", domain.MinRating, domain.MaxRating))
	}

	name := strings.TrimSpace(actor.Name)
	if name == "" {
		name = actor.Email
	}
	review := &domain.Review{
		ID:        uuid.New().String(),
		ProductID: productID,
		UserID:    actor.UserID,
		Name:      name,
		Rating:    input.Rating,
		Comment:   strings.TrimSpace(input.Comment),
		CreatedAt: s.now(),
	}

	product, err := s.reviews.Create(ctx, review)
	if err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}
	metrics.ReviewsSubmitted.Inc()

	if err := s.publisher.PublishProductReviewed(ctx, review, product); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.reviewed event",
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "review added",
		slog.String("product_id", productID),
		slog.String("user_id", actor.UserID),
		slog.Int("rating", review.Rating),
		slog.Float64("product_rating", product.Rating),
		slog.Int("num_reviews", product.NumReviews),
	)
	return &ReviewResult{Review: review, Product: product}, nil
}

// ListReviews returns a product's reviews, newest first.
func (s *ReviewService) ListReviews(ctx context.Context, productID string) ([]domain.Review, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	reviews, err := s.reviews.ListByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

// GetProduct returns a product with its rating aggregate.
func (s *ReviewService) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}
