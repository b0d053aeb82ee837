package repo

import (
	"context"
	"fmt"

	"github.com/291e/bogofit-shop-sub001/internal/domain"
	"github.com/291e/bogofit-shop-sub001/internal/infra"
	"github.com/291e/bogofit-shop-sub001/internal/sqlinline"
)

// ReviewRepositoryPG implements domain.ReviewRepository.
type ReviewRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewReviewRepository creates a review repository.
func NewReviewRepository(sql infra.SQLExecutor) *ReviewRepositoryPG {
	return &ReviewRepositoryPG{sql: sql}
}

// Create inserts a review and fills its id and timestamp.
func (r *ReviewRepositoryPG) Create(ctx context.Context, review *domain.Review) error {
	err := r.sql.QueryRow(ctx, sqlinline.QInsertReview, review.ProductID, review.Author, review.Rating, review.Content).
		Scan(&review.ID, &review.CreatedAt)
	if err != nil {
		return fmt.Errorf("repo: insert review: %w", err)
	}
	return nil
}

// ListByProduct returns the newest reviews first.
func (r *ReviewRepositoryPG) ListByProduct(ctx context.Context, productID string, page domain.Page) (domain.PageResult[domain.Review], error) {
	page = domain.NormalizePage(page.Number, page.Size)
	result := domain.PageResult[domain.Review]{Page: page, Items: []domain.Review{}}
	rows, err := r.sql.Query(ctx, sqlinline.QListReviews, productID, page.Size, page.Offset())
	if err != nil {
		return result, fmt.Errorf("repo: list reviews: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(&rv.ID, &rv.ProductID, &rv.Author, &rv.Rating, &rv.Content, &rv.CreatedAt, &result.Total); err != nil {
			return result, fmt.Errorf("repo: scan review: %w", err)
		}
		result.Items = append(result.Items, rv)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("repo: list reviews: %w", err)
	}
	return result, nil
}

// Summary aggregates the ratings of a product.
func (r *ReviewRepositoryPG) Summary(ctx context.Context, productID string) (domain.ReviewSummary, error) {
	var s domain.ReviewSummary
	if err := r.sql.QueryRow(ctx, sqlinline.QReviewSummary, productID).Scan(&s.Count, &s.Average); err != nil {
		return s, fmt.Errorf("repo: review summary: %w", err)
	}
	return s, nil
}

var _ domain.ReviewRepository = (*ReviewRepositoryPG)(nil)
