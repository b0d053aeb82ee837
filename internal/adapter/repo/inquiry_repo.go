package repo

import (
	"context"
	"fmt"

	"github.com/291e/bogofit-shop-sub001/internal/domain"
	"github.com/291e/bogofit-shop-sub001/internal/infra"
	"github.com/291e/bogofit-shop-sub001/internal/sqlinline"
)

// InquiryRepositoryPG implements domain.InquiryRepository.
type InquiryRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewInquiryRepository creates a brand inquiry repository.
func NewInquiryRepository(sql infra.SQLExecutor) *InquiryRepositoryPG {
	return &InquiryRepositoryPG{sql: sql}
}

// Create stores a new inquiry.
func (r *InquiryRepositoryPG) Create(ctx context.Context, in *domain.BrandInquiry) error {
	var status string
	err := r.sql.QueryRow(ctx, sqlinline.QInsertInquiry, in.Company, in.ContactName, in.Email, in.Phone, in.Message, in.Country).
		Scan(&in.ID, &status, &in.CreatedAt)
	if err != nil {
		return fmt.Errorf("repo: insert inquiry: %w", err)
	}
	in.Status = domain.InquiryStatus(status)
	return nil
}

// List returns inquiries, optionally filtered by status.
func (r *InquiryRepositoryPG) List(ctx context.Context, status domain.InquiryStatus, page domain.Page) (domain.PageResult[domain.BrandInquiry], error) {
	page = domain.NormalizePage(page.Number, page.Size)
	result := domain.PageResult[domain.BrandInquiry]{Page: page, Items: []domain.BrandInquiry{}}
	rows, err := r.sql.Query(ctx, sqlinline.QListInquiries, string(status), page.Size, page.Offset())
	if err != nil {
		return result, fmt.Errorf("repo: list inquiries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var in domain.BrandInquiry
		var st string
		if err := rows.Scan(&in.ID, &in.Company, &in.ContactName, &in.Email, &in.Phone, &in.Message, &in.Country, &st, &in.CreatedAt, &result.Total); err != nil {
			return result, fmt.Errorf("repo: scan inquiry: %w", err)
		}
		in.Status = domain.InquiryStatus(st)
		result.Items = append(result.Items, in)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("repo: list inquiries: %w", err)
	}
	return result, nil
}

var _ domain.InquiryRepository = (*InquiryRepositoryPG)(nil)
