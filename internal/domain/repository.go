package domain

import (
	"context"
	"time"
)

// ProductRepository reads the catalogue.
type ProductRepository interface {
	List(ctx context.Context, filter ProductFilter) (PageResult[Product], error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetMany(ctx context.Context, ids []string) (map[string]Product, error)
}

// ReviewRepository persists product reviews.
type ReviewRepository interface {
	Create(ctx context.Context, review *Review) error
	ListByProduct(ctx context.Context, productID string, page Page) (PageResult[Review], error)
	Summary(ctx context.Context, productID string) (ReviewSummary, error)
}

// InquiryRepository persists brand inquiries.
type InquiryRepository interface {
	Create(ctx context.Context, inquiry *BrandInquiry) error
	List(ctx context.Context, status InquiryStatus, page Page) (PageResult[BrandInquiry], error)
}

// OrderRepository persists orders and their lines.
type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByStatus(ctx context.Context, status OrderStatus, page Page) (PageResult[Order], error)
	UpdateStatus(ctx context.Context, id string, from, to OrderStatus) error
}

// FittingRunRepository persists fitting run outcomes.
type FittingRunRepository interface {
	Create(ctx context.Context, run *FittingRun) error
	Complete(ctx context.Context, run *FittingRun) error
	GetByID(ctx context.Context, id string) (*FittingRun, error)
	FailStale(ctx context.Context, olderThan time.Time, reason string) (int64, error)
}
