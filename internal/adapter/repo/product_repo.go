package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/291e/bogofit-shop-sub001/internal/domain"
	"github.com/291e/bogofit-shop-sub001/internal/infra"
	"github.com/291e/bogofit-shop-sub001/internal/sqlinline"
)

// ProductRepositoryPG implements domain.ProductRepository.
type ProductRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewProductRepository creates a catalogue repository.
func NewProductRepository(sql infra.SQLExecutor) *ProductRepositoryPG {
	return &ProductRepositoryPG{sql: sql}
}

// List returns one page of active products.
func (r *ProductRepositoryPG) List(ctx context.Context, filter domain.ProductFilter) (domain.PageResult[domain.Product], error) {
	page := domain.NormalizePage(filter.Page.Number, filter.Page.Size)
	result := domain.PageResult[domain.Product]{Page: page, Items: []domain.Product{}}
	rows, err := r.sql.Query(ctx, sqlinline.QListProducts, string(filter.Category), filter.Query, page.Size, page.Offset())
	if err != nil {
		return result, fmt.Errorf("repo: list products: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p domain.Product
		var category string
		if err := rows.Scan(&p.ID, &p.Title, &p.Brand, &category, &p.Description, &p.PriceWon, &p.ImageURL, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt, &result.Total); err != nil {
			return result, fmt.Errorf("repo: scan product: %w", err)
		}
		p.Category = domain.ProductCategory(category)
		result.Items = append(result.Items, p)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("repo: list products: %w", err)
	}
	return result, nil
}

// GetByID fetches one product.
func (r *ProductRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	var category string
	err := r.sql.QueryRow(ctx, sqlinline.QGetProduct, id).Scan(&p.ID, &p.Title, &p.Brand, &category, &p.Description, &p.PriceWon, &p.ImageURL, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("repo: get product: %w", err)
	}
	p.Category = domain.ProductCategory(category)
	return &p, nil
}

// GetMany fetches products by id; unknown ids are absent from the result.
func (r *ProductRepositoryPG) GetMany(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.sql.Query(ctx, sqlinline.QGetProductsByIDs, ids)
	if err != nil {
		return nil, fmt.Errorf("repo: get products: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p domain.Product
		var category string
		if err := rows.Scan(&p.ID, &p.Title, &p.Brand, &category, &p.Description, &p.PriceWon, &p.ImageURL, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("repo: scan product: %w", err)
		}
		p.Category = domain.ProductCategory(category)
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo: get products: %w", err)
	}
	return out, nil
}

var _ domain.ProductRepository = (*ProductRepositoryPG)(nil)
