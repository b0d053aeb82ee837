package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/lo"

	"github.com/291e/bogofit-shop-sub001/internal/domain"
	"github.com/291e/bogofit-shop-sub001/internal/infra"
	"github.com/291e/bogofit-shop-sub001/internal/sqlinline"
)

// OrderRepositoryPG implements domain.OrderRepository.
type OrderRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewOrderRepository creates an order repository.
func NewOrderRepository(sql infra.SQLExecutor) *OrderRepositoryPG {
	return &OrderRepositoryPG{sql: sql}
}

type orderLine struct {
	ProductID    string `json:"product_id"`
	Title        string `json:"title"`
	Quantity     int    `json:"quantity"`
	UnitPriceWon int64  `json:"unit_price_won"`
}

// Create reserves stock and inserts the order with all of its lines
// atomically. Insufficient stock yields domain.ErrOutOfStock.
func (r *OrderRepositoryPG) Create(ctx context.Context, order *domain.Order) error {
	lines, err := json.Marshal(lo.Map(order.Items, func(item domain.OrderItem, _ int) orderLine {
		return orderLine{ProductID: item.ProductID, Title: item.Title, Quantity: item.Quantity, UnitPriceWon: item.UnitPriceWon}
	}))
	if err != nil {
		return fmt.Errorf("repo: encode order lines: %w", err)
	}
	if order.Status == "" {
		order.Status = domain.OrderPending
	}
	var inserted int
	err = r.sql.QueryRow(ctx, sqlinline.QInsertOrder,
		order.CustomerName,
		order.CustomerEmail,
		order.CustomerPhone,
		order.Address,
		string(order.Status),
		order.TotalWon,
		string(lines),
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt, &inserted)
	if err != nil {
		if isStockViolation(err) {
			return fmt.Errorf("repo: insert order: %w", domain.ErrOutOfStock)
		}
		return fmt.Errorf("repo: insert order: %w", err)
	}
	if inserted != len(order.Items) {
		return fmt.Errorf("repo: insert order: wrote %d of %d lines", inserted, len(order.Items))
	}
	return nil
}

const (
	checkViolation  = "23514"
	stockConstraint = "products_stock_check"
)

func isStockViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == checkViolation && pgErr.ConstraintName == stockConstraint
}

// GetByID fetches an order with its lines.
func (r *OrderRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	var status string
	err := r.sql.QueryRow(ctx, sqlinline.QGetOrder, id).Scan(
		&o.ID, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone, &o.Address, &status, &o.TotalWon, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("repo: get order: %w", err)
	}
	o.Status = domain.OrderStatus(status)

	rows, err := r.sql.Query(ctx, sqlinline.QListOrderItems, id)
	if err != nil {
		return nil, fmt.Errorf("repo: list order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Title, &item.Quantity, &item.UnitPriceWon); err != nil {
			return nil, fmt.Errorf("repo: scan order item: %w", err)
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo: list order items: %w", err)
	}
	return &o, nil
}

// ListByStatus returns orders without their lines, newest first. An empty
// status lists every order.
func (r *OrderRepositoryPG) ListByStatus(ctx context.Context, status domain.OrderStatus, page domain.Page) (domain.PageResult[domain.Order], error) {
	page = domain.NormalizePage(page.Number, page.Size)
	result := domain.PageResult[domain.Order]{Page: page, Items: []domain.Order{}}
	rows, err := r.sql.Query(ctx, sqlinline.QListOrdersByStatus, string(status), page.Size, page.Offset())
	if err != nil {
		return result, fmt.Errorf("repo: list orders: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var o domain.Order
		var st string
		if err := rows.Scan(&o.ID, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone, &o.Address, &st, &o.TotalWon, &o.CreatedAt, &o.UpdatedAt, &result.Total); err != nil {
			return result, fmt.Errorf("repo: scan order: %w", err)
		}
		o.Status = domain.OrderStatus(st)
		result.Items = append(result.Items, o)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("repo: list orders: %w", err)
	}
	return result, nil
}

// UpdateStatus moves an order from one status to the next. It returns
// domain.ErrConflict when the stored status no longer matches from.
func (r *OrderRepositoryPG) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) error {
	if !from.CanTransition(to) {
		return domain.ErrInvalidTransition
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateOrderStatus, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("repo: update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

var _ domain.OrderRepository = (*OrderRepositoryPG)(nil)
