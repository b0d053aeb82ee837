package repo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/291e/bogofit-shop-sub001/internal/domain"
	"github.com/291e/bogofit-shop-sub001/internal/sqlinline"
)

type scanFunc func(dest ...any) error

func (f scanFunc) Scan(dest ...any) error { return f(dest...) }

type orderTestSQL struct {
	query string
	args  []any
	row   scanFunc
}

func (s *orderTestSQL) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (s *orderTestSQL) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	s.query = query
	s.args = args
	return s.row
}

func (s *orderTestSQL) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected query")
}

func insertedRow(lines int) scanFunc {
	return func(dest ...any) error {
		*dest[0].(*string) = "5b0c7f52-3f0e-4f0f-9a57-0c6a8f3e2d11"
		*dest[1].(*time.Time) = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		*dest[2].(*time.Time) = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		*dest[3].(*int) = lines
		return nil
	}
}

func testOrder() *domain.Order {
	return &domain.Order{
		CustomerName:  "Kim Minji",
		CustomerEmail: "minji@example.com",
		Address:       "12 Seongsu-ro, Seoul",
		TotalWon:      64000,
		Items: []domain.OrderItem{
			{ProductID: "a7d7b2a4-3c1e-4d84-8c35-3f3b7b1f7e01", Title: "Linen Shirt", Quantity: 1, UnitPriceWon: 39000},
			{ProductID: "c1f0e3d2-9a4b-4c6d-8e7f-0a1b2c3d4e5f", Title: "Canvas Tote", Quantity: 1, UnitPriceWon: 25000},
		},
	}
}

func TestOrderInsertReservesStock(t *testing.T) {
	if !strings.Contains(sqlinline.QInsertOrder, "update products") ||
		!strings.Contains(sqlinline.QInsertOrder, "stock = p.stock - w.quantity") {
		t.Fatalf("order insert does not reserve stock:\n%s", sqlinline.QInsertOrder)
	}
}

func TestOrderCreate(t *testing.T) {
	cases := []struct {
		name    string
		row     scanFunc
		wantErr error
	}{
		{name: "written", row: insertedRow(2)},
		{
			name: "stock exhausted",
			row: func(...any) error {
				return &pgconn.PgError{Code: "23514", ConstraintName: "products_stock_check", Message: "new row violates check constraint"}
			},
			wantErr: domain.ErrOutOfStock,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sql := &orderTestSQL{row: tc.row}
			order := testOrder()
			err := NewOrderRepository(sql).Create(context.Background(), order)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if sql.query != sqlinline.QInsertOrder {
				t.Fatalf("unexpected query: %s", sql.query)
			}
			if order.ID == "" || order.Status != domain.OrderPending {
				t.Fatalf("order not populated: %+v", order)
			}
			lines, _ := sql.args[6].(string)
			if !strings.Contains(lines, `"quantity":1`) || !strings.Contains(lines, "Canvas Tote") {
				t.Fatalf("unexpected lines payload: %s", lines)
			}
		})
	}
}

func TestOrderCreateOtherConstraintIsNotStock(t *testing.T) {
	sql := &orderTestSQL{row: func(...any) error {
		return &pgconn.PgError{Code: "23514", ConstraintName: "order_items_quantity_check"}
	}}
	err := NewOrderRepository(sql).Create(context.Background(), testOrder())
	if err == nil || errors.Is(err, domain.ErrOutOfStock) {
		t.Fatalf("expected a plain insert error, got %v", err)
	}
}

func TestOrderCreateShortWrite(t *testing.T) {
	sql := &orderTestSQL{row: insertedRow(1)}
	if err := NewOrderRepository(sql).Create(context.Background(), testOrder()); err == nil {
		t.Fatal("expected an error when fewer lines are written than requested")
	}
}
