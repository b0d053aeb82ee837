package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/291e/bogofit-shop-sub001/internal/domain"
	"github.com/291e/bogofit-shop-sub001/internal/middleware"
)

type orderRequest struct {
	Customer struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Phone   string `json:"phone"`
		Address string `json:"address"`
	} `json:"customer"`
	Items []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
}

type orderItemDTO struct {
	ProductID    string `json:"product_id"`
	Title        string `json:"title"`
	Quantity     int    `json:"quantity"`
	UnitPriceWon int64  `json:"unit_price_won"`
	LineTotalWon int64  `json:"line_total_won"`
}

type orderDTO struct {
	ID        string         `json:"id"`
	Status    string         `json:"status"`
	TotalWon  int64          `json:"total_won"`
	Customer  map[string]any `json:"customer"`
	Items     []orderItemDTO `json:"items"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func toOrderDTO(o domain.Order) orderDTO {
	return orderDTO{
		ID:       o.ID,
		Status:   string(o.Status),
		TotalWon: o.TotalWon,
		Customer: map[string]any{
			"name":    o.CustomerName,
			"email":   o.CustomerEmail,
			"phone":   o.CustomerPhone,
			"address": o.Address,
		},
		Items: lo.Map(o.Items, func(item domain.OrderItem, _ int) orderItemDTO {
			return orderItemDTO{
				ProductID:    item.ProductID,
				Title:        item.Title,
				Quantity:     item.Quantity,
				UnitPriceWon: item.UnitPriceWon,
				LineTotalWon: item.LineTotal(),
			}
		}),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func (a *App) OrderCreate(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	// Repeated lines of the same product are merged, keeping first-seen order.
	quantities := map[string]int{}
	var ids []string
	for _, item := range req.Items {
		id := strings.TrimSpace(item.ProductID)
		if _, seen := quantities[id]; !seen {
			ids = append(ids, id)
		}
		quantities[id] += item.Quantity
	}
	order := domain.Order{
		CustomerName:  req.Customer.Name,
		CustomerEmail: req.Customer.Email,
		CustomerPhone: req.Customer.Phone,
		Address:       req.Customer.Address,
		Status:        domain.OrderPending,
		Items: lo.Map(ids, func(id string, _ int) domain.OrderItem {
			return domain.OrderItem{ProductID: id, Quantity: quantities[id]}
		}),
	}
	if err := order.Validate(); err != nil {
		a.domainError(w, r, err, "")
		return
	}

	products, err := a.Products.GetMany(r.Context(), ids)
	if err != nil {
		a.domainError(w, r, err, "product not found")
		return
	}
	fields := domain.FieldErrors{}
	for i := range order.Items {
		item := &order.Items[i]
		product, ok := products[item.ProductID]
		if !ok || !product.Active {
			fields.Add("items."+item.ProductID, "product is not available")
			continue
		}
		if product.Stock < item.Quantity {
			a.domainError(w, r, fmt.Errorf("%w: %s", domain.ErrOutOfStock, product.Title), "")
			return
		}
		item.Title = product.Title
		item.UnitPriceWon = product.PriceWon
	}
	if err := fields.Err(); err != nil {
		a.domainError(w, r, err, "")
		return
	}
	order.ComputeTotal()

	if err := a.Orders.Create(r.Context(), &order); err != nil {
		a.domainError(w, r, err, "")
		return
	}
	a.logger(r).Info().Str("order_id", order.ID).Int64("total_won", order.TotalWon).Msg("order created")
	a.json(w, http.StatusCreated, toOrderDTO(order))
}

func (a *App) OrderGet(w http.ResponseWriter, r *http.Request) {
	order, err := a.Orders.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.domainError(w, r, err, "order not found")
		return
	}
	a.json(w, http.StatusOK, toOrderDTO(*order))
}

func (a *App) SellerOrders(w http.ResponseWriter, r *http.Request) {
	status := domain.OrderStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		a.error(w, http.StatusBadRequest, "bad_request", "unknown status")
		return
	}
	result, err := a.Orders.ListByStatus(r.Context(), status, pageFromQuery(r))
	if err != nil {
		a.domainError(w, r, err, "")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"items": lo.Map(result.Items, func(o domain.Order, _ int) orderDTO { return toOrderDTO(o) }),
		"page":  pageMeta(result.Page, result.Total, result.TotalPages()),
	})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (a *App) SellerOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	next := domain.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !next.Valid() {
		a.error(w, http.StatusBadRequest, "bad_request", "unknown status")
		return
	}
	id := chi.URLParam(r, "id")
	order, err := a.Orders.GetByID(r.Context(), id)
	if err != nil {
		a.domainError(w, r, err, "order not found")
		return
	}
	if err := a.Orders.UpdateStatus(r.Context(), id, order.Status, next); err != nil {
		a.domainError(w, r, err, "order not found")
		return
	}
	a.logger(r).Info().
		Str("order_id", id).
		Str("seller_id", middleware.SellerIDFromContext(r.Context())).
		Str("from", string(order.Status)).
		Str("to", string(next)).
		Msg("order status changed")
	order.Status = next
	a.json(w, http.StatusOK, toOrderDTO(*order))
}
