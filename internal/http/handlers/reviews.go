package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/291e/bogofit-shop-sub001/internal/domain"
)

type reviewRequest struct {
	Author  string `json:"author"`
	Rating  int    `json:"rating"`
	Content string `json:"content"`
}

type reviewDTO struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Rating    int       `json:"rating"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func toReviewDTO(rv domain.Review) reviewDTO {
	return reviewDTO{ID: rv.ID, Author: rv.Author, Rating: rv.Rating, Content: rv.Content, CreatedAt: rv.CreatedAt}
}

func (a *App) ReviewsList(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	result, err := a.Reviews.ListByProduct(r.Context(), productID, pageFromQuery(r))
	if err != nil {
		a.domainError(w, r, err, "product not found")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"items": lo.Map(result.Items, func(rv domain.Review, _ int) reviewDTO { return toReviewDTO(rv) }),
		"page":  pageMeta(result.Page, result.Total, result.TotalPages()),
	})
}

func (a *App) ReviewCreate(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	review := domain.Review{ProductID: productID, Author: req.Author, Rating: req.Rating, Content: req.Content}
	if err := review.Validate(); err != nil {
		a.domainError(w, r, err, "")
		return
	}
	if _, err := a.Products.GetByID(r.Context(), productID); err != nil {
		a.domainError(w, r, err, "product not found")
		return
	}
	if err := a.Reviews.Create(r.Context(), &review); err != nil {
		a.domainError(w, r, err, "product not found")
		return
	}
	a.json(w, http.StatusCreated, toReviewDTO(review))
}
