package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/samber/lo"

	"github.com/291e/bogofit-shop-sub001/internal/domain"
	"github.com/291e/bogofit-shop-sub001/internal/middleware"
)

type inquiryRequest struct {
	Company     string `json:"company"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Message     string `json:"message"`
}

type inquiryDTO struct {
	ID          string    `json:"id"`
	Company     string    `json:"company"`
	ContactName string    `json:"contact_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	Message     string    `json:"message"`
	Country     string    `json:"country,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func toInquiryDTO(b domain.BrandInquiry) inquiryDTO {
	return inquiryDTO{
		ID:          b.ID,
		Company:     b.Company,
		ContactName: b.ContactName,
		Email:       b.Email,
		Phone:       b.Phone,
		Message:     b.Message,
		Country:     b.Country,
		Status:      string(b.Status),
		CreatedAt:   b.CreatedAt,
	}
}

func (a *App) InquiryCreate(w http.ResponseWriter, r *http.Request) {
	var req inquiryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	inquiry := domain.BrandInquiry{
		Company:     req.Company,
		ContactName: req.ContactName,
		Email:       req.Email,
		Phone:       req.Phone,
		Message:     req.Message,
		Country:     middleware.CountryFromContext(r.Context()),
	}
	if err := inquiry.Validate(); err != nil {
		a.domainError(w, r, err, "")
		return
	}
	if err := a.Inquiries.Create(r.Context(), &inquiry); err != nil {
		a.domainError(w, r, err, "")
		return
	}
	a.logger(r).Info().Str("inquiry_id", inquiry.ID).Str("country", inquiry.Country).Msg("brand inquiry received")
	a.json(w, http.StatusCreated, map[string]any{"id": inquiry.ID, "status": inquiry.Status})
}

func (a *App) SellerInquiries(w http.ResponseWriter, r *http.Request) {
	status := domain.InquiryStatus(r.URL.Query().Get("status"))
	if status != "" && status != domain.InquiryNew && status != domain.InquiryReviewed {
		a.error(w, http.StatusBadRequest, "bad_request", "unknown status")
		return
	}
	result, err := a.Inquiries.List(r.Context(), status, pageFromQuery(r))
	if err != nil {
		a.domainError(w, r, err, "")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"items": lo.Map(result.Items, func(b domain.BrandInquiry, _ int) inquiryDTO { return toInquiryDTO(b) }),
		"page":  pageMeta(result.Page, result.Total, result.TotalPages()),
	})
}
