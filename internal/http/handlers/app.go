package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/291e/bogofit-shop-sub001/internal/adapter/repo"
	"github.com/291e/bogofit-shop-sub001/internal/domain"
	"github.com/291e/bogofit-shop-sub001/internal/fitting"
	"github.com/291e/bogofit-shop-sub001/internal/imageproxy"
	"github.com/291e/bogofit-shop-sub001/internal/infra"
	"github.com/291e/bogofit-shop-sub001/internal/storage"
)

// FittingRuns is the run registry as seen by the HTTP layer.
type FittingRuns interface {
	Start(form *fitting.Form, pro bool, productID string) (*fitting.Run, error)
	Get(id string) (*fitting.Run, error)
	Lookup(ctx context.Context, id string) (fitting.RunSnapshot, error)
	Wait(ctx context.Context, id string) (fitting.RunSnapshot, error)
}

// ImageProxy fetches allow-listed remote images.
type ImageProxy interface {
	Get(ctx context.Context, rawURL string) (*imageproxy.Image, error)
	fitting.ImageFetcher
}

type App struct {
	Config    *infra.Config
	Logger    infra.Logger
	SQL       infra.SQLExecutor
	Products  domain.ProductRepository
	Reviews   domain.ReviewRepository
	Inquiries domain.InquiryRepository
	Orders    domain.OrderRepository
	Runs      FittingRuns
	Proxy     ImageProxy
	Store     *storage.FileStore
	Archive   *storage.FittingArchive
	Validator fitting.Validator
}

// NewApp wires the PostgreSQL repositories over sql. The fitting registry,
// proxy and storage are attached by the caller since they have their own
// lifecycles.
func NewApp(cfg *infra.Config, logger infra.Logger, sql infra.SQLExecutor) *App {
	return &App{
		Config:    cfg,
		Logger:    logger,
		SQL:       sql,
		Products:  repo.NewProductRepository(sql),
		Reviews:   repo.NewReviewRepository(sql),
		Inquiries: repo.NewInquiryRepository(sql),
		Orders:    repo.NewOrderRepository(sql),
		Validator: fitting.NewValidator(cfg.Fitting.AllowedMIME, cfg.Fitting.MaxUploadBytes),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{"error": map[string]string{"code": errCode, "message": message}})
}

func (a *App) fieldErrors(w http.ResponseWriter, message string, fields map[string]string) {
	a.json(w, http.StatusUnprocessableEntity, map[string]any{"error": map[string]any{
		"code":    "validation_failed",
		"message": message,
		"fields":  fields,
	}})
}

// domainError maps repository and validation errors onto the API envelope.
func (a *App) domainError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	var fields domain.FieldErrors
	switch {
	case errors.As(err, &fields):
		a.fieldErrors(w, "request is invalid", fields)
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", notFound)
	case errors.Is(err, domain.ErrInvalidTransition):
		a.error(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, domain.ErrConflict):
		a.error(w, http.StatusConflict, "conflict", "resource was modified concurrently")
	case errors.Is(err, domain.ErrOutOfStock):
		a.error(w, http.StatusConflict, "out_of_stock", err.Error())
	case errors.Is(err, context.Canceled):
		// client went away
	default:
		a.logger(r).Error().Err(err).Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
