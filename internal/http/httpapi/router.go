package httpapi

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/291e/bogofit-shop-sub001/internal/http/handlers"
	"github.com/291e/bogofit-shop-sub001/internal/middleware"
)

// Options carries the router dependencies that do not live on the App.
type Options struct {
	// CountryLookup resolves client IPs to ISO country codes. Nil falls back to
	// edge headers and Accept-Language only.
	CountryLookup middleware.CountryLookup
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(app.Config.CORSOrigins),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	if app.Store != nil {
		uploads := filepath.Join(app.Store.BasePath(), "uploads")
		r.Handle("/static/uploads/*", http.StripPrefix("/static/uploads/", http.FileServer(http.Dir(uploads))))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(
			middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute),
			middleware.Country(opts.CountryLookup),
		)

		r.Get("/image-proxy", app.ImageProxy)
		r.Post("/uploads", app.Upload)

		r.Route("/fitting/runs", func(r chi.Router) {
			r.Post("/", app.FittingRunCreate)
			r.Get("/{id}", app.FittingRunGet)
			r.Get("/{id}/ws", app.FittingRunStream)
			r.Get("/{id}/archive", app.FittingRunArchive)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", app.ProductsList)
			r.Get("/{id}", app.ProductGet)
			r.Get("/{id}/reviews", app.ReviewsList)
			r.Post("/{id}/reviews", app.ReviewCreate)
		})

		r.Post("/inquiries", app.InquiryCreate)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", app.OrderCreate)
			r.Get("/{id}", app.OrderGet)
		})

		r.Route("/seller", func(r chi.Router) {
			r.Use(middleware.SellerAuth(app.Config.JWTSecret))
			r.Get("/stats", app.SellerStats)
			r.Get("/orders", app.SellerOrders)
			r.Patch("/orders/{id}/status", app.SellerOrderStatus)
			r.Get("/inquiries", app.SellerInquiries)
		})
	})

	return r
}
