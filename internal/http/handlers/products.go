package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/russross/blackfriday"
	"github.com/samber/lo"

	"github.com/291e/bogofit-shop-sub001/internal/domain"
	"github.com/291e/bogofit-shop-sub001/internal/fitting"
)

const (
	markdownHTMLFlags = blackfriday.HTML_USE_XHTML |
		blackfriday.HTML_SKIP_HTML |
		blackfriday.HTML_SKIP_STYLE |
		blackfriday.HTML_SAFELINK |
		blackfriday.HTML_NOFOLLOW_LINKS
	markdownExtensions = blackfriday.EXTENSION_NO_INTRA_EMPHASIS |
		blackfriday.EXTENSION_TABLES |
		blackfriday.EXTENSION_AUTOLINK |
		blackfriday.EXTENSION_STRIKETHROUGH |
		blackfriday.EXTENSION_HARD_LINE_BREAK
)

var knownCategories = []domain.ProductCategory{
	domain.CategoryTop, domain.CategoryOuter, domain.CategoryDress,
	domain.CategoryBottom, domain.CategoryShoes, domain.CategoryAccessory,
}

type productDTO struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Brand           string    `json:"brand"`
	Category        string    `json:"category"`
	PriceWon        int64     `json:"price_won"`
	ImageURL        string    `json:"image_url"`
	Stock           int       `json:"stock"`
	FittingSlot     string    `json:"fitting_slot,omitempty"`
	Description     string    `json:"description,omitempty"`
	DescriptionHTML string    `json:"description_html,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func toProductDTO(p domain.Product) productDTO {
	dto := productDTO{
		ID:        p.ID,
		Title:     p.Title,
		Brand:     p.Brand,
		Category:  string(p.Category),
		PriceWon:  p.PriceWon,
		ImageURL:  p.ImageURL,
		Stock:     p.Stock,
		CreatedAt: p.CreatedAt,
	}
	if slot, ok := fitting.SlotForCategory(string(p.Category)); ok {
		dto.FittingSlot = string(slot)
	}
	return dto
}

// renderMarkdown turns a seller-authored description into HTML. Raw HTML in
// the source is dropped.
func renderMarkdown(src string) string {
	if strings.TrimSpace(src) == "" {
		return ""
	}
	renderer := blackfriday.HtmlRenderer(markdownHTMLFlags, "", "")
	return string(blackfriday.Markdown([]byte(src), renderer, markdownExtensions))
}

func (a *App) ProductsList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ProductFilter{
		Query: strings.TrimSpace(q.Get("q")),
		Page:  pageFromQuery(r),
	}
	if raw := q.Get("category"); raw != "" {
		category := domain.ProductCategory(fitting.NormalizeCategory(raw))
		if !lo.Contains(knownCategories, category) {
			a.error(w, http.StatusBadRequest, "bad_request", "unknown category")
			return
		}
		filter.Category = category
	}
	result, err := a.Products.List(r.Context(), filter)
	if err != nil {
		a.domainError(w, r, err, "products not found")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"items": lo.Map(result.Items, func(p domain.Product, _ int) productDTO { return toProductDTO(p) }),
		"page":  pageMeta(result.Page, result.Total, result.TotalPages()),
	})
}

func (a *App) ProductGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	product, err := a.Products.GetByID(r.Context(), id)
	if err != nil {
		a.domainError(w, r, err, "product not found")
		return
	}
	summary, err := a.Reviews.Summary(r.Context(), id)
	if err != nil {
		a.logger(r).Warn().Err(err).Str("product_id", id).Msg("review summary unavailable")
	}
	dto := toProductDTO(*product)
	dto.Description = product.Description
	dto.DescriptionHTML = renderMarkdown(product.Description)
	a.json(w, http.StatusOK, map[string]any{
		"product": dto,
		"reviews": map[string]any{"count": summary.Count, "average": summary.Average},
	})
}
