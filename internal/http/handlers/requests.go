package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/291e/bogofit-shop-sub001/internal/domain"
	"github.com/291e/bogofit-shop-sub001/internal/infra"
)

// logger returns the request-scoped logger installed by the logging
// middleware, or the app logger.
func (a *App) logger(r *http.Request) *infra.Logger {
	if l := zerolog.Ctx(r.Context()); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &a.Logger
}

func pageFromQuery(r *http.Request) domain.Page {
	q := r.URL.Query()
	number, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))
	return domain.NormalizePage(number, size)
}

func pageMeta(page domain.Page, total, totalPages int) map[string]int {
	return map[string]int{
		"page":        page.Number,
		"page_size":   page.Size,
		"total":       total,
		"total_pages": totalPages,
	}
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}
