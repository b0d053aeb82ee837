package handlers

import (
	"net/http"

	"github.com/291e/bogofit-shop-sub001/internal/sqlinline"
)

func (a *App) SellerStats(w http.ResponseWriter, r *http.Request) {
	row := a.SQL.QueryRow(r.Context(), sqlinline.QSellerStats)
	var orders, pending, inFlight, revenue, newInquiries, runs24, succeeded24, failed24 int64
	if err := row.Scan(&orders, &pending, &inFlight, &revenue, &newInquiries, &runs24, &succeeded24, &failed24); err != nil {
		a.logger(r).Error().Err(err).Msg("seller stats failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load stats")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"orders_total":          orders,
		"orders_pending":        pending,
		"orders_in_fulfilment":  inFlight,
		"revenue_won":           revenue,
		"inquiries_new":         newInquiries,
		"fitting_runs_last_24h": runs24,
		"fitting_succeeded_24h": succeeded24,
		"fitting_failed_24h":    failed24,
	})
}
