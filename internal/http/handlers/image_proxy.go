package handlers

import (
	"net/http"
	"strconv"

	"github.com/291e/bogofit-shop-sub001/internal/imageproxy"
)

func (a *App) ImageProxy(w http.ResponseWriter, r *http.Request) {
	if a.Proxy == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "image proxy is not configured")
		return
	}
	img, err := a.Proxy.Get(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		status := imageproxy.StatusFor(err)
		if status >= http.StatusInternalServerError {
			a.logger(r).Warn().Err(err).Msg("image proxy failed")
		}
		a.error(w, status, "image_proxy", err.Error())
		return
	}
	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}
