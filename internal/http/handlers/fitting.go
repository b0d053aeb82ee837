package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/291e/bogofit-shop-sub001/internal/domain"
	"github.com/291e/bogofit-shop-sub001/internal/fitting"
	"github.com/291e/bogofit-shop-sub001/internal/storage"
)

const (
	defaultWaitTimeout = 2 * time.Minute
	wsWriteTimeout     = 10 * time.Second
	wsPingInterval     = 30 * time.Second
)

type runAccepted struct {
	RunID      string `json:"run_id"`
	StatusURL  string `json:"status_url"`
	StreamURL  string `json:"stream_url"`
	ArchiveURL string `json:"archive_url"`
}

func (a *App) FittingRunCreate(w http.ResponseWriter, r *http.Request) {
	if a.Runs == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "virtual fitting is not configured")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, a.uploadLimit(len(fitting.Slots)))
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", "upload is too large")
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart payload")
		return
	}
	ctx := r.Context()
	form := fitting.NewForm(fitting.FormOptions{
		Validator: a.Validator,
		Fetcher:   a.Proxy,
		Logger:    a.logger(r),
	})
	fields := map[string]string{}
	addSlotError := func(err error) {
		var slotErr *fitting.SlotError
		if errors.As(err, &slotErr) {
			fields[string(slotErr.Slot)] = slotErr.Reason
			return
		}
		fields["form"] = err.Error()
	}

	samples := map[fitting.Slot]string{}
	for _, slot := range fitting.Slots {
		if v := strings.TrimSpace(r.FormValue("sample_" + string(slot))); v != "" {
			samples[slot] = v
		}
	}
	if err := form.SeedSamples(ctx, samples); err != nil {
		addSlotError(err)
	}

	productID := strings.TrimSpace(r.FormValue("product_id"))
	productImage := strings.TrimSpace(r.FormValue("product_image"))
	category := r.FormValue("product_category")
	if productID != "" && productImage == "" {
		product, err := a.Products.GetByID(ctx, productID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			fields["product_id"] = "unknown product"
		case err != nil:
			a.domainError(w, r, err, "product not found")
			return
		default:
			productImage, category = product.ImageURL, string(product.Category)
		}
	}
	if productImage != "" {
		form.SeedFromProductImage(ctx, productImage, category)
	}

	for _, slot := range fitting.Slots {
		fhs := r.MultipartForm.File[slot.FieldName()]
		if len(fhs) == 0 {
			continue
		}
		file, err := readFilePart(fhs[0])
		if err != nil {
			fields[string(slot)] = err.Error()
			continue
		}
		if err := form.SetFromUpload(ctx, slot, file); err != nil {
			addSlotError(err)
		}
	}
	if len(fields) > 0 {
		a.fieldErrors(w, "one or more images were rejected", fields)
		return
	}

	pro := parseBool(r.FormValue("is_pro"))
	if err := form.Request("", pro).Validate(); err != nil {
		for _, slot := range []fitting.Slot{fitting.SlotHuman, fitting.SlotGarment} {
			if !form.Slot(slot).HasFile() {
				fields[string(slot)] = "image is required"
			}
		}
		a.fieldErrors(w, fitting.Outcome{Kind: fitting.OutcomeMissingSlots}.Message(), fields)
		return
	}

	run, err := a.Runs.Start(form, pro, productID)
	if err != nil {
		a.logger(r).Error().Err(err).Msg("fitting run not started")
		a.error(w, http.StatusServiceUnavailable, "unavailable", "virtual fitting is shutting down")
		return
	}

	if parseBool(r.URL.Query().Get("wait")) {
		waitCtx, cancel := context.WithTimeout(ctx, a.waitTimeout())
		defer cancel()
		snap, err := a.Runs.Wait(waitCtx, run.ID)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			a.domainError(w, r, err, "run not found")
			return
		}
		code := http.StatusOK
		if !snap.Done {
			code = http.StatusAccepted
		}
		a.json(w, code, snap)
		return
	}

	base := "/v1/fitting/runs/" + url.PathEscape(run.ID)
	a.json(w, http.StatusAccepted, runAccepted{
		RunID:      run.ID,
		StatusURL:  base,
		StreamURL:  base + "/ws",
		ArchiveURL: base + "/archive",
	})
}

// waitTimeout keeps inline waits inside the server's write deadline.
func (a *App) waitTimeout() time.Duration {
	if a.Config == nil || a.Config.HTTPWriteTimeout <= 5*time.Second {
		return defaultWaitTimeout
	}
	return a.Config.HTTPWriteTimeout - 5*time.Second
}

func (a *App) FittingRunGet(w http.ResponseWriter, r *http.Request) {
	if a.Runs == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "virtual fitting is not configured")
		return
	}
	snap, err := a.Runs.Lookup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.runError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, snap)
}

func (a *App) FittingRunArchive(w http.ResponseWriter, r *http.Request) {
	if a.Archive == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "storage is not configured")
		return
	}
	id := chi.URLParam(r, "id")
	data, err := a.Archive.Zip(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "no inputs archived for run")
			return
		}
		a.logger(r).Error().Err(err).Str("run_id", id).Msg("fitting archive failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=fitting-%s.zip", id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// FittingRunStream pushes a snapshot on every progress change until the run
// finishes, then closes the socket normally.
func (a *App) FittingRunStream(w http.ResponseWriter, r *http.Request) {
	if a.Runs == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "virtual fitting is not configured")
		return
	}
	run, err := a.Runs.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.runError(w, r, err)
		return
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     a.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	updates, unsubscribe := run.Subscribe()
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(v any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(v)
	}
	if err := send(run.Snapshot()); err != nil {
		return
	}
	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-run.Done():
			if err := send(run.Snapshot()); err != nil {
				return
			}
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
			return
		case _, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if err := send(run.Snapshot()); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (a *App) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	if a.Config == nil {
		return false
	}
	origin = strings.TrimRight(origin, "/")
	for _, allowed := range a.Config.CORSOrigins {
		allowed = strings.TrimRight(strings.TrimSpace(allowed), "/")
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (a *App) runError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, fitting.ErrRunNotFound) {
		a.error(w, http.StatusNotFound, "not_found", "run not found or expired")
		return
	}
	a.domainError(w, r, err, "run not found")
}
