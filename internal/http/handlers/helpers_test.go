package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/291e/bogofit-shop-sub001/internal/domain"
	"github.com/291e/bogofit-shop-sub001/internal/fitting"
	"github.com/291e/bogofit-shop-sub001/internal/infra"
)

const testSecret = "test-secret"

func testConfig() *infra.Config {
	return &infra.Config{
		AppEnv:           "test",
		JWTSecret:        testSecret,
		CORSOrigins:      []string{"http://localhost:3000"},
		HTTPWriteTimeout: 15 * time.Second,
		Fitting: infra.FittingConfig{
			MaxUploadBytes: 1 << 20,
			AllowedMIME:    fitting.DefaultAllowedMIME,
		},
	}
}

// newTestApp builds an App over in-memory repositories.
func newTestApp(t *testing.T) (*App, *memStore) {
	t.Helper()
	cfg := testConfig()
	store := newMemStore()
	app := &App{
		Config:    cfg,
		Logger:    *infra.DiscardLogger(),
		Products:  store,
		Reviews:   store,
		Inquiries: memInquiries{store},
		Orders:    memOrders{store},
		Validator: fitting.NewValidator(cfg.Fitting.AllowedMIME, cfg.Fitting.MaxUploadBytes),
	}
	return app, store
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return payload
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	payload := decodeBody(t, rr)
	e, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error envelope, got %#v", payload)
	}
	code, _ := e["code"].(string)
	return code
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(2, 2, color.RGBA{G: 180, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

type formPart struct {
	field    string
	filename string
	mime     string
	data     []byte
}

// multipartBody encodes fields and file parts into a multipart body.
func multipartBody(t *testing.T, fields map[string]string, parts ...formPart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, fields[k]); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+p.field+`"; filename="`+p.filename+`"`)
		h.Set("Content-Type", p.mime)
		w, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := w.Write(p.data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

// memStore implements every repository the handlers use.
type memStore struct {
	mu        sync.Mutex
	products  map[string]domain.Product
	reviews   []domain.Review
	inquiries []domain.BrandInquiry
	orders    map[string]*domain.Order
}

func newMemStore() *memStore {
	return &memStore{products: map[string]domain.Product{}, orders: map[string]*domain.Order{}}
}

func (m *memStore) addProduct(p domain.Product) domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	m.products[p.ID] = p
	return p
}

func (m *memStore) List(_ context.Context, filter domain.ProductFilter) (domain.PageResult[domain.Product], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	page := domain.NormalizePage(filter.Page.Number, filter.Page.Size)
	out := domain.PageResult[domain.Product]{Page: page, Items: []domain.Product{}}
	for _, p := range m.products {
		if filter.Category == "" || p.Category == filter.Category {
			out.Items = append(out.Items, p)
		}
	}
	out.Total = len(out.Items)
	return out, nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (m *memStore) GetMany(_ context.Context, ids []string) (map[string]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]domain.Product{}
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *memStore) Create(_ context.Context, review *domain.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	review.ID = uuid.NewString()
	review.CreatedAt = time.Now().UTC()
	m.reviews = append(m.reviews, *review)
	return nil
}

func (m *memStore) ListByProduct(_ context.Context, productID string, page domain.Page) (domain.PageResult[domain.Review], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := domain.PageResult[domain.Review]{Page: domain.NormalizePage(page.Number, page.Size), Items: []domain.Review{}}
	for _, rv := range m.reviews {
		if rv.ProductID == productID {
			out.Items = append(out.Items, rv)
		}
	}
	out.Total = len(out.Items)
	return out, nil
}

func (m *memStore) Summary(_ context.Context, productID string) (domain.ReviewSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s domain.ReviewSummary
	var sum int
	for _, rv := range m.reviews {
		if rv.ProductID == productID {
			s.Count++
			sum += rv.Rating
		}
	}
	if s.Count > 0 {
		s.Average = float64(sum) / float64(s.Count)
	}
	return s, nil
}

// memInquiries and memOrders adapt memStore where method names collide.
type memInquiries struct{ *memStore }

func (m memInquiries) Create(_ context.Context, inquiry *domain.BrandInquiry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inquiry.ID = uuid.NewString()
	inquiry.Status = domain.InquiryNew
	inquiry.CreatedAt = time.Now().UTC()
	m.inquiries = append(m.inquiries, *inquiry)
	return nil
}

func (m memInquiries) List(_ context.Context, status domain.InquiryStatus, page domain.Page) (domain.PageResult[domain.BrandInquiry], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := domain.PageResult[domain.BrandInquiry]{Page: domain.NormalizePage(page.Number, page.Size), Items: []domain.BrandInquiry{}}
	for _, b := range m.inquiries {
		if status == "" || b.Status == status {
			out.Items = append(out.Items, b)
		}
	}
	out.Total = len(out.Items)
	return out, nil
}

type memOrders struct{ *memStore }

// Create reserves stock the way the SQL statement does: all lines or none.
func (m memOrders) Create(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range order.Items {
		if m.products[item.ProductID].Stock < item.Quantity {
			return fmt.Errorf("mem: reserve %s: %w", item.ProductID, domain.ErrOutOfStock)
		}
	}
	for _, item := range order.Items {
		p := m.products[item.ProductID]
		p.Stock -= item.Quantity
		m.products[item.ProductID] = p
	}
	order.ID = uuid.NewString()
	order.CreatedAt = time.Now().UTC()
	order.UpdatedAt = order.CreatedAt
	stored := *order
	m.orders[order.ID] = &stored
	return nil
}

func (m memOrders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m memOrders) ListByStatus(_ context.Context, status domain.OrderStatus, page domain.Page) (domain.PageResult[domain.Order], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := domain.PageResult[domain.Order]{Page: domain.NormalizePage(page.Number, page.Size), Items: []domain.Order{}}
	for _, o := range m.orders {
		if status == "" || o.Status == status {
			out.Items = append(out.Items, *o)
		}
	}
	out.Total = len(out.Items)
	return out, nil
}

func (m memOrders) UpdateStatus(_ context.Context, id string, from, to domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !from.CanTransition(to) {
		return domain.ErrInvalidTransition
	}
	if o.Status != from {
		return domain.ErrConflict
	}
	o.Status = to
	return nil
}
