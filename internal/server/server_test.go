package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alanyoungcy/tpwatch/internal/domain"
	"github.com/alanyoungcy/tpwatch/internal/server/handler"
	"github.com/alanyoungcy/tpwatch/internal/service"
	"github.com/alanyoungcy/tpwatch/internal/store/memory"
)

type staticProvider struct{}

func (staticProvider) ForItem(_ context.Context, id uint32) (domain.ItemPrice, error) {
	return domain.ItemPrice{ItemID: id, SellPrice: 25, Supply: 10}, nil
}

func newTestHandler(apiKey string) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewPriceService(staticProvider{}, memory.NewPriceStore(), nil, nil, logger)
	return NewHandler(
		Config{APIKey: apiKey},
		Handlers{
			Health: handler.NewHealthHandler("server", logger),
			Prices: handler.NewPriceHandler(svc, logger),
		},
		nil,
		logger,
	)
}

func TestNewHandler_routes(t *testing.T) {
	t.Parallel()

	h := newTestHandler("")

	cases := []struct {
		method, target string
		want           int
	}{
		{http.MethodGet, "/api/health", http.StatusOK},
		{http.MethodGet, "/api/items", http.StatusOK},
		{http.MethodGet, "/api/items/1/price", http.StatusOK},
		{http.MethodPost, "/api/items/1/record", http.StatusCreated},
		{http.MethodGet, "/api/items/1/history", http.StatusOK},
		{http.MethodGet, "/api/items/1/aggregate", http.StatusNotFound},
		{http.MethodGet, "/api/items/1/archives", http.StatusNotFound},
		{http.MethodDelete, "/api/items/1/price", http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.target, nil))
		if rec.Code != tc.want {
			t.Errorf("%s %s: status got %d, want %d", tc.method, tc.target, rec.Code, tc.want)
		}
	}
}

func TestNewHandler_recordRequiresKey(t *testing.T) {
	t.Parallel()

	h := newTestHandler("secret")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/items/1/record", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("without key: status got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/items/1/record", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("with key: status got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items/1/price", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("read route should not need a key: status got %d", rec.Code)
	}
}
