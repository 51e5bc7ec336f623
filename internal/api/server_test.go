package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/albapepper/orderpulse/internal/cache"
	"github.com/albapepper/orderpulse/internal/catalog"
	"github.com/albapepper/orderpulse/internal/config"
	"github.com/albapepper/orderpulse/internal/cycle"
	"github.com/albapepper/orderpulse/internal/metrics"
	"github.com/albapepper/orderpulse/internal/model"
	"github.com/albapepper/orderpulse/internal/notifications"
	"github.com/albapepper/orderpulse/internal/store"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixedSampler map[string]int

func (f fixedSampler) Sample(code string, _ int) (int, float64) { return f[code], 0 }

type testServer struct {
	router http.Handler
	mem    *store.Memory
}

func newTestServer(t *testing.T, hour int, enforce bool, mutate func(*config.Config)) testServer {
	t.Helper()
	cfg := &config.Config{
		StorageDriver:    config.DriverMemory,
		CORSAllowOrigins: []string{"*"},
		TopN:             2,
		DispatchMinute:   30,
	}
	if mutate != nil {
		mutate(cfg)
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, metrics.Config{Environment: "test"})
	mem := store.NewMemory()
	c := cache.New(true)
	t.Cleanup(c.Close)

	runner := cycle.New(cycle.Deps{
		Store: mem,
		Catalog: catalog.New([]model.Product{
			{Code: "a", Name: "Alpha", Price: 1},
			{Code: "b", Name: "Beta", Price: 2},
			{Code: "c", Name: "Gamma", Price: 3},
		}),
		Sampler: fixedSampler{"a": 1, "b": 5, "c": 3},
		Fanout:  notifications.NewFanout(time.Second, quiet, m),
		Metrics: m,
		Logger:  quiet,
		Now:     func() time.Time { return time.Date(2026, 5, 20, hour, 30, 0, 0, time.UTC) },
	}, cycle.Options{TopN: cfg.TopN, EnforceWindow: enforce, Location: time.UTC})

	router := NewRouter(Deps{Runner: runner, Store: mem, Cache: c, Config: cfg, Logger: quiet, Gatherer: reg})
	return testServer{router: router, mem: mem}
}

func (s testServer) do(t *testing.T, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, rec)
	e, _ := body["error"].(map[string]interface{})
	code, _ := e["code"].(string)
	return code
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 12, false, nil)
	for _, path := range []string{"/health", "/health/db", "/health/cache", "/"} {
		rec := s.do(t, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d", path, rec.Code)
		}
		if rec.Header().Get("X-Process-Time") == "" {
			t.Fatalf("%s: missing X-Process-Time", path)
		}
	}
}

func TestCycleThenSnapshot(t *testing.T) {
	s := newTestServer(t, 12, false, nil)

	rec := s.do(t, http.MethodPost, "/api/v1/cycle", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cycle status %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["total_hourly"].(float64) != 9 || body["top"] != "b" || body["kind"] != model.ReportDetailed {
		t.Fatalf("cycle body = %v", body)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/snapshot", "", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("snapshot status %d cache %q", rec.Code, rec.Header().Get("X-Cache"))
	}
	var snap struct {
		Hour        int           `json:"hour"`
		TotalHourly int           `json:"total_hourly"`
		Entries     []model.Entry `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Hour != 12 || snap.TotalHourly != 9 || len(snap.Entries) != 3 || snap.Entries[1].HourlyOrders != 5 {
		t.Fatalf("snapshot = %+v", snap)
	}
	etag := rec.Header().Get("ETag")

	rec = s.do(t, http.MethodGet, "/api/v1/snapshot", "", nil)
	if rec.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("second read not cached")
	}
	rec = s.do(t, http.MethodGet, "/api/v1/snapshot", "", map[string]string{"If-None-Match": etag})
	if rec.Code != http.StatusNotModified {
		t.Fatalf("conditional read status %d", rec.Code)
	}

	// A new cycle invalidates the cached snapshot.
	s.do(t, http.MethodPost, "/api/v1/cycle?detailed=false", "", nil)
	rec = s.do(t, http.MethodGet, "/api/v1/snapshot", "", map[string]string{"If-None-Match": etag})
	if rec.Code != http.StatusOK || rec.Header().Get("ETag") == etag {
		t.Fatalf("snapshot not refreshed after cycle: %d", rec.Code)
	}
}

func TestQueryValidation(t *testing.T) {
	s := newTestServer(t, 12, false, nil)
	tests := []struct {
		target string
		code   string
	}{
		{"/api/v1/snapshot?hour=24", "INVALID_HOUR"},
		{"/api/v1/snapshot?hour=x", "INVALID_HOUR"},
		{"/api/v1/snapshot?date=20-01-2026", "INVALID_DATE"},
		{"/api/v1/daily?date=yesterday", "INVALID_DATE"},
		{"/api/v1/top?n=0", "INVALID_N"},
		{"/api/v1/orders/recent?limit=1000", "INVALID_LIMIT"},
		{"/api/v1/subscribers?limit=0", "INVALID_LIMIT"},
	}
	for _, tt := range tests {
		rec := s.do(t, http.MethodGet, tt.target, "", nil)
		if rec.Code != http.StatusBadRequest || errorCode(t, rec) != tt.code {
			t.Errorf("%s: status %d code %q, want 400 %s", tt.target, rec.Code, errorCode(t, rec), tt.code)
		}
	}
	rec := s.do(t, http.MethodPost, "/api/v1/cycle?detailed=maybe", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad detailed flag: status %d", rec.Code)
	}
}

func TestDailyTopDashboardOrders(t *testing.T) {
	s := newTestServer(t, 19, false, nil)
	s.do(t, http.MethodPost, "/api/v1/cycle", "", nil)

	rec := s.do(t, http.MethodGet, "/api/v1/daily?date=2026-05-20", "", nil)
	body := decode(t, rec)
	if body["total"].(float64) != 9 {
		t.Fatalf("daily = %v", body)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/top?n=1", "", nil)
	top := decode(t, rec)["top"].([]interface{})
	if len(top) != 1 || top[0].(map[string]interface{})["code"] != "b" {
		t.Fatalf("top = %v", top)
	}

	_ = s.mem.UpsertSubscriber(t.Context(), model.Subscriber{ID: 1})
	rec = s.do(t, http.MethodGet, "/api/v1/dashboard", "", nil)
	dash := decode(t, rec)
	if dash["orders_today"].(float64) != 9 || dash["active_subscribers"].(float64) != 1 || dash["products"].(float64) != 3 {
		t.Fatalf("dashboard = %v", dash)
	}
	if dash["next_report"] != "2026-05-20T19:30:00Z" {
		t.Fatalf("next_report = %v", dash["next_report"])
	}

	rec = s.do(t, http.MethodGet, "/api/v1/orders/recent?limit=4", "", nil)
	if orders := decode(t, rec)["orders"].([]interface{}); len(orders) != 4 {
		t.Fatalf("recent orders = %d", len(orders))
	}

	rec = s.do(t, http.MethodGet, "/api/v1/products", "", nil)
	if products := decode(t, rec)["products"].([]interface{}); len(products) != 3 {
		t.Fatalf("products = %v", products)
	}
}

func TestCycleOutsideWindow(t *testing.T) {
	s := newTestServer(t, 6, true, nil)
	rec := s.do(t, http.MethodPost, "/api/v1/cycle", "", nil)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "OUTSIDE_WINDOW" {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	rec = s.do(t, http.MethodPost, "/api/v1/cycle?force=true", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("forced status %d", rec.Code)
	}
}

func TestSubscriptions(t *testing.T) {
	s := newTestServer(t, 12, false, nil)

	rec := s.do(t, http.MethodPost, "/api/v1/subscribers", `{"id": 77, "username": "buyer"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("register status %d: %s", rec.Code, rec.Body.String())
	}
	rec = s.do(t, http.MethodPut, "/api/v1/subscribers/77/subscriptions/daily", `{"value": false}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status %d: %s", rec.Code, rec.Body.String())
	}
	subs, _ := s.mem.Subscribers(t.Context(), model.SubscriptionDaily)
	if len(subs) != 0 {
		t.Fatalf("daily subscribers = %+v", subs)
	}

	tests := []struct {
		method, target, body string
		status               int
		code                 string
	}{
		{http.MethodPut, "/api/v1/subscribers/77/subscriptions/weekly", `{"value": true}`, 400, "UNKNOWN_SUBSCRIPTION"},
		{http.MethodPut, "/api/v1/subscribers/5/subscriptions/alerts", `{"value": true}`, 404, "NOT_FOUND"},
		{http.MethodPut, "/api/v1/subscribers/x/subscriptions/daily", `{"value": true}`, 400, "INVALID_ID"},
		{http.MethodPut, "/api/v1/subscribers/77/subscriptions/daily", `{}`, 400, "INVALID_BODY"},
		{http.MethodPost, "/api/v1/subscribers", `{"username": "nobody"}`, 400, "MISSING_ID"},
		{http.MethodPost, "/api/v1/subscribers", `{"id": 1, "role": "admin"}`, 400, "INVALID_BODY"},
	}
	for _, tt := range tests {
		rec := s.do(t, tt.method, tt.target, tt.body, nil)
		if rec.Code != tt.status || errorCode(t, rec) != tt.code {
			t.Errorf("%s %s: %d %q, want %d %s", tt.method, tt.target, rec.Code, errorCode(t, rec), tt.status, tt.code)
		}
	}
}

func TestRecentSubscribersEndpoint(t *testing.T) {
	s := newTestServer(t, 12, false, nil)

	rec := s.do(t, http.MethodGet, "/api/v1/subscribers", "", nil)
	if subs := decode(t, rec)["subscribers"].([]interface{}); rec.Code != http.StatusOK || len(subs) != 0 {
		t.Fatalf("empty list: status %d body %s", rec.Code, rec.Body.String())
	}

	for _, body := range []string{`{"id": 1, "first_name": "Ann"}`, `{"id": 2}`, `{"id": 3}`} {
		if rec := s.do(t, http.MethodPost, "/api/v1/subscribers", body, nil); rec.Code != http.StatusOK {
			t.Fatalf("register %s: status %d", body, rec.Code)
		}
	}
	// Unsubscribing still counts as activity and keeps the user listed.
	s.do(t, http.MethodPut, "/api/v1/subscribers/1/subscriptions/daily", `{"value": false}`, nil)

	rec = s.do(t, http.MethodGet, "/api/v1/subscribers?limit=2", "", nil)
	body := decode(t, rec)
	subs := body["subscribers"].([]interface{})
	if rec.Code != http.StatusOK || len(subs) != 2 || body["count"].(float64) != 2 {
		t.Fatalf("limited list = %v", body)
	}
	first := subs[0].(map[string]interface{})
	if first["id"].(float64) != 1 || first["first_name"] != "Ann" || first["daily"] != false || first["last_active"] == nil {
		t.Fatalf("most recent subscriber = %v", first)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/subscribers", "", nil)
	if subs := decode(t, rec)["subscribers"].([]interface{}); len(subs) != 3 {
		t.Fatalf("default limit list = %v", subs)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, 12, false, nil)
	s.do(t, http.MethodPost, "/api/v1/cycle", "", nil)
	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `orderpulse_cycles_total{env="test",result="success",service="orderpulse"} 1`) {
		t.Fatalf("metrics:\n%s", rec.Body.String())
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, 12, false, func(c *config.Config) {
		c.RateLimitEnabled = true
		c.RateLimitRequests = 2
		c.RateLimitWindow = time.Hour
	})
	if rec := s.do(t, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("first request status %d", rec.Code)
	}
	rec := s.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") != "3600" {
		t.Fatalf("second request status %d retry %q", rec.Code, rec.Header().Get("Retry-After"))
	}
}
