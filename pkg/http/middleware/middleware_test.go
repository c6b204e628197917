package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	applogger "MarketRelay/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOriginAllowed(t *testing.T) {
	cases := []struct {
		allow  []string
		origin string
		want   bool
	}{
		{nil, "https://a.example", true},
		{[]string{"*"}, "https://a.example", true},
		{[]string{"https://a.example"}, "https://A.example", true},
		{[]string{"https://a.example"}, "https://b.example", false},
		{[]string{"https://a.example"}, "", true},
	}
	for _, tc := range cases {
		if got := OriginAllowed(tc.allow, tc.origin); got != tc.want {
			t.Fatalf("OriginAllowed(%v, %q) = %v", tc.allow, tc.origin, got)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	e := echo.New()
	e.Use(CORS(CORSConfig{AllowOrigins: []string{"https://a.example"}, AllowMethods: []string{http.MethodGet}}))
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set(echo.HeaderOrigin, "https://a.example")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("code = %d", rec.Code)
	}
	if rec.Header().Get(echo.HeaderAccessControlAllowOrigin) != "https://a.example" {
		t.Fatalf("missing allow-origin header")
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(echo.HeaderOrigin, "https://b.example")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Header().Get(echo.HeaderAccessControlAllowOrigin) != "" {
		t.Fatalf("disallowed origin got CORS headers")
	}
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := echo.New()
	e.Use(Metrics(reg))
	e.GET("/api/ws/topic/:topic", func(c echo.Context) error { return c.NoContent(http.StatusNotFound) })

	for _, p := range []string{"/api/ws/topic/a", "/api/ws/topic/b"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}
	m := newHTTPMetrics(reg) // shares the registered collectors
	got := testutil.ToFloat64(m.requests.WithLabelValues("/api/ws/topic/:topic", http.MethodGet, "404"))
	if got != 2 {
		t.Fatalf("requests = %v", got)
	}
}

func TestRecoverAndLogging(t *testing.T) {
	e := echo.New()
	l := applogger.NewNop()
	e.Use(Recover(l))
	e.Use(RequestLogging(l))
	e.GET("/panic", func(c echo.Context) error { panic("boom") })
	e.GET("/err", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot, "short and stout") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("panic: code = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/err", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("error: code = %d", rec.Code)
	}
}
