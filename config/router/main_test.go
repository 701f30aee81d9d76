package router

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/akeren/lore-anchor-waitlist/internal/log"
	"github.com/akeren/lore-anchor-waitlist/pkg/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mountTestController(rs *RouterService) {
	ctrl := NewRESTController("TestController", "/", func(rs *RouterService, c *RESTController) {
		rs.AddGetHandler(c, nil, "ip", func(ctx *RequestContext) *ServiceResult {
			return OKResult(ctx.ClientIP(), "ok")
		})

		rs.AddGetHandler(c, nil, "raw", func(ctx *RequestContext) *ServiceResult {
			return JSONResult(http.StatusOK, map[string]int{"count": 3})
		})

		rs.AddGetHandler(c, ratelimit.NewRateLimiter(&ratelimit.RateLimitConfig{Requests: 1, Window: time.Minute}), "limited",
			func(ctx *RequestContext) *ServiceResult {
				return OKResult(nil, "ok")
			})

		rs.AddGetHandler(c, nil, "nil", func(ctx *RequestContext) *ServiceResult {
			return nil
		})

		rs.AddPostHandler(c, nil, "echo", func(ctx *RequestContext) *ServiceResult {
			var payload map[string]any
			if err := ctx.ShouldBindJSON(&payload); err != nil {
				return ErrorResult(http.StatusBadRequest, "bad", nil)
			}
			return OKResult(payload, "ok")
		})
	})

	rs.MountController(ctrl)
}

func newTestRouterService(t *testing.T, policy *HTTPPolicy) *RouterService {
	t.Helper()

	rs := CreateRouterService(log.NewLogger(io.Discard, slog.LevelError), nil, &RouterConfig{
		RateLimitRequests: 1000,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    5 * time.Second,
		Policy:            policy,
	})
	t.Cleanup(rs.Cleanup)
	mountTestController(rs)
	return rs
}

func serve(rs *RouterService, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	rs.GetEngine().ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestTrustedProxies(t *testing.T) {
	tests := []struct {
		name     string
		proxies  string
		expected string
	}{
		{name: "disabled by default", proxies: "", expected: "10.0.0.2"},
		{name: "star trusts forwarded for", proxies: "*", expected: "1.1.1.1"},
		{name: "listed proxy is trusted", proxies: "10.0.0.0/8", expected: "1.1.1.1"},
		{name: "unlisted proxy is ignored", proxies: "192.168.0.0/16", expected: "10.0.0.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := DefaultHTTPPolicy()
			policy.TrustedProxies = tt.proxies
			rs := newTestRouterService(t, policy)

			req := httptest.NewRequest(http.MethodGet, "/ip", nil)
			req.RemoteAddr = "10.0.0.2:1234"
			req.Header.Set("X-Forwarded-For", "1.1.1.1")

			w := serve(rs, req)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, tt.expected, decodeEnvelope(t, w)["data"])
		})
	}
}

func TestTrustedProxies_ReadFromEnvironment(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", "*")

	rs := newTestRouterService(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/ip", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	req.Header.Set("X-Forwarded-For", "1.1.1.1")

	w := serve(rs, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1.1.1.1", decodeEnvelope(t, w)["data"])
}

func TestMaxBodySize_Returns413(t *testing.T) {
	policy := DefaultHTTPPolicy()
	policy.MaxRequestBodyBytes = 10
	rs := newTestRouterService(t, policy)

	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewReader(bytes.Repeat([]byte{'a'}, 50)))
	req.Header.Set("Content-Type", "application/json")

	w := serve(rs, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
}

func TestJSONResult_WritesBodyWithoutEnvelope(t *testing.T) {
	rs := newTestRouterService(t, DefaultHTTPPolicy())

	w := serve(rs, httptest.NewRequest(http.MethodGet, "/raw", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":3}`, w.Body.String())
}

func TestNilHandlerResult_Returns500(t *testing.T) {
	rs := newTestRouterService(t, DefaultHTTPPolicy())

	w := serve(rs, httptest.NewRequest(http.MethodGet, "/nil", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestUnknownRoute_Returns404(t *testing.T) {
	rs := newTestRouterService(t, DefaultHTTPPolicy())

	w := serve(rs, httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Route not found", decodeEnvelope(t, w)["message"])
}

func TestWrongMethod_Returns405(t *testing.T) {
	rs := newTestRouterService(t, DefaultHTTPPolicy())

	w := serve(rs, httptest.NewRequest(http.MethodDelete, "/raw", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestCorrelationID(t *testing.T) {
	rs := newTestRouterService(t, DefaultHTTPPolicy())

	t.Run("echoes the caller's id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/raw", nil)
		req.Header.Set(log.CorrelationIDHeader, "abc-123")

		w := serve(rs, req)
		assert.Equal(t, "abc-123", w.Header().Get(log.CorrelationIDHeader))
	})

	t.Run("generates one when absent", func(t *testing.T) {
		w := serve(rs, httptest.NewRequest(http.MethodGet, "/raw", nil))
		assert.NotEmpty(t, w.Header().Get(log.CorrelationIDHeader))
	})
}

func TestHandlerRateLimiter_Returns429(t *testing.T) {
	rs := newTestRouterService(t, DefaultHTTPPolicy())

	first := serve(rs, httptest.NewRequest(http.MethodGet, "/limited", nil))
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))

	second := serve(rs, httptest.NewRequest(http.MethodGet, "/limited", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))

	// The global limiter still serves other handlers.
	other := serve(rs, httptest.NewRequest(http.MethodGet, "/raw", nil))
	assert.Equal(t, http.StatusOK, other.Code)
	assert.Equal(t, "1000", other.Header().Get("X-RateLimit-Limit"))
}

func TestCORS(t *testing.T) {
	policy := DefaultHTTPPolicy()
	policy.AllowedOrigins = []string{"https://lore-anchor.example"}
	rs := newTestRouterService(t, policy)

	t.Run("allowed origin gets headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/raw", nil)
		req.Header.Set("Origin", "https://lore-anchor.example")

		w := serve(rs, req)
		assert.Equal(t, "https://lore-anchor.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-Waitlist-Count")
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Accept-Language")
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/echo", nil)
		req.Header.Set("Origin", "https://lore-anchor.example")

		w := serve(rs, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("other origins get nothing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/raw", nil)
		req.Header.Set("Origin", "https://evil.example")

		w := serve(rs, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestSecurityHeaders(t *testing.T) {
	policy := DefaultHTTPPolicy()
	policy.HSTSEnabled = "true"
	rs := newTestRouterService(t, policy)

	plain := serve(rs, httptest.NewRequest(http.MethodGet, "/raw", nil))
	assert.Equal(t, "nosniff", plain.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", plain.Header().Get("X-Frame-Options"))
	assert.Empty(t, plain.Header().Get("Strict-Transport-Security"))

	req := httptest.NewRequest(http.MethodGet, "/raw", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	secure := serve(rs, req)
	assert.Equal(t, "max-age=31536000; includeSubDomains", secure.Header().Get("Strict-Transport-Security"))
}

func TestMetricsEndpoint(t *testing.T) {
	t.Run("enabled by default", func(t *testing.T) {
		rs := newTestRouterService(t, DefaultHTTPPolicy())
		require.NotNil(t, rs.MetricsRegisterer())

		serve(rs, httptest.NewRequest(http.MethodGet, "/raw", nil))
		w := serve(rs, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.Contains(w.Body.String(), `http_requests_total{method="GET",route="/raw",status="200"} 1`))
	})

	t.Run("disabled", func(t *testing.T) {
		policy := DefaultHTTPPolicy()
		policy.MetricsEnabled = "false"
		rs := newTestRouterService(t, policy)

		assert.Nil(t, rs.MetricsRegisterer())
		w := serve(rs, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestDuplicateRoute_Panics(t *testing.T) {
	rs := newTestRouterService(t, DefaultHTTPPolicy())

	dup := NewRESTController("Duplicate", "", func(rs *RouterService, c *RESTController) {
		rs.AddGetHandler(c, nil, "/raw/", func(ctx *RequestContext) *ServiceResult { return nil })
	})

	assert.PanicsWithValue(t, `GET /raw is already registered by controller "TestController"`, func() {
		rs.MountController(dup)
	})
}

func TestRESTController_RoutePath(t *testing.T) {
	tests := []struct{ mount, rel, want string }{
		{"/", "ip", "/ip"},
		{"waitlist", "", "/waitlist"},
		{"/api/waitlist/", "", "/api/waitlist"},
		{"/api", "/waitlist/", "/api/waitlist"},
	}

	for _, tt := range tests {
		c := NewRESTController("c", tt.mount, nil)
		assert.Equal(t, tt.want, c.routePath(tt.rel), "mount=%q rel=%q", tt.mount, tt.rel)
	}
}
