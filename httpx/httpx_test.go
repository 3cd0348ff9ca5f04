package httpx

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterIgnoresSpoofedForwardedFor(t *testing.T) {
	limiter := NewRateLimiter(5, time.Minute)
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	allowed := 0
	var last int
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusNoContent {
			allowed++
		}
		last = rec.Code
	}
	assert.Equal(t, 5, allowed)
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestRateLimiterBehindTrustedProxy(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.0.2.1"})
	require.NoError(t, err)
	limiter := NewRateLimiter(1, time.Minute).TrustProxies(proxies)

	req := func(xff string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/api/contact", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		r.Header.Set("X-Forwarded-For", xff)
		return r
	}
	assert.True(t, limiter.AllowRequest(req("203.0.113.5")))
	assert.True(t, limiter.AllowRequest(req("203.0.113.6")), "distinct clients behind the proxy")
	assert.False(t, limiter.AllowRequest(req("1.2.3.4, 203.0.113.5")), "client-supplied hops are ignored")
}

func TestClientIP(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", "192.0.2.1"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		remote  string
		xff     string
		proxies TrustedProxies
		want    string
	}{
		{"no proxies configured", "203.0.113.9:80", "1.1.1.1", nil, "203.0.113.9"},
		{"untrusted peer", "203.0.113.9:80", "1.1.1.1", proxies, "203.0.113.9"},
		{"trusted peer", "10.1.2.3:80", "1.1.1.1", proxies, "1.1.1.1"},
		{"proxy chain", "10.1.2.3:80", "1.1.1.1, 5.5.5.5, 192.0.2.1", proxies, "5.5.5.5"},
		{"garbage hop", "10.1.2.3:80", "not-an-ip", proxies, "10.1.2.3"},
		{"no header", "10.1.2.3:80", "", proxies, "10.1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, tt.proxies.ClientIP(r))
		})
	}
	assert.Equal(t, "203.0.113.9", ClientIP(&http.Request{RemoteAddr: "203.0.113.9:80", Header: http.Header{"X-Forwarded-For": {"1.1.1.1"}}}))

	_, err = ParseTrustedProxies([]string{"nope"})
	assert.Error(t, err)
}
