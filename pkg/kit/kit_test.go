package kit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPRateLimiterSlidingWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewIPRateLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	hit := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/sessions", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1").Code)
	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1").Code)

	rec := hit("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusNoContent, hit("10.0.0.2").Code, "limits are per ip")

	now = now.Add(61 * time.Second)
	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1").Code, "window slides")
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(req))
}

func TestMetricsAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	call := func(token, header string) int {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		MetricsAuth(token)(ok).ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("s3cret", "Bearer s3cret"))
	assert.Equal(t, http.StatusForbidden, call("s3cret", "Bearer nope"))
	assert.Equal(t, http.StatusForbidden, call("s3cret", ""))
	assert.Equal(t, http.StatusForbidden, call("", "Bearer "), "empty token locks the endpoint")
}

func TestDecodeJSONStrict(t *testing.T) {
	type req struct {
		Portal string `json:"portal"`
	}

	cases := []struct {
		body    string
		wantErr bool
	}{
		{`{"portal":"retail"}`, false},
		{`{"portal":"retail","x":1}`, true},
		{`{"portal":"retail"}{}`, true},
		{``, true},
	}

	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
		var v req
		err := DecodeJSON(httptest.NewRecorder(), r, &v)
		if tc.wantErr {
			assert.Error(t, err, tc.body)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, "retail", v.Portal)
	}
}
