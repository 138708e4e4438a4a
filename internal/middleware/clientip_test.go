package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{name: "remote addr", remoteAddr: "192.0.2.10:1234", want: "192.0.2.10"},
		{name: "remote addr without port", remoteAddr: "192.0.2.10", want: "192.0.2.10"},
		{name: "empty remote addr", remoteAddr: "", want: "unknown"},
		{
			name:       "forwarded for ignored when untrusted",
			remoteAddr: "192.0.2.10:1234",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.1", "X-Real-IP": "198.51.100.2"},
			want:       "192.0.2.10",
		},
		{
			name:       "real ip preferred when trusted",
			remoteAddr: "10.0.0.1:443",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.1", "X-Real-IP": "198.51.100.2"},
			trustProxy: true,
			want:       "198.51.100.2",
		},
		{
			name:       "rightmost forwarded hop when trusted",
			remoteAddr: "10.0.0.1:443",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4, 198.51.100.1, "},
			trustProxy: true,
			want:       "198.51.100.1",
		},
		{
			name:       "trusted without headers falls back to peer",
			remoteAddr: "10.0.0.1:443",
			trustProxy: true,
			want:       "10.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, resolveClientIP(req, tt.trustProxy))
		})
	}
}

func TestClientIPMiddlewareStoresAddress(t *testing.T) {
	var seen string
	handler := ClientIP(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClientIPFrom(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.44:9000"
	req.Header.Set("X-Forwarded-For", "198.51.100.9")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "192.0.2.44", seen)
}

func TestClientIPFromWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.55:80"
	req.Header.Set("X-Forwarded-For", "198.51.100.9")

	assert.Equal(t, "192.0.2.55", ClientIPFrom(req))
}
