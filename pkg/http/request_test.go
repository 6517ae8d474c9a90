package http_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	pkghttp "github.com/BradenHooton/erpauth/pkg/http"
	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP(t *testing.T) {
	internal := &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8", "127.0.0.1/32"}}

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		config     *pkghttp.IPConfig
		want       string
	}{
		{
			name:       "direct client cannot spoof forwarding headers",
			remoteAddr: "203.0.113.10:54321",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4, 5.6.7.8", "X-Real-IP": "192.168.1.1"},
			config:     internal,
			want:       "203.0.113.10",
		},
		{
			name:       "trusted proxy forwards first hop",
			remoteAddr: "10.0.0.5:54321",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.42, 203.0.113.43, 10.0.0.5"},
			config:     internal,
			want:       "203.0.113.42",
		},
		{
			name:       "trusted proxy skips garbage hops",
			remoteAddr: "10.0.0.5:54321",
			headers:    map[string]string{"X-Forwarded-For": "unknown, 203.0.113.42"},
			config:     internal,
			want:       "203.0.113.42",
		},
		{
			name:       "trusted proxy falls back to X-Real-IP",
			remoteAddr: "10.0.0.5:54321",
			headers:    map[string]string{"X-Real-IP": "203.0.113.77"},
			config:     internal,
			want:       "203.0.113.77",
		},
		{
			name:       "ipv6 proxy",
			remoteAddr: "[::1]:54321",
			headers:    map[string]string{"X-Forwarded-For": "2001:db8::1"},
			config:     &pkghttp.IPConfig{TrustedProxies: []string{"::1/128"}},
			want:       "2001:db8::1",
		},
		{
			name:       "nil config trusts nobody",
			remoteAddr: "203.0.113.10:54321",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4"},
			want:       "203.0.113.10",
		},
		{
			name:       "invalid ranges are ignored",
			remoteAddr: "203.0.113.10:54321",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4"},
			config:     &pkghttp.IPConfig{TrustedProxies: []string{"invalid-cidr-range"}},
			want:       "203.0.113.10",
		},
		{
			name:       "claiming localhost from outside does not help",
			remoteAddr: "203.0.113.10:54321",
			headers:    map[string]string{"X-Forwarded-For": "127.0.0.1"},
			config:     &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}},
			want:       "203.0.113.10",
		},
		{
			name:       "remote address without port",
			remoteAddr: "203.0.113.10",
			config:     internal,
			want:       "203.0.113.10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, pkghttp.ExtractClientIP(req, tt.config))
		})
	}
}

func TestExtractClientIP_MissingRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ""
	assert.Equal(t, "unknown", pkghttp.ExtractClientIP(req, nil))
}

func TestClientFingerprint_StablePerClient(t *testing.T) {
	newReq := func(addr, ua string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		req.Header.Set("User-Agent", ua)
		return req
	}

	a := pkghttp.ClientFingerprint(newReq("203.0.113.10:1111", "curl/8"), nil)
	b := pkghttp.ClientFingerprint(newReq("203.0.113.10:2222", "curl/8"), nil)
	c := pkghttp.ClientFingerprint(newReq("203.0.113.11:1111", "curl/8"), nil)
	d := pkghttp.ClientFingerprint(newReq("203.0.113.10:1111", "Mozilla/5.0"), nil)

	assert.Equal(t, a, b, "port must not affect fingerprint")
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Len(t, a, 64)
	assert.NotContains(t, a, "203.0.113.10")
}
