package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	cases := []struct {
		name    string
		hops    int
		headers map[string]string
		want    string
	}{
		{"no proxy uses peer", 0, nil, "10.0.0.9"},
		{"no proxy ignores headers", 0, map[string]string{
			"X-Forwarded-For": "198.51.100.3",
			"X-Real-IP":       "192.0.2.7",
		}, "10.0.0.9"},
		{"one hop takes rightmost", 1, map[string]string{
			"X-Forwarded-For": "203.0.113.66, 198.51.100.3",
		}, "198.51.100.3"},
		{"spoofed leftmost ignored", 2, map[string]string{
			"X-Forwarded-For": "1.2.3.4, 198.51.100.3, 10.0.0.1",
		}, "198.51.100.3"},
		{"chain shorter than hops", 3, map[string]string{
			"X-Forwarded-For": "198.51.100.3, 10.0.0.1",
		}, "10.0.0.9"},
		{"garbage at trusted position", 1, map[string]string{
			"X-Forwarded-For": "198.51.100.3, garbage",
		}, "10.0.0.9"},
		{"forwarded header", 1, map[string]string{
			"Forwarded": `for=1.2.3.4, for="[2001:db8::1]:4711";proto=https`,
		}, "2001:db8::1"},
		{"real ip behind one proxy", 1, map[string]string{
			"X-Real-IP": "192.0.2.7",
		}, "192.0.2.7"},
		{"real ip not trusted behind two", 2, map[string]string{
			"X-Real-IP": "192.0.2.7",
		}, "10.0.0.9"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = "10.0.0.9:5555"
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, ClientIP(r, tc.hops))
		})
	}
}

func TestClientIPRepeatedHeaders(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Add("X-Forwarded-For", "1.2.3.4")
	r.Header.Add("X-Forwarded-For", "198.51.100.3")
	assert.Equal(t, "198.51.100.3", ClientIP(r, 1))
}
