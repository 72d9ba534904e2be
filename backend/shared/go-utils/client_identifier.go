package utils

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the client address as seen by the outermost trusted
// proxy. trustedHops is the number of reverse proxies in front of the
// service that append to X-Forwarded-For; with 0 the forwarding headers
// are ignored and RemoteAddr is used. Entries left of the trusted ones are
// client supplied and never read. It returns "" when nothing parses as an IP.
func ClientIP(r *http.Request, trustedHops int) string {
	if trustedHops > 0 {
		if ip := nthFromRight(splitForwardedFor(r.Header.Values("X-Forwarded-For")), trustedHops); ip != "" {
			return ip
		}
		if ip := nthFromRight(forwardedFor(r.Header.Values("Forwarded")), trustedHops); ip != "" {
			return ip
		}
		// Single-proxy setups that overwrite X-Real-IP instead of appending.
		if trustedHops == 1 {
			if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); isValidIP(realIP) {
				return realIP
			}
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && isValidIP(ip) {
		return ip
	}
	return ""
}

// nthFromRight picks the address the n-th proxy from the service saw as its
// peer. A chain shorter than n did not pass through every trusted proxy.
func nthFromRight(chain []string, n int) string {
	if len(chain) < n {
		return ""
	}
	ip := chain[len(chain)-n]
	if !isValidIP(ip) {
		return ""
	}
	return ip
}

func splitForwardedFor(headers []string) []string {
	var chain []string
	for _, h := range headers {
		for _, ip := range strings.Split(h, ",") {
			chain = append(chain, strings.TrimSpace(ip))
		}
	}
	return chain
}

// forwardedFor collects the for= values of an RFC 7239 Forwarded header in
// hop order.
func forwardedFor(headers []string) []string {
	var chain []string
	for _, h := range headers {
		for _, element := range strings.Split(h, ",") {
			for _, part := range strings.Split(element, ";") {
				part = strings.TrimSpace(part)
				if len(part) < 4 || !strings.EqualFold(part[:4], "for=") {
					continue
				}
				v := strings.Trim(part[4:], "\"")
				if host, _, err := net.SplitHostPort(v); err == nil {
					v = host
				}
				chain = append(chain, strings.Trim(v, "[]"))
			}
		}
	}
	return chain
}

func isValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}
