package authcore

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type clientIPContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine uses it
// for per-IP rate limiting and audit logging.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// ClientIPFromRequest resolves the caller's IP from an HTTP request. The
// first non-empty header in proxyHeaders wins (taking the first entry of a
// comma-separated list); otherwise the direct peer address is used. Pass
// proxy headers only when the deployment actually sits behind a trusted
// proxy, because the headers are caller-controlled.
func ClientIPFromRequest(r *http.Request, proxyHeaders ...string) string {
	if r == nil {
		return ""
	}
	for _, header := range proxyHeaders {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}
		if i := strings.IndexByte(value, ','); i >= 0 {
			value = value[:i]
		}
		if ip := strings.TrimSpace(value); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
