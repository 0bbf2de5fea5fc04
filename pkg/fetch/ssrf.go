package fetch

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Hostnames that are never fetchable regardless of what they resolve to.
var blockedHostnames = map[string]struct{}{
	"localhost":                {},
	"metadata.google.internal": {},
	"169.254.169.254":          {},
}

// Guard validates externally supplied URLs before the service fetches them,
// blocking requests that would reach private or internal addresses.
type Guard struct {
	lookupIP func(ctx context.Context, host string) ([]net.IP, error)
}

// NewGuard creates a Guard using the default DNS resolver.
func NewGuard() *Guard {
	return &Guard{
		lookupIP: func(ctx context.Context, host string) ([]net.IP, error) {
			addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
			if err != nil {
				return nil, err
			}
			ips := make([]net.IP, 0, len(addrs))
			for _, a := range addrs {
				ips = append(ips, a.IP)
			}
			return ips, nil
		},
	}
}

// ValidateDocumentURL checks a URL supplied as the document source.
// Document URLs must be https and must not target internal addresses.
func (g *Guard) ValidateDocumentURL(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return wrapError(CodeInvalidURL, "Invalid URL format", err)
	}
	if !strings.EqualFold(parsed.Scheme, "https") {
		return newError(CodeInvalidURL, "URL must use HTTPS")
	}
	if parsed.Hostname() == "" {
		return newError(CodeInvalidURL, "Invalid URL format")
	}
	return g.checkHost(ctx, parsed.Hostname())
}

// ValidateResourceURL checks a URL referenced from inside a document, such
// as an image or stylesheet. Resource URLs may be http, https, data, or
// scheme-less relative references. file URLs are always blocked.
func (g *Guard) ValidateResourceURL(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return wrapError(CodeInvalidURL, "Invalid URL format", err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	switch scheme {
	case "file":
		return newError(CodeSSRFBlocked, "Access to local files is not allowed")
	case "data", "":
		return nil
	case "http", "https":
		return g.checkHost(ctx, parsed.Hostname())
	default:
		return newError(CodeInvalidURL, fmt.Sprintf("URL scheme '%s' is not allowed", scheme))
	}
}

// checkHost rejects blocked hostnames and hosts that resolve to private,
// loopback, link-local, multicast, or otherwise reserved addresses.
// Resolution failure is treated as blocked.
func (g *Guard) checkHost(ctx context.Context, hostname string) error {
	lower := strings.ToLower(hostname)
	if _, ok := blockedHostnames[lower]; ok {
		return newError(CodeSSRFBlocked, "URL points to a private or reserved address")
	}

	if ip := net.ParseIP(hostname); ip != nil {
		if isBlockedIP(ip) {
			return newError(CodeSSRFBlocked, "URL points to a private or reserved address")
		}
		return nil
	}

	ips, err := g.lookupIP(ctx, hostname)
	if err != nil || len(ips) == 0 {
		// Fail closed when the host cannot be resolved.
		return wrapError(CodeSSRFBlocked, "URL points to a private or reserved address", err)
	}
	for _, ip := range ips {
		if isBlockedIP(ip) {
			return newError(CodeSSRFBlocked, "URL points to a private or reserved address")
		}
	}
	return nil
}

func isBlockedIP(ip net.IP) bool {
	// Normalize IPv4-mapped IPv6 so ::ffff:127.0.0.1 hits the IPv4 checks.
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
		return true
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast() {
		return true
	}
	// 240.0.0.0/4 is reserved, 0.0.0.0/8 is "this network".
	if v4 := ip.To4(); v4 != nil && (v4[0] >= 240 || v4[0] == 0) {
		return true
	}
	return false
}
