package fetch

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func guardResolvingTo(ips ...string) *Guard {
	return &Guard{
		lookupIP: func(_ context.Context, _ string) ([]net.IP, error) {
			out := make([]net.IP, 0, len(ips))
			for _, s := range ips {
				out = append(out, net.ParseIP(s))
			}
			return out, nil
		},
	}
}

func assertFetchCode(t *testing.T, err error, code string) {
	t.Helper()
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, code, fe.Code)
}

func TestValidateDocumentURL(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts public https host", func(t *testing.T) {
		g := guardResolvingTo("93.184.216.34")
		assert.NoError(t, g.ValidateDocumentURL(ctx, "https://example.com/doc.pdf"))
	})

	t.Run("rejects http scheme", func(t *testing.T) {
		g := guardResolvingTo("93.184.216.34")
		assertFetchCode(t, g.ValidateDocumentURL(ctx, "http://example.com/doc.pdf"), CodeInvalidURL)
	})

	t.Run("rejects file scheme", func(t *testing.T) {
		g := NewGuard()
		assertFetchCode(t, g.ValidateDocumentURL(ctx, "file:///etc/passwd"), CodeInvalidURL)
	})

	t.Run("rejects missing hostname", func(t *testing.T) {
		g := NewGuard()
		assertFetchCode(t, g.ValidateDocumentURL(ctx, "https://"), CodeInvalidURL)
	})

	t.Run("rejects localhost", func(t *testing.T) {
		g := NewGuard()
		assertFetchCode(t, g.ValidateDocumentURL(ctx, "https://localhost/x"), CodeSSRFBlocked)
	})

	t.Run("rejects metadata endpoint", func(t *testing.T) {
		g := NewGuard()
		assertFetchCode(t, g.ValidateDocumentURL(ctx, "https://169.254.169.254/latest"), CodeSSRFBlocked)
	})

	t.Run("rejects private IP literal", func(t *testing.T) {
		g := NewGuard()
		assertFetchCode(t, g.ValidateDocumentURL(ctx, "https://10.0.0.5/"), CodeSSRFBlocked)
	})

	t.Run("rejects host resolving to private IP", func(t *testing.T) {
		g := guardResolvingTo("192.168.1.10")
		assertFetchCode(t, g.ValidateDocumentURL(ctx, "https://rebind.example.com/doc.pdf"), CodeSSRFBlocked)
	})

	t.Run("rejects ipv4-mapped loopback", func(t *testing.T) {
		g := NewGuard()
		assertFetchCode(t, g.ValidateDocumentURL(ctx, "https://[::ffff:127.0.0.1]/x"), CodeSSRFBlocked)
	})

	t.Run("rejects ipv6 unique local", func(t *testing.T) {
		g := NewGuard()
		assertFetchCode(t, g.ValidateDocumentURL(ctx, "https://[fc00::1]/x"), CodeSSRFBlocked)
	})

	t.Run("fails closed on resolution failure", func(t *testing.T) {
		g := &Guard{
			lookupIP: func(_ context.Context, _ string) ([]net.IP, error) {
				return nil, errors.New("no such host")
			},
		}
		assertFetchCode(t, g.ValidateDocumentURL(ctx, "https://does-not-exist.example/doc.pdf"), CodeSSRFBlocked)
	})
}

func TestValidateResourceURL(t *testing.T) {
	ctx := context.Background()

	t.Run("allows http for resources", func(t *testing.T) {
		g := guardResolvingTo("93.184.216.34")
		assert.NoError(t, g.ValidateResourceURL(ctx, "http://example.com/logo.png"))
	})

	t.Run("allows data urls", func(t *testing.T) {
		g := NewGuard()
		assert.NoError(t, g.ValidateResourceURL(ctx, "data:image/png;base64,iVBOR"))
	})

	t.Run("allows relative references", func(t *testing.T) {
		g := NewGuard()
		assert.NoError(t, g.ValidateResourceURL(ctx, "images/logo.png"))
	})

	t.Run("blocks file urls", func(t *testing.T) {
		g := NewGuard()
		assertFetchCode(t, g.ValidateResourceURL(ctx, "file:///etc/passwd"), CodeSSRFBlocked)
	})

	t.Run("blocks internal hosts", func(t *testing.T) {
		g := NewGuard()
		assertFetchCode(t, g.ValidateResourceURL(ctx, "http://metadata.google.internal/computeMetadata"), CodeSSRFBlocked)
	})

	t.Run("rejects other schemes", func(t *testing.T) {
		g := NewGuard()
		assertFetchCode(t, g.ValidateResourceURL(ctx, "gopher://example.com/"), CodeInvalidURL)
	})
}

func TestIsBlockedIP(t *testing.T) {
	blocked := []string{
		"127.0.0.1", "10.1.2.3", "172.16.0.1", "192.168.0.1",
		"169.254.169.254", "0.0.0.0", "240.0.0.1", "224.0.0.1",
		"::1", "fe80::1", "fc00::1", "::ffff:10.0.0.1",
	}
	for _, s := range blocked {
		assert.True(t, isBlockedIP(net.ParseIP(s)), "expected %s to be blocked", s)
	}

	allowed := []string{"93.184.216.34", "8.8.8.8", "2606:4700::6810:84e5"}
	for _, s := range allowed {
		assert.False(t, isBlockedIP(net.ParseIP(s)), "expected %s to be allowed", s)
	}
}
