package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/seuros/leadtrack/internal/config"
)

// ClientIP picks the client address according to the configured proxy mode:
// CF-Connecting-IP for cloudflare, the first X-Forwarded-For hop for
// xforwarded, the socket peer otherwise.
func ClientIP(c fiber.Ctx, proxyMode string) string {
	switch proxyMode {
	case config.ProxyCloudflare:
		if ip := strings.TrimSpace(c.Get("CF-Connecting-IP")); ip != "" {
			return ip
		}
	case config.ProxyXForwarded:
		if xff := c.Get(fiber.HeaderXForwardedFor); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	return c.IP()
}
