package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CORSConfig controls which browser origins may call the API
type CORSConfig struct {
	// AllowedOrigins lists origins allowed to call the API. "*" admits any origin.
	AllowedOrigins []string

	AllowCredentials bool

	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string

	// MaxAge is the preflight cache lifetime in seconds
	MaxAge int
}

func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		MaxAge:           3600,
	}
}

// corsPolicy is a CORSConfig resolved once into header values
type corsPolicy struct {
	anyOrigin bool
	origins   map[string]bool

	simple    map[string]string
	preflight map[string]string
}

func newCORSPolicy(cfg CORSConfig) *corsPolicy {
	p := &corsPolicy{
		origins: make(map[string]bool, len(cfg.AllowedOrigins)),
		simple: map[string]string{
			fiber.HeaderAccessControlExposeHeaders: strings.Join(cfg.ExposedHeaders, ","),
		},
		preflight: map[string]string{
			fiber.HeaderAccessControlAllowMethods: strings.Join(cfg.AllowedMethods, ","),
			fiber.HeaderAccessControlAllowHeaders: strings.Join(cfg.AllowedHeaders, ","),
			fiber.HeaderAccessControlMaxAge:       strconv.Itoa(cfg.MaxAge),
		},
	}
	if cfg.AllowCredentials {
		p.simple[fiber.HeaderAccessControlAllowCredentials] = "true"
	}
	for _, o := range cfg.AllowedOrigins {
		p.anyOrigin = p.anyOrigin || o == "*"
		p.origins[o] = true
	}
	return p
}

func (p *corsPolicy) admits(origin string) bool {
	return origin != "" && (p.anyOrigin || p.origins[origin])
}

// CORS answers preflight requests itself with 204 and decorates every other
// response from an admitted origin
func CORS(config ...CORSConfig) fiber.Handler {
	cfg := DefaultCORSConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	policy := newCORSPolicy(cfg)

	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)
		preflight := c.Method() == fiber.MethodOptions

		if policy.admits(origin) {
			// credentials forbid the literal "*", so the origin is echoed
			c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
			c.Vary(fiber.HeaderOrigin)
			for k, v := range policy.simple {
				c.Set(k, v)
			}
			if preflight {
				for k, v := range policy.preflight {
					c.Set(k, v)
				}
			}
		}

		if preflight {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}
