package router

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
)

// HTTPPolicy holds the HTTP-edge settings read once when the router is built.
type HTTPPolicy struct {
	Port                string   `env:"APP_PORT" envDefault:"8080"`
	AppEnv              string   `env:"APP_ENV"`
	GinMode             string   `env:"GIN_MODE"`
	TrustedProxies      string   `env:"TRUSTED_PROXIES"`
	AllowedOrigins      []string `env:"CORS_ALLOWED_ORIGIN" envSeparator:","`
	MaxRequestBodyBytes int64    `env:"MAX_REQUEST_BODY_BYTES" envDefault:"1048576"`

	// HSTSEnabled is tri-state: empty means "on in production".
	HSTSEnabled           string `env:"HSTS_ENABLED"`
	HSTSMaxAge            int64  `env:"HSTS_MAX_AGE" envDefault:"31536000"`
	HSTSIncludeSubdomains bool   `env:"HSTS_INCLUDE_SUBDOMAINS" envDefault:"true"`

	MetricsEnabled string `env:"METRICS_ENABLED"`
}

func DefaultHTTPPolicy() *HTTPPolicy {
	return &HTTPPolicy{
		Port:                  "8080",
		MaxRequestBodyBytes:   1 << 20,
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
	}
}

// LoadHTTPPolicy parses the environment. Malformed values fall back to the
// defaults and are reported in the returned error.
func LoadHTTPPolicy() (*HTTPPolicy, error) {
	policy := DefaultHTTPPolicy()
	parsed := &HTTPPolicy{}
	if err := env.Parse(parsed); err != nil {
		return policy, fmt.Errorf("parse http policy: %w", err)
	}

	if parsed.MaxRequestBodyBytes <= 0 {
		parsed.MaxRequestBodyBytes = policy.MaxRequestBodyBytes
	}
	if parsed.HSTSMaxAge <= 0 {
		parsed.HSTSMaxAge = policy.HSTSMaxAge
	}
	if strings.TrimSpace(parsed.Port) == "" {
		parsed.Port = policy.Port
	}

	origins := parsed.AllowedOrigins[:0]
	for _, o := range parsed.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	parsed.AllowedOrigins = origins

	return parsed, nil
}

// ProxyList resolves TRUSTED_PROXIES: empty trusts nobody, "*" trusts everyone.
func (p *HTTPPolicy) ProxyList() []string {
	s := strings.TrimSpace(p.TrustedProxies)
	switch s {
	case "":
		return nil
	case "*":
		return []string{"0.0.0.0/0", "::/0"}
	}

	var proxies []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			proxies = append(proxies, part)
		}
	}
	return proxies
}

func (p *HTTPPolicy) OriginAllowed(origin string) bool {
	for _, allowed := range p.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (p *HTTPPolicy) HSTSOn() bool {
	if raw := strings.TrimSpace(p.HSTSEnabled); raw != "" {
		b, err := strconv.ParseBool(raw)
		return err == nil && b
	}
	appEnv := strings.ToLower(strings.TrimSpace(p.AppEnv))
	return appEnv == "production" || appEnv == "prod"
}

func (p *HTTPPolicy) HSTSValue() string {
	value := fmt.Sprintf("max-age=%d", p.HSTSMaxAge)
	if p.HSTSIncludeSubdomains {
		value += "; includeSubDomains"
	}
	return value
}

// MetricsOn defaults to true; only a parseable false disables /metrics.
func (p *HTTPPolicy) MetricsOn() bool {
	raw := strings.TrimSpace(p.MetricsEnabled)
	if raw == "" {
		return true
	}
	b, err := strconv.ParseBool(raw)
	return err != nil || b
}
