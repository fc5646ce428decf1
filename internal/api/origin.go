package api

import (
	"net/http"
	"net/url"
	"strings"
)

// defaultAllowedOrigins apply when the server config names none
var defaultAllowedOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}

// originPolicy decides which browser origins may call the API
type originPolicy struct {
	patterns []string
}

func newOriginPolicy(patterns []string) originPolicy {
	if len(patterns) == 0 {
		patterns = defaultAllowedOrigins
	}
	normalized := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || p == "*" {
			continue
		}
		normalized = append(normalized, p)
	}
	return originPolicy{patterns: normalized}
}

// allows matches origin against the patterns. A pattern holds at most one
// "*" wildcard and a bare "*" is ignored.
func (p originPolicy) allows(origin string) bool {
	origin = strings.ToLower(origin)
	for _, pattern := range p.patterns {
		prefix, suffix, wildcard := strings.Cut(pattern, "*")
		if !wildcard {
			if origin == pattern {
				return true
			}
			continue
		}
		if len(origin) > len(prefix)+len(suffix) &&
			strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix) {
			return true
		}
	}
	return false
}

// checkOrigin guards the websocket upgrade. Clients that send no Origin are
// not browsers and pass; a browser origin must be the serving host or allowed.
func (p originPolicy) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	return p.allows(origin)
}
