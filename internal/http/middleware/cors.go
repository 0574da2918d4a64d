package middleware

import (
	"net/http"
	"strings"
)

const (
	corsAllowedHeaders = "Content-Type, X-Request-Id"
	corsAllowedMethods = "GET, POST, OPTIONS"
)

// CORS lets the chat widget call the API from the venue's web pages.
// Entries are exact origins, "*" for any origin, or a wildcard subdomain
// such as "https://*.sportbar.com".
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := newOriginPolicy(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin != "" && policy.allows(origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Headers", corsAllowedHeaders)
				h.Set("Access-Control-Allow-Methods", corsAllowedMethods)
				h.Set("Access-Control-Max-Age", "600")
			}

			if r.Method == http.MethodOptions && origin != "" && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type originPolicy struct {
	any      bool
	exact    map[string]struct{}
	suffixes []wildcardOrigin
}

type wildcardOrigin struct {
	scheme string // "https://"
	suffix string // ".sportbar.com"
}

func newOriginPolicy(origins []string) originPolicy {
	p := originPolicy{exact: map[string]struct{}{}}
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch {
		case origin == "":
		case origin == "*":
			p.any = true
		case strings.Contains(origin, "://*."):
			scheme, host, _ := strings.Cut(origin, "*")
			p.suffixes = append(p.suffixes, wildcardOrigin{scheme: scheme, suffix: host})
		default:
			p.exact[origin] = struct{}{}
		}
	}
	return p
}

func (p originPolicy) allows(origin string) bool {
	if p.any {
		return true
	}
	if _, ok := p.exact[origin]; ok {
		return true
	}
	for _, w := range p.suffixes {
		rest, ok := strings.CutPrefix(origin, w.scheme)
		if ok && len(rest) > len(w.suffix) && strings.HasSuffix(rest, w.suffix) {
			return true
		}
	}
	return false
}
