package middleware

import (
	"net/http"
	"strings"
)

// The chat widget is embedded on clinic websites, so the browser-facing
// API must answer cross-origin requests from every site an operator has
// registered. Entries are exact origins, "*" for any origin, or a
// single-level wildcard such as "https://*.curaemr.io".
type originPolicy struct {
	any      bool
	exact    map[string]struct{}
	suffixes []string // ".curaemr.io" style, scheme included in exact part
	schemes  []string // scheme prefix matching each suffix entry
}

func newOriginPolicy(origins []string) originPolicy {
	p := originPolicy{exact: make(map[string]struct{})}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		switch {
		case o == "":
		case o == "*":
			p.any = true
		case strings.Contains(o, "://*."):
			i := strings.Index(o, "://*.")
			p.schemes = append(p.schemes, o[:i+3])
			p.suffixes = append(p.suffixes, o[i+4:]) // keep the leading dot
		default:
			p.exact[o] = struct{}{}
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
	for i, suffix := range p.suffixes {
		if strings.HasPrefix(origin, p.schemes[i]) && strings.HasSuffix(origin, suffix) {
			host := strings.TrimPrefix(origin, p.schemes[i])
			sub := strings.TrimSuffix(host, suffix)
			// exactly one label, no nested subdomains
			if sub != "" && !strings.Contains(sub, ".") {
				return true
			}
		}
	}
	return false
}

// CORS answers cross-origin requests from the configured widget origins.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := newOriginPolicy(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin != "" && policy.allows(origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-Id, X-Org-Id")
				h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				h.Set("Access-Control-Expose-Headers", "X-Request-Id")
				h.Set("Access-Control-Max-Age", "300")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
