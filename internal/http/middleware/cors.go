package middleware

import (
	"net/http"
	"strings"

	"github.com/samber/lo"
)

const (
	corsAllowedHeaders = "Authorization, Content-Type, X-Request-ID"
	corsAllowedMethods = "GET, POST, PATCH, OPTIONS"
)

// CORS provides an allowlist-based CORS middleware for the patient and
// clinician dashboards. "*" echoes any Origin, and an entry such as
// "https://*.clinic.example" matches any subdomain.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	origins := lo.Uniq(lo.Compact(lo.Map(allowedOrigins, func(o string, _ int) string {
		return strings.TrimSpace(o)
	})))
	allowAny := lo.Contains(origins, "*")
	exact := map[string]struct{}{}
	var suffixes []string
	for _, origin := range origins {
		if scheme, host, ok := strings.Cut(origin, "://*."); ok {
			suffixes = append(suffixes, scheme+"://|."+host)
			continue
		}
		exact[origin] = struct{}{}
	}

	allowed := func(origin string) bool {
		if allowAny {
			return true
		}
		if _, ok := exact[origin]; ok {
			return true
		}
		return lo.SomeBy(suffixes, func(s string) bool {
			scheme, host, _ := strings.Cut(s, "|")
			return strings.HasPrefix(origin, scheme) && strings.HasSuffix(origin, host)
		})
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin != "" && allowed(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Headers", corsAllowedHeaders)
				w.Header().Set("Access-Control-Allow-Methods", corsAllowedMethods)
				w.Header().Set("Access-Control-Max-Age", "600")
			}

			if r.Method == http.MethodOptions && origin != "" && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
