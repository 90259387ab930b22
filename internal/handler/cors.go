package handler

import (
	"net/http"
	"slices"
)

// CORS applies the storefront's cross-origin headers to every response,
// answers preflight requests directly and rejects methods other than GET
// and POST.
func CORS(allowedOrigins []string, siteURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allow := siteURL
			if origin != "" && slices.Contains(allowedOrigins, origin) {
				allow = origin
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allow)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Set("Access-Control-Max-Age", "86400")
			h.Add("Vary", "Origin")

			switch r.Method {
			case http.MethodOptions:
				w.WriteHeader(http.StatusOK)
				return
			case http.MethodGet, http.MethodPost:
				next.ServeHTTP(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		})
	}
}
