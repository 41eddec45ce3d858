package middleware

import (
	"log/slog"
	"mime"
	"net/http"
	"regexp"
	"strings"
)

// filterValue matches the values the list filters accept: enum names and ids
var filterValue = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// filterParams are the query parameters the API reads. Anything else in a
// query string is ignored by the handlers and left alone here.
var filterParams = []string{"status", "priority", "employee_id"}

// ValidateJSONContentType rejects write requests whose body is not JSON
func ValidateJSONContentType(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
			default:
				next.ServeHTTP(w, r)
				return
			}
			// logout and status-less calls carry no body
			if r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mediaType != "application/json" {
				log.Warn("rejected request body",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("content_type", r.Header.Get("Content-Type")),
				)
				writeError(w, http.StatusUnsupportedMediaType, "content type must be application/json")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SanitizeInputs checks the list filters against the characters ids and
// enum values can contain, and refuses paths that try to climb out of the
// API tree
func SanitizeInputs(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.URL.Path, "..") {
				log.Warn("rejected path", slog.String("path", r.URL.Path))
				writeError(w, http.StatusBadRequest, "invalid path")
				return
			}

			query := r.URL.Query()
			for _, param := range filterParams {
				for _, v := range query[param] {
					if v == "" || filterValue.MatchString(v) {
						continue
					}
					log.Warn("rejected query parameter",
						slog.String("path", r.URL.Path),
						slog.String("param", param),
					)
					writeError(w, http.StatusBadRequest, "invalid "+param)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
