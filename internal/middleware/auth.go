package middleware

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"wgpanel/internal/models"
)

// PasswordAuth requires "Authorization: Bearer <password>" accepted by
// verify. A nil verify disables the check.
func PasswordAuth(verify func(password string) bool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if verify == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const p = "Bearer "
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, p) || !verify(strings.TrimPrefix(auth, p)) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="wgpanel"`)
				models.WriteProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid or missing password", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
