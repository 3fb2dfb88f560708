package middleware

import (
	"net/http"

	"github.com/MrEthical07/carauth"
)

// RequireRoles behaves like Required and then answers 403 unless the
// identity holds at least one of roles.
func (g *Gate) RequireRoles(roles ...string) func(http.Handler) http.Handler {
	required := g.Required()
	return func(next http.Handler) http.Handler {
		check := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, _ := IdentityFromContext(r.Context())
			if !identity.HasAnyRole(roles...) {
				g.reject(w, r, carauth.ErrInsufficientPermissions)
				return
			}
			next.ServeHTTP(w, r)
		})
		return required(check)
	}
}
