package middleware

import (
	"net/http"
	"strings"

	"github.com/juniorpayne/registry-core/internal/auth"
	"github.com/juniorpayne/registry-core/pkg/ctxutil"
)

type tokenValidator interface {
	ValidateToken(token string) (auth.Session, error)
}

// Auth validates the bearer token and stores the registrar session in the
// request context. Requests without a token pass through anonymously; the
// services reject them when a registrar identity is required.
func Auth(validator tokenValidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r) // Anonymous
				return
			}
			sess, err := validator.ValidateToken(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := ctxutil.WithRegistrarID(r.Context(), sess.RegistrarID)
			ctx = ctxutil.WithSuperuser(ctx, sess.Superuser)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}
