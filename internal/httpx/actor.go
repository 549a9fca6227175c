package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-marketplace-settlement/internal/apperr"
	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"go.uber.org/zap"
)

// Identity is resolved by the gateway in front of this service and
// forwarded in these headers.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

type actorKey struct{}

func actorFrom(ctx context.Context) (domain.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(domain.Actor)
	return a, ok
}

// authenticated rejects requests without a caller identity. With roles
// given, the caller must hold one of them.
func authenticated(logger *zap.Logger, roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a := domain.Actor{UserID: r.Header.Get(HeaderUserID), Role: domain.Role(r.Header.Get(HeaderUserRole))}
			if a.Role == "" {
				a.Role = domain.RoleBuyer
			}
			if a.UserID == "" {
				writeError(w, logger, apperr.Unauthorized("missing %s header", HeaderUserID))
				return
			}
			if len(roles) > 0 && !hasRole(a.Role, roles) {
				writeError(w, logger, apperr.Unauthorized("role %s may not call this endpoint", a.Role))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, a)))
		})
	}
}

func hasRole(r domain.Role, roles []domain.Role) bool {
	for _, want := range roles {
		if r == want {
			return true
		}
	}
	return false
}
