package httppresentation

import (
	"context"
	"errors"
	"net/http"
	"strings"

	domorder "github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/observability"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/observability/logctx"
)

var (
	errUnauthenticated = errors.New("caller identity headers are missing")
	errWrongRole       = errors.New("role may not use this endpoint")
)

type actorKey struct{}

// withActor reads the identity the auth gateway put on the request.
func (h *Handler) withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerUserID))
		if id == "" {
			writeErrorKind(w, http.StatusUnauthorized, "unauthenticated", errUnauthenticated)
			return
		}
		role, err := domorder.ParseRole(r.Header.Get(headerUserRole))
		if err != nil {
			writeErrorKind(w, http.StatusForbidden, "invalid_actor", err)
			return
		}

		ctx := context.WithValue(r.Context(), actorKey{}, domorder.Actor{ID: id, Role: role})
		ctx = logctx.Enrich(ctx, h.log,
			observability.F("actor_id", id),
			observability.F("actor_role", string(role)),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireRole(role domorder.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if actorFrom(r.Context()).Role != role {
				writeErrorKind(w, http.StatusForbidden, "invalid_actor", errWrongRole)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func actorFrom(ctx context.Context) domorder.Actor {
	a, _ := ctx.Value(actorKey{}).(domorder.Actor)
	return a
}
