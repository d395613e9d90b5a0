package rbac

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Header names populated by the upstream gateway after authentication.
// Session issuance itself lives outside this service.
const (
	HeaderOrgID    = "X-Org-ID"
	HeaderUserID   = "X-User-ID"
	HeaderBranchID = "X-Branch-ID"
	HeaderRole     = "X-User-Role"
)

// ActorRequired resolves the acting identity from gateway headers and
// rejects requests without a complete, well-formed actor.
func ActorRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID, err := uuid.Parse(r.Header.Get(HeaderOrgID))
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "unauthorized", "missing or invalid org identity")
			return
		}
		userID, err := uuid.Parse(r.Header.Get(HeaderUserID))
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "unauthorized", "missing or invalid user identity")
			return
		}
		role := Role(r.Header.Get(HeaderRole))
		if !role.Valid() {
			httpx.Problem(w, http.StatusUnauthorized, "unauthorized", "missing or invalid role")
			return
		}
		actor := Actor{OrgID: orgID, UserID: userID, Role: role}
		if raw := r.Header.Get(HeaderBranchID); raw != "" {
			branchID, err := uuid.Parse(raw)
			if err != nil {
				httpx.Problem(w, http.StatusUnauthorized, "unauthorized", "invalid branch identity")
				return
			}
			actor.BranchID = &branchID
		}
		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
	})
}

// Require gates a route group behind the role threshold for action.
func Require(action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "unauthorized", "actor not resolved")
				return
			}
			if !Allowed(actor.Role, action) {
				httpx.Problem(w, http.StatusForbidden, "forbidden", "role may not perform this action")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
