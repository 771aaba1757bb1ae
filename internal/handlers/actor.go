package handlers

import (
	"net/http"

	"github.com/tidecrm/tidecrm/auth"
	"github.com/tidecrm/tidecrm/gate"
	"github.com/tidecrm/tidecrm/httpx"
)

// requireActor resolves the session user into an explicit Actor carrying
// their permission set, writing a 401 when that fails. Core calls take
// the Actor as a parameter; nothing downstream reads identity ambiently.
func requireActor(w http.ResponseWriter, r *http.Request, g *gate.Gate[uint]) (auth.Actor, bool) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok || uid == 0 {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return auth.Actor{}, false
	}
	profile, err := g.Resolve(r.Context(), uid)
	if err != nil || profile == nil {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return auth.Actor{}, false
	}
	return auth.Actor{UserID: uid, Profile: profile}, true
}

// requirePermission checks module:action on an already-resolved actor.
func requirePermission(w http.ResponseWriter, actor auth.Actor, module string, action gate.Action) bool {
	if !actor.Can(module, action) {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", map[string]string{
			"permission": string(gate.NewPermission(module, action)),
		})
		return false
	}
	return true
}
