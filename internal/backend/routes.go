package backend

import (
	"net/url"
	"strings"
)

const DefaultBaseURL = "http://localhost:5000"

const (
	routeSignup         = "/signup"
	routeLogin          = "/login"
	routeRefreshToken   = "/refresh-token"
	routeChangePassword = "/change-pass"

	routeProfile    = "/users"
	routeUserUpdate = "/users"

	routeUserNotes = "/users/notes"
	routeUserNote  = "/users/notes/:userNoteId"

	routeUserTasks = "/users/tasks"
	routeUserTask  = "/users/tasks/:taskId"

	routeGroups      = "/groups"
	routeGroup       = "/groups/:groupId"
	routeMemberships = "/groups/memberships"
	routeGroupNotes  = "/groups/:groupId/notes"
	routeGroupNote   = "/groups/:groupId/notes/:groupNoteId"
)

// expand substitutes ":name" path parameters from kv pairs (name, value, ...).
// Values are path-escaped.
func expand(route string, kv ...string) string {
	if len(kv) == 0 {
		return route
	}
	segs := strings.Split(route, "/")
	for i, s := range segs {
		if !strings.HasPrefix(s, ":") {
			continue
		}
		for j := 0; j+1 < len(kv); j += 2 {
			if kv[j] == s[1:] {
				segs[i] = url.PathEscape(kv[j+1])
				break
			}
		}
	}
	return strings.Join(segs, "/")
}
