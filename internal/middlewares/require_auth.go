package middlewares

import (
	"net/http"
	"net/url"
	"strings"
)

const loginPath = "/auth/login"

// RequireSession rejects anonymous requests. API clients get a JSON 401 and
// browsers are sent to the login route with the current path as return target.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		appCtx := GetAppContext(r)
		if appCtx == nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		if appCtx.Session != nil {
			next.ServeHTTP(w, r)
			return
		}

		if wantsJSON(r) {
			appCtx.SetJSONError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
			return
		}

		appCtx.Redirect(loginPath+"?rd="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)
	})
}

// wantsJSON reports whether r comes from a script rather than a navigation.
func wantsJSON(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return true
	}
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return r.Header.Get("X-Requested-With") == "XMLHttpRequest"
}
