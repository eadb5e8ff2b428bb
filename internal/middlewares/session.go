package middlewares

import (
	"net/http"

	"account-portal/internal/models"
)

// LoadSession reads the session cookie and exposes it on the AppContext. A
// request without a valid session continues anonymously. A cookie that is
// present but unreadable is cleared.
func LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		appCtx := GetAppContext(r)
		if appCtx == nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		cookies := appCtx.Cookies()
		if session, ok := appCtx.Sessions.Load(cookies); ok {
			appCtx.Session = session
		} else if _, present := cookies.Get(appCtx.Sessions.Name()); present {
			appCtx.Logger.Debug("clearing unreadable session cookie", "path", r.URL.Path)
			appCtx.Sessions.Revoke(cookies)
		}

		next.ServeHTTP(w, r)
	})
}

// CurrentSession returns the session loaded for r, if any.
func CurrentSession(r *http.Request) (*models.Session, bool) {
	appCtx := GetAppContext(r)
	if appCtx == nil || appCtx.Session == nil {
		return nil, false
	}
	return appCtx.Session, true
}
