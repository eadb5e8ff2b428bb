package middlewares

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"account-portal/internal/auth"
	"account-portal/internal/config"
	"account-portal/internal/models"
)

type AppContext struct {
	context.Context
	Config   *config.Config
	Logger   *slog.Logger
	Sessions SessionProvider
	Auth     LoginFlow
	Rotator  CredentialRotator

	// Session is set by LoadSession when the request carries a valid cookie.
	Session *models.Session

	Request  *http.Request
	Response http.ResponseWriter

	cookies auth.CookieStore
}

type contextKey string

const appContextKey contextKey = "appContext"

func AppContextMiddleware(baseCtx *AppContext) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestCtx := &AppContext{
				Context:  r.Context(),
				Config:   baseCtx.Config,
				Logger:   baseCtx.Logger,
				Sessions: baseCtx.Sessions,
				Auth:     baseCtx.Auth,
				Rotator:  baseCtx.Rotator,
				Request:  r,
				Response: w,
			}

			ctx := context.WithValue(r.Context(), appContextKey, requestCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type AppHandler func(*AppContext)

// Handler converts an AppHandler to an http.Handler
func (ctx *AppContext) Handler(h AppHandler) http.Handler {
	return ctx.HandlerFunc(h)
}

// HandlerFunc converts AppHandler to a http.HandlerFunc
func (ctx *AppContext) HandlerFunc(h AppHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appCtx := GetAppContext(r)
		if appCtx == nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		h(appCtx)
	}
}

// Cookies returns the cookie store for this request. Cookies written through it
// are visible to later reads in the same request.
func (ctx *AppContext) Cookies() auth.CookieStore {
	if ctx.cookies == nil {
		ctx.cookies = auth.NewHTTPCookieStore(ctx.Response, ctx.Request)
	}
	return ctx.cookies
}

func (ctx *AppContext) Redirect(url string, status int) {
	http.Redirect(ctx.Response, ctx.Request, url, status)
}

func NewAppContext(ctx context.Context, cfg *config.Config, logger *slog.Logger, sessions SessionProvider, flow LoginFlow, rotator CredentialRotator) *AppContext {
	return &AppContext{
		Context:  ctx,
		Config:   cfg,
		Logger:   logger,
		Sessions: sessions,
		Auth:     flow,
		Rotator:  rotator,
	}
}

func GetAppContext(r *http.Request) *AppContext {
	if ctx, ok := r.Context().Value(appContextKey).(*AppContext); ok {
		return ctx
	}

	return nil
}

func (ctx *AppContext) WriteJSON(status int, data interface{}) {
	ctx.Response.Header().Set("Content-Type", "application/json")
	ctx.Response.WriteHeader(status)
	if err := json.NewEncoder(ctx.Response).Encode(data); err != nil {
		ctx.Logger.Error("failed to marshal json", "error", err)
	}
}

func (ctx *AppContext) SetJSONError(status int, message string) {
	ctx.WriteJSON(status, map[string]string{
		"error": message,
	})
}

func (ctx *AppContext) SetJSONStatus(status int, message string) {
	ctx.WriteJSON(status, map[string]string{
		"status": message,
	})
}
