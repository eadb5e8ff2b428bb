package server

import (
	"time"

	"account-portal/internal/handlers"
	"account-portal/internal/middlewares"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func setupRouter(ctx *middlewares.AppContext) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middlewares.MetricsMiddleware)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(middlewares.AppContextMiddleware(ctx))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ctx.Config.CORS.AllowedOrigins,
		AllowedMethods:   ctx.Config.CORS.AllowedMethods,
		AllowedHeaders:   ctx.Config.CORS.AllowedHeaders,
		ExposedHeaders:   ctx.Config.CORS.ExposedHeaders,
		AllowCredentials: ctx.Config.CORS.AllowCredentials,
		MaxAge:           ctx.Config.CORS.MaxAgeSeconds,
	}))

	r.Use(middleware.Compress(5))
	r.Use(middlewares.LoadSession)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", ctx.HandlerFunc(handlers.GETLoginHandler))
		r.Get("/callback", ctx.HandlerFunc(handlers.GETCallbackHandler))
		r.Get("/logout", ctx.HandlerFunc(handlers.LogoutHandler))
		r.Get("/status", ctx.HandlerFunc(handlers.AuthStatusHandler))

		r.Group(func(r chi.Router) {
			r.Use(middlewares.RequireSession)
			r.Get("/link", ctx.HandlerFunc(handlers.GETLinkHandler))
			r.Delete("/link", ctx.HandlerFunc(handlers.DELETELinkHandler))
			r.Get("/link/callback", ctx.HandlerFunc(handlers.GETLinkCallbackHandler))
			r.Post("/link/refresh", ctx.HandlerFunc(handlers.POSTLinkRefreshHandler))
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", ctx.HandlerFunc(handlers.HandlerHealth))
	})

	return r
}

func setupDebugRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Mount("/debug", middleware.Profiler())

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
