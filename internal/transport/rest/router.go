package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/opsdesk/storeops/internal"
	"github.com/opsdesk/storeops/internal/audit"
	"github.com/opsdesk/storeops/internal/permission"
	"github.com/opsdesk/storeops/internal/product"
	"github.com/opsdesk/storeops/internal/transport/middleware"
	"github.com/opsdesk/storeops/internal/transport/swagger"
)

// RegisterAllRoutes mounts the API. Every mutating route is gated on the
// same permission code its UI affordance is hidden by; the gate and the
// handlers both read the one evaluator.
func RegisterAllRoutes(
	router *chi.Mux,
	db *sql.DB,
	cfg *internal.Config,
	verifier *middleware.ActorVerifier,
	gate *middleware.Gate,
	permissionHandler *permission.Handler,
	auditHandler *audit.Handler,
	productHandler *product.Handler,
	logger *slog.Logger,
) {
	healthHandler := NewHealthHandler(db)

	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Everything below requires a verified actor.
		r.Group(func(pr chi.Router) {
			pr.Use(middleware.ActorContext(verifier, logger))

			pr.Get("/permissions/me", permissionHandler.GetMyPermissions)

			pr.Group(func(ar chi.Router) {
				ar.Use(gate.Require("access.manage"))
				ar.Get("/permissions/catalog", permissionHandler.GetCatalog)
				ar.Get("/permissions/roles/{role}", permissionHandler.GetRoleGrants)
				ar.Post("/permissions/grants", permissionHandler.Grant)
				ar.Delete("/permissions/grants", permissionHandler.Revoke)
			})

			pr.Group(func(ar chi.Router) {
				ar.Use(gate.Require("audit.view"))
				ar.Get("/audit", auditHandler.GetHistory)
			})

			pr.Route("/products", func(cr chi.Router) {
				cr.Group(func(vr chi.Router) {
					vr.Use(gate.Require("catalog.view"))
					vr.Get("/", productHandler.GetProducts)
					vr.Get("/{id}", productHandler.GetProduct)
				})

				cr.Group(func(mr chi.Router) {
					mr.Use(gate.Require("catalog.manage"))
					mr.Post("/", productHandler.CreateProduct)
					mr.Patch("/{id}", productHandler.UpdateProduct)
				})
			})
		})
	})
}
