// @title Keyhaven API
// @version 1.0.0
// @description Multi-brand license lifecycle and seat allocation service

// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BrandAPIKey
// @in header
// @name X-API-Key

package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/keyhaven/keyhaven/internal/brand"
	"github.com/keyhaven/keyhaven/internal/license"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	brandService   *brand.Service
	licenseService *license.Service
	ledger         *license.Ledger
	lookup         *license.Lookup
}

// NewHandler creates a new HTTP handler
func NewHandler(
	brandService *brand.Service,
	licenseService *license.Service,
	ledger *license.Ledger,
	lookup *license.Lookup,
) *Handler {
	return &Handler{
		brandService:   brandService,
		licenseService: licenseService,
		ledger:         ledger,
		lookup:         lookup,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		// Brand surface. Every route is scoped to the brand resolved
		// from the API credential pair.
		r.Route("/brand", func(r chi.Router) {
			r.Use(h.BrandAuthMiddleware)
			r.Use(RateLimitMiddleware(rateLimiter))

			r.Post("/license-keys", h.CreateLicenseKey)
			r.Get("/license-keys", h.ListLicenseKeys)
			r.Get("/license-keys/{key}", h.GetLicenseKey)
			r.Post("/license-keys/{key}/revoke", h.RevokeLicenseKey)
			r.Post("/license-keys/{key}/licenses", h.AttachLicense)

			r.Get("/licenses/{licenseID}", h.GetLicense)
			r.Post("/licenses/{licenseID}/renew", h.RenewLicense)
			r.Post("/licenses/{licenseID}/suspend", h.SuspendLicense)
			r.Post("/licenses/{licenseID}/resume", h.ResumeLicense)
			r.Post("/licenses/{licenseID}/cancel", h.CancelLicense)

			r.Get("/customers", h.LookupCustomer)
			r.Get("/products", h.ListProducts)
			r.Post("/credentials/rotate", h.RotateCredentials)
		})

		// Product surface. No brand credentials; possession of the
		// license key is the credential.
		r.Route("/product", func(r chi.Router) {
			r.Use(RateLimitMiddleware(rateLimiter))

			r.Post("/activate", h.Activate)
			r.Post("/deactivate", h.Deactivate)
			r.Post("/validate", h.Validate)
			r.Get("/status", h.Status)
		})
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service is up and running
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "keyhaven",
	})
}
