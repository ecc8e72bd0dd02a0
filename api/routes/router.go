package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/contactbook-backend/api/controllers"
	"github.com/angelmondragon/contactbook-backend/api/middleware"
	"github.com/angelmondragon/contactbook-backend/api/responses"
	"github.com/angelmondragon/contactbook-backend/internal/contacts"
	"github.com/angelmondragon/contactbook-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/contactbook-backend/pkg/errors"
	"github.com/angelmondragon/contactbook-backend/pkg/logger"
	"github.com/angelmondragon/contactbook-backend/pkg/metrics"
	"github.com/angelmondragon/contactbook-backend/pkg/redis"
)

// NewRouter wires the HTTP surface. redisClient and gatherer are optional:
// without redis the idempotency and rate limit layers are skipped, without a
// gatherer /metrics is not mounted.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	contactsService contacts.Service,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	readiness := map[string]controllers.Pinger{"storage": contactsService}
	// Writes default to pass-through; a nil *redis.Client must not leak into
	// the interfaces below as a non-nil value.
	idempotent := func(next http.Handler) http.Handler { return next }
	importLimit := func(next http.Handler) http.Handler { return next }
	if redisClient != nil {
		readiness["redis"] = redisClient
		idempotent = middleware.Idempotency(redisClient, logg)
		importLimit = middleware.RateLimit(
			middleware.NewRateLimitPolicy("import", cfg.RateLimit.ImportWindow, cfg.RateLimit.ImportLimit),
			redisClient,
			logg,
		)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/contacts", func(r chi.Router) {
		r.Get("/", controllers.ContactsList(contactsService, logg))
		r.With(idempotent).Post("/", controllers.ContactsCreate(contactsService, logg))
		r.Get("/export", controllers.ContactsExport(contactsService, logg))
		r.With(importLimit, idempotent).Post("/import", controllers.ContactsImport(contactsService, logg))
		r.With(importLimit, idempotent).Post("/import/file", controllers.ContactsImportFile(contactsService, logg))
		r.Get("/{id}", controllers.ContactsGet(contactsService, logg))
		r.Patch("/{id}", controllers.ContactsUpdate(contactsService, logg))
		r.Delete("/{id}", controllers.ContactsDelete(contactsService, logg))
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		responses.WriteError(req.Context(), nil, w, pkgerrors.New(pkgerrors.CodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		responses.WriteError(req.Context(), nil, w, pkgerrors.New(pkgerrors.CodeNotFound, "route not found"))
	})

	return r
}
