package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/port"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Deps is everything the router serves. Store is pinged by /healthz.
type Deps struct {
	Store          port.DocumentStore
	Periods        *service.PeriodService
	Groups         *service.OutcomeGroupService
	Lookups        *service.LookupService
	Status         *service.StatusBoard
	Tokens         *service.TokenVerifier
	Metrics        *observability.Metrics
	AllowedOrigins []string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(deps Deps, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.TracingMiddleware)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(deps.Store, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/coordinator", coordinatorMetricsHandler(deps.Metrics))

		if deps.Tokens == nil {
			r.Handle("/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusServiceUnavailable, "api unavailable: JWT secret not configured")
			}))
			return
		}

		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(deps.Tokens, logger))

			// =============================================
			// Periods, incomes and outcomes
			// =============================================
			r.Get("/periods", listPeriodsHandler(deps.Periods, logger))
			r.Post("/periods", addPeriodHandler(deps.Periods, logger))
			r.Get("/periods/{periodId}", getPeriodHandler(deps.Periods, logger))
			r.Put("/periods/{periodId}", updatePeriodHandler(deps.Periods, logger))
			r.Delete("/periods/{periodId}", deletePeriodHandler(deps.Periods, logger))
			r.Get("/periods/{periodId}/summary", periodSummaryHandler(deps.Periods, logger))

			r.Get("/periods/{periodId}/incomes", listIncomesHandler(deps.Periods, logger))
			r.Post("/periods/{periodId}/incomes", addIncomeHandler(deps.Periods, logger))
			r.Put("/periods/{periodId}/incomes/{incomeId}", updateIncomeHandler(deps.Periods, logger))
			r.Delete("/periods/{periodId}/incomes/{incomeId}", deleteIncomeHandler(deps.Periods, logger))

			r.Get("/periods/{periodId}/outcomes", listOutcomesHandler(deps.Periods, logger))
			r.Post("/periods/{periodId}/outcomes", addOutcomeHandler(deps.Periods, logger))
			r.Put("/periods/{periodId}/outcomes/{outcomeId}", updateOutcomeHandler(deps.Periods, logger))
			r.Patch("/periods/{periodId}/outcomes/{outcomeId}/state", setOutcomeStateHandler(deps.Periods, logger))
			r.Delete("/periods/{periodId}/outcomes/{outcomeId}", deleteOutcomeHandler(deps.Periods, logger))

			r.Post("/periods/{periodId}/outcome-groups/{groupId}/apply", applyGroupHandler(deps.Groups, logger))

			// =============================================
			// Outcome groups
			// =============================================
			r.Get("/outcome-groups", listGroupsHandler(deps.Groups, logger))
			r.Post("/outcome-groups", addGroupHandler(deps.Groups, logger))
			r.Get("/outcome-groups/{groupId}", getGroupHandler(deps.Groups, logger))
			r.Put("/outcome-groups/{groupId}", updateGroupHandler(deps.Groups, logger))
			r.Delete("/outcome-groups/{groupId}", deleteGroupHandler(deps.Groups, logger))

			r.Get("/outcome-groups/{groupId}/outcomes", listGroupOutcomesHandler(deps.Groups, logger))
			r.Post("/outcome-groups/{groupId}/outcomes", addGroupOutcomeHandler(deps.Groups, logger))
			r.Put("/outcome-groups/{groupId}/outcomes/{outcomeId}", updateGroupOutcomeHandler(deps.Groups, logger))
			r.Delete("/outcome-groups/{groupId}/outcomes/{outcomeId}", deleteGroupOutcomeHandler(deps.Groups, logger))

			// =============================================
			// Lookups
			// =============================================
			r.Get("/categories", listCategoriesHandler(deps.Lookups, logger))
			r.Post("/categories", addCategoryHandler(deps.Lookups, logger))
			r.Put("/categories/{categoryId}", updateCategoryHandler(deps.Lookups, logger))
			r.Delete("/categories/{categoryId}", deleteCategoryHandler(deps.Lookups, logger))

			r.Get("/payment-methods", listPaymentMethodsHandler(deps.Lookups, logger))
			r.Post("/payment-methods", addPaymentMethodHandler(deps.Lookups, logger))
			r.Put("/payment-methods/{paymentMethodId}", updatePaymentMethodHandler(deps.Lookups, logger))
			r.Delete("/payment-methods/{paymentMethodId}", deletePaymentMethodHandler(deps.Lookups, logger))

			r.Get("/status", statusHandler(deps.Status))
		})
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func healthzHandler(store port.DocumentStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "bfa-api", Status: "healthy", LastChecked: now},
		}

		if store != nil {
			start := time.Now()
			err := store.Ping(r.Context())
			latency := time.Since(start).Milliseconds()
			status := "healthy"
			if err != nil {
				logger.Warn("store ping failed", zap.Error(err))
				status = "unhealthy"
			}
			services = append(services, domain.ServiceHealth{
				Name: "document-store", Status: status, LatencyMs: latency, LastChecked: now,
			})
		}

		overallStatus := "healthy"
		code := http.StatusOK
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				code = http.StatusServiceUnavailable
				break
			}
		}

		writeJSON(w, code, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func coordinatorMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetCoordinatorSnapshot())
	}
}

func statusHandler(status *service.StatusBoard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, status.Snapshot(UserIDFromContext(r.Context())))
	}
}
