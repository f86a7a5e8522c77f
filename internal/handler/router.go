package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
	"github.com/boddenberg/iagente-vida-go/internal/infra/observability"
	"github.com/boddenberg/iagente-vida-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerReporter exposes the circuit breaker state of a client.
type BreakerReporter interface {
	BreakerState() string
}

// Deps are the collaborators of the HTTP surface. Channel, Admin, Store
// and LLM may be nil; the routes that need them then answer 503.
type Deps struct {
	Conversation  *service.Conversation
	Channel       *service.ChannelService
	Admin         *service.AdminAuth
	Store         Pinger
	LLM           BreakerReporter
	VerifyToken   string
	WebhookSecret string
	Metrics       *observability.Metrics
	Logger        *zap.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(d.Store, d.LLM, logger))
	r.Get("/readyz", readyzHandler())
	if d.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))
	}

	// --- WhatsApp webhook ---
	r.Route("/webhook", func(r chi.Router) {
		r.Get("/whatsapp", verifyWebhookHandler(d.VerifyToken, logger))
		r.Post("/whatsapp", receiveWebhookHandler(d.Channel, d.WebhookSecret, logger))
		r.Get("/status", webhookStatusHandler(d.Conversation, logger))

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(d.Admin, logger))
			r.Get("/conversations", listConversationsHandler(d.Conversation, logger))
			r.Delete("/conversation/{phone}", resetConversationHandler(d.Conversation, logger))
		})
	})

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Post("/chat/{userId}", chatHandler(d.Conversation, logger))

		r.Route("/admin", func(r chi.Router) {
			r.Post("/token", adminTokenHandler(d.Admin, logger))

			r.Group(func(r chi.Router) {
				r.Use(AdminAuthMiddleware(d.Admin, logger))
				r.Get("/conversations/{userId}", getConversationHandler(d.Conversation, logger))
				r.Get("/metrics", metricsSnapshotHandler(d.Metrics))
			})
		})
	})

	return r
}

func healthzHandler(store Pinger, llm BreakerReporter, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "handler.Healthz")
		defer span.End()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "iagente-vida", Status: "healthy", LastChecked: now},
		}

		if store != nil {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			start := time.Now()
			err := store.Ping(pingCtx)
			cancel()
			sh := domain.ServiceHealth{
				Name: "state_store", Status: "healthy",
				LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			}
			if err != nil {
				logger.Error("state store ping failed", zap.Error(err))
				sh.Status = "unhealthy"
				sh.Detail = err.Error()
			}
			services = append(services, sh)
		}

		if llm != nil {
			state := llm.BreakerState()
			sh := domain.ServiceHealth{Name: "llm", Status: "healthy", Detail: "breaker " + state, LastChecked: now}
			if state != "closed" {
				sh.Status = "degraded"
			}
			services = append(services, sh)
		}

		overall := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overall = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overall = "degraded"
			}
		}

		status := http.StatusOK
		if overall == "unhealthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, domain.HealthStatus{Status: overall, Services: services})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func metricsSnapshotHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if metrics == nil {
			writeError(w, http.StatusServiceUnavailable, "metrics disabled")
			return
		}
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}
