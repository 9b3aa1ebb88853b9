// Package httpapi serves the HTTP side of the service: the payment provider
// webhook, the REST pay endpoint, health checks and the gRPC-Web bridge.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"automedic-booking/internal/api"
	"automedic-booking/internal/middleware"
	"automedic-booking/internal/model"
)

// maxWebhookBody caps the raw webhook payload.
const maxWebhookBody = 1 << 20

type Payments interface {
	CreateIntent(ctx context.Context, amountMinorUnits int64, md model.IntentMetadata) (*model.PaymentIntent, error)
	HandleWebhookEvent(ctx context.Context, payload []byte, signature string) error
}

// Pinger reports whether the backing store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Payments  Payments
	Health    Pinger
	GRPCWeb   http.Handler
	Limiter   *middleware.RateLimiter
	JWTSecret string
	Log       *zap.Logger
}

type server struct {
	payments Payments
	health   Pinger
	log      *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	s := &server{payments: d.Payments, health: d.Health, log: d.Log.With(zap.String("component", "http"))}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.AccessLog(s.log))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Grpc-Web", "X-User-Agent"},
		ExposedHeaders: []string{"Grpc-Status", "Grpc-Message", "Grpc-Status-Details-Bin"},
		MaxAge:         86400,
	}))

	r.Get("/healthz", s.healthz)

	// provider webhook: raw body, no auth, no rate limit
	r.Post("/stripe", s.webhook)

	r.Group(func(r chi.Router) {
		if d.Limiter != nil {
			r.Use(middleware.RateLimitHTTP(d.Limiter))
		}
		r.Use(middleware.OptionalIdentity(d.JWTSecret))
		r.Post("/pay", s.createPayment)
	})

	if d.GRPCWeb != nil {
		r.Handle("/"+api.ServiceName+"/*", d.GRPCWeb)
	}
	return r
}

func (s *server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeMessage(w http.ResponseWriter, statusCode int, msg string) {
	writeJSON(w, statusCode, map[string]string{"message": msg})
}
