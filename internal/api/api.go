// Package api exposes the firm store and the generation pipelines over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/investor-cli/internal/apperr"
	"github.com/sells-group/investor-cli/internal/enrich"
	"github.com/sells-group/investor-cli/internal/finder"
	"github.com/sells-group/investor-cli/internal/model"
	"github.com/sells-group/investor-cli/internal/store"
)

// maxUploadBytes caps POST /firms bodies.
const maxUploadBytes = 32 << 20

// InvestorFinder runs the find-investors pipeline.
type InvestorFinder interface {
	Find(ctx context.Context, q finder.Query) (*finder.Result, error)
}

// ContactEnricher enriches one contact slot.
type ContactEnricher interface {
	Enrich(ctx context.Context, req enrich.ContactRequest) ([]model.Contact, error)
}

// ContactFinder discovers contacts for a stored firm.
type ContactFinder interface {
	Find(ctx context.Context, firmID int64) ([]model.Contact, error)
}

// FirmEnricher generates firm-level detail.
type FirmEnricher interface {
	Enrich(ctx context.Context, req enrich.FirmRequest) (*enrich.FirmResult, error)
}

// Services are the collaborators behind the routes. Nil generation services
// answer 503.
type Services struct {
	Store         store.Store
	Finder        InvestorFinder
	Contacts      ContactEnricher
	ContactFinder ContactFinder
	Firms         FirmEnricher
}

type server struct {
	svc Services
}

// NewRouter builds the HTTP handler. allowedOrigins configures CORS; empty
// allows any origin.
func NewRouter(svc Services, allowedOrigins []string) http.Handler {
	s := &server{svc: svc}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Route("/firms", func(r chi.Router) {
		r.Get("/", s.listFirms)
		r.Post("/", s.uploadFirms)
		r.Get("/{id}", s.getFirm)
		r.Delete("/{id}", s.deleteFirm)
		r.Post("/{id}/find-contacts", s.findContacts)
	})
	r.Post("/find-investors", s.findInvestors)
	r.Post("/contacts/enrich", s.enrichContact)
	r.Post("/enrich", s.enrichFirm)

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

// writeError maps err onto its status and a caller-safe message. Detail
// stays in the server log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	log := zap.L().With(
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("kind", apperr.KindOf(err).String()),
	)
	if status >= http.StatusInternalServerError {
		log.Error("api: request failed", zap.Error(err))
	} else {
		log.Info("api: request rejected", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": apperr.Message(err)})
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Input("invalid request body")
	}
	return nil
}

func unavailable(w http.ResponseWriter, name string) {
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": name + " is not configured"})
}
