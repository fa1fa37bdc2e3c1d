package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/auth"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/db"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/metrics"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/middleware"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/models"
)

// RouterDeps are everything the HTTP API is built from. Ping and Metrics may be nil.
type RouterDeps struct {
	Garage  Garage
	Auth    *auth.Service
	Users   db.UserCollection
	Metrics *metrics.Collector
	Ping    func(ctx context.Context) error

	// TrustProxy keys the login rate limit on X-Forwarded-For.
	TrustProxy bool
}

// NewRouter wires every route with its permission, authentication, access logging and
// request metrics.
func NewRouter(deps RouterDeps) http.Handler {
	mux := http.NewServeMux()
	authMW := middleware.NewAuthMiddleware(deps.Auth)
	limiter := middleware.NewRateLimitMiddleware(deps.TrustProxy)
	g := NewGarageHandler(deps.Garage)
	a := NewAuthHandler(deps.Auth, deps.Users)

	guard := func(action string, h http.HandlerFunc) http.Handler {
		return authMW.RequirePermission(action)(h)
	}

	mux.HandleFunc("GET /health", health(deps.Ping))
	mux.Handle("GET /metrics", deps.Metrics.Handler())

	// login and refresh draw on the same per-client budget
	loginLimit := limiter.RateLimit(10, time.Minute)
	mux.Handle("POST /api/auth/login", loginLimit(http.HandlerFunc(a.Login)))
	mux.Handle("POST /api/auth/refresh", loginLimit(http.HandlerFunc(a.Refresh)))
	mux.Handle("POST /api/auth/register", guard(models.ActionManageUsers, a.Register))
	mux.HandleFunc("GET /api/auth/profile", a.GetProfile)

	mux.Handle("GET /api/dashboard", guard(models.ActionViewDashboard, g.Dashboard))
	mux.Handle("GET /api/tasks", guard(models.ActionViewDashboard, g.ListTasks))
	mux.Handle("PUT /api/tasks/{id}", guard(models.ActionManageTasks, g.PutTask))
	mux.Handle("DELETE /api/tasks/{id}", guard(models.ActionManageTasks, g.DeleteTask))
	mux.Handle("POST /api/tasks/{id}/done", guard(models.ActionMarkDone, g.MarkDone))

	mux.Handle("GET /api/vehicle", guard(models.ActionViewDashboard, g.GetVehicle))
	mux.Handle("PUT /api/vehicle", guard(models.ActionUpdateMileage, g.SaveVehicle))
	mux.Handle("PUT /api/vehicle/mileage", guard(models.ActionUpdateMileage, g.UpdateMileage))
	mux.Handle("PUT /api/vehicle/details", guard(models.ActionUpdateMileage, g.UpdateDetails))

	mux.Handle("GET /api/history", guard(models.ActionViewDashboard, g.ListHistory))
	mux.Handle("PUT /api/history", guard(models.ActionMarkDone, g.SyncHistory))

	mux.Handle("GET /api/invoices", guard(models.ActionViewDashboard, g.ListInvoices))
	mux.Handle("POST /api/invoices", guard(models.ActionScanInvoice, g.CreateInvoice))
	mux.Handle("POST /api/invoices/scan", guard(models.ActionScanInvoice, g.ScanInvoice))

	mux.Handle("POST /api/diagnosis", guard(models.ActionRunDiagnosis, g.Diagnose))
	mux.Handle("GET /api/alerts", guard(models.ActionViewDashboard, g.ListAlerts))
	mux.Handle("POST /api/alerts/speech", guard(models.ActionRunDiagnosis, g.SpeakAlerts))

	var handler http.Handler = mux
	handler = authMW.Authenticate(handler)
	handler = middleware.Logger(middleware.MuxRoute(mux), deps.Metrics)(handler)
	return handler
}

func health(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
