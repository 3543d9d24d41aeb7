/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, also attached to error logs
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the frontend
  5. RequireUser on every route that acts for a caller

ROUTE GROUPS:
  /api/users/*          Directory (open; fed by the identity provider)
  /api/timesheets/*     Caller's timesheets
  /api/admin/*          Review queue and review commands
  /api/pay-periods/*    Pay-period status and confirmation
  /api/calendar/*       Holidays
  /api/health           Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	CORSOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", UserHeader},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		// User routes
		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Post("/", h.RegisterUser)
		})

		// Timesheet routes
		r.Route("/timesheets", func(r chi.Router) {
			r.Use(RequireUser)
			r.Get("/", h.ListTimesheets)
			r.Post("/", h.CreateTimesheet)
			r.Get("/{id}", h.GetTimesheet)
			r.Put("/{id}", h.UpdateTimesheet)
			r.Delete("/{id}", h.DeleteTimesheet)
			r.Put("/{id}/entries", h.ReplaceEntries)
			r.Get("/{id}/totals", h.GetTotals)
			r.Get("/{id}/reimbursements/validation", h.ValidateReimbursements)
			r.Post("/{id}/submit", h.SubmitTimesheet)
			r.Post("/{id}/notes", h.AddNote)
			r.Post("/{id}/attachments", h.AddAttachment)
		})

		// Review routes
		r.Route("/admin/timesheets", func(r chi.Router) {
			r.Use(RequireUser)
			r.Get("/", h.ListForReview)
			r.Post("/{id}/approve", h.ApproveTimesheet)
			r.Post("/{id}/reject", h.RejectTimesheet)
			r.Post("/{id}/unapprove", h.UnapproveTimesheet)
		})

		// Pay period routes
		r.Route("/pay-periods", func(r chi.Router) {
			r.Get("/", h.ListPayPeriods)
			r.Get("/current", h.CurrentPayPeriod)
			r.With(RequireUser).Post("/confirm", h.ConfirmPayPeriod)
		})

		// Calendar routes
		r.Get("/calendar/holidays", h.ListHolidays)
	})

	return r
}
