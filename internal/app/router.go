package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vantage-crm/vantage-crm/internal/amc"
	"github.com/vantage-crm/vantage-crm/internal/billing/invoices"
	"github.com/vantage-crm/vantage-crm/internal/billing/payments"
	"github.com/vantage-crm/vantage-crm/internal/billing/quotations"
	"github.com/vantage-crm/vantage-crm/internal/crm/calllogs"
	"github.com/vantage-crm/vantage-crm/internal/crm/clients"
	"github.com/vantage-crm/vantage-crm/internal/crm/leads"
	"github.com/vantage-crm/vantage-crm/internal/tasks"
	"github.com/vantage-crm/vantage-crm/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	LeadHandler      *leads.Handler
	ClientHandler    *clients.Handler
	CallLogHandler   *calllogs.Handler
	QuotationHandler *quotations.Handler
	InvoiceHandler   *invoices.Handler
	PaymentHandler   *payments.Handler
	ContractHandler  *amc.Handler
	TaskHandler      *tasks.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with Vantage defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/crm", func(r chi.Router) {
			r.Route("/leads", params.LeadHandler.MountRoutes)
			r.Route("/clients", params.ClientHandler.MountRoutes)
			r.Route("/call-logs", params.CallLogHandler.MountRoutes)
		})
		r.Route("/billing", func(r chi.Router) {
			r.Route("/quotations", params.QuotationHandler.MountRoutes)
			r.Route("/invoices", params.InvoiceHandler.MountRoutes)
			r.Route("/payments", params.PaymentHandler.MountRoutes)
		})
		r.Route("/amc", params.ContractHandler.MountRoutes)
		r.Route("/tasks", params.TaskHandler.MountRoutes)
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
