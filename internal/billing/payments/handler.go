package payments

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vantage-crm/vantage-crm/internal/billing/invoices"
	"github.com/vantage-crm/vantage-crm/internal/platform/httpx"
	"github.com/vantage-crm/vantage-crm/internal/shared"
)

// Handler exposes payment endpoints.
type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

// MountRoutes attaches payment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.delete)
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func actorID(r *http.Request) int64 {
	// Auth is an upstream concern; the gateway injects the acting user.
	id, _ := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	return id
}

// ledgerResponse carries both sides of a payment mutation so callers can
// refresh the invoice view without a second round trip.
type ledgerResponse struct {
	Payment *Payment          `json:"payment,omitempty"`
	Invoice *invoices.Invoice `json:"invoice"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	payment, inv, err := h.service.Record(r.Context(), req, actorID(r))
	if err != nil {
		h.logger.Warn("record payment", slog.Int64("invoice_id", req.InvoiceID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ledgerResponse{Payment: payment, Invoice: inv})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	invoiceID, _ := strconv.ParseInt(r.URL.Query().Get("invoice_id"), 10, 64)
	clientID, _ := strconv.ParseInt(r.URL.Query().Get("client_id"), 10, 64)

	items, total, err := h.service.List(r.Context(), ListPaymentsRequest{
		InvoiceID: invoiceID,
		ClientID:  clientID,
		Status:    Status(r.URL.Query().Get("status")),
		Page:      page,
		PerPage:   perPage,
	})
	if err != nil {
		h.logger.Error("list payments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       items,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "payment id must be numeric")
		return
	}
	payment, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "payment id must be numeric")
		return
	}
	inv, err := h.service.Delete(r.Context(), id)
	if err != nil {
		h.logger.Warn("reverse payment", slog.Int64("payment_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ledgerResponse{Invoice: inv})
}
