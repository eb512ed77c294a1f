package amc

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vantage-crm/vantage-crm/internal/platform/httpx"
	"github.com/vantage-crm/vantage-crm/internal/shared"
)

// Handler exposes contract endpoints.
type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

// MountRoutes attaches contract routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Post("/{id}/hold", h.transitionHandler(h.service.Hold))
	r.Post("/{id}/resume", h.transitionHandler(h.service.Resume))
	r.Post("/{id}/cancel", h.transitionHandler(h.service.Cancel))
	r.Post("/{id}/renew", h.renew)
	r.Post("/{id}/services", h.scheduleService)
	r.Post("/{id}/services/{serviceID}/complete", h.completeService)
	r.Post("/{id}/services/{serviceID}/miss", h.serviceHandler(h.service.MarkServiceMissed))
	r.Post("/{id}/services/{serviceID}/reschedule", h.rescheduleService)
	r.Post("/{id}/services/{serviceID}/cancel", h.serviceHandler(h.service.CancelService))
}

func idParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func actorID(r *http.Request) int64 {
	// Auth is an upstream concern; the gateway injects the acting user.
	id, _ := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	return id
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateContractRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	c, err := h.service.Create(r.Context(), req, actorID(r))
	if err != nil {
		h.logger.Warn("create contract", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	clientID, _ := strconv.ParseInt(r.URL.Query().Get("client_id"), 10, 64)

	items, total, err := h.service.List(r.Context(), ListContractsRequest{
		Status:   Status(r.URL.Query().Get("status")),
		ClientID: clientID,
		Page:     page,
		PerPage:  perPage,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       items,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req UpdateContractRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	c, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.logger.Warn("update contract", slog.Int64("contract_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) transitionHandler(fn func(ctx context.Context, id int64) (*Contract, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
			return
		}
		c, err := fn(r.Context(), id)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, c)
	}
}

func (h *Handler) renew(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req RenewContractRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	successor, err := h.service.Renew(r.Context(), id, req, actorID(r))
	if err != nil {
		h.logger.Warn("renew contract", slog.Int64("contract_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, successor)
}

func (h *Handler) scheduleService(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req ScheduleServiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	c, err := h.service.ScheduleService(r.Context(), id, req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) completeService(w http.ResponseWriter, r *http.Request) {
	contractID, err := idParam(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	serviceID, err := idParam(r, "serviceID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	c, err := h.service.CompleteService(r.Context(), contractID, serviceID, actorID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) rescheduleService(w http.ResponseWriter, r *http.Request) {
	contractID, err := idParam(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	serviceID, err := idParam(r, "serviceID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req RescheduleServiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	c, err := h.service.RescheduleService(r.Context(), contractID, serviceID, req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) serviceHandler(fn func(ctx context.Context, contractID, serviceID int64) (*Contract, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contractID, err := idParam(r, "id")
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
			return
		}
		serviceID, err := idParam(r, "serviceID")
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
			return
		}
		c, err := fn(r.Context(), contractID, serviceID)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, c)
	}
}
