package theatre

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – any authenticated user
	api.GET("/ot", h.List)
	api.GET("/ot/:id", h.Get)

	// Staff-level overrides
	staffGroup := api.Group("", auth.RequireRole("admin", "doctor", "nurse", "pharmacist", "receptionist"))
	staffGroup.PUT("/ot/:id/status", h.SetStatus)
	staffGroup.PUT("/ot/:id/emergency", h.SetEmergency)

	// Scheduling – doctor or admin
	doctorGroup := api.Group("", auth.RequireRole("doctor", "admin"))
	doctorGroup.POST("/ot/schedule", h.ScheduleAny)
	doctorGroup.PUT("/ot/:id/schedule", h.Schedule)
	doctorGroup.PUT("/ot/:id/cancel", h.Cancel)
	doctorGroup.PUT("/ot/:id/start", h.Start)
	doctorGroup.PUT("/ot/:id/end", h.End)
	doctorGroup.PUT("/ot/:id/return-to-service", h.ReturnToService)

	// Registration – admin only
	adminGroup := api.Group("", auth.RequireRole("admin"))
	adminGroup.POST("/ot", h.Create)
	adminGroup.DELETE("/ot/:id", h.Delete)
}

// httpError maps domain errors onto HTTP statuses. Infrastructure errors
// surface as a generic 500 so internals never leak to clients.
func httpError(err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	}
	var ite *InvalidTransitionError
	if errors.As(err, &ite) {
		return echo.NewHTTPError(http.StatusConflict, ite.Error())
	}
	var ce *ConflictError
	if errors.As(err, &ce) {
		return echo.NewHTTPError(http.StatusConflict, ce.Error())
	}
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "operation theatre not found")
	}
	if errors.Is(err, ErrNoTheatreAvailable) {
		return echo.NewHTTPError(http.StatusConflict, ErrNoTheatreAvailable.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) List(c echo.Context) error {
	items, err := h.svc.List(c.Request().Context())
	if err != nil {
		return httpError(err)
	}

	p := pagination.FromContext(c)
	total := len(items)
	from, to := p.Slice(total)
	return c.JSON(http.StatusOK, pagination.NewResponse(items[from:to], total, p))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	t, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

type createRequest struct {
	OTNumber string `json:"ot_number"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.Create(c.Request().Context(), req.OTNumber)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Schedule(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req ScheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.Schedule(c.Request().Context(), id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ScheduleAny(c echo.Context) error {
	var req ScheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.ScheduleAny(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

type cancelRequest struct {
	Notes string `json:"notes,omitempty"`
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.Cancel(c.Request().Context(), id, req.Notes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) Start(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	t, err := h.svc.Start(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) End(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	t, err := h.svc.End(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ReturnToService(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	t, err := h.svc.ReturnToService(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

type statusRequest struct {
	Status         Status `json:"status"`
	EmergencyLevel int    `json:"emergency_level"`
}

func (h *Handler) SetStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.SetStatus(c.Request().Context(), id, req.Status, req.EmergencyLevel)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

type emergencyRequest struct {
	EmergencyLevel int    `json:"emergency_level"`
	Notes          string `json:"notes,omitempty"`
}

func (h *Handler) SetEmergency(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req emergencyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.SetEmergency(c.Request().Context(), id, req.EmergencyLevel, req.Notes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}
