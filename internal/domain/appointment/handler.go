package appointment

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/estate/estate/internal/platform/envelope"
	"github.com/estate/estate/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the appointment API on g, normally /api/appointment.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/appointments", h.List)
	g.GET("/appointment/:id", h.Get)
	g.POST("/addappointment", h.Create)
	g.PUT("/appointment/:id", h.Update)
	g.DELETE("/delete/:id", h.Delete)
	g.POST("/schedule-property-appointment", h.Schedule)
	g.PUT("/confirm/:id", h.Confirm)
	g.PUT("/cancel/:id", h.Cancel)
	g.PUT("/complete/:id", h.Complete)
	g.GET("/availability", h.Availability)
}

func (h *Handler) List(c echo.Context) error {
	f, err := h.filterFromQuery(c)
	if err != nil {
		return toHTTPError(err, "Error during getting appointments")
	}
	items, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return toHTTPError(err, "Error during getting appointments")
	}
	return envelope.JSON(c, http.StatusOK, "Found Appointments", items)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return toHTTPError(err, "Error during getting appointment")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err, "Error during getting appointment")
	}
	return envelope.JSON(c, http.StatusOK, "Found Appointment", a)
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return badBody(err)
	}
	a, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return toHTTPError(err, "Error during adding appointment")
	}
	return envelope.JSON(c, http.StatusCreated, "Appointment Added Successfully", a)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return toHTTPError(err, "Error during updating appointment")
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return badBody(err)
	}
	a, err := h.svc.Update(c.Request().Context(), id, req)
	if err != nil {
		return toHTTPError(err, "Error during updating appointment")
	}
	return envelope.JSON(c, http.StatusOK, "Appointment Updated Successfully", a)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return toHTTPError(err, "Error during deleting appointment")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return toHTTPError(err, "Error during deleting appointment")
	}
	return envelope.JSON(c, http.StatusOK, "Appointment Deleted Successfully", nil)
}

func (h *Handler) Schedule(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return badBody(err)
	}
	a, err := h.svc.Schedule(c.Request().Context(), req)
	if err != nil {
		return toHTTPError(err, "Error during appointment scheduling")
	}
	return envelope.JSON(c, http.StatusCreated, "Appointment scheduled successfully", a)
}

func (h *Handler) Confirm(c echo.Context) error {
	return h.transition(c, h.svc.Confirm, "Appointment Confirmed Successfully", "Error during confirming appointment")
}

func (h *Handler) Cancel(c echo.Context) error {
	return h.transition(c, h.svc.Cancel, "Appointment Cancelled Successfully", "Error during cancelling appointment")
}

func (h *Handler) Complete(c echo.Context) error {
	return h.transition(c, h.svc.Complete, "Appointment Completed Successfully", "Error during completing appointment")
}

func (h *Handler) transition(c echo.Context, fn func(context.Context, uuid.UUID) (*Appointment, error), okMsg, failMsg string) error {
	id, err := parseID(c)
	if err != nil {
		return toHTTPError(err, failMsg)
	}
	a, err := fn(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err, failMsg)
	}
	return envelope.JSON(c, http.StatusOK, okMsg, a)
}

// AvailabilityResponse is the data of GET /availability.
type AvailabilityResponse struct {
	Available               bool           `json:"available"`
	ConflictingAppointments []*Appointment `json:"conflictingAppointments"`
}

func (h *Handler) Availability(c echo.Context) error {
	conflicts, err := h.svc.Availability(c.Request().Context(),
		c.QueryParam("propertyAddress"), c.QueryParam("date"))
	if err != nil {
		return toHTTPError(err, "Error during checking availability")
	}
	msg := "Property is available"
	if len(conflicts) > 0 {
		msg = "Property is not available at the requested time"
	}
	return envelope.JSON(c, http.StatusOK, msg, AvailabilityResponse{
		Available:               len(conflicts) == 0,
		ConflictingAppointments: conflicts,
	})
}

func (h *Handler) filterFromQuery(c echo.Context) (Filter, error) {
	pg := pagination.FromContext(c)
	f := Filter{
		PropertyAddress: strings.TrimSpace(c.QueryParam("propertyAddress")),
		Limit:           pg.Limit,
		Offset:          pg.Offset,
	}
	v := newValidationError("Invalid query")
	if raw := c.QueryParam("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			s, err := ParseStatus(part)
			if err != nil {
				v.add("status", err.Error())
				continue
			}
			f.Statuses = append(f.Statuses, s)
		}
	}
	loc := h.svc.Location()
	if raw := c.QueryParam("from"); raw != "" {
		t, err := ParseDate(raw, loc)
		if err != nil {
			v.add("from", err.Error())
		} else {
			f.From = &t
		}
	}
	if raw := c.QueryParam("to"); raw != "" {
		t, err := ParseDate(raw, loc)
		if err != nil {
			v.add("to", err.Error())
		} else {
			// A bare date means through the end of that day.
			if len(strings.TrimSpace(raw)) == len("2006-01-02") {
				_, t = DayBounds(t, loc)
			}
			f.To = &t
		}
	}
	return f, v.orNil()
}

// parseID treats a malformed id like an unknown one.
func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, ErrNotFound
	}
	return id, nil
}

func badBody(err error) error {
	return envelope.New(http.StatusBadRequest, "Invalid request body").WithDetail(err.Error())
}

// toHTTPError maps domain errors onto envelope errors. Anything unrecognised
// is reported as internal with failMsg as the message.
func toHTTPError(err error, failMsg string) error {
	var (
		verr *ValidationError
		cerr *ConflictError
		terr *TransitionError
	)
	switch {
	case errors.As(err, &cerr):
		return envelope.New(http.StatusConflict, "Property is not available at the requested time").
			WithDetail(cerr.Error()).
			With("conflictingAppointments", cerr.Conflicts)
	case errors.As(err, &verr):
		return envelope.New(http.StatusBadRequest, verr.Message).
			WithDetail(verr.Error()).
			With("fields", verr.Fields)
	case errors.As(err, &terr):
		return envelope.New(http.StatusConflict, "Invalid status transition").
			WithDetail(terr.Error())
	case errors.Is(err, ErrNotFound):
		return envelope.New(http.StatusNotFound, "Appointment not found").
			WithDetail(ErrNotFound.Error())
	default:
		return envelope.Internal(failMsg, err)
	}
}
