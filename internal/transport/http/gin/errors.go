package httpgin

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/busdesk/internal/backend"
	"github.com/kirinyoku/busdesk/internal/console"
	"github.com/kirinyoku/busdesk/internal/service/booking"
	"github.com/kirinyoku/busdesk/internal/service/journal"
	"github.com/kirinyoku/busdesk/internal/service/routes"
	"github.com/kirinyoku/busdesk/internal/service/schedules"
	"github.com/kirinyoku/busdesk/internal/service/sessions"
	"github.com/kirinyoku/busdesk/internal/service/view"
)

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

// respondDeclined answers a destructive request that was not confirmed.
func respondDeclined(c *gin.Context, p *headerPrompter, err error) bool {
	if !errors.Is(err, console.ErrDeclined) || p.asked == nil {
		return false
	}
	c.JSON(http.StatusConflict, ConfirmationResponse{
		Error:  "confirmation required",
		Prompt: *p.asked,
	})
	return true
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	_ = c.Error(err)

	var verr *console.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusUnprocessableEntity, ValidationErrorResponse{
			Error:  "validation failed",
			Fields: verr.Fields,
		})
		return
	}

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = "backend request failed"
		}
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: msg})
		return
	}

	switch {
	case errors.Is(err, sessions.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found"})
	case errors.Is(err, sessions.ErrInvalidBus):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid bus id"})
	case errors.Is(err, routes.ErrRouteNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "route not found"})
	case errors.Is(err, view.ErrScheduleNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "schedule not found"})
	case errors.Is(err, booking.ErrSeatUnknown):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "seat not found"})
	case errors.Is(err, console.ErrBusy):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "operation already in progress"})
	case errors.Is(err, console.ErrDeclined):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "confirmation declined"})
	case errors.Is(err, schedules.ErrNoRoutes):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "bus has no routes"})
	case errors.Is(err, booking.ErrSeatBooked):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "seat already booked"})
	case errors.Is(err, booking.ErrNotOpen):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "booking panel is not open"})
	case errors.Is(err, booking.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid booking status"})
	case errors.Is(err, schedules.ErrUnknownRoute):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown route"})
	case errors.Is(err, journal.ErrDisabled):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "journal is not configured"})
	case errors.Is(err, backend.ErrMalformedResponse), isTransportErr(err):
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "backend request failed"})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func isTransportErr(err error) bool {
	var ue *url.Error
	return errors.As(err, &ue)
}
