package httpgin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/busdesk/internal/domain"
	redisrepo "github.com/kirinyoku/busdesk/internal/repository/redis"
	"github.com/kirinyoku/busdesk/internal/service"
	"github.com/kirinyoku/busdesk/internal/service/booking"
)

// @Summary  Open the booking panel for a schedule
// @Param    sid  path  string              true  "Session ID"
// @Param    req  body  OpenBookingRequest  true  "payload"
// @Success  200 {object} view.Snapshot
// @Failure  404 {object} ErrorResponse
// @Failure  502 {object} ErrorResponse
// @Router   /sessions/{sid}/booking [post]
func handleOpenBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, svcs)
		if !ok {
			return
		}
		var req OpenBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := s.Page.OpenBooking(c.Request.Context(), req.RouteID, req.ScheduleID); err != nil {
			respondErr(c, err)
			return
		}
		respondSnapshot(c, s)
	}
}

// @Summary  Close the booking panel
// @Param    sid  path  string  true  "Session ID"
// @Success  200 {object} view.Snapshot
// @Router   /sessions/{sid}/booking [delete]
func handleCloseBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, svcs)
		if !ok {
			return
		}
		s.Page.Booking().Close()
		respondSnapshot(c, s)
	}
}

// @Summary  Select or unselect a seat
// @Param    sid   path  string  true  "Session ID"
// @Param    seat  path  int     true  "Seat ID"
// @Success  200 {object} view.Snapshot
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "seat booked"
// @Router   /sessions/{sid}/booking/seats/{seat} [post]
func handleToggleSeat(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, svcs)
		if !ok {
			return
		}
		seatID, ok := parseInt64Param(c, "seat")
		if !ok {
			return
		}
		if err := s.Page.Booking().Toggle(seatID); err != nil {
			respondErr(c, err)
			return
		}
		respondSnapshot(c, s)
	}
}

// @Summary  Set applicant details
// @Param    sid  path  string            true  "Session ID"
// @Param    req  body  ApplicantRequest  true  "payload"
// @Success  200 {object} view.Snapshot
// @Failure  409 {object} ErrorResponse
// @Router   /sessions/{sid}/booking/applicant [put]
func handleApplicant(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, svcs)
		if !ok {
			return
		}
		var req ApplicantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		bw := s.Page.Booking()
		if err := bw.SetApplicant(booking.Applicant{
			NationalID: req.NationalID,
			Mobile:     req.Mobile,
			Email:      req.Email,
		}); err != nil {
			respondErr(c, err)
			return
		}
		if req.Status != "" {
			if err := bw.SetStatus(domain.BookingStatus(req.Status)); err != nil {
				respondErr(c, err)
				return
			}
		}
		respondSnapshot(c, s)
	}
}

// @Summary  Lock the selected seats (idempotent, rate limited)
// @Param    sid              path    string  true   "Session ID"
// @Param    Idempotency-Key  header  string  false  "replays the first result"
// @Success  201 {object} BookingSubmitResponse
// @Failure  409 {object} ErrorResponse
// @Failure  422 {object} ValidationErrorResponse
// @Failure  429 {object} ErrorResponse "rate limited"
// @Failure  502 {object} ErrorResponse
// @Router   /sessions/{sid}/booking/submit [post]
func handleSubmitBooking(svcs *service.Services, guards Guards, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const op = "httpgin.handleSubmitBooking"

		s, ok := loadSession(c, svcs)
		if !ok {
			return
		}
		ctx := c.Request.Context()

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var storageKey string
		if guards.Idempotency != nil && idemKey != "" {
			storageKey = redisrepo.KeyIdemBooking(s.ID.String(), idemKey)

			payload, state, err := guards.Idempotency.Begin(ctx, storageKey, 60*time.Second)
			if err != nil {
				logger.Warn("idempotency store unavailable", "op", op, "error", err)
				storageKey = ""
				state = redisrepo.IdemAcquired
			}
			switch state {
			case redisrepo.IdemReplay:
				c.Header("Idempotency-Key", idemKey)
				c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
				return
			case redisrepo.IdemInProgress:
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
				return
			}
		}

		release := func() {
			if storageKey != "" {
				_ = guards.Idempotency.Release(ctx, storageKey)
			}
		}

		if guards.Limiter != nil {
			d, err := guards.Limiter.Allow(ctx, "ip:"+c.ClientIP())
			if err != nil {
				logger.Warn("rate limiter unavailable", "op", op, "error", err)
			} else if !d.Allowed {
				release()
				secs := int(d.RetryAfter.Seconds())
				if secs < 1 {
					secs = 1
				}
				c.Header("Retry-After", strconv.Itoa(secs))
				c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limited"})
				return
			}
		}

		bw := s.Page.Booking()
		req := bw.State().Request

		if err := bw.Submit(ctx); err != nil {
			release()
			respondErr(c, err)
			return
		}

		status := req.Status
		if status == "" {
			status = domain.BookingPending
		}
		resp := BookingSubmitResponse{
			ScheduleID: req.ScheduleID,
			SeatLabels: req.SeatLabels,
			Status:     string(status),
		}

		if storageKey != "" {
			b, _ := json.Marshal(resp)
			if err := guards.Idempotency.Save(ctx, storageKey, string(b)); err != nil {
				logger.Warn("failed to store idempotent result", "op", op, "error", err)
			}
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}
