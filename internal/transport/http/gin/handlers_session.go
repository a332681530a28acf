package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/busdesk/internal/service"
)

// @Summary  Open a console session for a bus
// @Param    req body  CreateSessionRequest true "payload"
// @Success  201 {object} CreateSessionResponse
// @Failure  400 {object} ErrorResponse
// @Router   /sessions [post]
func handleCreateSession(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		s, err := svcs.Sessions.Create(req.BusID)
		if err != nil {
			respondErr(c, err)
			return
		}

		// load failures are reported as notices; the session stays usable
		_ = s.Page.Load(c.Request.Context())

		c.JSON(http.StatusCreated, CreateSessionResponse{
			SessionID: s.ID.String(),
			Snapshot:  s.Page.Snapshot(),
		})
	}
}

// @Summary  Console snapshot
// @Param    sid  path  string  true  "Session ID"
// @Success  200 {object} view.Snapshot
// @Failure  404 {object} ErrorResponse
// @Router   /sessions/{sid} [get]
func handleGetSession(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, svcs)
		if !ok {
			return
		}
		writeJSONWithCache(c, http.StatusOK, s.Page.Snapshot(), "no-cache", true)
	}
}

// @Summary  Close a session
// @Param    sid  path  string  true  "Session ID"
// @Success  204
// @Router   /sessions/{sid} [delete]
func handleCloseSession(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svcs.Sessions.Close(c.Param("sid")); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Point the session at another bus
// @Param    sid  path  string         true  "Session ID"
// @Param    req  body  SetBusRequest  true  "payload"
// @Success  200 {object} view.Snapshot
// @Router   /sessions/{sid}/bus [put]
func handleSetBus(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, svcs)
		if !ok {
			return
		}
		var req SetBusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		s.Page.SetBus(req.BusID)
		_ = s.Page.Load(c.Request.Context())
		respondSnapshot(c, s)
	}
}

// @Summary  Load the bus and its routes (retries a failed load)
// @Param    sid  path  string  true  "Session ID"
// @Success  200 {object} view.Snapshot
// @Failure  502 {object} ErrorResponse
// @Router   /sessions/{sid}/load [post]
func handleLoad(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, svcs)
		if !ok {
			return
		}
		if err := s.Page.Load(c.Request.Context()); err != nil {
			respondErr(c, err)
			return
		}
		respondSnapshot(c, s)
	}
}

// @Summary  Aggregated platform counts
// @Success  200 {object} domain.DashboardStats
// @Router   /dashboard [get]
func handleDashboard(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := svcs.Dashboard.Stats(c.Request.Context())
		writeJSONWithCache(c, http.StatusOK, stats, "private, max-age=30", true)
	}
}

// @Summary  Recent operator notices of a bus
// @Param    id     path   int  true   "Bus ID"
// @Param    limit  query  int  false  "max entries"
// @Success  200 {array}  postgresrepo.NoticeRecord
// @Failure  503 {object} ErrorResponse
// @Router   /buses/{id}/notices [get]
func handleJournal(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		busID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		list, err := svcs.Journal.Recent(c.Request.Context(), busID, parseIntDefault(c.Query("limit"), 50))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}
