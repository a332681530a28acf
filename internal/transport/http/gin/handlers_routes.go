package httpgin

import (
	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/busdesk/internal/service"
	"github.com/kirinyoku/busdesk/internal/service/routes"
)

// @Summary  Reload the route list
// @Param    sid  path  string  true  "Session ID"
// @Success  200 {object} view.Snapshot
// @Router   /sessions/{sid}/routes/reload [post]
func handleReloadRoutes(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, svcs)
		if !ok {
			return
		}
		if err := s.Page.ReloadRoutes(c.Request.Context()); err != nil {
			respondErr(c, err)
			return
		}
		respondSnapshot(c, s)
	}
}

// @Summary  Show the create route form
// @Param    sid  path  string  true  "Session ID"
// @Success  200 {object} view.Snapshot
// @Router   /sessions/{sid}/routes/form [post]
func handleShowRouteForm(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, svcs)
		if !ok {
			return
		}
		s.Page.Routes().ShowCreate()
		respondSnapshot(c, s)
	}
}

// @Summary  Cancel the route form
// @Param    sid  path  string  true  "Session ID"
// @Success  200 {object} view.Snapshot
// @Router   /sessions/{sid}/routes/form [delete]
func handleCancelRouteForm(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, svcs)
		if !ok {
			return
		}
		s.Page.Routes().Cancel()
		respondSnapshot(c, s)
	}
}

// @Summary  Edit a route
// @Param    sid  path  string  true  "Session ID"
// @Param    rid  path  int     true  "Route ID"
// @Success  200 {object} view.Snapshot
// @Failure  404 {object} ErrorResponse
// @Router   /sessions/{sid}/routes/{rid}/edit [post]
func handleEditRoute(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, svcs)
		if !ok {
			return
		}
		rid, ok := parseInt64Param(c, "rid")
		if !ok {
			return
		}
		if err := s.Page.Routes().Edit(rid); err != nil {
			respondErr(c, err)
			return
		}
		respondSnapshot(c, s)
	}
}

// @Summary  Submit the route form
// @Param    sid  path  string       true  "Session ID"
// @Param    req  body  routes.Form  true  "raw form input"
// @Success  200 {object} view.Snapshot
// @Failure  409 {object} ErrorResponse "submission in flight"
// @Failure  422 {object} ValidationErrorResponse
// @Failure  502 {object} ErrorResponse
// @Router   /sessions/{sid}/routes/submit [post]
func handleSubmitRoute(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, svcs)
		if !ok {
			return
		}
		var form routes.Form
		if err := c.ShouldBindJSON(&form); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := s.Page.Routes().Submit(c.Request.Context(), form); err != nil {
			respondErr(c, err)
			return
		}
		respondSnapshot(c, s)
	}
}

// @Summary  Delete a route (asks for confirmation)
// @Param    sid        path    string  true   "Session ID"
// @Param    rid        path    int     true   "Route ID"
// @Param    X-Confirm  header  string  false  "confirm label of the prompt"
// @Success  200 {object} view.Snapshot
// @Failure  409 {object} ConfirmationResponse
// @Failure  502 {object} ErrorResponse
// @Router   /sessions/{sid}/routes/{rid} [delete]
func handleDeleteRoute(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, svcs)
		if !ok {
			return
		}
		rid, ok := parseInt64Param(c, "rid")
		if !ok {
			return
		}
		p := promptFrom(c)
		if err := s.Page.Routes().Delete(c.Request.Context(), rid, p); err != nil {
			if respondDeclined(c, p, err) {
				return
			}
			respondErr(c, err)
			return
		}
		respondSnapshot(c, s)
	}
}

// @Summary  Show or hide the schedules of a route
// @Param    sid  path  string  true  "Session ID"
// @Param    rid  path  int     true  "Route ID"
// @Success  200 {object} view.Snapshot
// @Failure  502 {object} ErrorResponse
// @Router   /sessions/{sid}/routes/{rid}/schedules [post]
func handleToggleSchedules(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, svcs)
		if !ok {
			return
		}
		rid, ok := parseInt64Param(c, "rid")
		if !ok {
			return
		}
		if err := s.Page.Schedules().Toggle(c.Request.Context(), rid); err != nil {
			respondErr(c, err)
			return
		}
		respondSnapshot(c, s)
	}
}
