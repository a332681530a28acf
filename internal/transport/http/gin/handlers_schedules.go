package httpgin

import (
	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/busdesk/internal/service"
	"github.com/kirinyoku/busdesk/internal/service/schedules"
)

// @Summary  Show the create schedule form
// @Param    sid  path  string  true  "Session ID"
// @Success  200 {object} view.Snapshot
// @Router   /sessions/{sid}/schedules/form [post]
func handleShowScheduleForm(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, svcs)
		if !ok {
			return
		}
		s.Page.Schedules().ShowCreate()
		respondSnapshot(c, s)
	}
}

// @Summary  Change schedule form fields
// @Description Route and departure changes derive the arrival time and price.
// @Param    sid  path  string                true  "Session ID"
// @Param    req  body  ScheduleFieldRequest  true  "changed fields"
// @Success  200 {object} view.Snapshot
// @Failure  400 {object} ErrorResponse "unknown route"
// @Router   /sessions/{sid}/schedules/form [patch]
func handlePatchScheduleForm(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, svcs)
		if !ok {
			return
		}
		var req ScheduleFieldRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		sm := s.Page.Schedules()
		if req.RouteID != nil {
			if err := sm.SelectRoute(*req.RouteID); err != nil {
				respondErr(c, err)
				return
			}
		}
		if req.Departure != nil {
			sm.SetDeparture(*req.Departure)
		}
		if req.Arrival != nil {
			sm.SetArrival(*req.Arrival)
		}
		if req.Price != nil {
			sm.SetPrice(*req.Price)
		}
		respondSnapshot(c, s)
	}
}

// @Summary  Cancel the schedule form
// @Param    sid  path  string  true  "Session ID"
// @Success  200 {object} view.Snapshot
// @Router   /sessions/{sid}/schedules/form [delete]
func handleCancelScheduleForm(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, svcs)
		if !ok {
			return
		}
		s.Page.Schedules().Cancel()
		respondSnapshot(c, s)
	}
}

// @Summary  Submit the schedule form
// @Param    sid  path  string  true  "Session ID"
// @Success  200 {object} view.Snapshot
// @Failure  409 {object} ErrorResponse "submission in flight"
// @Failure  422 {object} ValidationErrorResponse
// @Failure  502 {object} ErrorResponse
// @Router   /sessions/{sid}/schedules/submit [post]
func handleSubmitSchedule(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, svcs)
		if !ok {
			return
		}
		if err := s.Page.Schedules().Submit(c.Request.Context()); err != nil {
			respondErr(c, err)
			return
		}
		respondSnapshot(c, s)
	}
}

// @Summary  Edit a schedule of an expanded route
// @Param    sid       path   string  true  "Session ID"
// @Param    scid      path   int     true  "Schedule ID"
// @Param    route_id  query  int     true  "Route ID"
// @Success  200 {object} view.Snapshot
// @Failure  404 {object} ErrorResponse
// @Router   /sessions/{sid}/schedules/{scid}/edit [post]
func handleEditSchedule(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, svcs)
		if !ok {
			return
		}
		scid, ok := parseInt64Param(c, "scid")
		if !ok {
			return
		}
		rid, ok := parseInt64Query(c, "route_id")
		if !ok {
			return
		}
		if err := s.Page.EditSchedule(rid, scid); err != nil {
			respondErr(c, err)
			return
		}
		respondSnapshot(c, s)
	}
}

// @Summary  Delete a schedule (asks for confirmation)
// @Param    sid        path    string  true   "Session ID"
// @Param    scid       path    int     true   "Schedule ID"
// @Param    route_id   query   int     true   "Route ID"
// @Param    X-Confirm  header  string  false  "confirm label of the prompt"
// @Success  200 {object} view.Snapshot
// @Failure  409 {object} ConfirmationResponse
// @Failure  404 {object} ErrorResponse
// @Router   /sessions/{sid}/schedules/{scid} [delete]
func handleDeleteSchedule(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, svcs)
		if !ok {
			return
		}
		scid, ok := parseInt64Param(c, "scid")
		if !ok {
			return
		}
		rid, ok := parseInt64Query(c, "route_id")
		if !ok {
			return
		}
		p := promptFrom(c)
		if err := s.Page.DeleteSchedule(c.Request.Context(), rid, scid, p); err != nil {
			if respondDeclined(c, p, err) {
				return
			}
			respondErr(c, err)
			return
		}
		respondSnapshot(c, s)
	}
}

// @Summary  Show the generation form
// @Param    sid  path  string  true  "Session ID"
// @Success  200 {object} view.Snapshot
// @Failure  409 {object} ErrorResponse "bus has no routes"
// @Router   /sessions/{sid}/generate/form [post]
func handleShowGenerate(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, svcs)
		if !ok {
			return
		}
		if err := s.Page.Schedules().ShowGenerate(); err != nil {
			respondErr(c, err)
			return
		}
		respondSnapshot(c, s)
	}
}

// @Summary  Cancel the generation form
// @Param    sid  path  string  true  "Session ID"
// @Success  200 {object} view.Snapshot
// @Router   /sessions/{sid}/generate/form [delete]
func handleCancelGenerate(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, svcs)
		if !ok {
			return
		}
		s.Page.Schedules().CancelGenerate()
		respondSnapshot(c, s)
	}
}

// @Summary  Generate schedules for every route of the bus
// @Param    sid  path  string           true  "Session ID"
// @Param    req  body  GenerateRequest  true  "start date and day count"
// @Success  200 {object} view.Snapshot
// @Failure  409 {object} ErrorResponse
// @Failure  422 {object} ValidationErrorResponse
// @Failure  502 {object} ErrorResponse
// @Router   /sessions/{sid}/generate [post]
func handleGenerate(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, svcs)
		if !ok {
			return
		}
		var req GenerateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		form := schedules.GenerateForm{StartDate: req.StartDate, Days: req.Days}
		if err := s.Page.Schedules().Generate(c.Request.Context(), form); err != nil {
			respondErr(c, err)
			return
		}
		respondSnapshot(c, s)
	}
}
