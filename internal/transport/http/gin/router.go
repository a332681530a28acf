package httpgin

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	redisrepo "github.com/kirinyoku/busdesk/internal/repository/redis"
	"github.com/kirinyoku/busdesk/internal/service"
	"github.com/kirinyoku/busdesk/internal/service/sessions"
)

// Guards holds the optional redis backed protections of booking submit.
type Guards struct {
	Idempotency *redisrepo.IdempotencyStore
	Limiter     *redisrepo.SlidingWindowLimiter
}

type Options struct {
	Guards      Guards
	CORSOrigins []string
}

func NewRouter(
	svcs *service.Services,
	opts Options,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	guards := opts.Guards
	r := gin.New()

	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggingMiddleware(logger), CORS(opts.CORSOrigins))
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": svcs.Sessions.Len()})
	})

	r.GET("/dashboard", handleDashboard(svcs))
	r.GET("/buses/:id/notices", handleJournal(svcs))

	r.POST("/sessions", handleCreateSession(svcs))

	s := r.Group("/sessions/:sid")
	{
		s.GET("", handleGetSession(svcs))
		s.DELETE("", handleCloseSession(svcs))
		s.PUT("/bus", handleSetBus(svcs))
		s.POST("/load", handleLoad(svcs))
		s.GET("/notices/ws", handleNoticeStream(svcs, newUpgrader(opts.CORSOrigins), logger))

		s.POST("/routes/reload", handleReloadRoutes(svcs))
		s.POST("/routes/form", handleShowRouteForm(svcs))
		s.DELETE("/routes/form", handleCancelRouteForm(svcs))
		s.POST("/routes/submit", handleSubmitRoute(svcs))
		s.POST("/routes/:rid/edit", handleEditRoute(svcs))
		s.DELETE("/routes/:rid", handleDeleteRoute(svcs))
		s.POST("/routes/:rid/schedules", handleToggleSchedules(svcs))

		s.POST("/schedules/form", handleShowScheduleForm(svcs))
		s.PATCH("/schedules/form", handlePatchScheduleForm(svcs))
		s.DELETE("/schedules/form", handleCancelScheduleForm(svcs))
		s.POST("/schedules/submit", handleSubmitSchedule(svcs))
		s.POST("/schedules/:scid/edit", handleEditSchedule(svcs))
		s.DELETE("/schedules/:scid", handleDeleteSchedule(svcs))

		s.POST("/generate/form", handleShowGenerate(svcs))
		s.DELETE("/generate/form", handleCancelGenerate(svcs))
		s.POST("/generate", handleGenerate(svcs))

		s.POST("/booking", handleOpenBooking(svcs))
		s.DELETE("/booking", handleCloseBooking(svcs))
		s.POST("/booking/seats/:seat", handleToggleSeat(svcs))
		s.PUT("/booking/applicant", handleApplicant(svcs))
		s.POST("/booking/submit", handleSubmitBooking(svcs, guards, logger))
	}

	return r
}

// --- Helpers ---

func loadSession(c *gin.Context, svcs *service.Services) (*sessions.Session, bool) {
	s, err := svcs.Sessions.Get(c.Param("sid"))
	if err != nil {
		respondErr(c, err)
		return nil, false
	}
	return s, true
}

func respondSnapshot(c *gin.Context, s *sessions.Session) {
	c.JSON(http.StatusOK, s.Page.Snapshot())
}

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseInt64Query(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil || v <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
