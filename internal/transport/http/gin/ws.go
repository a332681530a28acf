package httpgin

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/kirinyoku/busdesk/internal/service"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
)

// newUpgrader accepts the same origins as the CORS policy. Same host
// requests and clients sending no Origin are always accepted.
func newUpgrader(origins []string) *websocket.Upgrader {
	u := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if allowAllOrigins(origins) {
		u.CheckOrigin = func(*http.Request) bool { return true }
		return u
	}

	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.ToLower(strings.TrimRight(o, "/"))] = true
	}

	u.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if allowed[strings.ToLower(origin)] {
			return true
		}
		ou, err := url.Parse(origin)
		return err == nil && strings.EqualFold(ou.Host, r.Host)
	}
	return u
}

// @Summary  Stream the notices of a session
// @Description Sends the kept notices after ?since=<seq>, then new ones as they happen.
// @Param    sid    path   string  true   "Session ID"
// @Param    since  query  int     false  "last seen sequence number"
// @Router   /sessions/{sid}/notices/ws [get]
func handleNoticeStream(svcs *service.Services, upgrader *websocket.Upgrader, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, svcs)
		if !ok {
			return
		}
		since, _ := strconv.ParseUint(c.Query("since"), 10, 64)

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// the upgrader has already answered with a 403 or 400
			logger.Warn("websocket upgrade failed", "session_id", s.ID, "error", err)
			return
		}
		defer conn.Close()

		// subscribe before reading the backlog so nothing falls in between
		entries, stop := s.Notices.Subscribe()
		defer stop()

		last := since
		for _, e := range s.Notices.Since(since) {
			if err := writeWS(conn, e); err != nil {
				return
			}
			last = e.Seq
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			conn.SetReadLimit(512)
			_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(wsPongWait))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(wsPingPeriod)
		defer ping.Stop()

		for {
			select {
			case <-done:
				return
			case e, open := <-entries:
				if !open {
					_ = conn.WriteControl(
						websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
						time.Now().Add(wsWriteWait),
					)
					return
				}
				if e.Seq <= last {
					continue
				}
				if err := writeWS(conn, e); err != nil {
					return
				}
				last = e.Seq
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}
}

func writeWS(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(v)
}
