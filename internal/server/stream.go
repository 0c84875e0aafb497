package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/PentesterFlow/PanelProbe/internal/output"
	"github.com/PentesterFlow/PanelProbe/pkg/prober"
)

const (
	wsWriteWait   = 10 * time.Second
	wsRequestWait = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browser clients are served from other origins; CORS rules cover the REST routes.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStream upgrades to a websocket, reads one probe request, and
// pushes every attempt as it happens followed by the final result.
func (s *Server) handleStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(s.config.MaxRequestBytes)
	conn.SetReadDeadline(time.Now().Add(wsRequestWait))

	var req prober.Request
	if err := conn.ReadJSON(&req); err != nil {
		s.send(conn, output.StreamEvent{Type: "error", Data: gin.H{"details": "invalid request: " + err.Error()}})
		return
	}
	conn.SetReadDeadline(time.Time{})

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ProbeTimeout)
	defer cancel()

	// A closed client connection cancels the probe.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	res := s.prober.Stream(ctx, req, func(a prober.Attempt) {
		s.send(conn, output.StreamEvent{Type: "attempt", Data: a})
	})

	if req.Validate() == nil {
		s.record(req, res)
	}
	s.send(conn, output.StreamEvent{Type: "result", Data: res})
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteWait))
}

func (s *Server) send(conn *websocket.Conn, ev output.StreamEvent) {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(ev); err != nil {
		s.logger.WithError(err).Debug("Websocket write failed")
	}
}
