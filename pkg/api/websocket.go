package api

import (
	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
)

// streamModelStatus upgrades the connection and hands it to the events
// manager, a gin port of tarsy's wsHandler (pkg/api/handler_ws.go).
func (s *Server) streamModelStatus(c *gin.Context) {
	if s.events == nil {
		writeError(c, newError(KindInternal, "event stream is not available"))
		return
	}

	opts := &websocket.AcceptOptions{}
	if len(s.allowedOrigins) > 0 {
		opts.OriginPatterns = s.allowedOrigins
	} else {
		opts.InsecureSkipVerify = true
	}

	conn, err := websocket.Accept(c.Writer, c.Request, opts)
	if err != nil {
		return
	}

	s.events.HandleConnection(c.Request.Context(), conn)
}
