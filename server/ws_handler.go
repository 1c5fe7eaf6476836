package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/techagentng/quizchat/server/response"
)

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleWebsocket subscribes the caller to realtime events. The channel
// only carries server pushes; nothing is replayed on reconnect.
func (s *Server) handleWebsocket() gin.HandlerFunc {
	up := upgrader
	if origin := s.Config.AccessControlAllowOrigin; origin != "" {
		up.CheckOrigin = func(r *http.Request) bool {
			return r.Header.Get("Origin") == origin
		}
	} else {
		up.CheckOrigin = func(r *http.Request) bool { return true }
	}

	return func(c *gin.Context) {
		userID, err := actorID(c, c.Query("userId"), "userId")
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}

		conn, upErr := up.Upgrade(c.Writer, c.Request, nil)
		if upErr != nil {
			s.Logger.Debug().Err(upErr).Msg("websocket upgrade failed")
			return
		}
		s.Hub.Register(userID, conn).ReadPump()
	}
}
