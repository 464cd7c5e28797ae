package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayusman/lisa/internal/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Clients on the LAN reach the service by IP
	},
}

// handleWebSocket processes frames streamed over one connection. Every text
// message is a ProcessRequest and gets exactly one ProcessResponse back, in order.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(s.config.MaxBodyBytes)

	logger := s.logger.With(
		zap.String("client_ip", c.ClientIP()),
		zap.String("connection_id", getRequestID(c)))
	logger.Info("websocket client connected")
	defer logger.Info("websocket client disconnected")

	ctx := c.Request.Context()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		requestID := uuid.NewString()

		var resp ProcessResponse
		var req ProcessRequest
		switch err := json.Unmarshal(msg, &req); {
		case err != nil:
			resp = s.reject(requestID, store.SourceWebSocket, err)
		case req.Image == "":
			resp = s.reject(requestID, store.SourceWebSocket, errMissingImage)
		default:
			resp = s.process(ctx, requestID, req.Image, store.SourceWebSocket)
		}

		if err := conn.WriteJSON(resp); err != nil {
			logger.Warn("websocket write failed", zap.Error(err))
			return
		}
	}
}
