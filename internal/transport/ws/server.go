// Package ws provides the WebSocket transport for streaming turns.
package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/companion-labs/voicerelay/internal/service"
)

// Server handles streaming-turn WebSocket connections.
type Server struct {
	svc      *service.Service
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(svc *service.Service, logger *zap.Logger) *Server {
	return &Server{
		svc:    svc,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes registers routes with the echo server.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/llm", s.HandleStream)
}

// turnMessage is one inbound streaming-turn request.
type turnMessage struct {
	SessionID  string `json:"session_id,omitempty"`
	Transcript string `json:"transcript"`
}

// chunkEvent carries one slice of the assistant reply.
type chunkEvent struct {
	Chunk string `json:"chunk"`
}

// doneEvent terminates one turn. TTSURL is omitted when synthesis failed.
type doneEvent struct {
	Done   bool   `json:"done"`
	TTSURL string `json:"tts_url,omitempty"`
}

// errorEvent reports a per-turn failure. The connection stays open.
type errorEvent struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// HandleStream handles WebSocket upgrade and the per-connection turn loop.
// Each inbound message is one turn; the reply streams back as chunk events
// followed by a done event. Turn failures are reported in-band and never
// close the connection.
func (s *Server) HandleStream(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Error("failed to upgrade websocket", zap.Error(err))
		return err
	}
	defer conn.Close()

	ctx := c.Request().Context()
	for {
		var msg turnMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket read failed", zap.Error(err))
			}
			return nil
		}

		if msg.Transcript == "" {
			if err := conn.WriteJSON(errorEvent{Error: "no_transcript"}); err != nil {
				return nil
			}
			continue
		}

		result, err := s.svc.StreamTurn(ctx, msg.SessionID, msg.Transcript)
		if err != nil {
			s.logger.Warn("stream turn failed", zap.Error(err))
			if err := conn.WriteJSON(errorEvent{Error: "llm_error", Detail: err.Error()}); err != nil {
				return nil
			}
			continue
		}

		for _, chunk := range result.Chunks {
			if err := conn.WriteJSON(chunkEvent{Chunk: chunk}); err != nil {
				return nil
			}
		}

		done := doneEvent{Done: true}
		if result.TTSFile != "" {
			done.TTSURL = "/audio/tts/" + result.TTSFile
		}
		if err := conn.WriteJSON(done); err != nil {
			return nil
		}
	}
}
