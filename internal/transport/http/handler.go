// Package http provides the HTTP transport for the relay.
package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/companion-labs/voicerelay/internal/cache"
	"github.com/companion-labs/voicerelay/internal/service"
	"github.com/companion-labs/voicerelay/internal/store"
)

// Handler handles HTTP requests.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// NewHandler creates a new handler.
func NewHandler(svc *service.Service, logger *zap.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/session/new", h.NewSession)
	e.POST("/audio/turn", h.AudioTurn)
	e.GET("/audio/tts/:filename", h.GetTTS)
	e.POST("/text/turn", h.TextTurn)
	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// NewSession creates a new conversation session.
// POST /session/new (form field: user_name)
func (h *Handler) NewSession(c echo.Context) error {
	userName := c.FormValue("user_name")
	if userName == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_name is required"})
	}

	sessionID, err := h.svc.NewSession(c.Request().Context(), userName)
	if err != nil {
		h.logger.Error("failed to create session", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
	}

	return c.JSON(http.StatusOK, map[string]string{"session_id": sessionID})
}

// AudioTurn runs one conversational turn over an uploaded audio file.
// POST /audio/turn (form fields: session_id, audio, optional voice_profile)
func (h *Handler) AudioTurn(c echo.Context) error {
	sessionID := c.FormValue("session_id")
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "session_id is required"})
	}

	fileHeader, err := c.FormFile("audio")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "audio upload is required"})
	}
	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("failed to open upload", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to read upload"})
	}
	defer file.Close()
	audio, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("failed to read upload", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to read upload"})
	}

	result, err := h.svc.AudioTurn(c.Request().Context(), sessionID, audio, fileHeader.Filename, c.FormValue("voice_profile"))
	if errors.Is(err, store.ErrUnknownSession) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown session"})
	}
	if err != nil {
		h.logger.Error("audio turn failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "audio turn failed"})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"transcript":     result.Transcript,
		"assistant_text": result.AssistantText,
		"tts_url":        ttsURL(result.TTSFile),
	})
}

// GetTTS serves a cached audio artifact.
// GET /audio/tts/:filename
func (h *Handler) GetTTS(c echo.Context) error {
	path, mediaType, err := h.svc.ResolveArtifact(c.Param("filename"))
	if errors.Is(err, cache.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
	}
	if err != nil {
		h.logger.Error("failed to resolve artifact", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to resolve artifact"})
	}

	c.Response().Header().Set(echo.HeaderContentType, mediaType)
	return c.File(path)
}

type textTurnRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text"`
}

// TextTurn runs one conversational turn over raw text.
// POST /text/turn (JSON body: {text, optional session_id})
func (h *Handler) TextTurn(c echo.Context) error {
	var req textTurnRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	result, err := h.svc.TextTurn(c.Request().Context(), req.SessionID, req.Text)
	if errors.Is(err, store.ErrUnknownSession) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown session"})
	}
	if err != nil {
		h.logger.Error("text turn failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "text turn failed"})
	}

	resp := map[string]interface{}{"reply": result.Reply}
	if result.TTSFile != "" {
		resp["tts_url"] = ttsURL(result.TTSFile)
	}
	return c.JSON(http.StatusOK, resp)
}

// ttsURL maps a cached artifact filename to its serving path.
func ttsURL(filename string) string {
	if filename == "" {
		return ""
	}
	return "/audio/tts/" + filename
}
