// Package service implements the turn orchestrator: it sequences
// transcription, prompt construction, completion, and synthesis for the
// three entry protocols, applying a deterministic fallback at every failure
// point so the caller always receives a response.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/companion-labs/voicerelay/internal/cache"
	"github.com/companion-labs/voicerelay/internal/config"
	"github.com/companion-labs/voicerelay/internal/store"
)

// Transcriber converts audio bytes to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, hint, language string) (string, error)
}

// Completer produces an assistant reply for a single-turn prompt.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userText string) (string, error)
}

// Synthesizer converts text to a cached audio artifact and returns its
// filename.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID, format string) (string, error)
}

// Service orchestrates conversational turns.
type Service struct {
	store       store.Store
	transcriber Transcriber
	completer   Completer
	synthesizer Synthesizer
	artifacts   *cache.Cache

	language          string
	transcribeTimeout time.Duration

	logger *zap.Logger
}

// New creates a new turn orchestrator.
func New(st store.Store, transcriber Transcriber, completer Completer, synthesizer Synthesizer, artifacts *cache.Cache, cfg *config.Config, logger *zap.Logger) *Service {
	return &Service{
		store:             st,
		transcriber:       transcriber,
		completer:         completer,
		synthesizer:       synthesizer,
		artifacts:         artifacts,
		language:          cfg.SpeechLanguage,
		transcribeTimeout: cfg.TranscribeTimeout,
		logger:            logger,
	}
}

// NewSession creates a session with a fresh opaque id and returns the id.
func (s *Service) NewSession(ctx context.Context, userName string) (string, error) {
	sessionID := uuid.New().String()
	if err := s.store.CreateSession(ctx, sessionID, userName); err != nil {
		return "", err
	}
	return sessionID, nil
}

// ResolveArtifact maps a cached artifact filename to its on-disk path and
// media type.
func (s *Service) ResolveArtifact(filename string) (string, string, error) {
	return s.artifacts.Resolve(filename)
}
