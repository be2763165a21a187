package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/companion-labs/voicerelay/internal/adapter/voice"
	"github.com/companion-labs/voicerelay/internal/domain"
	"github.com/companion-labs/voicerelay/internal/store"
)

const (
	noInputReply     = "(no input text)"
	noAssistantReply = "(no assistant response)"
	emptyReply       = "(empty response)"

	// StreamChunkSize is the number of characters per streamed chunk.
	StreamChunkSize = 120
)

func heardFallback(text string) string {
	return fmt.Sprintf("I heard: '%s'. How can I help you further?", text)
}

// AudioTurnResult is the outcome of one audio turn.
type AudioTurnResult struct {
	Transcript    string
	AssistantText string
	TTSFile       string
}

// TextTurnResult is the outcome of one text turn. TTSFile is empty when
// synthesis failed.
type TextTurnResult struct {
	Reply   string
	TTSFile string
}

// StreamTurnResult is the outcome of one streaming turn.
type StreamTurnResult struct {
	Chunks  []string
	TTSFile string
}

// AudioTurn runs one conversational turn over uploaded audio. Transcription
// and synthesis failures degrade to fallbacks; only staging failures and
// unknown sessions surface as errors.
func (s *Service) AudioTurn(ctx context.Context, sessionID string, audio []byte, filename, voiceProfile string) (*AudioTurnResult, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if voiceProfile == "" {
		// A cloned per-user voice, when one exists.
		if profile, err := voice.EnsureProfile(ctx, session.UserName); err == nil {
			voiceProfile = profile
		}
	}

	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".wav"
	}

	// Park the upload in temp storage first so the original bytes survive the
	// turn regardless of what the adapters do with them.
	tmpPath, err := stageUpload(audio, ext)
	if err != nil {
		return nil, err
	}

	transcript := s.transcribe(ctx, audio, ext)

	// The upload is cached either way; it doubles as the tts artifact when
	// synthesis fails.
	uploaded, err := s.artifacts.Ingest(tmpPath, ext)
	if err != nil {
		os.Remove(tmpPath)
		s.logger.Error("failed to cache uploaded audio", zap.Error(err))
	}

	assistantText := noAssistantReply
	if transcript != "" {
		reply, err := s.complete(ctx, sessionID, transcript)
		if err != nil || reply == "" {
			if err != nil {
				s.logger.Warn("completion failed, using fallback reply", zap.Error(err))
			}
			assistantText = heardFallback(transcript)
		} else {
			assistantText = reply
		}
		s.appendMessage(ctx, sessionID, domain.RoleUser, transcript)
		s.appendMessage(ctx, sessionID, domain.RoleAssistant, assistantText)
	}

	ttsFile := uploaded
	if name, err := s.synthesizer.Synthesize(ctx, assistantText, voiceProfile, ""); err != nil {
		s.logger.Warn("synthesis failed, falling back to uploaded audio", zap.Error(err))
	} else {
		ttsFile = name
	}

	return &AudioTurnResult{
		Transcript:    transcript,
		AssistantText: assistantText,
		TTSFile:       ttsFile,
	}, nil
}

// TextTurn runs one conversational turn over raw text. An empty input
// short-circuits with the no-input reply and performs no external calls.
// The session id is optional; without one the turn runs single-shot.
func (s *Service) TextTurn(ctx context.Context, sessionID, text string) (*TextTurnResult, error) {
	if text == "" {
		return &TextTurnResult{Reply: noInputReply}, nil
	}
	if sessionID != "" {
		if _, err := s.store.GetSession(ctx, sessionID); err != nil {
			return nil, err
		}
	}

	reply, err := s.complete(ctx, sessionID, text)
	if err != nil {
		s.logger.Warn("completion failed, using fallback reply", zap.Error(err))
		reply = heardFallback(text)
	} else if reply == "" {
		reply = emptyReply
	}
	s.appendMessage(ctx, sessionID, domain.RoleUser, text)
	s.appendMessage(ctx, sessionID, domain.RoleAssistant, reply)

	result := &TextTurnResult{Reply: reply}
	if name, err := s.synthesizer.Synthesize(ctx, reply, "", ""); err != nil {
		s.logger.Warn("synthesis failed, omitting tts artifact", zap.Error(err))
	} else {
		result.TTSFile = name
	}
	return result, nil
}

// StreamTurn runs one turn of the streaming protocol. A completion failure
// is returned to the caller so the channel can report it and stay open;
// synthesis failure only omits the tts artifact.
func (s *Service) StreamTurn(ctx context.Context, sessionID, transcript string) (*StreamTurnResult, error) {
	reply, err := s.complete(ctx, sessionID, transcript)
	if err != nil {
		return nil, err
	}
	if reply == "" {
		reply = emptyReply
	}
	s.appendMessage(ctx, sessionID, domain.RoleUser, transcript)
	s.appendMessage(ctx, sessionID, domain.RoleAssistant, reply)

	result := &StreamTurnResult{Chunks: ChunkText(reply, StreamChunkSize)}
	if name, err := s.synthesizer.Synthesize(ctx, reply, "", ""); err != nil {
		s.logger.Warn("synthesis failed, omitting tts artifact", zap.Error(err))
	} else {
		result.TTSFile = name
	}
	return result, nil
}

// complete builds the bounded-history prompt when a session is known and
// sends it to the completion service. A prompt-build failure degrades to an
// empty history rather than failing the turn.
func (s *Service) complete(ctx context.Context, sessionID, userText string) (string, error) {
	content := userText
	if sessionID != "" {
		prompt, err := s.store.BuildPrompt(ctx, sessionID, userText)
		if err != nil {
			s.logger.Warn("prompt build failed, degrading to empty history", zap.Error(err))
		} else {
			content = prompt
		}
	}
	return s.completer.Complete(ctx, store.SystemPrompt(), content)
}

// transcribe attempts transcription and returns "" on any failure.
func (s *Service) transcribe(ctx context.Context, audio []byte, ext string) string {
	if s.transcriber == nil {
		return ""
	}
	tctx, cancel := context.WithTimeout(ctx, s.transcribeTimeout)
	defer cancel()

	transcript, err := s.transcriber.Transcribe(tctx, audio, ext, s.language)
	if err != nil {
		s.logger.Warn("transcription failed, continuing without transcript", zap.Error(err))
		return ""
	}
	return transcript
}

// appendMessage persists one turn message. Persistence failure is logged and
// never fails the turn.
func (s *Service) appendMessage(ctx context.Context, sessionID, role, content string) {
	if sessionID == "" {
		return
	}
	if err := s.store.AppendMessage(ctx, sessionID, role, content); err != nil {
		s.logger.Warn("failed to persist turn message", zap.String("role", role), zap.Error(err))
	}
}

// stageUpload writes audio to a temporary file and returns its path. The
// file is later moved into the artifact cache.
func stageUpload(audio []byte, ext string) (string, error) {
	tmp, err := os.CreateTemp("", "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}
	if _, err := tmp.Write(audio); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}
	return tmp.Name(), nil
}

// ChunkText splits text into ordered chunks of at most size characters. The
// concatenation of the chunks equals the input exactly.
func ChunkText(text string, size int) []string {
	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
