package service

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/companion-labs/voicerelay/internal/cache"
	"github.com/companion-labs/voicerelay/internal/config"
	"github.com/companion-labs/voicerelay/internal/domain"
	"github.com/companion-labs/voicerelay/internal/store"
)

type fakeTranscriber struct {
	transcript string
	err        error
	calls      int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, hint, language string) (string, error) {
	f.calls++
	return f.transcript, f.err
}

type fakeCompleter struct {
	reply      string
	err        error
	calls      int
	lastSystem string
	lastUser   string
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	f.calls++
	f.lastSystem = systemPrompt
	f.lastUser = userText
	return f.reply, f.err
}

type fakeSynthesizer struct {
	file     string
	err      error
	calls    int
	lastText string
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text, voiceID, format string) (string, error) {
	f.calls++
	f.lastText = text
	return f.file, f.err
}

type turnFixture struct {
	svc         *Service
	store       *store.SQLiteStore
	artifacts   *cache.Cache
	transcriber *fakeTranscriber
	completer   *fakeCompleter
	synthesizer *fakeSynthesizer
}

func newTurnFixture(t *testing.T) *turnFixture {
	t.Helper()

	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	artifacts, err := cache.New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	f := &turnFixture{
		store:       st,
		artifacts:   artifacts,
		transcriber: &fakeTranscriber{},
		completer:   &fakeCompleter{},
		synthesizer: &fakeSynthesizer{file: "tts_fake.mp3"},
	}
	cfg := &config.Config{SpeechLanguage: "en-US", TranscribeTimeout: time.Second}
	f.svc = New(st, f.transcriber, f.completer, f.synthesizer, artifacts, cfg, zap.NewNop())
	return f
}

func (f *turnFixture) createSession(t *testing.T) string {
	t.Helper()
	sessionID, err := f.svc.NewSession(context.Background(), "alice")
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	return sessionID
}

func TestTextTurnEmptyInput(t *testing.T) {
	f := newTurnFixture(t)

	result, err := f.svc.TextTurn(context.Background(), "", "")
	if err != nil {
		t.Fatalf("TextTurn failed: %v", err)
	}
	if result.Reply != "(no input text)" {
		t.Fatalf("unexpected reply: %q", result.Reply)
	}
	if f.completer.calls != 0 || f.synthesizer.calls != 0 {
		t.Fatalf("expected no external calls, got completer=%d synthesizer=%d", f.completer.calls, f.synthesizer.calls)
	}
}

func TestTextTurnCompletionFailureFallback(t *testing.T) {
	f := newTurnFixture(t)
	f.completer.err = errors.New("upstream down")

	result, err := f.svc.TextTurn(context.Background(), "", "hello")
	if err != nil {
		t.Fatalf("TextTurn failed: %v", err)
	}
	want := "I heard: 'hello'. How can I help you further?"
	if result.Reply != want {
		t.Fatalf("unexpected reply: %q, want %q", result.Reply, want)
	}
	if f.synthesizer.lastText != want {
		t.Fatalf("synthesizer received %q, want fallback reply", f.synthesizer.lastText)
	}
}

func TestTextTurnEmptyCompletion(t *testing.T) {
	f := newTurnFixture(t)

	result, err := f.svc.TextTurn(context.Background(), "", "hello")
	if err != nil {
		t.Fatalf("TextTurn failed: %v", err)
	}
	if result.Reply != "(empty response)" {
		t.Fatalf("unexpected reply: %q", result.Reply)
	}
}

func TestTextTurnSynthesisFailureOmitsArtifact(t *testing.T) {
	f := newTurnFixture(t)
	f.completer.reply = "sure thing"
	f.synthesizer.err = errors.New("no credits")

	result, err := f.svc.TextTurn(context.Background(), "", "hello")
	if err != nil {
		t.Fatalf("TextTurn failed: %v", err)
	}
	if result.Reply != "sure thing" || result.TTSFile != "" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestTextTurnUnknownSession(t *testing.T) {
	f := newTurnFixture(t)

	if _, err := f.svc.TextTurn(context.Background(), "missing", "hello"); !errors.Is(err, store.ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession, got %v", err)
	}
	if f.completer.calls != 0 {
		t.Fatalf("expected no completion call for unknown session")
	}
}

func TestTextTurnPersistsHistory(t *testing.T) {
	f := newTurnFixture(t)
	sessionID := f.createSession(t)

	f.completer.reply = "hello alice"
	if _, err := f.svc.TextTurn(context.Background(), sessionID, "hi"); err != nil {
		t.Fatalf("TextTurn failed: %v", err)
	}

	messages, err := f.store.RecentMessages(context.Background(), sessionID, 10)
	if err != nil {
		t.Fatalf("RecentMessages failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(messages))
	}
	if messages[0].Role != domain.RoleAssistant || messages[1].Role != domain.RoleUser {
		t.Fatalf("unexpected roles: %q, %q", messages[0].Role, messages[1].Role)
	}

	// The next turn's prompt carries the persisted history.
	f.completer.reply = "still here"
	if _, err := f.svc.TextTurn(context.Background(), sessionID, "are you there"); err != nil {
		t.Fatalf("TextTurn failed: %v", err)
	}
	want := "User: hi\nAssistant: hello alice\nUser: are you there"
	if f.completer.lastUser != want {
		t.Fatalf("unexpected prompt:\n%q\nwant:\n%q", f.completer.lastUser, want)
	}
	if !strings.Contains(f.completer.lastSystem, "compassionate") {
		t.Fatalf("expected persona system prompt, got %q", f.completer.lastSystem)
	}
}

func TestAudioTurnEmptyTranscript(t *testing.T) {
	f := newTurnFixture(t)
	sessionID := f.createSession(t)
	f.transcriber.err = errors.New("recognizer unreachable")

	result, err := f.svc.AudioTurn(context.Background(), sessionID, []byte("audio"), "clip.webm", "")
	if err != nil {
		t.Fatalf("AudioTurn failed: %v", err)
	}
	if result.Transcript != "" {
		t.Fatalf("unexpected transcript: %q", result.Transcript)
	}
	if result.AssistantText != "(no assistant response)" {
		t.Fatalf("unexpected assistant text: %q", result.AssistantText)
	}
	if f.completer.calls != 0 {
		t.Fatalf("expected no completion call without a transcript")
	}
}

func TestAudioTurnCompletionFailureFallback(t *testing.T) {
	f := newTurnFixture(t)
	sessionID := f.createSession(t)
	f.transcriber.transcript = "I feel stressed"
	f.completer.err = errors.New("upstream down")

	result, err := f.svc.AudioTurn(context.Background(), sessionID, []byte("audio"), "clip.wav", "")
	if err != nil {
		t.Fatalf("AudioTurn failed: %v", err)
	}
	want := "I heard: 'I feel stressed'. How can I help you further?"
	if result.AssistantText != want {
		t.Fatalf("unexpected assistant text: %q", result.AssistantText)
	}
	if result.TTSFile != "tts_fake.mp3" {
		t.Fatalf("unexpected tts file: %q", result.TTSFile)
	}
}

func TestAudioTurnSynthesisFailureFallsBackToUpload(t *testing.T) {
	f := newTurnFixture(t)
	sessionID := f.createSession(t)
	f.transcriber.transcript = "hello"
	f.completer.reply = "hi there"
	f.synthesizer.err = errors.New("no credits")

	audio := []byte("original-upload-bytes")
	result, err := f.svc.AudioTurn(context.Background(), sessionID, audio, "clip.webm", "")
	if err != nil {
		t.Fatalf("AudioTurn failed: %v", err)
	}
	if !strings.HasSuffix(result.TTSFile, ".webm") {
		t.Fatalf("expected fallback to cached upload, got %q", result.TTSFile)
	}

	path, _, err := f.artifacts.Resolve(result.TTSFile)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cached upload: %v", err)
	}
	if string(got) != string(audio) {
		t.Fatalf("cached upload content mismatch")
	}
}

func TestAudioTurnUnknownSession(t *testing.T) {
	f := newTurnFixture(t)

	if _, err := f.svc.AudioTurn(context.Background(), "missing", []byte("audio"), "clip.wav", ""); !errors.Is(err, store.ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession, got %v", err)
	}
}

func TestStreamTurnChunking(t *testing.T) {
	f := newTurnFixture(t)
	reply := strings.Repeat("x", 2*StreamChunkSize+37)
	f.completer.reply = reply

	result, err := f.svc.StreamTurn(context.Background(), "", "tell me a story")
	if err != nil {
		t.Fatalf("StreamTurn failed: %v", err)
	}
	if len(result.Chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(result.Chunks))
	}
	if strings.Join(result.Chunks, "") != reply {
		t.Fatalf("chunk concatenation does not equal the reply")
	}
	for i, chunk := range result.Chunks[:len(result.Chunks)-1] {
		if len([]rune(chunk)) != StreamChunkSize {
			t.Fatalf("chunk %d has %d characters", i, len([]rune(chunk)))
		}
	}
}

func TestStreamTurnCompletionError(t *testing.T) {
	f := newTurnFixture(t)
	f.completer.err = errors.New("upstream down")

	if _, err := f.svc.StreamTurn(context.Background(), "", "hello"); err == nil {
		t.Fatal("expected completion error to surface")
	}
	if f.synthesizer.calls != 0 {
		t.Fatalf("expected no synthesis after completion failure")
	}
}

func TestChunkText(t *testing.T) {
	cases := []struct {
		text string
		size int
		want []string
	}{
		{"", 120, nil},
		{"short", 120, []string{"short"}},
		{"abcdef", 3, []string{"abc", "def"}},
		{"abcdefg", 3, []string{"abc", "def", "g"}},
	}
	for _, tc := range cases {
		got := ChunkText(tc.text, tc.size)
		if len(got) != len(tc.want) {
			t.Fatalf("ChunkText(%q, %d) = %v, want %v", tc.text, tc.size, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("ChunkText(%q, %d) = %v, want %v", tc.text, tc.size, got, tc.want)
			}
		}
	}
}
