// Package stt provides the transcription adapter for Google Cloud
// Speech-to-Text.
package stt

import (
	"context"
	"fmt"
	"mime"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
)

// TranscribeError wraps any transport or service failure during
// transcription. Callers continue the turn without a transcript rather than
// aborting.
type TranscribeError struct {
	Err error
}

func (e *TranscribeError) Error() string {
	return fmt.Sprintf("transcription failed: %v", e.Err)
}

func (e *TranscribeError) Unwrap() error {
	return e.Err
}

// Client transcribes audio via Google Cloud Speech-to-Text. The speech
// client is dialed per call, relying on Application Default Credentials, so
// the process starts cleanly without Google credentials configured.
type Client struct{}

// NewClient creates a new transcription client.
func NewClient() *Client {
	return &Client{}
}

// Transcribe converts audio bytes to text. Input that is not already a
// WAV/PCM container is transcoded to 16k mono WAV when ffmpeg is available;
// transcoding failure silently falls back to the original bytes. Zero
// recognition results yield an empty string, not an error.
func (c *Client) Transcribe(ctx context.Context, audio []byte, hint, language string) (string, error) {
	ext := extFromHint(hint)
	content := audio
	linear := ext == ".wav" || ext == ".pcm"

	if !linear && hasFFmpeg() {
		if wav, err := transcodeToWAV(ctx, audio, ext); err == nil {
			content = wav
			linear = true
		}
	}

	client, err := speech.NewClient(ctx)
	if err != nil {
		return "", &TranscribeError{Err: fmt.Errorf("failed to create speech client: %w", err)}
	}
	defer client.Close()

	config := &speechpb.RecognitionConfig{
		LanguageCode:               language,
		EnableAutomaticPunctuation: true,
	}
	if linear {
		config.Encoding = speechpb.RecognitionConfig_LINEAR16
		config.SampleRateHertz = 16000
	} else {
		// Let the service infer the encoding.
		config.Encoding = speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: config,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: content},
		},
	})
	if err != nil {
		return "", &TranscribeError{Err: err}
	}

	var segments []string
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			segments = append(segments, result.Alternatives[0].Transcript)
		}
	}
	return strings.Join(segments, " "), nil
}

// extFromHint maps a mime type or extension hint to a file extension,
// defaulting to .wav.
func extFromHint(hint string) string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	switch {
	case hint == "":
		return ".wav"
	case strings.Contains(hint, "/"):
		if exts, err := mime.ExtensionsByType(hint); err == nil && len(exts) > 0 {
			return exts[0]
		}
		return ".wav"
	case strings.HasPrefix(hint, "."):
		return hint
	default:
		return "." + hint
	}
}
