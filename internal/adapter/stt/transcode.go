package stt

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

func hasFFmpeg() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

// transcodeToWAV writes the audio to a temporary file, transcodes it to
// single-channel 16 kHz WAV with ffmpeg, and returns the WAV bytes. Both
// temporary files are removed on every exit path.
func transcodeToWAV(ctx context.Context, audio []byte, ext string) ([]byte, error) {
	in, err := os.CreateTemp("", "stt-in-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp input: %w", err)
	}
	defer os.Remove(in.Name())

	if _, err := in.Write(audio); err != nil {
		in.Close()
		return nil, fmt.Errorf("failed to write temp input: %w", err)
	}
	if err := in.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp input: %w", err)
	}

	out, err := os.CreateTemp("", "stt-out-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp output: %w", err)
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	cmd := exec.CommandContext(ctx, "ffmpeg", "-y", "-i", in.Name(), "-ar", "16000", "-ac", "1", outPath)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w", err)
	}

	return os.ReadFile(outPath)
}
