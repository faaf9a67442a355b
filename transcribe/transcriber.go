package transcribe

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"blogarize/artifact"
	"blogarize/config"
	"blogarize/types"
)

// Transcriber turns the canonical wav into a plain-text transcript with the
// offline whisper CLI.
type Transcriber struct {
	cfg   *config.Config
	store *artifact.Store

	// runWhisper is swapped out by tests.
	runWhisper func(ctx context.Context, audioPath, outputDir string) error
}

func New(cfg *config.Config, store *artifact.Store) *Transcriber {
	t := &Transcriber{cfg: cfg, store: store}
	t.runWhisper = t.whisperCLI
	return t
}

// Transcribe returns the transcript text for base. An existing transcript
// artifact is read back without recomputation.
func (t *Transcriber) Transcribe(ctx context.Context, base string) (string, error) {
	dest := t.store.Path(base, artifact.Transcript)
	if artifact.ExistsNonEmpty(dest) {
		log.Printf("[transcribe] transcript already exists: %s", dest)
		data, err := os.ReadFile(dest)
		if err != nil {
			return "", types.Stagef(types.ErrTranscription, "could not transcribe %s: %v", base, err)
		}
		return string(data), nil
	}

	audioPath := t.store.Path(base, artifact.Audio)
	log.Printf("[transcribe] running whisper on %s", audioPath)
	if err := t.runWhisper(ctx, audioPath, t.store.Dir); err != nil {
		return "", types.Stagef(types.ErrTranscription, "could not transcribe %s: %v", audioPath, err)
	}

	// Whisper names its output <audio stem>.txt, which is exactly the
	// transcript artifact path.
	data, err := os.ReadFile(dest)
	if err != nil {
		return "", types.Stagef(types.ErrTranscription, "could not transcribe %s: whisper produced no transcript: %v", audioPath, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", types.Stagef(types.ErrTranscription, "could not transcribe %s: empty transcript", audioPath)
	}
	if err := artifact.WriteFile(dest, []byte(text)); err != nil {
		return "", types.Stagef(types.ErrTranscription, "could not transcribe %s: %v", audioPath, err)
	}
	log.Printf("[transcribe] ✅ transcript saved: %s (%d chars)", dest, len(text))
	return text, nil
}

func (t *Transcriber) whisperCLI(ctx context.Context, audioPath, outputDir string) error {
	cmd := exec.CommandContext(ctx,
		"whisper",
		audioPath,
		"--model", t.cfg.Transcribe.WhisperModel,
		"--output_format", "txt",
		"--output_dir", outputDir,
		"--language", t.cfg.Transcribe.Language,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("whisper failed: %w", err)
	}

	// Whisper writes <audio base>.txt into outputDir; make sure it landed
	// where the artifact layout expects it.
	want := strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".txt"
	got := filepath.Join(outputDir, strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))+".txt")
	if got != want {
		if err := os.Rename(got, want); err != nil {
			return err
		}
	}
	return nil
}
