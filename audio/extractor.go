package audio

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"

	"blogarize/artifact"
	"blogarize/config"
	"blogarize/types"
)

// Extractor converts a source video (or bare audio file) into the canonical
// uncompressed PCM wav used by the transcriber. The format trades size for
// transcription-engine compatibility.
type Extractor struct {
	cfg   *config.Config
	store *artifact.Store

	// runFFmpeg is swapped out by tests.
	runFFmpeg func(ctx context.Context, args ...string) error
}

func New(cfg *config.Config, store *artifact.Store) *Extractor {
	e := &Extractor{cfg: cfg, store: store}
	e.runFFmpeg = runFFmpeg
	return e
}

// Extract produces the audio artifact for base and returns its path. An
// existing non-empty wav is a cache hit. The first attempt treats the input
// as a video container; if ffmpeg rejects it, the input is re-encoded as a
// raw audio file. Both failing is a conversion error.
func (e *Extractor) Extract(ctx context.Context, base string) (string, error) {
	src := e.store.Path(base, artifact.Source)
	dest := e.store.Path(base, artifact.Audio)

	if artifact.ExistsNonEmpty(dest) {
		log.Printf("[audio] audio artifact already exists: %s", dest)
		return dest, nil
	}

	log.Printf("[audio] extracting audio %s → %s", src, dest)
	videoErr := e.runFFmpeg(ctx,
		"-y",
		"-i", src,
		"-map", "0:a:0",
		"-vn",
		"-acodec", e.cfg.Audio.Codec,
		"-ar", strconv.Itoa(e.cfg.Audio.SampleRate),
		"-ac", strconv.Itoa(e.cfg.Audio.Channels),
		dest,
	)
	if videoErr == nil && artifact.ExistsNonEmpty(dest) {
		log.Printf("[audio] ✅ audio extracted: %s", dest)
		return dest, nil
	}

	// Not a valid video container. Audio only?
	log.Printf("[audio] video extraction failed (%v), retrying as raw audio", videoErr)
	audioErr := e.runFFmpeg(ctx,
		"-y",
		"-i", src,
		"-acodec", e.cfg.Audio.Codec,
		"-ar", strconv.Itoa(e.cfg.Audio.SampleRate),
		"-ac", strconv.Itoa(e.cfg.Audio.Channels),
		dest,
	)
	if audioErr == nil && artifact.ExistsNonEmpty(dest) {
		log.Printf("[audio] ✅ audio re-encoded: %s", dest)
		return dest, nil
	}

	os.Remove(dest) // never leave a partial artifact behind
	return "", types.Stagef(types.ErrConversion, "neither a valid video nor audio file: %s: %v", src, audioErr)
}

func runFFmpeg(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}
