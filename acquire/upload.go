package acquire

import (
	"context"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode"

	"blogarize/artifact"
	"blogarize/types"
)

// UploadAcquirer accepts a direct file upload as the video source.
type UploadAcquirer struct {
	store *artifact.Store

	// probeTitle is swapped out by tests; the default shells out to ffprobe
	// to read the container's embedded title tag.
	probeTitle func(ctx context.Context, path string) string
}

func NewUploadAcquirer(store *artifact.Store) *UploadAcquirer {
	a := &UploadAcquirer{store: store}
	a.probeTitle = probeTitleTag
	return a
}

// Save writes an uploaded stream into the uploads directory and returns the
// title and base identifier.
//
// If a file with the same name already exists and the client-declared size
// differs from the size on disk, the source is overwritten and every derived
// artifact for that base is deleted, so stale outputs never survive a
// changed input. If the sizes match, the existing file is authoritative and
// the stream is ignored.
func (a *UploadAcquirer) Save(ctx context.Context, r io.Reader, filename string, declaredSize int64) (title, base string, err error) {
	base = SanitizeFilename(strings.TrimSuffix(filename, filepath.Ext(filename)))
	if base == "" {
		return "", "", types.Stagef(types.ErrInvalidInput, "unusable upload filename: %q", filename)
	}
	dest := a.store.Path(base, artifact.Source)

	if info, statErr := os.Stat(dest); statErr == nil {
		if declaredSize != info.Size() {
			log.Printf("[acquire] upload size %d differs from existing %d, overwriting %s", declaredSize, info.Size(), dest)
			if err := writeStream(dest, r); err != nil {
				return "", "", types.Stagef(types.ErrAcquisition, "could not save upload %s: %v", filename, err)
			}
			if err := a.store.Invalidate(base); err != nil {
				return "", "", types.Stagef(types.ErrAcquisition, "could not invalidate artifacts for %s: %v", base, err)
			}
		} else {
			log.Printf("[acquire] upload matches existing file, keeping %s", dest)
		}
	} else {
		if err := writeStream(dest, r); err != nil {
			return "", "", types.Stagef(types.ErrAcquisition, "could not save upload %s: %v", filename, err)
		}
		log.Printf("[acquire] ✅ saved upload %s", dest)
	}

	title = a.probeTitle(ctx, dest)
	if title == "" {
		title = TitleFromFilename(base)
	}
	return title, base, nil
}

func writeStream(dest string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return artifact.WriteFile(dest, data)
}

// probeTitleTag asks ffprobe for the container's title tag. An empty string
// means no tag (or no ffprobe) and the caller falls back to the filename.
func probeTitleTag(ctx context.Context, path string) string {
	out, err := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format_tags=title",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// SanitizeFilename reduces a title to a filesystem-safe stem: spaces become
// underscores and anything outside [A-Za-z0-9_.-] is dropped.
func SanitizeFilename(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r == ' ':
			sb.WriteByte('_')
		case r == '_' || r == '-' || r == '.':
			sb.WriteRune(r)
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			sb.WriteRune(r)
		}
	}
	return strings.Trim(sb.String(), "._-")
}

// TitleFromFilename turns a sanitized stem back into a display title:
// underscores become spaces and each word is capitalized.
func TitleFromFilename(base string) string {
	words := strings.Fields(strings.ReplaceAll(base, "_", " "))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
