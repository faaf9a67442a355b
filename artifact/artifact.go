package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Kind names one stage output. Every artifact for a job shares the job's
// base identifier and differs only in the suffix bound to its kind.
type Kind string

const (
	Source     Kind = "source"
	Audio      Kind = "audio"
	Transcript Kind = "transcript"
	Summary    Kind = "summary"
	Outline    Kind = "outline"
	Blog       Kind = "blog"
	Image      Kind = "image"
)

var suffixes = map[Kind]string{
	Source:     ".mp4",
	Audio:      ".wav",
	Transcript: ".txt",
	Summary:    ".md",
	Outline:    "-outline.md",
	Blog:       "-blog.html",
	Image:      "-dalle.png",
}

// derived are the kinds invalidated when a source changes, in deletion order.
var derived = []Kind{Audio, Transcript, Summary, Outline, Blog, Image}

// Store maps (base identifier, kind) to a path under one directory and
// answers completeness questions. A stage consults it before doing real
// work, which is what makes every stage idempotent.
type Store struct {
	Dir string
}

func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// Path returns the deterministic file path for a kind of artifact.
func (s *Store) Path(base string, kind Kind) string {
	return filepath.Join(s.Dir, base+suffixes[kind])
}

// Complete reports whether an artifact exists and is non-empty. This is the
// universal completion marker; there is no job database behind it.
func (s *Store) Complete(base string, kind Kind) bool {
	return ExistsNonEmpty(s.Path(base, kind))
}

// Invalidate deletes every derived artifact for a base identifier. Called
// when a re-uploaded source differs from the file on disk so stale outputs
// never survive a changed input.
func (s *Store) Invalidate(base string) error {
	for _, kind := range derived {
		path := s.Path(base, kind)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("invalidate %s: %w", path, err)
		}
	}
	return nil
}

// ExistsNonEmpty reports whether path names a file with at least one byte.
func ExistsNonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// WordCount returns the number of whitespace-delimited words in the file
// after stripping markup, or 0 if the file is absent.
func WordCount(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	return CountWords(string(data))
}

// CountWords strips HTML tags and counts the remaining words.
func CountWords(html string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return len(strings.Fields(html))
	}
	return len(strings.Fields(doc.Text()))
}

// WriteFile writes data through a temp file in the same directory and
// renames it into place, so a racing reader never sees a partial artifact.
func WriteFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// AppendFile appends data to path, creating it if needed. Used by the
// accumulating outline/section writes within one blog assembly.
func AppendFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
