package blog

import (
	"context"
	"fmt"
	"html"
	"log"
	"os"
	"strings"

	"blogarize/artifact"
	"blogarize/config"
	"blogarize/generate"
	"blogarize/types"
)

// TextGenerator is the slice of the generative stage the assembler needs.
type TextGenerator interface {
	Generate(ctx context.Context, prompt, target string, profile generate.Profile) (string, error)
}

// Assembler builds the full blog document: one outline call, then one
// section call per outline entry, all accumulating into the blog artifact.
type Assembler struct {
	cfg   *config.Config
	store *artifact.Store
	gen   TextGenerator
}

func NewAssembler(cfg *config.Config, store *artifact.Store, gen TextGenerator) *Assembler {
	return &Assembler{cfg: cfg, store: store, gen: gen}
}

// Assemble returns the blog HTML for base. onOutlined, if non-nil, fires
// after the outline call succeeds with the section count; the orchestrator
// uses it to advance progress mid-assembly.
//
// Gate: an existing blog whose word count is at least CompleteFraction of
// the target is close enough to be treated as finished and is returned
// unchanged. Anything shorter is rebuilt from scratch: the file is truncated
// to an <h1> heading and every section is regenerated.
func (a *Assembler) Assemble(ctx context.Context, title, transcript, summary, base string, onOutlined func(sections int)) (string, error) {
	blogPath := a.store.Path(base, artifact.Blog)
	threshold := int(float64(a.cfg.Blog.TargetWordCount) * a.cfg.Blog.CompleteFraction)

	if artifact.ExistsNonEmpty(blogPath) && artifact.WordCount(blogPath) >= threshold {
		log.Printf("[blog] existing blog meets threshold (%d words), reusing %s", threshold, blogPath)
		return readFile(blogPath)
	}

	outlinePath := a.store.Path(base, artifact.Outline)
	// Outline calls append; start from a clean file so a stale partial
	// outline can't leak extra sections into this assembly.
	if err := os.Remove(outlinePath); err != nil && !os.IsNotExist(err) {
		return "", types.Stagef(types.ErrAssembly, "could not reset outline %s: %v", outlinePath, err)
	}

	outlinePrompt := fmt.Sprintf("This is the transcript: %s and the summary you created %s.", transcript, summary)
	outline, err := a.gen.Generate(ctx, outlinePrompt, outlinePath, generate.BlogOutline)
	if err != nil {
		return "", err
	}

	sections := splitSections(outline)
	if len(sections) == 0 {
		return "", types.Stagef(types.ErrAssembly, "malformed outline: no sections in response %q", outline)
	}
	if onOutlined != nil {
		onOutlined(len(sections))
	}

	wordsPerSection := a.cfg.Blog.TargetWordCount / len(sections)
	log.Printf("[blog] %d sections, ~%d words each", len(sections), wordsPerSection)

	heading := "<h1>" + html.EscapeString(title) + "</h1>"
	if err := artifact.WriteFile(blogPath, []byte(heading)); err != nil {
		return "", types.Stagef(types.ErrAssembly, "could not start blog %s: %v", blogPath, err)
	}

	for i, section := range sections {
		log.Printf("[blog] section %d/%d: %q", i+1, len(sections), section)
		prompt := fmt.Sprintf(
			"Write the section about %s. Make sure you start with the section heading as an h2 tag. This section should be approximately %d words minimum.",
			section, wordsPerSection,
		)
		if _, err := a.gen.Generate(ctx, prompt, blogPath, generate.BlogSection); err != nil {
			return "", err
		}
	}

	// The outline has served its purpose; clear it so the next assembly
	// starts fresh.
	if err := artifact.WriteFile(outlinePath, nil); err != nil {
		log.Printf("[blog] warning: could not clear outline %s: %v", outlinePath, err)
	}

	content, err := readFile(blogPath)
	if err != nil {
		return "", err
	}
	log.Printf("[blog] ✅ blog assembled: %s (%d words)", blogPath, artifact.CountWords(content))
	return content, nil
}

func splitSections(outline string) []string {
	var sections []string
	for _, line := range strings.Split(outline, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			sections = append(sections, s)
		}
	}
	return sections
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", types.Stagef(types.ErrAssembly, "could not read blog %s: %v", path, err)
	}
	return string(data), nil
}
