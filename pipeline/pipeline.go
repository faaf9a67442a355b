package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"blogarize/artifact"
	"blogarize/config"
	"blogarize/generate"
	"blogarize/progress"
	"blogarize/types"
)

// The stage collaborators, at the width the orchestrator needs them.

type LinkFetcher interface {
	Fetch(ctx context.Context, link string) (title, base string, err error)
}

type UploadSaver interface {
	Save(ctx context.Context, r io.Reader, filename string, declaredSize int64) (title, base string, err error)
}

type AudioExtractor interface {
	Extract(ctx context.Context, base string) (string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, base string) (string, error)
}

type TextGenerator interface {
	Generate(ctx context.Context, prompt, target string, profile generate.Profile) (string, error)
}

type Assembler interface {
	Assemble(ctx context.Context, title, transcript, summary, base string, onOutlined func(sections int)) (string, error)
}

type Illustrator interface {
	Illustrate(ctx context.Context, prompt, target string) (string, error)
}

// PathMapper answers where an artifact of a given kind lives. Satisfied by
// *artifact.Store.
type PathMapper interface {
	Path(base string, kind artifact.Kind) string
}

// Input is one submitted job: exactly one of Link or Upload must be set.
type Input struct {
	Link       string
	Upload     io.Reader
	UploadName string
	UploadSize int64
}

// Pipeline sequences the stages over one input, advancing the job's tracker
// at every checkpoint and halting at the first failing stage.
type Pipeline struct {
	cfg         *config.Config
	paths       PathMapper
	links       LinkFetcher
	uploads     UploadSaver
	extractor   AudioExtractor
	transcriber Transcriber
	generator   TextGenerator
	assembler   Assembler
	illustrator Illustrator
}

func New(
	cfg *config.Config,
	paths PathMapper,
	links LinkFetcher,
	uploads UploadSaver,
	extractor AudioExtractor,
	transcriber Transcriber,
	generator TextGenerator,
	assembler Assembler,
	illustrator Illustrator,
) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		paths:       paths,
		links:       links,
		uploads:     uploads,
		extractor:   extractor,
		transcriber: transcriber,
		generator:   generator,
		assembler:   assembler,
		illustrator: illustrator,
	}
}

// Run executes the full chain for one job. On failure the tracker carries
// the failing stage's message verbatim and the remaining stages never run.
// A failed job never takes the process down with it.
func (p *Pipeline) Run(ctx context.Context, in Input, tracker *progress.Tracker) (*types.Result, error) {
	result, err := p.run(ctx, in, tracker)
	if err != nil {
		log.Printf("[pipeline] ❌ job failed: %v", err)
		tracker.Fail(err.Error())
		return nil, err
	}
	tracker.Complete(result, "Completed.")
	log.Printf("[pipeline] ✅ job complete: %q", result.Title)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, in Input, tracker *progress.Tracker) (*types.Result, error) {
	hasLink := in.Link != ""
	hasUpload := in.Upload != nil
	if hasLink == hasUpload {
		return nil, types.Stagef(types.ErrInvalidInput, "provide exactly one input: either a YouTube link or an MP4 file")
	}

	tracker.Advance(types.StateInit, "Downloading video.")

	var (
		title string
		base  string
		err   error
	)
	if hasLink {
		title, base, err = p.fetchLink(ctx, in.Link)
		if err != nil {
			return nil, err
		}
		tracker.Advance(types.StateDownloaded, "YouTube video downloaded. Converting to audio...")
	} else {
		title, base, err = p.saveUpload(ctx, in)
		if err != nil {
			return nil, err
		}
		tracker.Advance(types.StateDownloaded, "MP4 file uploaded. Converting to audio...")
	}

	if err := p.extract(ctx, base); err != nil {
		return nil, err
	}
	tracker.Advance(types.StateConvertedAudio, "Audio file created. Moving on to transcription.")

	transcript, err := p.transcribe(ctx, base)
	if err != nil {
		return nil, err
	}
	tracker.Advance(types.StateTranscribed, "Transcription complete. Moving on to summarization.")

	summary, err := p.summarize(ctx, base, transcript)
	if err != nil {
		return nil, err
	}
	tracker.Advance(types.StateSummarized, "Summarized. Creating a blog post from the summary.")

	blogHTML, err := p.assemble(ctx, title, transcript, summary, base, func(sections int) {
		tracker.Advance(types.StateOutlined, fmt.Sprintf("Blog outline created (%d sections). Moving on to blog creation.", sections))
	})
	if err != nil {
		return nil, err
	}
	tracker.Advance(types.StateContent, "Blog post assembled. Generating header image.")

	imagePath, err := p.illustrate(ctx, base, summary)
	if err != nil {
		return nil, err
	}
	tracker.Advance(types.StateHeaderImage, "Header image created.")

	return &types.Result{
		Title:       title,
		Transcript:  transcript,
		Summary:     summary,
		Blog:        blogHTML,
		HeaderImage: filepath.Base(imagePath),
	}, nil
}

func (p *Pipeline) fetchLink(ctx context.Context, link string) (string, string, error) {
	ctx, cancel := p.stageContext(ctx, p.cfg.Timeouts.Fetch())
	defer cancel()
	return p.links.Fetch(ctx, link)
}

func (p *Pipeline) saveUpload(ctx context.Context, in Input) (string, string, error) {
	ctx, cancel := p.stageContext(ctx, p.cfg.Timeouts.Fetch())
	defer cancel()
	return p.uploads.Save(ctx, in.Upload, in.UploadName, in.UploadSize)
}

func (p *Pipeline) extract(ctx context.Context, base string) error {
	ctx, cancel := p.stageContext(ctx, p.cfg.Timeouts.Convert())
	defer cancel()
	_, err := p.extractor.Extract(ctx, base)
	return err
}

func (p *Pipeline) transcribe(ctx context.Context, base string) (string, error) {
	ctx, cancel := p.stageContext(ctx, p.cfg.Timeouts.Transcribe())
	defer cancel()
	return p.transcriber.Transcribe(ctx, base)
}

func (p *Pipeline) summarize(ctx context.Context, base, transcript string) (string, error) {
	ctx, cancel := p.stageContext(ctx, p.cfg.Timeouts.Generate())
	defer cancel()
	prompt := fmt.Sprintf("Give me an outline and summary of this text: %s", transcript)
	return p.generator.Generate(ctx, prompt, p.paths.Path(base, artifact.Summary), generate.Summary)
}

func (p *Pipeline) assemble(ctx context.Context, title, transcript, summary, base string, onOutlined func(int)) (string, error) {
	// The assembly makes N+1 generative calls; give it the generate budget
	// per call rather than overall.
	return p.assembler.Assemble(ctx, title, transcript, summary, base, onOutlined)
}

func (p *Pipeline) illustrate(ctx context.Context, base, summary string) (string, error) {
	ctx, cancel := p.stageContext(ctx, p.cfg.Timeouts.Image())
	defer cancel()
	prompt := fmt.Sprintf(
		"Generate an image based on the blog post you created. Do not, under any circumstances, put words in this image. %s.",
		summary,
	)
	return p.illustrator.Illustrate(ctx, prompt, p.paths.Path(base, artifact.Image))
}

func (p *Pipeline) stageContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
