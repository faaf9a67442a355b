package main

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"blogarize/acquire"
	"blogarize/artifact"
	"blogarize/audio"
	"blogarize/blog"
	"blogarize/config"
	"blogarize/generate"
	"blogarize/pipeline"
	"blogarize/progress"
	"blogarize/server"
	"blogarize/transcribe"
)

func main() {
	// Load .env (local dev only; production uses real env vars)
	_ = godotenv.Load()

	cfg, err := config.Load("config.yaml")
	if os.IsNotExist(err) {
		cfg = config.Default()
	} else if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	for _, dir := range []string{cfg.Paths.Uploads, cfg.Paths.Logs} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create dir %s: %v", dir, err)
		}
	}

	logFile, err := os.OpenFile(filepath.Join(cfg.Paths.Logs, "blogarize.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer logFile.Close()
	log.SetOutput(io.MultiWriter(os.Stderr, logFile))

	log.Printf("🎬 blogarize starting — uploads: %s", cfg.Paths.Uploads)

	store := artifact.NewStore(cfg.Paths.Uploads)

	links := acquire.NewLinkAcquirer(cfg, store)
	uploads := acquire.NewUploadAcquirer(store)
	extractor := audio.New(cfg, store)
	transcriber := transcribe.New(cfg, store)
	generator := generate.NewGenerator(cfg)
	assembler := blog.NewAssembler(cfg, store, generator)
	illustrator := generate.NewIllustrator(cfg)

	pipe := pipeline.New(cfg, store, links, uploads, extractor, transcriber, generator, assembler, illustrator)
	registry := progress.NewRegistry()

	srv := server.New(cfg, registry, pipe)
	if err := srv.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
