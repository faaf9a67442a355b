package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Paths      PathsConfig      `yaml:"paths"`
	Acquire    AcquireConfig    `yaml:"acquire"`
	Audio      AudioConfig      `yaml:"audio"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Blog       BlogConfig       `yaml:"blog"`
	Timeouts   TimeoutsConfig   `yaml:"timeouts"`
}

type ServerConfig struct {
	Addr               string `yaml:"addr"`
	ProgressCadenceSec int    `yaml:"progress_cadence_sec"`
}

type PathsConfig struct {
	Uploads string `yaml:"uploads"`
	Logs    string `yaml:"logs"`
}

type AcquireConfig struct {
	AllowedHosts []string `yaml:"allowed_hosts"`
	StreamFormat string   `yaml:"stream_format"` // yt-dlp -f selector, audio-only
}

type AudioConfig struct {
	Codec      string `yaml:"codec"`
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
}

type TranscribeConfig struct {
	WhisperModel string `yaml:"whisper_model"`
	Language     string `yaml:"language"`
}

type OpenAIConfig struct {
	BaseURL      string  `yaml:"base_url"`
	ChatModel    string  `yaml:"chat_model"`
	Temperature  float64 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
	TopP         float64 `yaml:"top_p"`
	ImageModel   string  `yaml:"image_model"`
	ImageSize    string  `yaml:"image_size"`
	ImageQuality string  `yaml:"image_quality"`
	ImageCount   int     `yaml:"image_count"`
}

type BlogConfig struct {
	TargetWordCount int `yaml:"target_word_count"`
	// CompleteFraction is the fuzzy-completion threshold: an existing blog
	// file whose word count is at least CompleteFraction * TargetWordCount
	// is treated as finished and not regenerated.
	CompleteFraction float64 `yaml:"complete_fraction"`
}

type TimeoutsConfig struct {
	FetchSec      int `yaml:"fetch_sec"`
	ConvertSec    int `yaml:"convert_sec"`
	TranscribeSec int `yaml:"transcribe_sec"`
	GenerateSec   int `yaml:"generate_sec"`
	ImageSec      int `yaml:"image_sec"`
}

// Load reads config.yaml, applies defaults and returns a Config struct
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a Config with every field at its default value. Used by
// tests and as the fallback when no config.yaml is present.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":5000"
	}
	if c.Server.ProgressCadenceSec == 0 {
		c.Server.ProgressCadenceSec = 1
	}
	if c.Paths.Uploads == "" {
		c.Paths.Uploads = "uploads"
	}
	if c.Paths.Logs == "" {
		c.Paths.Logs = "logs"
	}
	if len(c.Acquire.AllowedHosts) == 0 {
		c.Acquire.AllowedHosts = []string{"youtube.com", "www.youtube.com", "m.youtube.com"}
	}
	if c.Acquire.StreamFormat == "" {
		c.Acquire.StreamFormat = "bestaudio[ext=m4a]/bestaudio"
	}
	if c.Audio.Codec == "" {
		c.Audio.Codec = "pcm_s32le"
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 44100
	}
	if c.Audio.Channels == 0 {
		c.Audio.Channels = 2
	}
	if c.Transcribe.WhisperModel == "" {
		c.Transcribe.WhisperModel = "base"
	}
	if c.Transcribe.Language == "" {
		c.Transcribe.Language = "en"
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.OpenAI.ChatModel == "" {
		c.OpenAI.ChatModel = "gpt-4-turbo-preview"
	}
	if c.OpenAI.Temperature == 0 {
		c.OpenAI.Temperature = 0.3
	}
	if c.OpenAI.MaxTokens == 0 {
		c.OpenAI.MaxTokens = 2500
	}
	if c.OpenAI.TopP == 0 {
		c.OpenAI.TopP = 1.0
	}
	if c.OpenAI.ImageModel == "" {
		c.OpenAI.ImageModel = "dall-e-3"
	}
	if c.OpenAI.ImageSize == "" {
		c.OpenAI.ImageSize = "1792x1024"
	}
	if c.OpenAI.ImageQuality == "" {
		c.OpenAI.ImageQuality = "hd"
	}
	if c.OpenAI.ImageCount == 0 {
		c.OpenAI.ImageCount = 1
	}
	if c.Blog.TargetWordCount == 0 {
		c.Blog.TargetWordCount = 2500
	}
	if c.Blog.CompleteFraction == 0 {
		c.Blog.CompleteFraction = 0.8
	}
	if c.Timeouts.FetchSec == 0 {
		c.Timeouts.FetchSec = 300
	}
	if c.Timeouts.ConvertSec == 0 {
		c.Timeouts.ConvertSec = 300
	}
	if c.Timeouts.TranscribeSec == 0 {
		c.Timeouts.TranscribeSec = 900
	}
	if c.Timeouts.GenerateSec == 0 {
		c.Timeouts.GenerateSec = 180
	}
	if c.Timeouts.ImageSec == 0 {
		c.Timeouts.ImageSec = 180
	}
}

func (c *Config) validate() error {
	if c.Blog.CompleteFraction < 0 || c.Blog.CompleteFraction > 1 {
		return fmt.Errorf("blog.complete_fraction must be within [0,1], got %v", c.Blog.CompleteFraction)
	}
	if c.Blog.TargetWordCount < 1 {
		return fmt.Errorf("blog.target_word_count must be positive, got %d", c.Blog.TargetWordCount)
	}
	return nil
}

// ProgressCadence returns the SSE emit interval as a duration.
func (c *Config) ProgressCadence() time.Duration {
	return time.Duration(c.Server.ProgressCadenceSec) * time.Second
}

// Timeout helpers convert the yaml second counts into durations.

func (t TimeoutsConfig) Fetch() time.Duration      { return time.Duration(t.FetchSec) * time.Second }
func (t TimeoutsConfig) Convert() time.Duration    { return time.Duration(t.ConvertSec) * time.Second }
func (t TimeoutsConfig) Transcribe() time.Duration { return time.Duration(t.TranscribeSec) * time.Second }
func (t TimeoutsConfig) Generate() time.Duration   { return time.Duration(t.GenerateSec) * time.Second }
func (t TimeoutsConfig) Image() time.Duration      { return time.Duration(t.ImageSec) * time.Second }
