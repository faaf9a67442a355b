package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/yuin/goldmark"

	"blogarize/artifact"
	"blogarize/config"
	"blogarize/types"
)

// Generator is the single parameterized entry point to the text backend.
// Every call persists its rendered output as an artifact; whether an
// existing artifact short-circuits the call is decided by the profile.
type Generator struct {
	cfg        *config.Config
	apiKey     string
	httpClient *http.Client
}

func NewGenerator(cfg *config.Config) *Generator {
	return &Generator{
		cfg:        cfg,
		apiKey:     os.Getenv("OPENAI_API_KEY"),
		httpClient: &http.Client{Timeout: cfg.Timeouts.Generate()},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	TopP        float64       `json:"top_p"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate runs one profile-bound call and persists the post-processed
// response to target. For cache-read profiles a non-empty target is returned
// as-is (rendered from its stored Markdown) without touching the backend.
func (g *Generator) Generate(ctx context.Context, prompt, target string, profile Profile) (string, error) {
	if profile.CacheRead && artifact.ExistsNonEmpty(target) {
		log.Printf("[generate] %s artifact exists, using %s", profile.Name, target)
		return renderMarkdownFile(target)
	}

	log.Printf("[generate] calling text backend, profile=%s", profile.Name)
	raw, err := g.complete(ctx, profile.System, prompt)
	if err != nil {
		return "", types.Stagef(types.ErrGeneration, "could not generate %s: %v", profile.Name, err)
	}

	text := profile.PostProcess(raw)

	if profile.CacheRead {
		err = artifact.WriteFile(target, []byte(text))
	} else {
		err = artifact.AppendFile(target, []byte(text))
	}
	if err != nil {
		return "", types.Stagef(types.ErrGeneration, "could not save %s to %s: %v", profile.Name, target, err)
	}
	return text, nil
}

// complete sends exactly one system message followed by one user message.
func (g *Generator) complete(ctx context.Context, system, user string) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY not set")
	}

	reqBody := chatRequest{
		Model: g.cfg.OpenAI.ChatModel,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: g.cfg.OpenAI.Temperature,
		MaxTokens:   g.cfg.OpenAI.MaxTokens,
		TopP:        g.cfg.OpenAI.TopP,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.cfg.OpenAI.BaseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBytes, &chatResp); err != nil {
		return "", fmt.Errorf("parse chat response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("backend error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("backend returned no choices")
	}
	return chatResp.Choices[0].Message.Content, nil
}

// renderMarkdownFile reads a stored Markdown artifact and renders it to HTML.
func renderMarkdownFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", types.Stagef(types.ErrGeneration, "could not read %s: %v", path, err)
	}
	var buf bytes.Buffer
	if err := goldmark.Convert(data, &buf); err != nil {
		return "", types.Stagef(types.ErrGeneration, "could not render %s: %v", path, err)
	}
	return buf.String(), nil
}
