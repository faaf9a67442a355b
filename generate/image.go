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
	"time"

	"blogarize/artifact"
	"blogarize/config"
	"blogarize/types"
)

// Illustrator generates one header image through the image backend and
// downloads it to the target artifact path.
type Illustrator struct {
	cfg        *config.Config
	apiKey     string
	httpClient *http.Client
}

func NewIllustrator(cfg *config.Config) *Illustrator {
	return &Illustrator{
		cfg:        cfg,
		apiKey:     os.Getenv("OPENAI_API_KEY"),
		httpClient: &http.Client{Timeout: cfg.Timeouts.Image()},
	}
}

type imageRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Size    string `json:"size"`
	Quality string `json:"quality"`
	N       int    `json:"n"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Illustrate returns the path of the header image for target. An existing
// non-empty file is a pure cache hit: the image is not regenerated even if
// the prompt has since changed.
func (il *Illustrator) Illustrate(ctx context.Context, prompt, target string) (string, error) {
	if artifact.ExistsNonEmpty(target) {
		log.Printf("[image] header image already exists: %s", target)
		return target, nil
	}

	log.Printf("[image] generating header image → %s", target)
	imageURL, err := il.generate(ctx, prompt)
	if err != nil {
		return "", types.Stagef(types.ErrGeneration, "could not generate header image: %v", err)
	}

	// The signed URL occasionally times out; retry the download a few times
	// before giving up.
	for attempt := 1; attempt <= 3; attempt++ {
		err = il.download(ctx, imageURL, target)
		if err == nil {
			log.Printf("[image] ✅ header image saved: %s", target)
			return target, nil
		}
		log.Printf("[image] download attempt %d failed: %v", attempt, err)
		time.Sleep(time.Duration(attempt) * 2 * time.Second)
	}
	return "", types.Stagef(types.ErrGeneration, "could not download header image: %v", err)
}

func (il *Illustrator) generate(ctx context.Context, prompt string) (string, error) {
	if il.apiKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY not set")
	}

	reqBody := imageRequest{
		Model:   il.cfg.OpenAI.ImageModel,
		Prompt:  prompt,
		Size:    il.cfg.OpenAI.ImageSize,
		Quality: il.cfg.OpenAI.ImageQuality,
		N:       il.cfg.OpenAI.ImageCount,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", il.cfg.OpenAI.BaseURL+"/images/generations", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+il.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := il.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("image request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var imgResp imageResponse
	if err := json.Unmarshal(respBytes, &imgResp); err != nil {
		return "", fmt.Errorf("parse image response: %w", err)
	}
	if imgResp.Error != nil {
		return "", fmt.Errorf("backend error: %s", imgResp.Error.Message)
	}
	if len(imgResp.Data) == 0 || imgResp.Data[0].URL == "" {
		return "", fmt.Errorf("backend returned no image URL")
	}
	return imgResp.Data[0].URL, nil
}

func (il *Illustrator) download(ctx context.Context, imageURL, target string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return err
	}

	resp, err := il.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d fetching image", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(data) < 100 {
		return fmt.Errorf("response too small (%d bytes) for an image", len(data))
	}
	return artifact.WriteFile(target, data)
}
