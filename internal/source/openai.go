package source

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/ironsheep/yail-server/internal/errors"
	"github.com/ironsheep/yail-server/internal/imaging"
	"github.com/ironsheep/yail-server/internal/logger"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultGenerateTimeout bounds a single image generation request.
	DefaultGenerateTimeout = 120 * time.Second
)

// OpenAIGenerator creates images with the OpenAI images API.
type OpenAIGenerator struct {
	APIKey   string
	BaseURL  string
	Settings *GenSettings
	Client   *http.Client
	Timeout  time.Duration
	// Download fetches images the API returns by URL instead of inline.
	Download ImageSource
}

// openAIRequest is the body of POST /images/generations.
type openAIRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size,omitempty"`
	Quality        string `json:"quality,omitempty"`
	Style          string `json:"style,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewOpenAIGenerator returns a generator using apiKey and settings.
func NewOpenAIGenerator(apiKey string, settings *GenSettings) *OpenAIGenerator {
	if settings == nil {
		settings = NewGenSettings()
	}
	return &OpenAIGenerator{
		APIKey:   apiKey,
		BaseURL:  defaultOpenAIBaseURL,
		Settings: settings,
		Client:   &http.Client{},
		Timeout:  DefaultGenerateTimeout,
		Download: NewURLSource(),
	}
}

// Generate requests one image for prompt.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (*imaging.PixelBuffer, error) {
	if g.APIKey == "" {
		return nil, apperrors.NotAvailable("OpenAI image generation is not configured")
	}
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	opts := g.Settings.Options()
	body, err := json.Marshal(buildOpenAIRequest(opts, prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimRight(g.BaseURL, "/") + "/images/generations"
	logger.Debug("API request", "provider", "openai", "url", url, "model", opts.Model)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.APIKey)

	resp, err := g.client().Do(req)
	if err != nil {
		return nil, apperrors.Upstream("image generation", unwrapURLError(ctx, err))
	}
	defer resp.Body.Close()

	respBody, err := readLimited(resp.Body, DefaultMaxImageBytes*2)
	if err != nil {
		return nil, apperrors.Upstream("image generation", err)
	}
	logger.Debug("API response", "provider", "openai", "status_code", resp.StatusCode)

	var out openAIResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeSourceUpstream, "image generation returned malformed JSON", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return nil, apperrors.Wrap(apperrors.CodeSourceUpstream, "image generation failed", fmt.Errorf("API error %d: %s", resp.StatusCode, msg))
	}
	if len(out.Data) == 0 {
		return nil, apperrors.New(apperrors.CodeSourceUpstream, "no images generated")
	}

	img := out.Data[0]
	switch {
	case img.B64JSON != "":
		return decodeBase64Image(img.B64JSON, "image generation")
	case img.URL != "" && g.Download != nil:
		return g.Download.Fetch(ctx, img.URL)
	}
	return nil, apperrors.New(apperrors.CodeSourceUpstream, "image generation returned no image data")
}

// buildOpenAIRequest applies only the options each model accepts.
func buildOpenAIRequest(opts GenOptions, prompt string) openAIRequest {
	req := openAIRequest{
		Model:  opts.Model,
		Prompt: composePrompt(opts.SystemPrompt, prompt),
		N:      1,
		Size:   opts.Size,
	}
	switch opts.Model {
	case "dall-e-3":
		req.Quality = opts.Quality
		req.Style = opts.Style
		req.ResponseFormat = "b64_json"
	case "dall-e-2":
		req.ResponseFormat = "b64_json"
	}
	// gpt-image-1 always answers with b64_json and rejects response_format
	return req
}

func composePrompt(system, prompt string) string {
	if system == "" {
		return prompt
	}
	return system + "\n\n" + prompt
}

func decodeBase64Image(data, what string) (*imaging.PixelBuffer, error) {
	dec := base64.NewDecoder(base64.StdEncoding, strings.NewReader(data))
	pix, err := imaging.Decode(dec)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeSourceUpstream, what+" returned an unreadable image", err)
	}
	return pix, nil
}

func (g *OpenAIGenerator) client() *http.Client {
	if g.Client != nil {
		return g.Client
	}
	return http.DefaultClient
}
