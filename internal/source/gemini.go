package source

import (
	"bytes"
	"context"
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
	// Gemini API endpoint which supports API keys
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	// DefaultImagenModel is used when the settings name no specific model.
	DefaultImagenModel = "imagen-4.0-generate-001"
)

// GeminiGenerator creates images with Google's Imagen models through the
// Gemini API.
type GeminiGenerator struct {
	APIKey   string
	BaseURL  string
	Model    string
	Settings *GenSettings
	Client   *http.Client
	Timeout  time.Duration
}

type imagenRequest struct {
	Instances  []imagenInstance `json:"instances"`
	Parameters imagenParameters `json:"parameters"`
}

type imagenInstance struct {
	Prompt string `json:"prompt"`
}

type imagenParameters struct {
	SampleCount      int    `json:"sampleCount"`
	AspectRatio      string `json:"aspectRatio,omitempty"`
	PersonGeneration string `json:"personGeneration,omitempty"`
}

type imagenResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		MimeType           string `json:"mimeType"`
	} `json:"predictions"`
}

// NewGeminiGenerator returns a generator using apiKey. settings supplies the
// system prompt and, when it names an imagen-* model, the model id.
func NewGeminiGenerator(apiKey string, settings *GenSettings) *GeminiGenerator {
	if settings == nil {
		settings = NewGenSettings()
	}
	return &GeminiGenerator{
		APIKey:   apiKey,
		BaseURL:  defaultGeminiBaseURL,
		Model:    DefaultImagenModel,
		Settings: settings,
		Client:   &http.Client{},
		Timeout:  DefaultGenerateTimeout,
	}
}

// Generate requests one image for prompt.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (*imaging.PixelBuffer, error) {
	if g.APIKey == "" {
		return nil, apperrors.NotAvailable("Gemini image generation is not configured")
	}
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	opts := g.Settings.Options()
	model := g.Model
	if strings.HasPrefix(opts.Model, "imagen-") {
		model = opts.Model
	}

	body, err := json.Marshal(imagenRequest{
		Instances: []imagenInstance{{Prompt: composePrompt(opts.SystemPrompt, prompt)}},
		Parameters: imagenParameters{
			SampleCount:      1,
			AspectRatio:      "4:3",
			PersonGeneration: "allow_adult",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// models/{model}:predict
	url := fmt.Sprintf("%s/models/%s:predict", strings.TrimRight(g.BaseURL, "/"), model)
	logger.Debug("API request", "provider", "imagen", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.APIKey)

	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, apperrors.Upstream("Gemini image generation", unwrapURLError(ctx, err))
	}
	defer resp.Body.Close()

	respBody, err := readLimited(resp.Body, DefaultMaxImageBytes*2)
	if err != nil {
		return nil, apperrors.Upstream("Gemini image generation", err)
	}
	logger.Debug("API response", "provider", "imagen", "status_code", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Wrap(apperrors.CodeSourceUpstream, "Gemini image generation failed",
			fmt.Errorf("API error %d: %s", resp.StatusCode, truncate(string(respBody), 200)))
	}

	var out imagenResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeSourceUpstream, "Gemini returned malformed JSON", err)
	}
	if len(out.Predictions) == 0 || out.Predictions[0].BytesBase64Encoded == "" {
		return nil, apperrors.New(apperrors.CodeSourceUpstream, "no images generated")
	}
	return decodeBase64Image(out.Predictions[0].BytesBase64Encoded, "Gemini image generation")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
