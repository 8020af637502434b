package source

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	apperrors "github.com/ironsheep/yail-server/internal/errors"
)

// Accepted generation setting values.
var (
	OpenAIModels   = []string{"dall-e-3", "dall-e-2", "gpt-image-1"}
	GeminiModels   = []string{"gemini", "imagen"}
	ImageSizes     = []string{"256x256", "512x512", "1024x1024", "1792x1024", "1024x1792"}
	ImageQualities = []string{"standard", "hd"}
	ImageStyles    = []string{"vivid", "natural"}
)

// Default generation settings.
const (
	DefaultModel        = "dall-e-3"
	DefaultSize         = "1024x1024"
	DefaultQuality      = "standard"
	DefaultStyle        = "vivid"
	DefaultSystemPrompt = "You are an image generation assistant. Generate an image in a retro 8-bit computer style, with bold shapes and high contrast."
)

// GenSettings holds the process-wide image generation options. It is shared
// by all connections and safe for concurrent use.
type GenSettings struct {
	mu           sync.RWMutex
	model        string
	size         string
	quality      string
	style        string
	systemPrompt string
}

// GenOptions is a point-in-time copy of GenSettings.
type GenOptions struct {
	Model        string
	Size         string
	Quality      string
	Style        string
	SystemPrompt string
}

// NewGenSettings returns settings populated with the defaults.
func NewGenSettings() *GenSettings {
	return &GenSettings{
		model:        DefaultModel,
		size:         DefaultSize,
		quality:      DefaultQuality,
		style:        DefaultStyle,
		systemPrompt: DefaultSystemPrompt,
	}
}

// Set validates and stores one setting. param is one of model, size,
// quality, style or system_prompt. Rejected values leave the settings
// unchanged and return a protocol.invalid_config error.
func (s *GenSettings) Set(param, value string) error {
	value = strings.TrimSpace(value)
	param = strings.ToLower(param)

	check := func(allowed []string, v string) error {
		if !slices.Contains(allowed, v) {
			return apperrors.New(apperrors.CodeProtocolInvalidConfig,
				fmt.Sprintf("invalid %s %q (valid: %s)", param, v, strings.Join(allowed, ", ")))
		}
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch param {
	case "model":
		v := strings.ToLower(value)
		if !isGeminiModel(v) {
			if err := check(OpenAIModels, v); err != nil {
				return err
			}
		}
		s.model = v
	case "size":
		if err := check(ImageSizes, strings.ToLower(value)); err != nil {
			return err
		}
		s.size = strings.ToLower(value)
	case "quality":
		if err := check(ImageQualities, strings.ToLower(value)); err != nil {
			return err
		}
		s.quality = strings.ToLower(value)
	case "style":
		if err := check(ImageStyles, strings.ToLower(value)); err != nil {
			return err
		}
		s.style = strings.ToLower(value)
	case "system_prompt":
		if value == "" {
			return apperrors.New(apperrors.CodeProtocolInvalidConfig, "system_prompt cannot be empty")
		}
		s.systemPrompt = value
	default:
		return apperrors.New(apperrors.CodeProtocolInvalidConfig, fmt.Sprintf("unknown setting %q", param))
	}
	return nil
}

// Options returns a copy of the current settings.
func (s *GenSettings) Options() GenOptions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return GenOptions{
		Model:        s.model,
		Size:         s.size,
		Quality:      s.quality,
		Style:        s.style,
		SystemPrompt: s.systemPrompt,
	}
}

// Model returns the configured model name.
func (s *GenSettings) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// IsGemini reports whether the configured model is served by Gemini.
func (s *GenSettings) IsGemini() bool {
	return isGeminiModel(s.Model())
}

func (s *GenSettings) String() string {
	o := s.Options()
	return fmt.Sprintf("model=%s size=%s quality=%s style=%s system_prompt=%q",
		o.Model, o.Size, o.Quality, o.Style, o.SystemPrompt)
}

// isGeminiModel accepts "gemini", "imagen" and explicit Imagen model ids such
// as "imagen-4.0-generate-001".
func isGeminiModel(m string) bool {
	return slices.Contains(GeminiModels, m) || strings.HasPrefix(m, "imagen-")
}
