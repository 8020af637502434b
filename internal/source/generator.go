package source

import (
	"context"

	apperrors "github.com/ironsheep/yail-server/internal/errors"
	"github.com/ironsheep/yail-server/internal/imaging"
)

// ModelRouter sends each request to the OpenAI or Gemini generator according
// to the model currently configured in Settings.
type ModelRouter struct {
	Settings *GenSettings
	OpenAI   Generator
	Gemini   Generator
}

// Generate implements Generator.
func (r *ModelRouter) Generate(ctx context.Context, prompt string) (*imaging.PixelBuffer, error) {
	g, model := r.OpenAI, DefaultModel
	if r.Settings != nil {
		model = r.Settings.Model()
		if r.Settings.IsGemini() {
			g = r.Gemini
		}
	}
	if g == nil {
		return nil, apperrors.NotAvailable("no image generator configured for model " + model)
	}
	return g.Generate(ctx, prompt)
}
