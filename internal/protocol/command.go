package protocol

import (
	"context"

	"github.com/ironsheep/yail-server/internal/yail"
)

// Command is one parsed client request.
//
// Every command type dispatches itself to the matching Handler method, so the
// set of commands and the set of handler methods cannot drift apart.
type Command interface {
	// Name returns the canonical keyword, used for logging and metrics.
	Name() string
	// Dispatch calls the Handler method for this command.
	Dispatch(ctx context.Context, h Handler) error
}

// Handler executes commands. One method exists per command type.
type Handler interface {
	Video(ctx context.Context, cmd Video) error
	Search(ctx context.Context, cmd Search) error
	Generate(ctx context.Context, cmd Generate) error
	Files(ctx context.Context, cmd Files) error
	Next(ctx context.Context, cmd Next) error
	Gfx(ctx context.Context, cmd Gfx) error
	Config(ctx context.Context, cmd Config) error
	Quit(ctx context.Context, cmd Quit) error
	HTTPProbe(ctx context.Context, cmd HTTPProbe) error
	Invalid(ctx context.Context, cmd Invalid) error
}

// Backend selects the image generation service for a Generate command.
type Backend int

const (
	// BackendDefault uses the model currently configured in the generation
	// settings.
	BackendDefault Backend = iota
	// BackendGemini always uses Gemini Imagen.
	BackendGemini
)

func (b Backend) String() string {
	if b == BackendGemini {
		return "gemini"
	}
	return "default"
}

// Video requests one frame from the camera.
type Video struct{}

// Search requests a random result of an image search.
type Search struct {
	Terms string
}

// Generate requests a newly generated image.
type Generate struct {
	Backend Backend
	Prompt  string
}

// Files requests a random image from the configured directories.
type Files struct{}

// Next repeats the connection's last content command.
type Next struct{}

// Gfx switches the connection's graphics mode.
type Gfx struct {
	Mode yail.Mode
}

// Config queries the generation settings when Param is empty, or sets Param
// to Value.
type Config struct {
	Param string
	Value string
}

// Quit closes the connection.
type Quit struct{}

// HTTPProbe is a line that looks like the start of an HTTP request.
type HTTPProbe struct {
	Method string
}

// Invalid is any line that could not be parsed.
type Invalid struct {
	Reason string
}

func (Video) Name() string     { return "video" }
func (Search) Name() string    { return "search" }
func (Generate) Name() string  { return "gen" }
func (Files) Name() string     { return "files" }
func (Next) Name() string      { return "next" }
func (Gfx) Name() string       { return "gfx" }
func (Config) Name() string    { return "openai-config" }
func (Quit) Name() string      { return "quit" }
func (HTTPProbe) Name() string { return "http" }
func (Invalid) Name() string   { return "invalid" }

func (c Video) Dispatch(ctx context.Context, h Handler) error     { return h.Video(ctx, c) }
func (c Search) Dispatch(ctx context.Context, h Handler) error    { return h.Search(ctx, c) }
func (c Generate) Dispatch(ctx context.Context, h Handler) error  { return h.Generate(ctx, c) }
func (c Files) Dispatch(ctx context.Context, h Handler) error     { return h.Files(ctx, c) }
func (c Next) Dispatch(ctx context.Context, h Handler) error      { return h.Next(ctx, c) }
func (c Gfx) Dispatch(ctx context.Context, h Handler) error       { return h.Gfx(ctx, c) }
func (c Config) Dispatch(ctx context.Context, h Handler) error    { return h.Config(ctx, c) }
func (c Quit) Dispatch(ctx context.Context, h Handler) error      { return h.Quit(ctx, c) }
func (c HTTPProbe) Dispatch(ctx context.Context, h Handler) error { return h.HTTPProbe(ctx, c) }
func (c Invalid) Dispatch(ctx context.Context, h Handler) error   { return h.Invalid(ctx, c) }
