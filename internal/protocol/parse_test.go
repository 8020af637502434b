package protocol

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/yail-server/internal/yail"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Command
	}{
		{"video", "video", Video{}},
		{"camera alias", "camera", Video{}},
		{"files", "files\r\n", Files{}},
		{"next", "NEXT", Next{}},
		{"quit", "quit\n", Quit{}},
		{"search", "search funny cats", Search{Terms: "funny cats"}},
		{"search keeps inner spacing", "search  a   b ", Search{Terms: "a   b"}},
		{"gen", "gen hello world", Generate{Backend: BackendDefault, Prompt: "hello world"}},
		{"generate alias", "Generate a red barn", Generate{Backend: BackendDefault, Prompt: "a red barn"}},
		{"gen-gemini", "gen-gemini a fox", Generate{Backend: BackendGemini, Prompt: "a fox"}},
		{"gfx 8", "gfx 8", Gfx{Mode: yail.Mode8}},
		{"gfx 9", "gfx 9", Gfx{Mode: yail.Mode9}},
		{"gfx 16", "gfx 16", Gfx{Mode: yail.ModeVBXE}},
		{"config query", "openai-config", Config{}},
		{"config set", "openai-config model dall-e-2", Config{Param: "model", Value: "dall-e-2"}},
		{"config param case", "openai-config SIZE 512x512", Config{Param: "size", Value: "512x512"}},
		{"config system prompt", "openai-config system_prompt draw in 8-bit style", Config{Param: "system_prompt", Value: "draw in 8-bit style"}},
		{"http get", "GET / HTTP/1.1", HTTPProbe{Method: "GET"}},
		{"http post", "POST /api HTTP/1.0", HTTPProbe{Method: "POST"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.line))
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		reason string
	}{
		{"empty", "", "empty command"},
		{"blank", "   \r\n", "empty command"},
		{"unknown", "dance", "unknown command"},
		{"gen without prompt", "gen ", "requires a prompt"},
		{"gen blank prompt", "gen    ", "requires a prompt"},
		{"search without terms", "search", "requires search terms"},
		{"gfx 7", "gfx 7", "invalid graphics mode"},
		{"gfx word", "gfx vbxe", "invalid graphics mode"},
		{"gfx missing", "gfx", "requires a graphics mode"},
		{"gfx extra", "gfx 8 9", "single graphics mode"},
		{"files extra", "files now", "takes no arguments"},
		{"config bad param", "openai-config colour red", "invalid config parameter"},
		{"config missing value", "openai-config model", "requires a value"},
		{"config multi word value", "openai-config size 1024 x 1024", "single value"},
		{"lowercase http", "get / HTTP/1.1", "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := Parse(tt.line)
			inv, ok := cmd.(Invalid)
			require.True(t, ok, "Parse(%q) = %#v, want Invalid", tt.line, cmd)
			assert.Contains(t, inv.Reason, tt.reason)
		})
	}
}

func TestParse_Lengths(t *testing.T) {
	assert.Equal(t, Generate{Prompt: strings.Repeat("a", MaxPromptLength)}, Parse("gen "+strings.Repeat("a", MaxPromptLength)))
	assert.IsType(t, Invalid{}, Parse("gen "+strings.Repeat("a", MaxPromptLength+1)))

	assert.Equal(t, Search{Terms: strings.Repeat("b", MaxSearchLength)}, Parse("search "+strings.Repeat("b", MaxSearchLength)))
	assert.IsType(t, Invalid{}, Parse("search "+strings.Repeat("b", MaxSearchLength+1)))

	// lengths count characters, not bytes
	assert.IsType(t, Search{}, Parse("search "+strings.Repeat("é", MaxSearchLength)))
}

// recorder is a Handler that remembers which method ran.
type recorder struct {
	called string
}

func (r *recorder) Video(context.Context, Video) error         { r.called = "video"; return nil }
func (r *recorder) Search(context.Context, Search) error       { r.called = "search"; return nil }
func (r *recorder) Generate(context.Context, Generate) error   { r.called = "gen"; return nil }
func (r *recorder) Files(context.Context, Files) error         { r.called = "files"; return nil }
func (r *recorder) Next(context.Context, Next) error           { r.called = "next"; return nil }
func (r *recorder) Gfx(context.Context, Gfx) error             { r.called = "gfx"; return nil }
func (r *recorder) Config(context.Context, Config) error       { r.called = "openai-config"; return nil }
func (r *recorder) Quit(context.Context, Quit) error           { r.called = "quit"; return nil }
func (r *recorder) HTTPProbe(context.Context, HTTPProbe) error { r.called = "http"; return nil }
func (r *recorder) Invalid(context.Context, Invalid) error     { r.called = "invalid"; return nil }

func TestDispatch(t *testing.T) {
	lines := []string{
		"video", "search cats", "gen a cat", "files", "next", "gfx 9",
		"openai-config", "quit", "GET / HTTP/1.1", "bogus",
	}
	for _, line := range lines {
		cmd := Parse(line)
		r := &recorder{}
		require.NoError(t, cmd.Dispatch(context.Background(), r))
		assert.Equal(t, cmd.Name(), r.called, "line %q", line)
	}
}
