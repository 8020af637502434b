package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ironsheep/yail-server/internal/errors"
	"github.com/ironsheep/yail-server/internal/source"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_AllFields(t *testing.T) {
	path := writeConfig(t, `
addr = "0.0.0.0:6000"
paths = ["/srv/images", "/tmp/one.png"]
extensions = [".png", ".webp"]
log_level = "debug"
max_encodes = 2
max_connections = 8
idle_timeout_seconds = 60
gen_timeout_seconds = 90
camera_url = "http://cam.local/snapshot.jpg"
metrics_addr = "127.0.0.1:9100"
mdns_enabled = true
openai_api_key = "sk-test"
gemini_api_key = "g-test"
gen_model = "dall-e-2"
openai_size = "512x512"
openai_quality = "hd"
openai_style = "natural"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:6000", cfg.Addr)
	assert.Equal(t, []string{"/srv/images", "/tmp/one.png"}, cfg.Paths)
	assert.Equal(t, []string{".png", ".webp"}, cfg.Extensions)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2, cfg.MaxEncodes)
	assert.Equal(t, 8, cfg.MaxConnections)
	assert.Equal(t, time.Minute, cfg.IdleTimeout())
	assert.Equal(t, 90*time.Second, cfg.GenTimeout())
	assert.Equal(t, "http://cam.local/snapshot.jpg", cfg.CameraURL)
	assert.Equal(t, "127.0.0.1:9100", cfg.MetricsAddr)
	assert.True(t, cfg.MdnsEnabled)
	assert.Equal(t, "sk-test", cfg.OpenAIAPIKey)
	assert.Equal(t, "g-test", cfg.GeminiAPIKey)
	assert.Equal(t, "dall-e-2", cfg.GenModel)
	assert.Equal(t, "512x512", cfg.OpenAISize)
	assert.Equal(t, "hd", cfg.OpenAIQuality)
	assert.Equal(t, "natural", cfg.OpenAIStyle)
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `addr = ":7000"`))
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, DefaultMaxConnections, cfg.MaxConnections)
	assert.Equal(t, source.DefaultExtensions, cfg.Extensions)
	assert.Equal(t, source.DefaultModel, cfg.GenModel)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_MissingDefaultFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_DefaultLocation(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".yail"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".yail", "config.toml"), []byte(`max_connections = 3`), 0600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxConnections)
}

func TestLoad_InvalidTOML(t *testing.T) {
	_, err := Load(writeConfig(t, `addr = [unterminated`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestLoad_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"negative encodes", `max_encodes = -1`},
		{"negative connections", `max_connections = -5`},
		{"negative timeout", `idle_timeout_seconds = -1`},
		{"extension without dot", `extensions = ["png"]`},
		{"unknown model", `gen_model = "midjourney"`},
		{"bad size", `openai_size = "13x13"`},
		{"empty addr", `addr = " "`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"OPENAI_API_KEY":  "sk-env",
		"GEMINI_API_KEY":  "",
		"YAIL_CAMERA_URL": "http://env/cam",
		"YAIL_GEN_MODEL":  "imagen",
	}
	cfg := Default()
	cfg.GeminiAPIKey = "from-file"
	cfg.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "sk-env", cfg.OpenAIAPIKey)
	assert.Equal(t, "from-file", cfg.GeminiAPIKey, "empty variables must not clear file values")
	assert.Equal(t, "http://env/cam", cfg.CameraURL)
	assert.Equal(t, "imagen", cfg.GenModel)
}

func TestApplyGenSettings(t *testing.T) {
	cfg := Default()
	cfg.GenModel = "imagen-4.0-generate-001"
	cfg.OpenAIStyle = "natural"

	s := source.NewGenSettings()
	require.NoError(t, cfg.ApplyGenSettings(s))
	assert.True(t, s.IsGemini())
	assert.Equal(t, "natural", s.Options().Style)

	cfg.OpenAIQuality = "ultra"
	err := cfg.ApplyGenSettings(s)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeProtocolInvalidConfig))
}
