package main

import (
	"flag"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ironsheep/yail-server/internal/config"
	"github.com/ironsheep/yail-server/internal/session"
	"github.com/ironsheep/yail-server/internal/yail"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 255 / w), uint8(y * 255 / h), 90, 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestParseModeArg(t *testing.T) {
	tests := []struct {
		in   string
		want yail.Mode
	}{
		{"8", yail.Mode8},
		{"9", yail.Mode9},
		{"16", yail.ModeVBXE},
		{"VBXE", yail.ModeVBXE},
		{"mode9", yail.Mode9},
	}
	for _, tt := range tests {
		got, err := parseModeArg(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := parseModeArg("7")
	assert.Error(t, err)
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.png")
	writePNG(t, src, 200, 100)

	for _, mode := range []yail.Mode{yail.Mode8, yail.Mode9, yail.ModeVBXE} {
		t.Run(mode.String(), func(t *testing.T) {
			dst := filepath.Join(dir, mode.String()+".yail")
			n, err := convertFile(src, dst, mode)
			require.NoError(t, err)

			f, err := os.Open(dst)
			require.NoError(t, err)
			defer f.Close()

			p, err := yail.ReadPacket(f)
			require.NoError(t, err)
			assert.Equal(t, mode, p.Mode)
			assert.EqualValues(t, p.Size(), n)
			img, ok := p.Block(yail.BlockImage)
			require.True(t, ok)
			assert.Len(t, img, mode.ImageSize())
		})
	}
}

func TestConvertFile_MissingSource(t *testing.T) {
	_, err := convertFile(filepath.Join(t.TempDir(), "none.png"), filepath.Join(t.TempDir(), "out.yail"), yail.Mode8)
	assert.Error(t, err)
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	t.Setenv("YAIL_CAMERA_URL", "")
	t.Setenv("YAIL_GEN_MODEL", "")
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr = ":7000"
max_connections = 10
paths = ["/from/file"]
`), 0600))

	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range serveFlags() {
		require.NoError(t, f.Apply(set))
	}
	require.NoError(t, set.Parse([]string{"--config", path, "--addr", ":7100", "--paths", "/a", "--paths", "/b"}))
	c := cli.NewContext(newApp(), set, nil)

	cfg, err := loadConfig(c)
	require.NoError(t, err)
	assert.Equal(t, ":7100", cfg.Addr)
	assert.Equal(t, []string{"/a", "/b"}, cfg.Paths)
	assert.Equal(t, 10, cfg.MaxConnections)
}

func TestNewAppCommands(t *testing.T) {
	app := newApp()
	for _, name := range []string{"serve", "convert", "discover"} {
		assert.NotNil(t, app.Command(name), name)
	}
}

func TestRescanReplacesPool(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 4, 4)
	writePNG(t, filepath.Join(dir, "b.png"), 4, 4)

	state := session.New()
	state.RecordFilenames([]string{"/gone/old.png"})

	cfg := config.Default()
	cfg.Paths = []string{dir}
	assert.Equal(t, 2, rescan(state, cfg))
	assert.Equal(t, 2, state.FilenameCount())

	require.NoError(t, os.Remove(filepath.Join(dir, "a.png")))
	assert.Equal(t, 1, rescan(state, cfg))
	p, ok := state.PickRandomFilename()
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "b.png"), p)
}
