package strata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 255, cfg.MaxClipDepth)
	assert.Equal(t, float32(1), cfg.FringeWidth)
	assert.Equal(t, uint32(1), cfg.AntiAliasing.SampleCount())
	assert.False(t, cfg.AntiAliasing.Multisampled())
	assert.Equal(t, BackendAuto, cfg.Backend)
}

func TestParseAntiAliasing(t *testing.T) {
	tests := []struct {
		in      string
		want    AntiAliasing
		wantErr bool
	}{
		{in: "inflated_geometry", want: InflatedGeometry},
		{in: "multisample(4)", want: Multisample(4)},
		{in: " Multisample( 8 ) ", want: Multisample(8)},
		{in: "multisample(1)", wantErr: true},
		{in: "multisample(x)", wantErr: true},
		{in: "msaa", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAntiAliasing(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAntiAliasingText(t *testing.T) {
	text, err := Multisample(4).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "multisample(4)", string(text))

	var a AntiAliasing
	require.NoError(t, a.UnmarshalText([]byte("inflated_geometry")))
	assert.Equal(t, InflatedGeometry, a)
	assert.Equal(t, InflatedGeometry, Multisample(1))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"clip depth zero", func(c *Config) { c.MaxClipDepth = 0 }},
		{"clip depth too large", func(c *Config) { c.MaxClipDepth = 256 }},
		{"sample count", func(c *Config) { c.AntiAliasing = Multisample(3) }},
		{"clear color", func(c *Config) { c.ClearColor = Color{R: 2, A: 1} }},
		{"backend", func(c *Config) { c.Backend = "vulkan" }},
		{"workers", func(c *Config) { c.Workers = -1 }},
		{"fringe width", func(c *Config) { c.FringeWidth = -1 }},
		{"present mode", func(c *Config) { c.PresentMode = gputypes.PresentModeUndefined }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxClipDepth = 0
	cfg.Workers = -2
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_clip_depth")
	assert.Contains(t, err.Error(), "workers")
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
anti_aliasing: multisample(4)
oit_enabled: true
clear_color: "#ff000080"
max_clip_depth: 16
backend: software
workers: 2
fringe_width: 1.5
present_mode: mailbox
`))
	require.NoError(t, err)
	assert.Equal(t, Multisample(4), cfg.AntiAliasing)
	assert.True(t, cfg.OITEnabled)
	assert.Equal(t, Color{R: 1, A: 128.0 / 255}, cfg.ClearColor)
	assert.Equal(t, 16, cfg.MaxClipDepth)
	assert.Equal(t, BackendSoftware, cfg.Backend)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, float32(1.5), cfg.FringeWidth)
	assert.Equal(t, gputypes.PresentModeMailbox, cfg.PresentMode)
}

func TestParseConfigKeepsDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("oit_enabled: true\n"))
	require.NoError(t, err)
	want := DefaultConfig()
	want.OITEnabled = true
	assert.Equal(t, want, cfg)
}

func TestParseConfigErrors(t *testing.T) {
	tests := map[string]string{
		"unknown key":    "colour: red\n",
		"bad aa":         "anti_aliasing: supersample\n",
		"bad color":      "clear_color: \"#zz\"\n",
		"bad mode":       "present_mode: vsync\n",
		"invalid value":  "max_clip_depth: 300\n",
		"malformed yaml": "anti_aliasing: [\n",
		"wrong type":     "workers: many\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestConfigMapRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AntiAliasing = Multisample(4)
	cfg.ClearColor = RGBA(0, 0, 1, 1)
	cfg.PresentMode = gputypes.PresentModeImmediate
	back, err := DecodeConfig(cfg.Map())
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strata.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_clip_depth: 8\n"), 0o600))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.MaxClipDepth)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
