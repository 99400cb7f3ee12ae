package strata

import (
	"errors"
	"fmt"
	"math"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/strata/internal/backend"
	"github.com/gogpu/strata/internal/cliptree"
)

// Backend names accepted by Config.Backend.
const (
	BackendAuto     = backend.Auto
	BackendWGPU     = backend.WGPU
	BackendSoftware = backend.Software
)

// AntiAliasing selects how edges are smoothed.
//
// The zero value is inflated geometry: every shape carries a one pixel
// fringe whose coverage fades to zero, so a single sample per pixel is
// enough. Multisample(n) renders hard-edged geometry into an n-sample target
// instead.
type AntiAliasing struct {
	samples uint32
}

// InflatedGeometry is fringe-based anti-aliasing.
var InflatedGeometry = AntiAliasing{}

// Multisample returns n-sample MSAA. Values below 2 mean InflatedGeometry.
func Multisample(n uint32) AntiAliasing {
	if n < 2 {
		return InflatedGeometry
	}
	return AntiAliasing{samples: n}
}

// SampleCount returns the number of samples per pixel.
func (a AntiAliasing) SampleCount() uint32 {
	return max(a.samples, 1)
}

// Multisampled reports whether a uses MSAA rather than fringe geometry.
func (a AntiAliasing) Multisampled() bool { return a.samples > 1 }

func (a AntiAliasing) String() string {
	if !a.Multisampled() {
		return "inflated_geometry"
	}
	return fmt.Sprintf("multisample(%d)", a.samples)
}

// MarshalText implements encoding.TextMarshaler.
func (a AntiAliasing) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AntiAliasing) UnmarshalText(text []byte) error {
	v, err := ParseAntiAliasing(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// ParseAntiAliasing parses "inflated_geometry" or "multisample(N)".
func ParseAntiAliasing(s string) (AntiAliasing, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "inflated_geometry" {
		return InflatedGeometry, nil
	}
	if arg, ok := strings.CutPrefix(s, "multisample("); ok {
		if n, ok := strings.CutSuffix(arg, ")"); ok {
			v, err := strconv.ParseUint(strings.TrimSpace(n), 10, 32)
			if err == nil && v >= 2 {
				return AntiAliasing{samples: uint32(v)}, nil
			}
		}
	}
	return AntiAliasing{}, fmt.Errorf("%w: anti_aliasing %q: want inflated_geometry or multisample(N)", ErrInvalidConfig, s)
}

// Config controls a Renderer.
type Config struct {
	AntiAliasing AntiAliasing `mapstructure:"anti_aliasing" yaml:"anti_aliasing"`
	// OITEnabled routes translucent untextured instances through weighted
	// blended order-independent transparency.
	OITEnabled bool `mapstructure:"oit_enabled" yaml:"oit_enabled"`
	// ClearColor fills the target before each frame.
	ClearColor Color `mapstructure:"clear_color" yaml:"clear_color"`
	// MaxClipDepth is the deepest clip nesting that masks content, 1..255.
	// Deeper nodes render with their ancestor's mask.
	MaxClipDepth int `mapstructure:"max_clip_depth" yaml:"max_clip_depth"`

	// Backend is "auto", "wgpu" or "software".
	Backend string `mapstructure:"backend" yaml:"backend"`
	// Workers bounds tessellation and software rasterization parallelism.
	// Zero means GOMAXPROCS.
	Workers int `mapstructure:"workers" yaml:"workers"`
	// FringeWidth is the anti-aliasing fringe width in logical pixels.
	FringeWidth float32 `mapstructure:"fringe_width" yaml:"fringe_width"`
	// PresentMode configures a surface target.
	PresentMode gputypes.PresentMode `mapstructure:"present_mode" yaml:"present_mode"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		AntiAliasing: InflatedGeometry,
		ClearColor:   Transparent,
		MaxClipDepth: cliptree.MaxDepth,
		Backend:      BackendAuto,
		FringeWidth:  1,
		PresentMode:  gputypes.PresentModeFifo,
	}
}

// Validate reports every invalid field. The error wraps ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}
	switch n := c.AntiAliasing.SampleCount(); n {
	case 1, 2, 4, 8:
	default:
		bad("anti_aliasing: unsupported sample count %d", n)
	}
	if c.MaxClipDepth < 1 || c.MaxClipDepth > cliptree.MaxDepth {
		bad("max_clip_depth %d: want 1..%d", c.MaxClipDepth, cliptree.MaxDepth)
	}
	for _, v := range []float32{c.ClearColor.R, c.ClearColor.G, c.ClearColor.B, c.ClearColor.A} {
		if !(v >= 0 && v <= 1) {
			bad("clear_color %+v: components must be in [0, 1]", c.ClearColor)
			break
		}
	}
	switch c.Backend {
	case "", BackendAuto, BackendWGPU, BackendSoftware:
	default:
		bad("backend %q: want auto, wgpu or software", c.Backend)
	}
	if c.Workers < 0 {
		bad("workers %d: must not be negative", c.Workers)
	}
	if !(c.FringeWidth >= 0) || math.IsInf(float64(c.FringeWidth), 0) {
		bad("fringe_width %v: want a finite value >= 0", c.FringeWidth)
	}
	if c.PresentMode < gputypes.PresentModeFifo || c.PresentMode > gputypes.PresentModeMailbox {
		bad("present_mode %d: unknown", c.PresentMode)
	}
	return errors.Join(errs...)
}

// LoadConfig reads a YAML config file. Missing keys keep their defaults;
// unknown keys are an error.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes a YAML document into a validated Config.
func ParseConfig(data []byte) (Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return DecodeConfig(raw)
}

// DecodeConfig decodes a generic map, such as a section of a larger
// document, into a validated Config.
func DecodeConfig(raw map[string]any) (Config, error) {
	cfg := DefaultConfig()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			antiAliasingHook,
			colorHook,
			presentModeHook,
		),
		ErrorUnused: true,
		Result:      &cfg,
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func antiAliasingHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(AntiAliasing{}) || from.Kind() != reflect.String {
		return data, nil
	}
	return ParseAntiAliasing(data.(string)) //nolint:forcetypeassert // kind checked
}

func colorHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(Color{}) || from.Kind() != reflect.String {
		return data, nil
	}
	c, err := ParseHex(data.(string)) //nolint:forcetypeassert // kind checked
	if err != nil {
		return nil, fmt.Errorf("clear_color: %w", err)
	}
	return c, nil
}

var presentModes = map[string]gputypes.PresentMode{
	"fifo":         gputypes.PresentModeFifo,
	"fifo_relaxed": gputypes.PresentModeFifoRelaxed,
	"immediate":    gputypes.PresentModeImmediate,
	"mailbox":      gputypes.PresentModeMailbox,
}

func presentModeHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(gputypes.PresentMode(0)) || from.Kind() != reflect.String {
		return data, nil
	}
	name := strings.ToLower(data.(string)) //nolint:forcetypeassert // kind checked
	m, ok := presentModes[name]
	if !ok {
		return nil, fmt.Errorf("present_mode %q: want fifo, fifo_relaxed, immediate or mailbox", name)
	}
	return m, nil
}

// Map returns c as the generic map DecodeConfig accepts, with values in
// their string forms.
func (c Config) Map() map[string]any {
	mode := "fifo"
	for name, m := range presentModes {
		if m == c.PresentMode {
			mode = name
		}
	}
	return map[string]any{
		"anti_aliasing":  c.AntiAliasing.String(),
		"oit_enabled":    c.OITEnabled,
		"clear_color":    c.ClearColor.Hex(),
		"max_clip_depth": c.MaxClipDepth,
		"backend":        c.Backend,
		"workers":        c.Workers,
		"fringe_width":   c.FringeWidth,
		"present_mode":   mode,
	}
}
