package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/strata"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func readPNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	return img
}

func rgbaAt(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA) //nolint:forcetypeassert // RGBAModel
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "strata-render version "+strata.Version+"\n", out)
}

func TestConfigCommandDefaults(t *testing.T) {
	out, err := run(t, "config")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "inflated_geometry", got["anti_aliasing"])
	assert.Equal(t, 255, got["max_clip_depth"])
	assert.Equal(t, "fifo", got["present_mode"])
	assert.Equal(t, false, got["oit_enabled"])
}

func TestConfigCommandReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "strata.yaml", "oit_enabled: true\nanti_aliasing: multisample(4)\n")

	out, err := run(t, "config", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "oit_enabled: true")
	assert.Contains(t, out, "anti_aliasing: multisample(4)")

	bad := writeFile(t, dir, "bad.yaml", "max_clip_depth: 300\n")
	_, err = run(t, "config", "--config", bad)
	require.ErrorIs(t, err, strata.ErrInvalidConfig)
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := run(t, "--log-level", "loud", "config")
	require.Error(t, err)
}

const clippedScene = `
width: 40
height: 40
config:
  clear_color: "#ffffff"
clips:
  - name: left
    rect: [0, 0, 20, 40]
shapes:
  - rect: [0, 0, 40, 40]
    fill: "#ff0000"
    clip: left
  - polygon: [[20, 30], [40, 30], [40, 40], [20, 40]]
    fill: "#0000ff"
    transform:
      translate: [0, -30]
`

func TestRenderScene(t *testing.T) {
	dir := t.TempDir()
	scene := writeFile(t, dir, "scene.yaml", clippedScene)

	out, err := run(t, "render", scene, "--stats")
	require.NoError(t, err)
	assert.Contains(t, out, "backend: software")
	assert.Contains(t, out, "instances: 2")

	img := readPNG(t, filepath.Join(dir, "scene.png"))
	assert.Equal(t, image.Rect(0, 0, 40, 40), img.Bounds())
	assert.Equal(t, color.RGBA{R: 255, A: 255}, rgbaAt(img, 10, 20))
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, rgbaAt(img, 30, 20))
	// The polygon is moved to the top edge.
	assert.Equal(t, color.RGBA{B: 255, A: 255}, rgbaAt(img, 30, 5))
	assert.Equal(t, color.RGBA{R: 255, A: 255}, rgbaAt(img, 10, 5))
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, rgbaAt(img, 30, 35))
}

func TestRenderScaleAndOutput(t *testing.T) {
	dir := t.TempDir()
	scene := writeFile(t, dir, "scene.yaml", `
width: 10
height: 10
scale: 2
shapes:
  - rect: [0, 0, 5, 5]
    fill: "#00ff00"
`)
	output := filepath.Join(dir, "out.png")
	_, err := run(t, "render", scene, "-o", output)
	require.NoError(t, err)

	img := readPNG(t, output)
	assert.Equal(t, image.Rect(0, 0, 20, 20), img.Bounds())
	assert.Equal(t, color.RGBA{G: 255, A: 255}, rgbaAt(img, 8, 8))
	assert.Equal(t, uint8(0), rgbaAt(img, 15, 15).A)
}

func TestRenderTexture(t *testing.T) {
	dir := t.TempDir()
	tex := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := range 2 {
		for x := range 2 {
			tex.Set(x, y, color.NRGBA{B: 255, A: 255})
		}
	}
	f, err := os.Create(filepath.Join(dir, "blue.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, tex))
	require.NoError(t, f.Close())

	scene := writeFile(t, dir, "scene.yaml", `
width: 8
height: 8
textures:
  - id: 1
    path: blue.png
shapes:
  - rect: [0, 0, 8, 8]
    fill: "#00000000"
    texture: 1
`)
	_, err = run(t, "render", scene)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{B: 255, A: 255}, rgbaAt(readPNG(t, filepath.Join(dir, "scene.png")), 4, 4))
}

func TestRenderText(t *testing.T) {
	dir := t.TempDir()
	scene := writeFile(t, dir, "scene.yaml", `
width: 32
height: 32
text:
  - string: "H"
    at: [4, 20]
    color: "#ff0000"
`)
	out, err := run(t, "render", scene, "--stats")
	require.NoError(t, err)
	assert.NotContains(t, out, "diagnostic:")

	img := readPNG(t, filepath.Join(dir, "scene.png"))
	solid := false
	for y := 9; y < 22; y++ {
		for x := 4; x < 11; x++ {
			if c := rgbaAt(img, x, y); c.R >= 250 && c.A >= 250 {
				solid = true
			}
		}
	}
	assert.True(t, solid, "no solid glyph pixel")
}

func TestRenderReportsDiagnostics(t *testing.T) {
	dir := t.TempDir()
	scene := writeFile(t, dir, "scene.yaml", `
width: 8
height: 8
shapes:
  - rect: [0, 0, 8, 8]
    texture: 42
`)
	out, err := run(t, "render", scene, "--stats")
	require.NoError(t, err)
	assert.Contains(t, out, "diagnostic:")
}

func TestRenderSceneErrors(t *testing.T) {
	tests := []struct {
		name  string
		scene string
		want  string
	}{
		{"unknown key", "width: 4\nheight: 4\ncolour: red\n", "colour"},
		{"no size", "shapes: []\n", "width and height"},
		{"unknown clip", "width: 4\nheight: 4\nshapes:\n  - rect: [0, 0, 1, 1]\n    clip: nope\n", `unknown clip "nope"`},
		{"bad rect", "width: 4\nheight: 4\nshapes:\n  - rect: [0, 0, 1]\n", "rect wants"},
		{"rect and polygon", "width: 4\nheight: 4\nshapes:\n  - rect: [0, 0, 1, 1]\n    polygon: [[0, 0], [1, 0], [1, 1]]\n", "exclusive"},
		{"bad color", "width: 4\nheight: 4\nshapes:\n  - rect: [0, 0, 1, 1]\n    fill: \"#12\"\n", "shape 0"},
		{"duplicate clip", "width: 4\nheight: 4\nclips:\n  - {name: a, rect: [0, 0, 1, 1]}\n  - {name: a, rect: [0, 0, 1, 1]}\n", "duplicate"},
		{"bad config", "width: 4\nheight: 4\nconfig:\n  max_clip_depth: 0\n", "max_clip_depth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			scene := writeFile(t, dir, "scene.yaml", tt.scene)
			_, err := run(t, "render", scene)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTransformSpec(t *testing.T) {
	tests := []struct {
		name string
		spec transformSpec
		in   strata.Point
		want strata.Point
	}{
		{"identity", transformSpec{}, strata.Pt(3, 4), strata.Pt(3, 4)},
		{"translate", transformSpec{Translate: []float32{10, 20}}, strata.Pt(1, 1), strata.Pt(11, 21)},
		{"scale about origin", transformSpec{Scale: []float32{2, 2}, Origin: []float32{5, 5}}, strata.Pt(6, 6), strata.Pt(7, 7)},
		{"rotate", transformSpec{Rotate: 90}, strata.Pt(1, 0), strata.Pt(0, 1)},
		{"perspective keeps origin", transformSpec{RotateY: 30, Perspective: 500, Origin: []float32{10, 10}}, strata.Pt(10, 10), strata.Pt(10, 10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := tt.spec.matrix()
			require.NoError(t, err)
			got := m.TransformPoint(tt.in)
			assert.InDelta(t, tt.want.X, got.X, 1e-4)
			assert.InDelta(t, tt.want.Y, got.Y, 1e-4)
		})
	}

	_, err := (&transformSpec{Scale: []float32{1}}).matrix()
	require.Error(t, err)
}

func TestSceneConfigOverrides(t *testing.T) {
	s, err := readScene(strings.NewReader("width: 4\nheight: 4\nconfig:\n  oit_enabled: true\n"))
	require.NoError(t, err)
	base := strata.DefaultConfig()
	base.MaxClipDepth = 8
	cfg, err := s.config(base)
	require.NoError(t, err)
	assert.True(t, cfg.OITEnabled)
	assert.Equal(t, 8, cfg.MaxClipDepth)
	assert.Equal(t, 1.0, s.Scale)
}
