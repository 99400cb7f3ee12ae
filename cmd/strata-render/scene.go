package main

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/font/basicfont"
	_ "golang.org/x/image/webp"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/strata"
	"github.com/gogpu/strata/text"
)

// atlasTextureBase is the first texture ID used for glyph pages, above any
// ID a scene file is expected to use.
const atlasTextureBase strata.TextureID = 1 << 32

var errScene = errors.New("scene")

// sceneFile is the YAML scene document.
type sceneFile struct {
	Width  uint32  `yaml:"width"`
	Height uint32  `yaml:"height"`
	Scale  float64 `yaml:"scale"`
	// Config overrides renderer settings; keys as in the config file.
	Config   map[string]any `yaml:"config"`
	Textures []textureSpec  `yaml:"textures"`
	Clips    []clipSpec     `yaml:"clips"`
	Shapes   []shapeSpec    `yaml:"shapes"`
	Text     []textSpec     `yaml:"text"`
}

type textureSpec struct {
	ID   uint64 `yaml:"id"`
	Path string `yaml:"path"`
	// Size resamples the image to width, height.
	Size []int `yaml:"size"`
}

type clipSpec struct {
	Name      string         `yaml:"name"`
	Parent    string         `yaml:"parent"`
	Rect      []float32      `yaml:"rect"`
	Radius    float32        `yaml:"radius"`
	Polygon   [][]float32    `yaml:"polygon"`
	Transform *transformSpec `yaml:"transform"`
}

type shapeSpec struct {
	Rect       []float32      `yaml:"rect"`
	Radius     float32        `yaml:"radius"`
	Polygon    [][]float32    `yaml:"polygon"`
	Fill       string         `yaml:"fill"`
	Stroke     *strokeSpec    `yaml:"stroke"`
	Clip       string         `yaml:"clip"`
	Texture    uint64         `yaml:"texture"`
	Foreground uint64         `yaml:"foreground"`
	UV         []float32      `yaml:"uv"`
	Transform  *transformSpec `yaml:"transform"`
}

type strokeSpec struct {
	Width float32 `yaml:"width"`
	Color string  `yaml:"color"`
}

type textSpec struct {
	String    string         `yaml:"string"`
	At        []float32      `yaml:"at"`
	Color     string         `yaml:"color"`
	Clip      string         `yaml:"clip"`
	Transform *transformSpec `yaml:"transform"`
}

// transformSpec builds a Matrix4: scale, then the rotations (degrees) about
// origin, then perspective about origin, then translate.
type transformSpec struct {
	Translate   []float32 `yaml:"translate"`
	Scale       []float32 `yaml:"scale"`
	Rotate      float64   `yaml:"rotate"`
	RotateX     float64   `yaml:"rotate_x"`
	RotateY     float64   `yaml:"rotate_y"`
	Perspective float32   `yaml:"perspective"`
	Origin      []float32 `yaml:"origin"`
}

func readScene(r io.Reader) (*sceneFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s sceneFile
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %w", errScene, err)
	}
	if s.Width == 0 || s.Height == 0 {
		return nil, fmt.Errorf("%w: width and height are required", errScene)
	}
	if s.Scale == 0 {
		s.Scale = 1
	}
	return &s, nil
}

func loadScene(path string) (*sceneFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := readScene(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// config applies the scene's overrides to base.
func (s *sceneFile) config(base strata.Config) (strata.Config, error) {
	m := base.Map()
	for k, v := range s.Config {
		m[k] = v
	}
	return strata.DecodeConfig(m)
}

// build queues the scene into r. Relative texture paths resolve against dir.
func (s *sceneFile) build(r *strata.Renderer, dir string) error {
	for i, t := range s.Textures {
		if err := loadTexture(r, t, dir); err != nil {
			return fmt.Errorf("%w: texture %d: %w", errScene, i, err)
		}
	}

	clips := map[string]strata.ClipID{"": strata.NoClip}
	lookup := func(name string) (strata.ClipID, error) {
		id, ok := clips[name]
		if !ok {
			return strata.NoClip, fmt.Errorf("unknown clip %q", name)
		}
		return id, nil
	}
	for i, c := range s.Clips {
		if err := addClip(r, c, clips, lookup); err != nil {
			return fmt.Errorf("%w: clip %d: %w", errScene, i, err)
		}
	}

	for i, sh := range s.Shapes {
		clip, err := lookup(sh.Clip)
		if err == nil {
			err = addShape(r, sh, clip)
		}
		if err != nil {
			return fmt.Errorf("%w: shape %d: %w", errScene, i, err)
		}
	}

	if len(s.Text) == 0 {
		return nil
	}
	face := basicfont.Face7x13
	atlas, err := text.NewAtlas(face, atlasTextureBase)
	if err != nil {
		return err
	}
	for i, t := range s.Text {
		clip, err := lookup(t.Clip)
		if err == nil {
			err = addText(r, atlas, face, t, clip)
		}
		if err != nil {
			return fmt.Errorf("%w: text %d: %w", errScene, i, err)
		}
	}
	return nil
}

func loadTexture(r *strata.Renderer, t textureSpec, dir string) error {
	path := t.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode %s: %w", t.Path, err)
	}
	id := strata.TextureID(t.ID)
	switch len(t.Size) {
	case 0:
		return r.LoadTexture(id, img)
	case 2:
		return r.LoadTextureScaled(id, img, t.Size[0], t.Size[1])
	default:
		return fmt.Errorf("size wants [width, height], got %v", t.Size)
	}
}

func addClip(r *strata.Renderer, c clipSpec, clips map[string]strata.ClipID, lookup func(string) (strata.ClipID, error)) error {
	if c.Name == "" {
		return errors.New("clip needs a name")
	}
	if _, dup := clips[c.Name]; dup {
		return fmt.Errorf("duplicate clip %q", c.Name)
	}
	parent, err := lookup(c.Parent)
	if err != nil {
		return err
	}
	shape, err := outline(c.Rect, c.Radius, c.Polygon)
	if err != nil {
		return err
	}
	id, err := r.AddClip(shape, parent)
	if err != nil {
		return err
	}
	clips[c.Name] = id
	if c.Transform != nil {
		m, err := c.Transform.matrix()
		if err != nil {
			return err
		}
		return r.SetClipTransform(id, m)
	}
	return nil
}

func addShape(r *strata.Renderer, sh shapeSpec, clip strata.ClipID) error {
	shape, err := outline(sh.Rect, sh.Radius, sh.Polygon)
	if err != nil {
		return err
	}
	if sh.Fill != "" {
		c, err := strata.ParseHex(sh.Fill)
		if err != nil {
			return err
		}
		shape = shape.WithFill(c)
	}
	if sh.Stroke != nil {
		c, err := strata.ParseHex(sh.Stroke.Color)
		if err != nil {
			return fmt.Errorf("stroke: %w", err)
		}
		shape = shape.WithStroke(sh.Stroke.Width, c)
	}
	if sh.UV != nil {
		if len(sh.UV) != 4 {
			return fmt.Errorf("uv wants [min_x, min_y, max_x, max_y], got %v", sh.UV)
		}
		shape = shape.WithUV(strata.Rect{MinX: sh.UV[0], MinY: sh.UV[1], MaxX: sh.UV[2], MaxY: sh.UV[3]})
	}

	id, err := r.AddShape(shape, clip, strata.TextureID(sh.Texture))
	if err != nil {
		return err
	}
	if sh.Foreground != 0 {
		if err := r.SetTexture(id, strata.Foreground, strata.TextureID(sh.Foreground)); err != nil {
			return err
		}
	}
	if sh.Transform != nil {
		m, err := sh.Transform.matrix()
		if err != nil {
			return err
		}
		return r.SetTransform(id, m)
	}
	return nil
}

func addText(r *strata.Renderer, atlas *text.Atlas, face *basicfont.Face, t textSpec, clip strata.ClipID) error {
	if len(t.At) != 2 {
		return fmt.Errorf("at wants [x, y], got %v", t.At)
	}
	c := strata.Black
	if t.Color != "" {
		var err error
		if c, err = strata.ParseHex(t.Color); err != nil {
			return err
		}
	}
	run := text.Layout(face, t.String, strata.Pt(t.At[0], t.At[1]), c)
	ids, err := atlas.Draw(r, run, clip)
	if err != nil {
		return err
	}
	if t.Transform == nil {
		return nil
	}
	m, err := t.Transform.matrix()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := r.SetTransform(id, m); err != nil {
			return err
		}
	}
	return nil
}

// outline returns the shape described by exactly one of rect (with an
// optional corner radius) and polygon.
func outline(rect []float32, radius float32, polygon [][]float32) (strata.Shape, error) {
	switch {
	case rect != nil && polygon != nil:
		return strata.Shape{}, errors.New("rect and polygon are exclusive")
	case rect != nil:
		if len(rect) != 4 {
			return strata.Shape{}, fmt.Errorf("rect wants [x, y, width, height], got %v", rect)
		}
		r := strata.XYWH(rect[0], rect[1], rect[2], rect[3])
		if radius > 0 {
			return strata.NewRoundedRect(r, strata.UniformRadii(radius)), nil
		}
		return strata.NewRect(r), nil
	case polygon != nil:
		pts := make([]strata.Point, len(polygon))
		for i, p := range polygon {
			if len(p) != 2 {
				return strata.Shape{}, fmt.Errorf("polygon point %d wants [x, y], got %v", i, p)
			}
			pts[i] = strata.Pt(p[0], p[1])
		}
		return strata.NewPolygon(pts...), nil
	default:
		return strata.Shape{}, errors.New("rect or polygon required")
	}
}

func (t *transformSpec) matrix() (strata.Matrix4, error) {
	pair := func(name string, v []float32, def float32) (float32, float32, error) {
		switch len(v) {
		case 0:
			return def, def, nil
		case 2:
			return v[0], v[1], nil
		default:
			return 0, 0, fmt.Errorf("%s wants [x, y], got %v", name, v)
		}
	}
	sx, sy, err := pair("scale", t.Scale, 1)
	if err != nil {
		return strata.Matrix4{}, err
	}
	ox, oy, err := pair("origin", t.Origin, 0)
	if err != nil {
		return strata.Matrix4{}, err
	}
	tx, ty, err := pair("translate", t.Translate, 0)
	if err != nil {
		return strata.Matrix4{}, err
	}

	m := strata.Translate(-ox, -oy).
		Then(strata.Scale(sx, sy)).
		Then(strata.RotateX(radians(t.RotateX))).
		Then(strata.RotateY(radians(t.RotateY))).
		Then(strata.Rotate(radians(t.Rotate))).
		Then(strata.Translate(ox, oy))
	if t.Perspective > 0 {
		m = m.Then(strata.Perspective(t.Perspective, ox, oy))
	}
	return m.Then(strata.Translate(tx, ty)), nil
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
