package color

import (
	"math"
	"testing"
)

func floatNear(a, b, eps float32) bool {
	return float32(math.Abs(float64(a-b))) <= eps
}

func premulNear(a, b Premul, eps float32) bool {
	return floatNear(a.R, b.R, eps) && floatNear(a.G, b.G, eps) &&
		floatNear(a.B, b.B, eps) && floatNear(a.A, b.A, eps)
}

func TestSRGBToLinearEdgeCases(t *testing.T) {
	tests := []struct {
		name  string
		input float32
		want  float32
	}{
		{"black", 0.0, 0.0},
		{"white", 1.0, 1.0},
		{"threshold", 0.04045, 0.04045 / 12.92},
		{"mid gray", 0.5, float32(math.Pow((0.5+0.055)/1.055, 2.4))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SRGBToLinear(tt.input)
			if !floatNear(got, tt.want, 1e-6) {
				t.Errorf("SRGBToLinear(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for i := 0; i <= 1000; i++ {
		s := float32(i) / 1000
		got := LinearToSRGB(SRGBToLinear(s))
		if !floatNear(got, s, 1e-4) {
			t.Fatalf("round trip of %v = %v", s, got)
		}
	}
}

func TestLookupTablesMatchFormula(t *testing.T) {
	for i := 0; i < 256; i++ {
		want := SRGBToLinear(float32(i) / 255)
		if got := SRGB8ToLinear(uint8(i)); !floatNear(got, want, 1e-6) {
			t.Errorf("SRGB8ToLinear(%d) = %v, want %v", i, got, want)
		}
		if back := LinearToSRGB8(SRGB8ToLinear(uint8(i))); back != uint8(i) {
			t.Errorf("LinearToSRGB8(SRGB8ToLinear(%d)) = %d", i, back)
		}
	}
}

func TestLinearToSRGB8Clamps(t *testing.T) {
	if got := LinearToSRGB8(-1); got != 0 {
		t.Errorf("negative: got %d", got)
	}
	if got := LinearToSRGB8(2); got != 255 {
		t.Errorf("above one: got %d", got)
	}
	if got := LinearToSRGB8(float32(math.NaN())); got != 0 {
		t.Errorf("NaN: got %d", got)
	}
}

func TestPremultiplyUnpremultiply(t *testing.T) {
	s := Straight{R: 0.8, G: 0.4, B: 0.2, A: 0.5}
	p := s.Premultiply()
	if !premulNear(p, Premul{R: 0.4, G: 0.2, B: 0.1, A: 0.5}, 1e-6) {
		t.Fatalf("Premultiply = %+v", p)
	}
	back := p.Unpremultiply()
	if !floatNear(back.R, s.R, 1e-6) || !floatNear(back.A, s.A, 1e-6) {
		t.Errorf("Unpremultiply = %+v", back)
	}
	if z := (Premul{}).Unpremultiply(); z != (Straight{}) {
		t.Errorf("zero alpha should unpremultiply to zero, got %+v", z)
	}
}

func TestLayersIdentity(t *testing.T) {
	fills := []Premul{
		DecodeSRGB8(255, 0, 0, 255),
		DecodeSRGB8(0, 128, 255, 128),
		DecodeSRGB8(10, 20, 30, 0),
	}
	for _, fill := range fills {
		got := Layers(fill, Transparent, Transparent)
		if got != fill {
			t.Errorf("Layers(%+v, transparent, transparent) = %+v", fill, got)
		}
	}
}

func TestLayersFormula(t *testing.T) {
	fill := Premul{R: 1, G: 0, B: 0, A: 1}
	bg := Premul{R: 0, G: 0.5, B: 0, A: 0.5}
	fg := Premul{R: 0, G: 0, B: 0.25, A: 0.25}

	// fg + (bg + fill*(1-bg.a)) * (1-fg.a)
	want := Premul{
		R: 0 + (0+1*0.5)*0.75,
		G: 0 + (0.5+0)*0.75,
		B: 0.25,
		A: 0.25 + (0.5+1*0.5)*0.75,
	}
	if got := Layers(fill, bg, fg); !premulNear(got, want, 1e-6) {
		t.Errorf("Layers = %+v, want %+v", got, want)
	}
}

func TestWeight(t *testing.T) {
	// Depth of the instance one layer behind the front.
	behind := float32(1 - math.Cbrt(0.5))
	tests := []struct {
		name         string
		alpha, depth float32
		want         float32
	}{
		{"front opaque", 1, 0, maxWeight},
		{"front half", 0.5, 0, maxWeight / 2},
		{"one layer behind", 0.5, behind, maxWeight / 4},
		{"mid", 1, 0.9, 3},
		{"far clamps depth term", 1, 1, minWeight},
		{"alpha applies after clamp", 0.1, 1, minWeight / 10},
		{"transparent", 0, 0, 0},
		{"out of range depth", 1, -3, maxWeight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := Weight(tt.alpha, tt.depth); !floatNear(w, tt.want, 1e-4*max(tt.want, 1e-3)) {
				t.Errorf("Weight(%v, %v) = %v, want %v", tt.alpha, tt.depth, w, tt.want)
			}
		})
	}
}

func TestAccumSingleFragmentIsExact(t *testing.T) {
	src := DecodeSRGB8(255, 0, 0, 128)
	acc := NewAccum()
	acc.Add(src, 0.5)
	got := acc.Resolve()
	if !premulNear(got, src, 1e-5) {
		t.Errorf("Resolve = %+v, want %+v", got, src)
	}
}

func TestAccumFollowsLayerOrder(t *testing.T) {
	red := Premul{R: 0.5, A: 0.5}
	green := Premul{G: 0.5, A: 0.5}
	behind := float32(1 - math.Cbrt(0.5))

	tests := []struct {
		name        string
		back, front Premul
	}{
		{"red over green", green, red},
		{"green over red", red, green},
	}
	var results []Premul
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := NewAccum()
			acc.Add(tt.back, behind)
			acc.Add(tt.front, 0)
			got := acc.Resolve()
			results = append(results, got)

			if exact := Over(tt.front, tt.back); !premulNear(got, exact, 1e-4) {
				t.Errorf("Resolve = %+v, exact %+v", got, exact)
			}
		})
	}
	if len(results) == 2 && premulNear(results[0], results[1], 0.1) {
		t.Errorf("layer order ignored: %+v vs %+v", results[0], results[1])
	}
}

func TestAccumIgnoresAddOrder(t *testing.T) {
	red := Premul{R: 0.4, A: 0.4}
	blue := Premul{B: 0.7, A: 0.7}

	a := NewAccum()
	a.Add(red, 0)
	a.Add(blue, 0.5)
	b := NewAccum()
	b.Add(blue, 0.5)
	b.Add(red, 0)
	if ra, rb := a.Resolve(), b.Resolve(); !premulNear(ra, rb, 1e-6) {
		t.Errorf("Resolve depends on add order: %+v vs %+v", ra, rb)
	}
}

func TestEmptyAccumResolvesTransparent(t *testing.T) {
	if got := NewAccum().Resolve(); got != Transparent {
		t.Errorf("empty Resolve = %+v", got)
	}
}

func TestEncodeSRGB8Premul(t *testing.T) {
	got := DecodeSRGB8(200, 100, 50, 255).EncodeSRGB8Premul()
	want := [4]uint8{200, 100, 50, 255}
	for i := range got {
		d := int(got[i]) - int(want[i])
		if d < -1 || d > 1 {
			t.Fatalf("EncodeSRGB8Premul = %v, want %v", got, want)
		}
	}
}

func TestTexelRoundTrip(t *testing.T) {
	for _, px := range [][4]uint8{{0, 0, 0, 0}, {255, 255, 255, 255}, {180, 20, 90, 128}, {3, 2, 1, 10}} {
		got := DecodeTexel(px[0], px[1], px[2], px[3]).EncodeTexel()
		if got != px {
			t.Errorf("texel %v round trip = %v", px, got)
		}
	}
	// A half-transparent red texel decodes to premultiplied linear red.
	straight := DecodeSRGB8(255, 0, 0, 128)
	got := DecodeTexel(straight.EncodeTexel()[0], 0, 0, 128)
	if !floatNear(got.R, straight.R, 2e-3) || !floatNear(got.A, straight.A, 1e-6) {
		t.Errorf("premultiplied red = %+v, want %+v", got, straight)
	}
}
