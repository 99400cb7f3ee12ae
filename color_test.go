package strata

import (
	"image/color"
	"math"
	"testing"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		in   string
		want Color
	}{
		{"#ff0000", Color{1, 0, 0, 1}},
		{"00ff0080", Color{0, 1, 0, 128.0 / 255}},
		{"#fff", Color{1, 1, 1, 1}},
		{"#00000000", Color{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHex(tt.in)
			if err != nil {
				t.Fatalf("ParseHex(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseHex(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseHexErrors(t *testing.T) {
	for _, in := range []string{"", "#12", "#12345", "#gg0000", "#1234567890"} {
		if _, err := ParseHex(in); err == nil {
			t.Errorf("ParseHex(%q) succeeded", in)
		}
	}
}

func TestHexRoundTrip(t *testing.T) {
	for _, s := range []string{"#00000000", "#ff8000ff", "#12345678"} {
		c, err := ParseHex(s)
		if err != nil {
			t.Fatal(err)
		}
		if got := c.Hex(); got != s {
			t.Errorf("ParseHex(%q).Hex() = %q", s, got)
		}
	}
}

func TestFromColor(t *testing.T) {
	got := FromColor(color.NRGBA{R: 255, G: 0, B: 51, A: 255})
	if got != (Color{1, 0, 0.2, 1}) {
		t.Errorf("FromColor = %+v", got)
	}
	if FromColor(color.Transparent) != Transparent {
		t.Error("FromColor(Transparent) is not transparent")
	}
}

func TestColorRoundTripThroughLinear(t *testing.T) {
	for _, c := range []Color{RGB(0.2, 0.4, 0.6), RGBA(1, 0.5, 0.25, 0.5), White} {
		back := c.premul().EncodeSRGB()
		for i, pair := range [][2]float32{{c.R, back.R}, {c.G, back.G}, {c.B, back.B}, {c.A, back.A}} {
			if math.Abs(float64(pair[0]-pair[1])) > 1e-4 {
				t.Errorf("%+v channel %d: got %v", c, i, pair[1])
			}
		}
	}
}
