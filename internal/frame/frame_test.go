package frame

import (
	"testing"
	"unsafe"

	"github.com/gogpu/strata/internal/tessellate"
)

func TestLayoutSizes(t *testing.T) {
	if got := unsafe.Sizeof(Instance{}); got != InstanceSize {
		t.Errorf("sizeof(Instance) = %d, want %d", got, InstanceSize)
	}
	if got := unsafe.Sizeof(tessellate.Vertex{}); got != tessellate.VertexSize {
		t.Errorf("sizeof(Vertex) = %d, want %d", got, tessellate.VertexSize)
	}
}

func TestVariantString(t *testing.T) {
	tests := []struct {
		v    Variant
		want string
	}{
		{Solid, "solid"},
		{SingleTexture, "single-texture"},
		{DualTexture, "dual-texture"},
		{OITAccumulate, "oit-accumulate"},
		{OITComposite, "oit-composite"},
		{Variant(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("Variant(%d).String() = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestOpString(t *testing.T) {
	tests := []struct {
		op      Op
		want    string
		effects bool
	}{
		{OpPushClip, "push-clip", false},
		{OpPopClip, "pop-clip", false},
		{OpDraw, "draw", false},
		{OpBeginGroup, "begin-group", false},
		{OpEndGroup, "end-group", true},
		{OpBackdrop, "backdrop", true},
		{Op(99), "unknown", false},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Op(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
		if got := tt.op.Effects(); got != tt.effects {
			t.Errorf("%v.Effects() = %v, want %v", tt.op, got, tt.effects)
		}
	}
}

func TestPlanResetKeepsCapacity(t *testing.T) {
	p := Plan{
		Vertices:  make([]tessellate.Vertex, 10),
		Indices:   make([]uint32, 30),
		Instances: make([]Instance, 2),
		Main:      make([]Command, 3),
		Effects:   []EffectUse{{Effect: 1, Params: []byte{1, 2, 3, 4}}},
	}
	p.Reset()
	if len(p.Vertices) != 0 || len(p.Indices) != 0 || len(p.Instances) != 0 || len(p.Main) != 0 || p.HasEffects() {
		t.Fatal("Reset left data")
	}
	if p.Effects[:1][0].Params != nil {
		t.Error("Reset kept a reference to effect parameters")
	}
	if cap(p.Vertices) != 10 || cap(p.Indices) != 30 {
		t.Error("Reset dropped storage")
	}
}
