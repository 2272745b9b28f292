package terrain

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/sectorstream/internal/dem"
	"github.com/Faultbox/sectorstream/internal/track"
)

func buildDEM(t *testing.T, roughness float64) *dem.DEM {
	t.Helper()
	params := dem.Params{H: 0.5, K: 0.55, Roughness: roughness, IBu: -0.4}
	d := dem.New(64, 2, params, rand.New(rand.NewPCG(4, 2)), nil)
	d.Simulate()
	if err := d.MidpointDisplacementBottomUp(nil, nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := d.TriangleEdge(); err != nil {
		t.Fatal(err)
	}
	return d
}

func TestBuildTerrainSectionsKeepsEveryTriangle(t *testing.T) {
	d := buildDEM(t, 50)

	tests := []struct {
		name  string
		bands Bands
		only  int // section index holding everything, or -1
	}{
		{"all low", Bands{Medium: math.Inf(1), High: math.Inf(1)}, 0},
		{"all high", Bands{Medium: math.Inf(-1), High: math.Inf(-1)}, 2},
		{"split", Bands{Medium: 0, High: 40}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sections, err := BuildTerrainSections(d, mgl64.Vec2{}, tt.bands, nil)
			if err != nil {
				t.Fatal(err)
			}
			total := 0
			for k, m := range sections {
				total += m.TriangleCount()
				for _, idx := range m.Indices {
					if int(idx) >= len(m.Vertices) {
						t.Fatalf("section %d index %d out of range", k, idx)
					}
				}
				if tt.only >= 0 && k != tt.only && !m.Empty() {
					t.Errorf("section %d should be empty", k)
				}
			}
			if total != len(d.Triangles()) {
				t.Errorf("sections hold %d triangles, want %d", total, len(d.Triangles()))
			}
		})
	}
}

func TestFlatTerrainNormalsPointUp(t *testing.T) {
	d := buildDEM(t, 0)
	sections, err := BuildTerrainSections(d, mgl64.Vec2{}, Bands{Medium: 1, High: 2}, nil)
	if err != nil {
		t.Fatal(err)
	}
	low := sections[0]
	if low.Empty() {
		t.Fatal("flat terrain should land in the low section")
	}
	for i, v := range low.Vertices {
		if v.Normal != [3]float32{0, 0, 1} {
			t.Fatalf("vertex %d normal = %v", i, v.Normal)
		}
	}
	if low.Bounds.Min[0] != 0 || low.Bounds.Max[0] != 64 || low.Bounds.Max[1] != 64 {
		t.Errorf("bounds = %+v", low.Bounds)
	}
}

func TestBuildTerrainSectionsRequiresTriangles(t *testing.T) {
	d := dem.New(64, 1, dem.Params{}, rand.New(rand.NewPCG(1, 1)), nil)
	if _, err := BuildTerrainSections(d, mgl64.Vec2{}, Bands{}, nil); err == nil {
		t.Fatal("expected an error for an unsynthesized DEM")
	}
}

func TestDetailNoiseSkipsBorders(t *testing.T) {
	d := buildDEM(t, 0)
	detail := NewDetailNoise(7, 500, 1.0/16)
	sections, err := BuildTerrainSections(d, mgl64.Vec2{1000, 2000}, Bands{Medium: math.Inf(1), High: math.Inf(1)}, detail)
	if err != nil {
		t.Fatal(err)
	}
	moved := false
	for _, v := range sections[0].Vertices {
		x, y := v.Position[0], v.Position[1]
		onBorder := x == 0 || y == 0 || x == 64 || y == 64
		if onBorder && v.Position[2] != 0 {
			t.Errorf("border vertex %v was displaced", v.Position)
		}
		if !onBorder && v.Position[2] != 0 {
			moved = true
		}
	}
	if !moved {
		t.Error("detail noise did not touch any interior vertex")
	}
}

func TestDetailNoise(t *testing.T) {
	if NewDetailNoise(1, 0, 1) != nil {
		t.Error("zero amplitude should disable the layer")
	}
	var off *DetailNoise
	if off.At(mgl64.Vec2{3, 4}) != 0 {
		t.Error("nil layer should be flat")
	}

	a := NewDetailNoise(9, 100, 0.01)
	b := NewDetailNoise(9, 100, 0.01)
	p := mgl64.Vec2{1234.5, -987.25}
	if a.At(p) != b.At(p) {
		t.Error("equally seeded layers differ")
	}
}

func TestBuildTrackMesh(t *testing.T) {
	ribbon := []track.Edge{
		{Left: mgl64.Vec3{0, 10, 5}, Right: mgl64.Vec3{0, -10, 5}},
		{Left: mgl64.Vec3{50, 10, 5}, Right: mgl64.Vec3{50, -10, 5}},
		{Left: mgl64.Vec3{100, 10, 5}, Right: mgl64.Vec3{100, -10, 5}},
	}
	m := BuildTrackMesh(ribbon, mgl64.Vec2{})

	if len(m.Vertices) != 6 || m.TriangleCount() != 4 {
		t.Fatalf("got %d vertices and %d triangles", len(m.Vertices), m.TriangleCount())
	}
	for i, v := range m.Vertices {
		if v.Normal != [3]float32{0, 0, 1} {
			t.Errorf("vertex %d normal = %v, want up", i, v.Normal)
		}
	}
	if m.Vertices[4].TexCoord[1] != 100/textureScale {
		t.Errorf("last texcoord v = %v", m.Vertices[4].TexCoord[1])
	}
	if BuildTrackMesh(ribbon[:1], mgl64.Vec2{}).TriangleCount() != 0 {
		t.Error("a single cross-section has no triangles")
	}
}

func TestBandsSection(t *testing.T) {
	b := Bands{Medium: 10, High: 20}
	tests := []struct {
		z    float64
		want Section
	}{
		{-5, SectionLow},
		{10, SectionMedium},
		{19.9, SectionMedium},
		{20, SectionHigh},
	}
	for _, tt := range tests {
		if got := b.Section(tt.z); got != tt.want {
			t.Errorf("Section(%v) = %v, want %v", tt.z, got, tt.want)
		}
	}
}
