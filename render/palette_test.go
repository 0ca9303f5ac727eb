package render

import (
	"errors"
	"image/color"
	"testing"
)

func TestPreset(t *testing.T) {
	tests := []struct {
		name        string
		wantOK      bool
		wantCore    int
		wantExtends bool
	}{
		{"spectra6", true, 6, true},
		{"standard", true, 6, false},
		{"eink", false, 0, false},
		{"", false, 0, false},
	}
	for _, tt := range tests {
		core, extended, ok := Preset(tt.name)
		if ok != tt.wantOK {
			t.Errorf("Preset(%q) ok = %v, want %v", tt.name, ok, tt.wantOK)
			continue
		}
		if len(core) != tt.wantCore {
			t.Errorf("Preset(%q) core has %d entries, want %d", tt.name, len(core), tt.wantCore)
		}
		if (len(extended) > 0) != tt.wantExtends {
			t.Errorf("Preset(%q) extended has %d entries, want extended=%v", tt.name, len(extended), tt.wantExtends)
		}
	}
}

func TestNewPaletteEmpty(t *testing.T) {
	_, err := NewPalette(nil, nil)
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("NewPalette(nil, nil) error = %v, want ErrConfig", err)
	}
	// Auxiliary shades alone are not a palette either.
	_, err = NewPalette(nil, Spectra6Extended)
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("NewPalette(nil, extended) error = %v, want ErrConfig", err)
	}
}

func TestNearestExactMatch(t *testing.T) {
	p, err := NewPalette(Spectra6, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range []Metric{MetricRGB, MetricLab} {
		for i, c := range Spectra6 {
			got := p.Nearest(c, m)
			if got != c {
				t.Errorf("metric %v: Nearest(%v) = %v, want entry %d unchanged", m, c, got, i)
			}
		}
	}
}

func TestNearestTieBreak(t *testing.T) {
	// (1,0,0) is equidistant from both entries; the lower index wins.
	core := []color.RGBA{
		{0, 0, 0, 255},
		{2, 0, 0, 255},
	}
	p, err := NewPalette(core, nil)
	if err != nil {
		t.Fatal(err)
	}
	got := p.Nearest(color.RGBA{1, 0, 0, 255}, MetricRGB)
	if got != core[0] {
		t.Errorf("Nearest tie = %v, want lower-index entry %v", got, core[0])
	}
}

func TestNearestSnapsAuxiliaryShades(t *testing.T) {
	// Mid-gray is far closer to the auxiliary gray than to black or
	// white, but the emitted color must still be a core entry.
	core := []color.RGBA{
		{0, 0, 0, 255},
		{255, 255, 255, 255},
	}
	extended := []color.RGBA{{128, 128, 128, 255}}
	p, err := NewPalette(core, extended)
	if err != nil {
		t.Fatal(err)
	}
	got := p.Nearest(color.RGBA{120, 120, 120, 255}, MetricRGB)
	// 128 sits 128 from black and 127 from white, so the shade snaps
	// to white.
	if got != core[1] {
		t.Errorf("Nearest(gray) = %v, want core white %v", got, core[1])
	}
	if p.Len() != 2 {
		t.Errorf("Len() = %d, want 2 core entries", p.Len())
	}
	if len(p.Colors()) != 2 {
		t.Errorf("Colors() has %d entries, auxiliary shades must not leak", len(p.Colors()))
	}
}
