package encryption

import (
	"errors"
	"testing"
)

func TestIsLegalSize(t *testing.T) {
	exact := KeySizes{MinSize: 128, MaxSize: 128, SkipSize: 0}
	stepped := KeySizes{MinSize: 128, MaxSize: 256, SkipSize: 64}

	tests := []struct {
		name  string
		size  int
		specs []KeySizes
		want  bool
	}{
		{"exact match", 128, []KeySizes{exact}, true},
		{"exact miss", 127, []KeySizes{exact}, false},
		{"stepped middle", 192, []KeySizes{stepped}, true},
		{"stepped upper bound", 256, []KeySizes{stepped}, true},
		{"stepped off grid", 200, []KeySizes{stepped}, false},
		{"stepped above max", 320, []KeySizes{stepped}, false},
		{"zero size", 0, []KeySizes{exact, stepped}, false},
		{"negative size", -128, []KeySizes{exact, stepped}, false},
		{"second spec matches", 64, []KeySizes{exact, {MinSize: 64, MaxSize: 64}}, true},
		{"empty list", 128, nil, false},
		{"negative step never matches", 128, []KeySizes{{MinSize: 128, MaxSize: 256, SkipSize: -64}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsLegalSize(tt.size, tt.specs...); got != tt.want {
				t.Fatalf("IsLegalSize(%d, %v) = %v, want %v", tt.size, tt.specs, got, tt.want)
			}
		})
	}
}

func TestIsLegalSizeExactReportsZeroSkip(t *testing.T) {
	specs := []KeySizes{
		{MinSize: 128, MaxSize: 256, SkipSize: 64},
		{MinSize: 512, MaxSize: 512, SkipSize: 0},
	}

	legal, zeroSkip := IsLegalSizeExact(192, specs...)
	if !legal || zeroSkip {
		t.Fatalf("192: got legal=%v zeroSkip=%v, want true/false", legal, zeroSkip)
	}

	legal, zeroSkip = IsLegalSizeExact(512, specs...)
	if !legal || !zeroSkip {
		t.Fatalf("512: got legal=%v zeroSkip=%v, want true/true", legal, zeroSkip)
	}

	legal, zeroSkip = IsLegalSizeExact(100, specs...)
	if legal || zeroSkip {
		t.Fatalf("100: got legal=%v zeroSkip=%v, want false/false", legal, zeroSkip)
	}
}

func TestNewKeySizesValidates(t *testing.T) {
	if _, err := NewKeySizes(128, 256, 64); err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}
	if _, err := NewKeySizes(128, 0, 0); err != nil {
		t.Fatalf("exact spec with ignored max rejected: %v", err)
	}

	for _, bad := range []KeySizes{
		{MinSize: 128, MaxSize: 256, SkipSize: -8},
		{MinSize: 0, MaxSize: 256, SkipSize: 8},
		{MinSize: 256, MaxSize: 128, SkipSize: 8},
	} {
		if _, err := NewKeySizes(bad.MinSize, bad.MaxSize, bad.SkipSize); !errors.Is(err, ErrInvalidSizeSpec) {
			t.Fatalf("%v: expected ErrInvalidSizeSpec, got %v", bad, err)
		}
	}
}
