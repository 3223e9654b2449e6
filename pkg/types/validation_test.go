package types_test

import (
	"testing"

	"github.com/atticlabs/attic/pkg/types"
)

func TestIsValidSourceKind(t *testing.T) {
	for _, kind := range types.ValidSourceKinds {
		if !types.IsValidSourceKind(kind) {
			t.Errorf("expected %q to be valid", kind)
		}
	}

	invalid := []types.SourceKind{"", "video", "forward", "TEXT"}
	for _, kind := range invalid {
		if types.IsValidSourceKind(kind) {
			t.Errorf("expected %q to be invalid", kind)
		}
	}
}

func TestIsValidEntityKind(t *testing.T) {
	for _, kind := range types.ValidEntityKinds {
		if !types.IsValidEntityKind(kind) {
			t.Errorf("expected %q to be valid", kind)
		}
	}

	invalid := []types.EntityKind{"", "organization", "Person"}
	for _, kind := range invalid {
		if types.IsValidEntityKind(kind) {
			t.Errorf("expected %q to be invalid", kind)
		}
	}
}

func TestIsValidTagColor(t *testing.T) {
	valid := []string{"#3B82F6", "3B82F6", "#ffffff", "000000", "#AbCdEf"}
	for _, color := range valid {
		if !types.IsValidTagColor(color) {
			t.Errorf("expected %q to be valid", color)
		}
	}

	invalid := []string{"", "#fff", "zzzzzz", "#12345", "#1234567", "bl ue "}
	for _, color := range invalid {
		if types.IsValidTagColor(color) {
			t.Errorf("expected %q to be invalid", color)
		}
	}
}

func TestNormalizeTagColor(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", types.DefaultTagColor},
		{"3B82F6", "#3B82F6"},
		{"#22C55E", "#22C55E"},
	}

	for _, tt := range tests {
		if got := types.NormalizeTagColor(tt.in); got != tt.want {
			t.Errorf("NormalizeTagColor(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
