package species

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestRegisterKeepsFirstCasing(t *testing.T) {
	r := NewRegistry()

	if !r.Register("G. ruber") {
		t.Error("Expected first registration to succeed")
	}
	if r.Register("g. RUBER") {
		t.Error("Expected case variant to be treated as duplicate")
	}
	if r.Register("") {
		t.Error("Expected empty label to be ignored")
	}
	r.Register("O. universa")

	expected := []string{"G. ruber", "O. universa"}
	if got := r.Labels(); !slices.Equal(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
	if !r.Contains("g. ruber") {
		t.Error("Expected case-insensitive membership")
	}
}

func TestRegisterSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "species.txt")
	data := "G. ruber\n  O. universa  \n\ng. ruber\nN. dutertrei\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	r := NewRegistry()
	if err := r.RegisterSeedFile(path); err != nil {
		t.Fatalf("RegisterSeedFile failed: %v", err)
	}

	expected := []string{"G. ruber", "O. universa", "N. dutertrei"}
	if got := r.Labels(); !slices.Equal(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}

	if err := r.RegisterSeedFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("Expected error for missing seed file, got nil")
	}
}

func TestCompletions(t *testing.T) {
	labels := []string{"G. ruber", "G. sacculifer", "N. dutertrei", "g. bulloides"}

	tests := []struct {
		name     string
		text     string
		mode     MatchMode
		expected []string
	}{
		{
			name:     "prefix is case insensitive and ordered",
			text:     "g.",
			mode:     MatchPrefix,
			expected: []string{"G. ruber", "G. sacculifer", "g. bulloides"},
		},
		{
			name:     "empty prefix returns everything",
			text:     "",
			mode:     MatchPrefix,
			expected: labels,
		},
		{
			name:     "prefix does not match the middle",
			text:     "ruber",
			mode:     MatchPrefix,
			expected: nil,
		},
		{
			name:     "substring matches the middle",
			text:     "RUB",
			mode:     MatchSubstring,
			expected: []string{"G. ruber"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slices.Collect(Completions(tt.text, labels, tt.mode))
			if !slices.Equal(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestCompletionsRestartable(t *testing.T) {
	seq := Completions("g", []string{"G. ruber", "G. sacculifer"}, MatchPrefix)

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	if !slices.Equal(first, second) || len(first) != 2 {
		t.Errorf("Expected identical passes, got %v and %v", first, second)
	}

	// stopping early must not disturb later passes
	for range seq {
		break
	}
	if got := slices.Collect(seq); len(got) != 2 {
		t.Errorf("Expected 2 completions after early stop, got %v", got)
	}
}

func TestEqual(t *testing.T) {
	if !Equal("  G. Ruber ", "g. ruber") {
		t.Error("Expected trimmed case-insensitive equality")
	}
	if Equal("G. ruber", "G. rubescens") {
		t.Error("Expected different species to differ")
	}
}

func TestParseMatchMode(t *testing.T) {
	if m, err := ParseMatchMode("substring"); err != nil || m != MatchSubstring {
		t.Errorf("Expected substring mode, got %v (%v)", m, err)
	}
	if m, err := ParseMatchMode(""); err != nil || m != MatchPrefix {
		t.Errorf("Expected prefix default, got %v (%v)", m, err)
	}
	if _, err := ParseMatchMode("fuzzy"); err == nil {
		t.Error("Expected error for unsupported mode, got nil")
	}
}
