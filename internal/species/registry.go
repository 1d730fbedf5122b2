package species

import (
	"bufio"
	"fmt"
	"iter"
	"os"
	"strings"

	"golang.org/x/text/cases"
)

// MatchMode selects how completion candidates are matched against typed text
type MatchMode int

const (
	// MatchPrefix offers labels starting with the typed text
	MatchPrefix MatchMode = iota
	// MatchSubstring offers labels containing the typed text anywhere
	MatchSubstring
)

// ParseMatchMode maps a config value onto a MatchMode
func ParseMatchMode(s string) (MatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "prefix":
		return MatchPrefix, nil
	case "substring", "contains":
		return MatchSubstring, nil
	default:
		return MatchPrefix, fmt.Errorf("unsupported completion mode: %s (supported: prefix, substring)", s)
	}
}

func (m MatchMode) String() string {
	if m == MatchSubstring {
		return "substring"
	}
	return "prefix"
}

// Key returns the case-folded form used for membership tests
func Key(label string) string {
	return cases.Fold().String(label)
}

// Equal compares two labels ignoring case and surrounding whitespace
func Equal(a, b string) bool {
	return Key(strings.TrimSpace(a)) == Key(strings.TrimSpace(b))
}

// Registry accumulates known species labels for completion.
// A label is kept under the casing it was first seen with.
type Registry struct {
	labels []string
	seen   map[string]struct{}
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		seen: make(map[string]struct{}),
	}
}

// Register adds label unless a case variant is already known
func (r *Registry) Register(label string) bool {
	if label == "" {
		return false
	}
	key := Key(label)
	if _, ok := r.seen[key]; ok {
		return false
	}
	r.seen[key] = struct{}{}
	r.labels = append(r.labels, label)
	return true
}

// RegisterSeedFile registers every non-blank, trimmed line of path
func (r *Registry) RegisterSeedFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open species file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if label := strings.TrimSpace(scanner.Text()); label != "" {
			r.Register(label)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading species file: %w", err)
	}

	return nil
}

// Contains reports whether a case variant of label is registered
func (r *Registry) Contains(label string) bool {
	_, ok := r.seen[Key(label)]
	return ok
}

// Len returns the number of distinct labels
func (r *Registry) Len() int {
	return len(r.labels)
}

// Labels returns the registered labels in registration order
func (r *Registry) Labels() []string {
	out := make([]string, len(r.labels))
	copy(out, r.labels)
	return out
}

// Completions yields every label matching text under mode, in the order given.
// The sequence is lazy and can be ranged over any number of times.
func Completions(text string, labels []string, mode MatchMode) iter.Seq[string] {
	needle := Key(text)
	return func(yield func(string) bool) {
		for _, label := range labels {
			key := Key(label)
			var ok bool
			switch mode {
			case MatchSubstring:
				ok = strings.Contains(key, needle)
			default:
				ok = strings.HasPrefix(key, needle)
			}
			if ok && !yield(label) {
				return
			}
		}
	}
}
