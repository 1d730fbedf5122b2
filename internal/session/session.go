package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/lehigh-university-libraries/classifier/internal/consensus"
	"github.com/lehigh-university-libraries/classifier/internal/display"
	"github.com/lehigh-university-libraries/classifier/internal/objects"
	"github.com/lehigh-university-libraries/classifier/internal/prompt"
	"github.com/lehigh-university-libraries/classifier/internal/records"
	"github.com/lehigh-university-libraries/classifier/internal/species"
)

// State is a step of the annotation state machine
type State int

const (
	Scanning State = iota
	Filtering
	Annotating
	AwaitingInput
	Persisting
	Complete
)

func (s State) String() string {
	switch s {
	case Scanning:
		return "scanning"
	case Filtering:
		return "filtering"
	case Annotating:
		return "annotating"
	case AwaitingInput:
		return "awaiting-input"
	case Persisting:
		return "persisting"
	case Complete:
		return "complete"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Options configures a session
type Options struct {
	// Dir holds the object images and the record files
	Dir string
	// Initials of the rater; "combined" seeds the store from the other raters
	Initials string
	// SpeciesFile seeds completions. Optional.
	SpeciesFile string
	// Proloculous asks for the proloculous attribute after the confidence
	Proloculous bool
	// Filter restricts re-annotation to a set of species collected at the start of Run
	Filter bool
	// Completion selects how typed text matches known species
	Completion species.MatchMode

	Prompter prompt.Prompter
	Display  display.Sink
	// Out receives progress messages. Defaults to io.Discard.
	Out io.Writer
}

// Summary describes what a session did
type Summary struct {
	ID   string `json:"id" yaml:"id"`
	Path string `json:"path" yaml:"path"`
	// Stored is the number of records held when the session ended
	Stored int `json:"stored" yaml:"stored"`
	// Annotated is the number of records saved from input
	Annotated int `json:"annotated" yaml:"annotated"`
	// Seeded is the number of records added from rater consensus
	Seeded int `json:"seeded" yaml:"seeded"`
	// Skipped is the number of objects passed over without prompting
	Skipped int `json:"skipped" yaml:"skipped"`
}

// Session annotates the objects of one directory for one rater
type Session struct {
	opts     Options
	id       string
	state    State
	set      *objects.Set
	store    *records.Store
	registry *species.Registry
	path     string
	schema   records.Schema
	// filter maps species.Key to the label as typed; nil outside filter mode
	filter  map[string]string
	summary Summary
	out     io.Writer
}

// Open scans the directory, loads or creates the rater's record file and, for the
// combined rater, seeds it from consensus. Every structural problem is returned here,
// before any prompt is issued.
func Open(opts Options) (*Session, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("image directory is required")
	}
	if opts.Initials == "" {
		return nil, fmt.Errorf("rater initials are required")
	}
	if opts.Prompter == nil {
		return nil, fmt.Errorf("a prompter is required")
	}
	if opts.Display == nil {
		opts.Display = display.Nop{}
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}

	s := &Session{
		opts:     opts,
		id:       uuid.New().String(),
		state:    Scanning,
		registry: species.NewRegistry(),
		schema:   records.SchemaPlain,
		out:      out,
	}
	if opts.Proloculous {
		s.schema = records.SchemaProloculous
	}

	set, err := objects.Resolve(opts.Dir)
	if err != nil {
		return nil, err
	}
	if err := set.CheckSample(); err != nil {
		return nil, err
	}
	s.set = set

	if opts.SpeciesFile != "" {
		if err := s.registry.RegisterSeedFile(opts.SpeciesFile); err != nil {
			return nil, err
		}
	}

	s.path = filepath.Join(set.Dir, records.FileName(set.Sample, opts.Initials))
	s.summary = Summary{ID: s.id, Path: s.path}

	if err := s.loadStore(); err != nil {
		return nil, err
	}

	if opts.Initials == records.CombinedInitials {
		if err := s.seed(); err != nil {
			return nil, err
		}
	}

	slog.Info("Session opened",
		"session", s.id,
		"sample", set.Sample,
		"objects", set.Len(),
		"records", s.store.Len(),
		"schema", s.schema,
		"path", s.path)

	return s, nil
}

func (s *Session) loadStore() error {
	if _, err := os.Stat(s.path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to check record file: %w", err)
		}
		fmt.Fprintf(s.out, "Generating new record file '%s'\n", s.path)
		s.store = records.New(s.set.Sample, s.schema)
		return nil
	}

	fmt.Fprintf(s.out, "Loading data from '%s'...\n", s.path)
	store, err := records.Load(s.path, records.LoadOptions{
		Sample:   s.set.Sample,
		Objects:  s.set,
		Schema:   s.schema,
		Register: s.registry.Register,
	})
	if err != nil {
		return err
	}
	s.store = store

	fmt.Fprintf(s.out, "Sample name: %s\n", s.set.Sample)
	fmt.Fprintf(s.out, "%d objects already in file.\n", store.Len())
	return nil
}

func (s *Session) seed() error {
	result, err := consensus.Build(s.set, s.opts.Initials, s.registry.Register)
	if err != nil {
		return err
	}
	added, err := result.Apply(s.store)
	if err != nil {
		return fmt.Errorf("failed to apply consensus: %w", err)
	}
	if added > 0 {
		if err := s.store.Persist(s.path); err != nil {
			return err
		}
	}
	s.summary.Seeded = added

	fmt.Fprintf(s.out, "%d objects seeded from %d rater files (%d disagreements).\n",
		added, len(result.Siblings), len(result.Disagreements))
	return nil
}

// ID identifies the session in logs
func (s *Session) ID() string {
	return s.id
}

// State returns the current state
func (s *Session) State() State {
	return s.state
}

// Store returns the rater's record store
func (s *Session) Store() *records.Store {
	return s.store
}

// Path returns the rater's record file
func (s *Session) Path() string {
	return s.path
}

// Summary returns the counts so far
func (s *Session) Summary() Summary {
	sum := s.summary
	sum.Stored = s.store.Len()
	return sum
}

func (s *Session) setState(next State) {
	if next == s.state {
		return
	}
	slog.Debug("Session state", "session", s.id, "from", s.state, "to", next)
	s.state = next
}
