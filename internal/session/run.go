package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/classifier/internal/objects"
	"github.com/lehigh-university-libraries/classifier/internal/prompt"
	"github.com/lehigh-university-libraries/classifier/internal/records"
	"github.com/lehigh-university-libraries/classifier/internal/species"
)

// Answers with a meaning of their own
const (
	QuitAnswer   = "quit"
	ChangeAnswer = "c"
)

const (
	speciesQuestion       = "Enter species name:"
	confidenceQuestion    = "Confidence (1=low, 2=med, 3=high, c=change species):"
	confidenceRetry       = "Type 1, 2, or 3 for confidence (c to change species):"
	proloculousQuestion   = "Proloculous (mega, micro, unk, c=change species):"
	proloculousRetry      = "Type mega, micro, or unk (c to change species):"
	filterQuestion        = "Species to include (blank to finish):"
	filterConfirmQuestion = "Use this filter? (y/n):"
)

// errStop ends the session without an error: quit or interrupt
var errStop = errors.New("session stopped")

// Run walks the objects in order, prompting for each one that still needs an
// annotation and saving after every accepted answer. Quit, interrupt and context
// cancellation end the session normally; only persistence and input failures are
// returned as errors.
func (s *Session) Run(ctx context.Context) (Summary, error) {
	if s.state == Complete {
		return s.Summary(), nil
	}

	err := s.run(ctx)
	s.setState(Complete)
	if errors.Is(err, errStop) {
		err = nil
	}

	sum := s.Summary()
	slog.Info("Session complete",
		"session", s.id,
		"stored", sum.Stored,
		"annotated", sum.Annotated,
		"seeded", sum.Seeded,
		"skipped", sum.Skipped)

	return sum, err
}

func (s *Session) run(ctx context.Context) error {
	if s.opts.Filter {
		s.setState(Filtering)
		if err := s.collectFilter(ctx); err != nil {
			return err
		}
	}

	for _, id := range s.set.IDs {
		if ctx.Err() != nil {
			return errStop
		}
		s.setState(Annotating)

		if s.skip(id) {
			s.summary.Skipped++
			continue
		}

		s.setState(AwaitingInput)
		rec, err := s.annotate(ctx, id)
		if err != nil {
			return err
		}

		s.setState(Persisting)
		if err := s.commit(id, rec); err != nil {
			return err
		}
	}
	return nil
}

// skip reports whether the object can be passed over without prompting
func (s *Session) skip(id objects.ID) bool {
	rec, ok := s.store.Get(id)
	if !ok {
		return false
	}
	if s.filter != nil && !s.inFilter(rec.Species) {
		return true
	}
	if s.schema == records.SchemaProloculous {
		return rec.Proloculous != ""
	}
	// a plain filter pass re-annotates the selected species
	return s.filter == nil
}

func (s *Session) inFilter(label string) bool {
	_, ok := s.filter[species.Key(strings.TrimSpace(label))]
	return ok
}

// annotate collects one record for id. Objects that already carry a species in
// proloculous mode are only asked for the proloculous unless the rater changes species.
func (s *Session) annotate(ctx context.Context, id objects.ID) (records.Record, error) {
	fmt.Fprintf(s.out, "\nObject number: %d\n", id.Number)
	s.opts.Display.Display(s.set.Path(id))

	pending, recorded := s.store.Get(id)
	askSpecies := !recorded || s.schema != records.SchemaProloculous
	if !askSpecies {
		fmt.Fprintf(s.out, "Species: %s (confidence %d)\n", pending.Species, pending.Confidence)
	}

	for {
		if askSpecies {
			label, err := s.askSpecies(ctx)
			if err != nil {
				return records.Record{}, err
			}
			confidence, change, err := s.askConfidence(ctx)
			if err != nil {
				return records.Record{}, err
			}
			if change {
				continue
			}
			pending = records.Record{Species: label, Confidence: confidence}
		}

		if s.schema == records.SchemaProloculous {
			value, change, err := s.askProloculous(ctx)
			if err != nil {
				return records.Record{}, err
			}
			if change {
				// the pending record is dropped and solicitation starts over
				askSpecies = true
				continue
			}
			pending.Proloculous = value
		}

		return pending, nil
	}
}

// commit saves rec for id. A failed write restores the previous record so the
// store never holds an answer the file does not.
func (s *Session) commit(id objects.ID, rec records.Record) error {
	prev, had := s.store.Get(id)
	s.store.Remove(id)
	if err := s.store.Upsert(id, rec); err != nil {
		return err
	}
	if err := s.store.Persist(s.path); err != nil {
		s.store.Remove(id)
		if had {
			if restoreErr := s.store.Upsert(id, prev); restoreErr != nil {
				slog.Error("Unable to restore record", "object", id.String(), "err", restoreErr)
			}
		}
		return err
	}
	s.summary.Annotated++

	slog.Debug("Annotation saved",
		"session", s.id,
		"object", id.String(),
		"species", rec.Species,
		"confidence", rec.Confidence,
		"proloculous", rec.Proloculous)
	return nil
}

// ask wraps the prompter so quit and interrupt surface as errStop
func (s *Session) ask(ctx context.Context, question string, complete prompt.Completer) (string, error) {
	answer, err := s.opts.Prompter.Ask(ctx, question, complete)
	if err != nil {
		if errors.Is(err, prompt.ErrInterrupted) || ctx.Err() != nil {
			return "", errStop
		}
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

func (s *Session) completeSpecies(text string) []string {
	return slices.Collect(species.Completions(text, s.registry.Labels(), s.opts.Completion))
}

func completeProloculous(text string) []string {
	return slices.Collect(species.Completions(text, records.ProloculousValues, species.MatchPrefix))
}

func (s *Session) askSpecies(ctx context.Context) (string, error) {
	for {
		label, err := s.ask(ctx, speciesQuestion, s.completeSpecies)
		if err != nil {
			return "", err
		}
		if label == "" {
			continue
		}
		if strings.EqualFold(label, QuitAnswer) {
			return "", errStop
		}
		s.registry.Register(label)
		return label, nil
	}
}

func (s *Session) askConfidence(ctx context.Context) (int, bool, error) {
	question := confidenceQuestion
	for {
		answer, err := s.ask(ctx, question, nil)
		if err != nil {
			return 0, false, err
		}
		if strings.EqualFold(answer, ChangeAnswer) {
			return 0, true, nil
		}
		if c, err := strconv.Atoi(answer); err == nil && records.ValidConfidence(c) && answer == strconv.Itoa(c) {
			return c, false, nil
		}
		question = confidenceRetry
	}
}

func (s *Session) askProloculous(ctx context.Context) (string, bool, error) {
	question := proloculousQuestion
	for {
		answer, err := s.ask(ctx, question, completeProloculous)
		if err != nil {
			return "", false, err
		}
		if strings.EqualFold(answer, ChangeAnswer) {
			return "", true, nil
		}
		value := strings.ToLower(answer)
		if records.ValidProloculous(value) && value != "" {
			return value, false, nil
		}
		question = proloculousRetry
	}
}

// collectFilter asks for the species to revisit until a blank answer, then
// confirms the set. Declining starts the collection over.
func (s *Session) collectFilter(ctx context.Context) error {
	for {
		filter := make(map[string]string)
		var labels []string
		for {
			label, err := s.ask(ctx, filterQuestion, s.completeSpecies)
			if err != nil {
				return err
			}
			if label == "" {
				break
			}
			if strings.EqualFold(label, QuitAnswer) {
				return errStop
			}
			key := species.Key(label)
			if _, ok := filter[key]; ok {
				continue
			}
			filter[key] = label
			labels = append(labels, label)
		}

		if len(labels) == 0 {
			fmt.Fprintln(s.out, "Enter at least one species to filter on.")
			continue
		}

		fmt.Fprintf(s.out, "Filtering on: %s\n", strings.Join(labels, ", "))
		confirmed, err := s.confirm(ctx)
		if err != nil {
			return err
		}
		if confirmed {
			s.filter = filter
			slog.Info("Species filter set", "session", s.id, "species", labels)
			return nil
		}
	}
}

func (s *Session) confirm(ctx context.Context) (bool, error) {
	for {
		answer, err := s.ask(ctx, filterConfirmQuestion, nil)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
	}
}
