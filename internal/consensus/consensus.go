package consensus

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/lehigh-university-libraries/classifier/internal/objects"
	"github.com/lehigh-university-libraries/classifier/internal/records"
	"github.com/lehigh-university-libraries/classifier/internal/species"
)

// Confidence assigned to every seeded record: all raters agreed independently
const Confidence = records.ConfidenceHigh

// Sibling is another rater's record file, loaded read-only
type Sibling struct {
	Initials string
	Path     string
	Records  map[objects.ID]records.Record
}

// Seed is an object every sibling agrees on
type Seed struct {
	ID     objects.ID
	Record records.Record
}

// Disagreement is an object recorded by every sibling with differing species
type Disagreement struct {
	ID      objects.ID
	Species map[string]string // initials -> species
}

// Result is the outcome of comparing sibling record files
type Result struct {
	Siblings      []Sibling
	Seeds         []Seed
	Disagreements []Disagreement
}

// Discover lists the rater files for the set's sample, excluding the active rater's own file
func Discover(set *objects.Set, active string) ([]records.RaterFile, error) {
	files, err := records.FindRaterFiles(set.Dir, set.Sample)
	if err != nil {
		return nil, err
	}

	siblings := files[:0]
	for _, f := range files {
		if f.Initials != active {
			siblings = append(siblings, f)
		}
	}
	return siblings, nil
}

// Build loads every sibling of the active rater and computes the unanimous subset.
// Species seen in sibling files are passed to register when it is non-nil.
func Build(set *objects.Set, active string, register func(string) bool) (*Result, error) {
	files, err := Discover(set, active)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, f := range files {
		store, err := records.Load(f.Path, records.LoadOptions{
			Sample:   set.Sample,
			Objects:  set,
			Schema:   records.SchemaProloculous,
			Register: register,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load rater file for %s: %w", f.Initials, err)
		}
		result.Siblings = append(result.Siblings, Sibling{
			Initials: f.Initials,
			Path:     f.Path,
			Records:  store.All(),
		})
		slog.Debug("Loaded sibling rater file", "initials", f.Initials, "records", store.Len())
	}

	result.Seeds, result.Disagreements = Agree(result.Siblings)

	slog.Info("Consensus computed",
		"siblings", len(result.Siblings),
		"agreed", len(result.Seeds),
		"disagreed", len(result.Disagreements))

	return result, nil
}

// Agree returns the objects every sibling recorded with the same species,
// and the objects every sibling recorded with differing species.
// Objects missing from any sibling are in neither list.
func Agree(siblings []Sibling) ([]Seed, []Disagreement) {
	if len(siblings) == 0 {
		return nil, nil
	}

	// the smallest mapping bounds the candidates
	ref := siblings[0]
	for _, s := range siblings[1:] {
		if len(s.Records) < len(ref.Records) {
			ref = s
		}
	}

	ids := make([]objects.ID, 0, len(ref.Records))
	for id := range ref.Records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].Number < ids[j].Number
	})

	var seeds []Seed
	var disagreements []Disagreement
	for _, id := range ids {
		want := ref.Records[id].Species
		inAll, agreed := true, true
		for _, s := range siblings {
			rec, ok := s.Records[id]
			if !ok {
				inAll = false
				break
			}
			if !species.Equal(rec.Species, want) {
				agreed = false
			}
		}

		switch {
		case !inAll:
		case agreed:
			seeds = append(seeds, Seed{
				ID: id,
				Record: records.Record{
					Species:    strings.TrimSpace(want),
					Confidence: Confidence,
				},
			})
		default:
			d := Disagreement{ID: id, Species: make(map[string]string, len(siblings))}
			for _, s := range siblings {
				d.Species[s.Initials] = s.Records[id].Species
			}
			disagreements = append(disagreements, d)
		}
	}

	return seeds, disagreements
}

// Apply inserts every seed the store does not already hold and returns how many were added
func (r *Result) Apply(store *records.Store) (int, error) {
	added := 0
	for _, seed := range r.Seeds {
		if store.Contains(seed.ID) {
			continue
		}
		if err := store.Upsert(seed.ID, seed.Record); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}
