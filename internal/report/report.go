package report

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/lehigh-university-libraries/classifier/internal/consensus"
	"github.com/lehigh-university-libraries/classifier/internal/objects"
	"github.com/lehigh-university-libraries/classifier/internal/records"
	"github.com/lehigh-university-libraries/classifier/internal/species"
)

// RaterStats summarizes one rater file
type RaterStats struct {
	Initials       string         `json:"initials" yaml:"initials"`
	Path           string         `json:"path" yaml:"path"`
	Records        int            `json:"records" yaml:"records"`
	Coverage       float64        `json:"coverage" yaml:"coverage"`
	Confidence     map[int]int    `json:"confidence" yaml:"confidence"`
	MeanConfidence float64        `json:"mean_confidence" yaml:"mean_confidence"`
	Proloculous    map[string]int `json:"proloculous,omitempty" yaml:"proloculous,omitempty"`
	Species        int            `json:"species" yaml:"species"`
}

// PairAgreement compares the species two raters gave the objects they both recorded
type PairAgreement struct {
	A      string  `json:"a" yaml:"a"`
	B      string  `json:"b" yaml:"b"`
	Shared int     `json:"shared" yaml:"shared"`
	Agreed int     `json:"agreed" yaml:"agreed"`
	Rate   float64 `json:"rate" yaml:"rate"`
}

// SpeciesCount is how often a species was recorded across raters
type SpeciesCount struct {
	Species string `json:"species" yaml:"species"`
	Count   int    `json:"count" yaml:"count"`
}

// ConsensusStats describes the unanimous subset across raters
type ConsensusStats struct {
	Raters        int `json:"raters" yaml:"raters"`
	Unanimous     int `json:"unanimous" yaml:"unanimous"`
	Disagreements int `json:"disagreements" yaml:"disagreements"`
}

// Report aggregates every rater file of a sample
type Report struct {
	Sample    string          `json:"sample" yaml:"sample"`
	Dir       string          `json:"dir" yaml:"dir"`
	Objects   int             `json:"objects" yaml:"objects"`
	Raters    []RaterStats    `json:"raters" yaml:"raters"`
	Agreement []PairAgreement `json:"agreement" yaml:"agreement"`
	Consensus ConsensusStats  `json:"consensus" yaml:"consensus"`
	Species   []SpeciesCount  `json:"species" yaml:"species"`
}

// Build loads every rater file next to the images of set and aggregates them.
// The combined file is reported with the others but left out of agreement and consensus.
func Build(set *objects.Set) (*Report, error) {
	files, err := records.FindRaterFiles(set.Dir, set.Sample)
	if err != nil {
		return nil, err
	}

	r := &Report{
		Sample:  set.Sample,
		Dir:     set.Dir,
		Objects: set.Len(),
	}

	var raters []consensus.Sibling
	counts := make(map[string]*SpeciesCount)
	var order []string

	for _, f := range files {
		store, err := records.Load(f.Path, records.LoadOptions{
			Sample:  set.Sample,
			Objects: set,
			Schema:  records.SchemaProloculous,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load rater file for %s: %w", f.Initials, err)
		}

		all := store.All()
		r.Raters = append(r.Raters, raterStats(f, all, set.Len()))

		for _, rec := range all {
			key := species.Key(rec.Species)
			c, ok := counts[key]
			if !ok {
				c = &SpeciesCount{Species: rec.Species}
				counts[key] = c
				order = append(order, key)
			}
			c.Count++
		}

		if f.Initials != records.CombinedInitials {
			raters = append(raters, consensus.Sibling{Initials: f.Initials, Path: f.Path, Records: all})
		}
	}

	r.Agreement = pairwise(raters)

	seeds, disagreements := consensus.Agree(raters)
	r.Consensus = ConsensusStats{
		Raters:        len(raters),
		Unanimous:     len(seeds),
		Disagreements: len(disagreements),
	}

	for _, key := range order {
		r.Species = append(r.Species, *counts[key])
	}
	sort.SliceStable(r.Species, func(i, j int) bool {
		return r.Species[i].Count > r.Species[j].Count
	})

	slog.Debug("Report built", "sample", r.Sample, "raters", len(r.Raters), "species", len(r.Species))

	return r, nil
}

func raterStats(f records.RaterFile, all map[objects.ID]records.Record, objectCount int) RaterStats {
	stats := RaterStats{
		Initials:    f.Initials,
		Path:        f.Path,
		Records:     len(all),
		Confidence:  map[int]int{records.ConfidenceLow: 0, records.ConfidenceMed: 0, records.ConfidenceHigh: 0},
		Proloculous: make(map[string]int),
	}

	seen := make(map[string]struct{})
	total := 0
	for _, rec := range all {
		stats.Confidence[rec.Confidence]++
		total += rec.Confidence
		if rec.Proloculous != "" {
			stats.Proloculous[rec.Proloculous]++
		}
		seen[species.Key(rec.Species)] = struct{}{}
	}
	stats.Species = len(seen)

	if len(all) > 0 {
		stats.MeanConfidence = float64(total) / float64(len(all))
	}
	if objectCount > 0 {
		stats.Coverage = float64(len(all)) / float64(objectCount)
	}
	return stats
}

// pairwise compares every pair of raters on the objects both recorded
func pairwise(raters []consensus.Sibling) []PairAgreement {
	var result []PairAgreement
	for i := 0; i < len(raters); i++ {
		for j := i + 1; j < len(raters); j++ {
			a, b := raters[i], raters[j]
			pair := PairAgreement{A: a.Initials, B: b.Initials}
			for id, ra := range a.Records {
				rb, ok := b.Records[id]
				if !ok {
					continue
				}
				pair.Shared++
				if species.Equal(ra.Species, rb.Species) {
					pair.Agreed++
				}
			}
			if pair.Shared > 0 {
				pair.Rate = float64(pair.Agreed) / float64(pair.Shared)
			}
			result = append(result, pair)
		}
	}
	return result
}
