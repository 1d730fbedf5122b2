package consensus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lehigh-university-libraries/classifier/internal/objects"
	"github.com/lehigh-university-libraries/classifier/internal/records"
)

func setup(t *testing.T, n int) *objects.Set {
	t.Helper()
	dir := t.TempDir()
	for i := 1; i <= n; i++ {
		name := objects.Filename(objects.ID{Sample: "S1", Number: i})
		if err := os.WriteFile(filepath.Join(dir, name), []byte("jpg"), 0644); err != nil {
			t.Fatalf("Failed to create image: %v", err)
		}
	}
	set, err := objects.Resolve(dir)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	return set
}

func writeRater(t *testing.T, set *objects.Set, initials string, species map[int]string) {
	t.Helper()
	store := records.New("S1", records.SchemaPlain)
	for n, s := range species {
		if err := store.Upsert(objects.ID{Sample: "S1", Number: n}, records.Record{Species: s, Confidence: 2}); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}
	if err := store.Persist(filepath.Join(set.Dir, records.FileName("S1", initials))); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
}

func seedMap(seeds []Seed) map[int]records.Record {
	m := make(map[int]records.Record, len(seeds))
	for _, s := range seeds {
		m[s.ID.Number] = s.Record
	}
	return m
}

func TestBuildUnanimity(t *testing.T) {
	set := setup(t, 4)
	writeRater(t, set, "ab", map[int]string{1: "A", 2: "A", 3: "C", 4: "D"})
	writeRater(t, set, "cd", map[int]string{1: "A", 2: "A", 3: "C"})
	writeRater(t, set, "ef", map[int]string{1: "B", 2: " a ", 3: "c", 4: "D"})

	result, err := Build(set, records.CombinedInitials, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(result.Siblings) != 3 {
		t.Fatalf("Expected 3 siblings, got %d", len(result.Siblings))
	}

	seeds := seedMap(result.Seeds)
	if _, ok := seeds[1]; ok {
		t.Error("Expected object 1 (A, A, B) to be excluded")
	}
	if rec, ok := seeds[2]; !ok {
		t.Error("Expected object 2 (A, A, a) to be included")
	} else if rec.Confidence != 3 || rec.Species != "A" || rec.Proloculous != "" {
		t.Errorf("Unexpected seed %+v", rec)
	}
	if _, ok := seeds[3]; !ok {
		t.Error("Expected object 3 (C, C, c) to be included")
	}
	if _, ok := seeds[4]; ok {
		t.Error("Expected object 4 (missing for one rater) to be excluded")
	}

	if len(result.Disagreements) != 1 || result.Disagreements[0].ID.Number != 1 {
		t.Fatalf("Expected one disagreement on object 1, got %+v", result.Disagreements)
	}
	if result.Disagreements[0].Species["ef"] != "B" {
		t.Errorf("Expected ef to record B, got %q", result.Disagreements[0].Species["ef"])
	}
}

func TestBuildExcludesActiveRater(t *testing.T) {
	set := setup(t, 2)
	writeRater(t, set, "ab", map[int]string{1: "A", 2: "B"})
	writeRater(t, set, "combined", map[int]string{1: "Z"})

	result, err := Build(set, records.CombinedInitials, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(result.Siblings) != 1 || result.Siblings[0].Initials != "ab" {
		t.Fatalf("Expected only ab as sibling, got %+v", result.Siblings)
	}
	// a single sibling agrees with itself
	if len(result.Seeds) != 2 {
		t.Errorf("Expected 2 seeds, got %d", len(result.Seeds))
	}
}

func TestBuildNoSiblings(t *testing.T) {
	set := setup(t, 1)

	result, err := Build(set, records.CombinedInitials, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(result.Seeds) != 0 || len(result.Siblings) != 0 {
		t.Errorf("Expected empty result, got %+v", result)
	}
}

func TestBuildRejectsBadSibling(t *testing.T) {
	set := setup(t, 1)
	path := filepath.Join(set.Dir, records.FileName("S1", "ab"))
	if err := os.WriteFile(path, []byte("Sample,Obj,Species\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Build(set, records.CombinedInitials, nil); err == nil {
		t.Error("Expected error for malformed sibling, got nil")
	}
}

func TestApply(t *testing.T) {
	result := &Result{Seeds: []Seed{
		{ID: objects.ID{Sample: "S1", Number: 1}, Record: records.Record{Species: "A", Confidence: 3}},
		{ID: objects.ID{Sample: "S1", Number: 2}, Record: records.Record{Species: "B", Confidence: 3}},
	}}

	store := records.New("S1", records.SchemaPlain)
	if err := store.Upsert(objects.ID{Sample: "S1", Number: 1}, records.Record{Species: "Mine", Confidence: 1}); err != nil {
		t.Fatal(err)
	}

	added, err := result.Apply(store)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if added != 1 {
		t.Errorf("Expected 1 seed applied, got %d", added)
	}
	if rec, _ := store.Get(objects.ID{Sample: "S1", Number: 1}); rec.Species != "Mine" {
		t.Errorf("Expected existing record to be kept, got %+v", rec)
	}
}

func TestSiblingFilesUntouched(t *testing.T) {
	set := setup(t, 1)
	writeRater(t, set, "ab", map[int]string{1: "A"})
	path := filepath.Join(set.Dir, records.FileName("S1", "ab"))
	before, _ := os.ReadFile(path)

	if _, err := Build(set, records.CombinedInitials, nil); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Error("Expected sibling file to be unchanged")
	}
}
