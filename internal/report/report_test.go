package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/classifier/internal/objects"
)

func setup(t *testing.T) *objects.Set {
	t.Helper()
	dir := t.TempDir()
	for i := 1; i <= 4; i++ {
		name := objects.Filename(objects.ID{Sample: "S1", Number: i})
		if err := os.WriteFile(filepath.Join(dir, name), []byte("jpg"), 0644); err != nil {
			t.Fatalf("Failed to create image: %v", err)
		}
	}

	files := map[string]string{
		"S1_species_ab.csv": "Sample Name,Obj. #,Species,Confidence,Proloculous\n" +
			"S1,00001,Foo,3,mega\nS1,00002,Bar,1,\nS1,00003,Foo,2,micro\nS1,00004,Baz,3,\n",
		"S1_species_cd.csv": "Sample Name,Obj. #,Species,Confidence\n" +
			"S1,00001,foo,2\nS1,00002,Qux,2\n",
		"S1_species_combined.csv": "Sample Name,Obj. #,Species,Confidence\n" +
			"S1,00001,Foo,3\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}

	set, err := objects.Resolve(dir)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	return set
}

func rater(t *testing.T, r *Report, initials string) RaterStats {
	t.Helper()
	for _, s := range r.Raters {
		if s.Initials == initials {
			return s
		}
	}
	t.Fatalf("Rater %s not in report", initials)
	return RaterStats{}
}

func TestBuild(t *testing.T) {
	r, err := Build(setup(t))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if r.Sample != "S1" || r.Objects != 4 {
		t.Errorf("Expected S1 with 4 objects, got %s with %d", r.Sample, r.Objects)
	}
	if len(r.Raters) != 3 {
		t.Fatalf("Expected 3 raters, got %d", len(r.Raters))
	}

	ab := rater(t, r, "ab")
	if ab.Records != 4 || ab.Coverage != 1 {
		t.Errorf("Expected ab to cover all 4 objects, got %+v", ab)
	}
	if ab.Confidence[3] != 2 || ab.Confidence[1] != 1 || ab.Confidence[2] != 1 {
		t.Errorf("Unexpected confidence distribution %v", ab.Confidence)
	}
	if ab.MeanConfidence != 2.25 {
		t.Errorf("Expected mean confidence 2.25, got %v", ab.MeanConfidence)
	}
	if ab.Proloculous["mega"] != 1 || ab.Proloculous["micro"] != 1 {
		t.Errorf("Unexpected proloculous counts %v", ab.Proloculous)
	}
	if ab.Species != 3 {
		t.Errorf("Expected 3 distinct species, got %d", ab.Species)
	}

	if len(r.Agreement) != 1 {
		t.Fatalf("Expected one rater pair (combined excluded), got %+v", r.Agreement)
	}
	pair := r.Agreement[0]
	if pair.Shared != 2 || pair.Agreed != 1 || pair.Rate != 0.5 {
		t.Errorf("Unexpected agreement %+v", pair)
	}

	if r.Consensus.Raters != 2 || r.Consensus.Unanimous != 1 || r.Consensus.Disagreements != 1 {
		t.Errorf("Unexpected consensus %+v", r.Consensus)
	}

	if len(r.Species) == 0 || r.Species[0].Species != "Foo" || r.Species[0].Count != 4 {
		t.Errorf("Expected Foo counted 4 times first, got %+v", r.Species)
	}
}

func TestBuildNoRaters(t *testing.T) {
	dir := t.TempDir()
	name := objects.Filename(objects.ID{Sample: "S1", Number: 1})
	if err := os.WriteFile(filepath.Join(dir, name), []byte("jpg"), 0644); err != nil {
		t.Fatal(err)
	}
	set, err := objects.Resolve(dir)
	if err != nil {
		t.Fatal(err)
	}

	r, err := Build(set)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, r, FormatText); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !strings.Contains(buf.String(), "No rater files found.") {
		t.Errorf("Expected empty report message, got %q", buf.String())
	}
}

func TestWriteFormats(t *testing.T) {
	r, err := Build(setup(t))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Write(&buf, r, FormatText); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		out := buf.String()
		for _, want := range []string{"Sample:  S1", "Pairwise agreement:", "50.0%", "1 unanimous"} {
			if !strings.Contains(out, want) {
				t.Errorf("Expected %q in output:\n%s", want, out)
			}
		}
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Write(&buf, r, FormatJSON); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		var decoded Report
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("Invalid JSON: %v", err)
		}
		if decoded.Sample != "S1" || len(decoded.Raters) != 3 {
			t.Errorf("Unexpected decoded report %+v", decoded)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Write(&buf, r, FormatYAML); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		var decoded Report
		if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("Invalid YAML: %v", err)
		}
		if decoded.Consensus.Unanimous != 1 {
			t.Errorf("Expected 1 unanimous object, got %d", decoded.Consensus.Unanimous)
		}
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Write(&buf, r, FormatCSV); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		rows, err := csv.NewReader(&buf).ReadAll()
		if err != nil {
			t.Fatalf("Invalid CSV: %v", err)
		}
		if len(rows) != 4 {
			t.Fatalf("Expected header and 3 rows, got %d", len(rows))
		}
		if rows[1][1] != "ab" || rows[1][2] != "4" {
			t.Errorf("Unexpected first row %v", rows[1])
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		if err := Write(&bytes.Buffer{}, r, "xml"); err == nil {
			t.Error("Expected error for unsupported format, got nil")
		}
	})
}
