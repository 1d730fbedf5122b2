package export

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/lehigh-university-libraries/classifier/internal/objects"
	"github.com/lehigh-university-libraries/classifier/internal/records"
)

// Row is one rater's annotation of one object in the flat dataset
type Row struct {
	Sample      string `json:"sample" parquet:"sample"`
	Object      int    `json:"object" parquet:"object"`
	Image       string `json:"image" parquet:"image"`
	Rater       string `json:"rater" parquet:"rater"`
	Species     string `json:"species" parquet:"species"`
	Confidence  int    `json:"confidence" parquet:"confidence"`
	Proloculous string `json:"proloculous" parquet:"proloculous"`
}

// Collect reads every rater file of the set into rows ordered by rater, then object
func Collect(set *objects.Set) ([]Row, error) {
	files, err := records.FindRaterFiles(set.Dir, set.Sample)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for _, f := range files {
		store, err := records.Load(f.Path, records.LoadOptions{
			Sample:  set.Sample,
			Objects: set,
			Schema:  records.SchemaProloculous,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load rater file for %s: %w", f.Initials, err)
		}

		for _, id := range store.IDs() {
			rec, _ := store.Get(id)
			rows = append(rows, Row{
				Sample:      id.Sample,
				Object:      id.Number,
				Image:       objects.Filename(id),
				Rater:       f.Initials,
				Species:     rec.Species,
				Confidence:  rec.Confidence,
				Proloculous: rec.Proloculous,
			})
		}
		slog.Debug("Collected rater file", "initials", f.Initials, "records", store.Len())
	}

	return rows, nil
}

// Write stores rows at path in the format implied by its extension (.parquet or .jsonl)
func Write(path string, rows []Row) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".parquet" && ext != ".jsonl" && ext != ".json" {
		return fmt.Errorf("unsupported file format: %s (supported: .parquet, .jsonl)", ext)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if ext == ".parquet" {
		err = writeParquet(tmp, rows)
	} else {
		err = writeJSONL(tmp, rows)
	}
	if err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set export file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace export file: %w", err)
	}

	slog.Debug("Export written", "path", path, "rows", len(rows))
	return nil
}

func writeParquet(w io.Writer, rows []Row) error {
	writer := parquet.NewGenericWriter[Row](w)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return nil
}

func writeJSONL(w io.Writer, rows []Row) error {
	buf := bufio.NewWriter(w)
	encoder := json.NewEncoder(buf)
	for _, row := range rows {
		if err := encoder.Encode(row); err != nil {
			return fmt.Errorf("failed to write JSON row: %w", err)
		}
	}
	return buf.Flush()
}

// Load reads an exported dataset back
func Load(path string) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return loadParquet(path)
	case ".jsonl", ".json":
		return loadJSONL(path)
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .parquet, .jsonl)", filepath.Ext(path))
	}
}

func loadJSONL(path string) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export file: %w", err)
	}
	defer file.Close()

	var rows []Row
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var row Row
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		rows = append(rows, row)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading export file: %w", err)
	}
	return rows, nil
}

func loadParquet(path string) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	slog.Debug("Parquet file opened", "path", path, "num_rows", pf.NumRows(), "num_row_groups", len(pf.RowGroups()))

	reader := parquet.NewGenericReader[Row](pf)
	defer reader.Close()

	var rows []Row
	batch := make([]Row, 128)
	for {
		n, err := reader.Read(batch)
		rows = append(rows, batch[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}

	return rows, nil
}
