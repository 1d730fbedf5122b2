package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/lehigh-university-libraries/classifier/internal/objects"
)

var (
	ErrEmptyFile           = errors.New("record file is empty")
	ErrSchemaMismatch      = errors.New("record file header mismatch")
	ErrInvalidObjectNumber = errors.New("invalid object number")
	ErrInvalidConfidence   = errors.New("invalid confidence")
	ErrInvalidProloculous  = errors.New("invalid proloculous")
	ErrDanglingReference   = errors.New("record references a missing image")
	ErrDuplicateObject     = errors.New("duplicate object")
)

// Record is one rater's annotation of one object
type Record struct {
	Species     string
	Confidence  int
	Proloculous string
}

// Store holds the annotations of one rater for one sample, keyed by object.
// It is not safe for concurrent use; a record file has a single writer.
type Store struct {
	sample  string
	schema  Schema
	records map[objects.ID]Record
}

// New creates an empty store
func New(sample string, schema Schema) *Store {
	return &Store{
		sample:  sample,
		schema:  schema,
		records: make(map[objects.ID]Record),
	}
}

// LoadOptions controls validation while loading a record file
type LoadOptions struct {
	// Sample every row must belong to
	Sample string
	// Objects is used to check that referenced images exist
	Objects *objects.Set
	// Schema is the mode the store is configured for
	Schema Schema
	// Register, when set, receives every species read
	Register func(string) bool
}

// Load reads and validates a record file.
// Any structural problem is returned as an error and nothing is kept.
func Load(path string, opts LoadOptions) (*Store, error) {
	slog.Debug("Opening record file", "path", path)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open record file: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s (delete it to start a new file)", ErrEmptyFile, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	fileSchema, err := resolveSchema(header, opts.Schema)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if fileSchema != opts.Schema {
		slog.Info("Loading record file without Proloculous column", "path", path)
	}

	store := New(opts.Sample, opts.Schema)

	row := 1
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d of %s: %w", row, path, err)
		}

		id, rec, err := parseRow(fields, fileSchema)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, row, err)
		}
		if id.Sample != opts.Sample {
			return nil, fmt.Errorf("%s row %d: %w: expected %q, found %q", path, row, objects.ErrSampleMismatch, opts.Sample, id.Sample)
		}
		if opts.Objects != nil && !opts.Objects.Exists(id) {
			return nil, fmt.Errorf("%s row %d: %w: %s", path, row, ErrDanglingReference, objects.Filename(id))
		}
		if err := store.Upsert(id, rec); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, row, err)
		}
		if opts.Register != nil {
			opts.Register(rec.Species)
		}
	}

	slog.Debug("Finished reading record file", "path", path, "records", store.Len(), "schema", fileSchema)

	return store, nil
}

func parseRow(fields []string, schema Schema) (objects.ID, Record, error) {
	if len(fields) != schema.Columns() {
		return objects.ID{}, Record{}, fmt.Errorf("%w: row has %d fields, expected %d", ErrSchemaMismatch, len(fields), schema.Columns())
	}

	number, err := objects.ParseNumber(fields[1])
	if err != nil {
		return objects.ID{}, Record{}, fmt.Errorf("%w: %v", ErrInvalidObjectNumber, err)
	}

	confidence, err := strconv.Atoi(fields[3])
	if err != nil || !ValidConfidence(confidence) {
		return objects.ID{}, Record{}, fmt.Errorf("%w: %q", ErrInvalidConfidence, fields[3])
	}

	rec := Record{Species: fields[2], Confidence: confidence}
	if schema == SchemaProloculous {
		if !ValidProloculous(fields[4]) {
			return objects.ID{}, Record{}, fmt.Errorf("%w: %q", ErrInvalidProloculous, fields[4])
		}
		rec.Proloculous = fields[4]
	}

	return objects.ID{Sample: fields[0], Number: number}, rec, nil
}

// Sample returns the sample the store is scoped to
func (s *Store) Sample() string {
	return s.sample
}

// Schema returns the schema the store persists with
func (s *Store) Schema() Schema {
	return s.schema
}

// Len returns the number of records
func (s *Store) Len() int {
	return len(s.records)
}

// Get returns the record for id
func (s *Store) Get(id objects.ID) (Record, bool) {
	rec, ok := s.records[id]
	return rec, ok
}

// Contains reports whether id has a record
func (s *Store) Contains(id objects.ID) bool {
	_, ok := s.records[id]
	return ok
}

// Upsert inserts a record for an object that has none yet.
// Replacing a record requires an explicit Remove first.
func (s *Store) Upsert(id objects.ID, rec Record) error {
	if id.Sample != s.sample {
		return fmt.Errorf("%w: store is for %q, got %q", objects.ErrSampleMismatch, s.sample, id.Sample)
	}
	if _, ok := s.records[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateObject, id)
	}
	s.records[id] = rec
	return nil
}

// Remove deletes the record for id if there is one
func (s *Store) Remove(id objects.ID) {
	delete(s.records, id)
}

// IDs returns every recorded object in ascending order
func (s *Store) IDs() []objects.ID {
	ids := make([]objects.ID, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].Number < ids[j].Number
	})
	return ids
}

// All returns a copy of the records keyed by object
func (s *Store) All() map[objects.ID]Record {
	result := make(map[objects.ID]Record, len(s.records))
	for k, v := range s.records {
		result[k] = v
	}
	return result
}

// Persist rewrites the whole file: header, then one row per record in object order.
// The data goes to a temporary file that is renamed over path once complete.
func (s *Store) Persist(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create record file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := s.write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write record file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write record file: %w", err)
	}
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return fmt.Errorf("failed to set record file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace record file: %w", err)
	}

	slog.Debug("Record file written", "path", path, "records", s.Len())

	return nil
}

func (s *Store) write(w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(s.schema.Header()); err != nil {
		return err
	}
	for _, id := range s.IDs() {
		rec := s.records[id]
		row := []string{id.Sample, objects.FormatNumber(id.Number), rec.Species, strconv.Itoa(rec.Confidence)}
		if s.schema == SchemaProloculous {
			row = append(row, rec.Proloculous)
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
