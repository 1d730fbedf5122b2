package objects

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Plane is the only image plane the classifier works with
const Plane = "plane000"

const (
	objectPrefix = "obj"
	imageSuffix  = Plane + ".jpg"
	numberWidth  = 5
	globPattern  = "*_" + objectPrefix + "*_" + imageSuffix
)

var (
	ErrNoImagesFound     = errors.New("no images found")
	ErrMalformedFilename = errors.New("malformed image filename")
	ErrSampleMismatch    = errors.New("sample name mismatch")
)

// ID identifies one image-backed object within a sample
type ID struct {
	Sample string
	Number int
}

func (id ID) String() string {
	return fmt.Sprintf("%s #%0*d", id.Sample, numberWidth, id.Number)
}

// FormatNumber renders an object number zero-padded the way files store it
func FormatNumber(n int) string {
	return fmt.Sprintf("%0*d", numberWidth, n)
}

// Filename returns the canonical image filename for an object
func Filename(id ID) string {
	return fmt.Sprintf("%s_%s%s_%s", id.Sample, objectPrefix, FormatNumber(id.Number), imageSuffix)
}

// ParseFilename parses <sample>_obj<NNNNN>_plane000.jpg into an ID
func ParseFilename(name string) (ID, error) {
	parts := strings.Split(filepath.Base(name), "_")
	if len(parts) != 3 {
		return ID{}, fmt.Errorf("%w: %q has %d segments, expected 3", ErrMalformedFilename, name, len(parts))
	}

	sample, obj, plane := parts[0], parts[1], parts[2]
	if sample == "" {
		return ID{}, fmt.Errorf("%w: %q has an empty sample name", ErrMalformedFilename, name)
	}
	if plane != imageSuffix {
		return ID{}, fmt.Errorf("%w: %q does not end in %s", ErrMalformedFilename, name, imageSuffix)
	}

	digits, ok := strings.CutPrefix(obj, objectPrefix)
	if !ok || len(digits) < numberWidth {
		return ID{}, fmt.Errorf("%w: %q has bad object segment %q", ErrMalformedFilename, name, obj)
	}
	number, err := ParseNumber(digits)
	if err != nil {
		return ID{}, fmt.Errorf("%w: %q: %v", ErrMalformedFilename, name, err)
	}

	return ID{Sample: sample, Number: number}, nil
}

// ParseNumber parses a positive, optionally zero-padded object number
func ParseNumber(s string) (int, error) {
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("object number %q is not numeric", s)
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("object number %q: %w", s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("object number %q is not positive", s)
	}
	return n, nil
}

// Set is the ordered, immutable collection of objects found in an image directory.
// Sample is taken from the lexicographically first filename.
type Set struct {
	Dir    string
	Sample string
	IDs    []ID
}

// Resolve scans dir for object images and returns them sorted by filename
func Resolve(dir string) (*Set, error) {
	names, err := imageNames(dir)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImagesFound, dir)
	}
	sort.Strings(names)

	set := &Set{Dir: dir, IDs: make([]ID, 0, len(names))}
	for _, name := range names {
		id, err := ParseFilename(name)
		if err != nil {
			return nil, err
		}
		set.IDs = append(set.IDs, id)
	}
	set.Sample = set.IDs[0].Sample

	return set, nil
}

// imageNames lists the object images in dir. Only base names are matched so the
// directory path itself may contain pattern characters.
func imageNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan image directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ok, err := filepath.Match(globPattern, e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to match image name: %w", err)
		}
		if ok {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Len returns the number of objects in the set
func (s *Set) Len() int {
	return len(s.IDs)
}

// Path returns the image path for id inside the set's directory
func (s *Set) Path(id ID) string {
	return filepath.Join(s.Dir, Filename(id))
}

// Exists reports whether the image file for id is present on disk
func (s *Set) Exists(id ID) bool {
	info, err := os.Stat(s.Path(id))
	return err == nil && !info.IsDir()
}

// CheckSample fails on the first object whose sample differs from the set's sample
func (s *Set) CheckSample() error {
	for _, id := range s.IDs {
		if id.Sample != s.Sample {
			return fmt.Errorf("%w: directory contains samples %q and %q", ErrSampleMismatch, s.Sample, id.Sample)
		}
	}
	return nil
}
