package records

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CombinedInitials marks the consensus rater file
const CombinedInitials = "combined"

const fileInfix = "_species_"

// FileName returns <sample>_species_<initials>.csv
func FileName(sample, initials string) string {
	return sample + fileInfix + initials + ".csv"
}

// ParseFileName splits a rater file name into sample and initials
func ParseFileName(name string) (sample, initials string, ok bool) {
	base, found := strings.CutSuffix(filepath.Base(name), ".csv")
	if !found {
		return "", "", false
	}
	sample, initials, found = strings.Cut(base, fileInfix)
	if !found || sample == "" || initials == "" || strings.Contains(initials, fileInfix) {
		return "", "", false
	}
	return sample, initials, true
}

// RaterFile is a rater record file found in an image directory
type RaterFile struct {
	Path     string
	Initials string
}

// FindRaterFiles lists every rater file for sample in dir, sorted by initials
func FindRaterFiles(dir, sample string) ([]RaterFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan for rater files: %w", err)
	}

	var files []RaterFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		s, initials, ok := ParseFileName(e.Name())
		if !ok || s != sample {
			continue
		}
		files = append(files, RaterFile{Path: filepath.Join(dir, e.Name()), Initials: initials})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Initials < files[j].Initials
	})

	return files, nil
}
