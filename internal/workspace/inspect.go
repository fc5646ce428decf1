package workspace

import (
	"io/fs"
	"strings"
)

// Stats describe the content of a project folder
type Stats struct {
	Files       int    `json:"files"`
	SourceFiles int    `json:"source_files"`
	TotalSize   uint64 `json:"total_size"`
}

// Limits are checked against Stats before a submission. Zero disables a limit.
type Limits struct {
	MinSourceFiles int
	MinFiles       int
	MaxFiles       int
	MaxSize        uint64
}

// WarningKind names a violated limit
type WarningKind string

const (
	WarningTooLarge          WarningKind = "too_large"
	WarningTooFewSourceFiles WarningKind = "too_few_source_files"
	WarningTooFewFiles       WarningKind = "too_few_files"
	WarningTooManyFiles      WarningKind = "too_many_files"
)

// Warning is a violated limit with the measured value
type Warning struct {
	Kind   WarningKind `json:"kind"`
	Actual uint64      `json:"actual"`
	Limit  uint64      `json:"limit"`
}

// Inspect counts the regular files of dir, skipping metadata
func Inspect(dir, sourceExt string) (*Stats, error) {
	if err := requireDir(dir); err != nil {
		return nil, err
	}

	stats := &Stats{}
	err := Walk(dir, SkipMetadata, func(p, rel string, d fs.DirEntry) error {
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		stats.Files++
		stats.TotalSize += uint64(info.Size())
		if isSource(d.Name(), sourceExt) {
			stats.SourceFiles++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// CountSourceFiles counts the files of dir ending in sourceExt
func CountSourceFiles(dir, sourceExt string) (int, error) {
	stats, err := Inspect(dir, sourceExt)
	if err != nil {
		return 0, err
	}
	return stats.SourceFiles, nil
}

// Check returns the limits the folder violates
func (s *Stats) Check(l Limits) []Warning {
	var warnings []Warning

	if l.MaxSize > 0 && s.TotalSize > l.MaxSize {
		warnings = append(warnings, Warning{Kind: WarningTooLarge, Actual: s.TotalSize, Limit: l.MaxSize})
	}
	if l.MinSourceFiles > 0 && s.SourceFiles < l.MinSourceFiles {
		warnings = append(warnings, Warning{Kind: WarningTooFewSourceFiles, Actual: uint64(s.SourceFiles), Limit: uint64(l.MinSourceFiles)})
	}
	if l.MinFiles > 0 && s.Files < l.MinFiles {
		warnings = append(warnings, Warning{Kind: WarningTooFewFiles, Actual: uint64(s.Files), Limit: uint64(l.MinFiles)})
	}
	if l.MaxFiles > 0 && s.Files > l.MaxFiles {
		warnings = append(warnings, Warning{Kind: WarningTooManyFiles, Actual: uint64(s.Files), Limit: uint64(l.MaxFiles)})
	}

	return warnings
}

func isSource(name, ext string) bool {
	return ext != "" && strings.HasSuffix(name, ext) && len(name) > len(ext)
}
