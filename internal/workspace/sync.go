package workspace

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Common errors
var (
	ErrSourceNotDirectory = errors.New("source is not a directory")
	ErrTargetNotDirectory = errors.New("target exists and is not a directory")
)

// MetadataNames are version-control metadata directories. They are never
// copied and survive clearing a working copy.
var MetadataNames = []string{".git", ".svn"}

// DescriptorNames are IDE project descriptors, left out when replaying
var DescriptorNames = []string{".classpath", ".project", ".settings"}

// Filter decides whether the entry at rel (slash separated, relative to the
// walk root) is visited. A rejected directory is skipped with its subtree.
type Filter func(rel string, d fs.DirEntry) bool

// WalkFunc receives every accepted entry
type WalkFunc func(path, rel string, d fs.DirEntry) error

// SkipMetadata rejects version-control metadata
func SkipMetadata(rel string, d fs.DirEntry) bool {
	return !isMetadata(d.Name())
}

// SkipMetadataAndDescriptors rejects metadata and IDE descriptors
func SkipMetadataAndDescriptors(rel string, d fs.DirEntry) bool {
	return !isMetadata(d.Name()) && !contains(DescriptorNames, d.Name())
}

// Walk visits every entry below root accepted by filter, in lexical order
func Walk(root string, filter Filter, fn WalkFunc) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if filter != nil && !filter(rel, d) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		return fn(p, rel, d)
	})
}

// Copy copies the entries of src accepted by filter into dst
func Copy(src, dst string, filter Filter) error {
	if err := requireDir(src); err != nil {
		return err
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	return Walk(src, filter, func(p, rel string, d fs.DirEntry) error {
		target := filepath.Join(dst, filepath.FromSlash(rel))

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(p)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case d.Type().IsRegular():
			return copyFile(p, target, info.Mode().Perm())
		default:
			// sockets, devices and pipes are not part of a project
			return nil
		}
	})
}

// Clear removes every entry of dir except those named in keep
func Clear(dir string, keep []string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}

	for _, entry := range entries {
		if contains(keep, entry.Name()) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// SyncForSubmission makes the working copy at dst mirror src. Metadata of
// dst is kept, metadata of src is not copied.
func SyncForSubmission(src, dst string) error {
	if err := requireDir(src); err != nil {
		return err
	}
	if err := Clear(dst, MetadataNames); err != nil {
		return err
	}
	return Copy(src, dst, SkipMetadata)
}

// SyncForReplay copies a checked out revision at src into the user folder
// dst. A missing dst is created, an existing one is emptied first.
func SyncForReplay(src, dst string) error {
	info, err := os.Stat(dst)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(dst, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dst, err)
		}
	case err != nil:
		return fmt.Errorf("failed to inspect %s: %w", dst, err)
	case !info.IsDir():
		return fmt.Errorf("%w: %s", ErrTargetNotDirectory, dst)
	default:
		if err := Clear(dst, nil); err != nil {
			return err
		}
	}

	return Copy(src, dst, SkipMetadataAndDescriptors)
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func requireDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrSourceNotDirectory, dir)
	}
	return nil
}

func isMetadata(name string) bool {
	return contains(MetadataNames, name)
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
