package feature

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// Extension is the file extension of a feature implementation.
const Extension = ".go"

// Discover scans root for the features it offers. For every type, files in
// the typed subdirectory come first in listing order, followed by the
// singular top-level file when present.
func Discover(root string) ([]Feature, error) {
	var features []Feature
	for _, typ := range canonicalOrder {
		dir := filepath.Join(root, string(typ))
		entries, err := os.ReadDir(dir)
		if err != nil && !isAbsent(err) {
			return nil, fmt.Errorf("feature: read %s: %w", dir, err)
		}
		for _, entry := range entries {
			name, ok := implementationName(entry)
			if !ok {
				continue
			}
			features = append(features, Feature{
				Type:     typ,
				Name:     Named(name),
				LoadPath: filepath.Join(dir, entry.Name()),
			})
		}

		top := filepath.Join(root, typ.Singular()+Extension)
		info, err := os.Stat(top)
		if err != nil {
			if isAbsent(err) {
				continue
			}
			return nil, fmt.Errorf("feature: stat %s: %w", top, err)
		}
		if info.IsDir() {
			continue
		}
		features = append(features, Feature{
			Type:     typ,
			Name:     TopLevel(),
			LoadPath: top,
		})
	}
	return features, nil
}

func implementationName(entry fs.DirEntry) (string, bool) {
	if entry.IsDir() {
		return "", false
	}
	name := entry.Name()
	if !strings.HasSuffix(name, Extension) || strings.HasSuffix(name, "_test"+Extension) {
		return "", false
	}
	base := strings.TrimSuffix(name, Extension)
	if base == "" {
		return "", false
	}
	return base, true
}

// isAbsent matches the errors optional probing tolerates: the path does not
// exist, or a path component is not a directory.
func isAbsent(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}
