package grading

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	apperrors "student-grading/internal/common/errors"
)

// Locate finds name under baseDir: baseDir/name first, then the first match
// of a lexical recursive walk. Unreadable subdirectories are skipped.
func Locate(baseDir, name string) (string, error) {
	direct := filepath.Join(baseDir, name)
	if isRegularFile(direct) {
		return direct, nil
	}

	var found string
	walkErr := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == baseDir {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || d.Name() != name {
			return nil
		}
		if d.Type().IsRegular() || isRegularFile(path) {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if found != "" {
		return found, nil
	}
	notFound := apperrors.NewInputNotFoundError(name, baseDir)
	if walkErr != nil && !errors.Is(walkErr, fs.ErrNotExist) {
		notFound.Cause = walkErr
	}
	return "", notFound
}

// ResolveInput checks an explicitly configured input path without searching.
func ResolveInput(path string) (string, error) {
	if isRegularFile(path) {
		return path, nil
	}
	return "", apperrors.NewInputNotFoundError(filepath.Base(path), filepath.Dir(path))
}

// isRegularFile follows symlinks.
func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
