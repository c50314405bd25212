package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/stockpile/internal/config"
	"github.com/hpungsan/stockpile/internal/errors"
)

// PathCheckMode indicates whether the path check is for reading or writing.
type PathCheckMode int

const (
	PathCheckRead  PathCheckMode = iota // for import (read file)
	PathCheckWrite                      // for export (write file)
)

// ExportExt is the required extension for export and import files.
const ExportExt = ".jsonl"

// PathPolicy decides which files import and export may touch.
type PathPolicy struct {
	// ExportsDir is always allowed and is where default exports land
	ExportsDir string

	// AllowedDirs are additional absolute directories from config
	AllowedDirs []string

	// AllowUnsafe lifts the directory restriction (symlink checks still apply)
	AllowUnsafe bool
}

// NewPathPolicy builds the policy for a base directory (~/.stockpile) and config.
func NewPathPolicy(baseDir string, cfg *config.Config) PathPolicy {
	p := PathPolicy{ExportsDir: filepath.Join(baseDir, "exports")}
	if cfg != nil {
		p.AllowUnsafe = cfg.AllowUnsafePaths
		for _, dir := range cfg.AllowedPaths {
			if filepath.IsAbs(dir) {
				p.AllowedDirs = append(p.AllowedDirs, filepath.Clean(dir))
			}
		}
	}
	return p
}

// ValidatePath checks an import/export path:
// 1. No directory traversal (..)
// 2. .jsonl extension
// 3. File directly in the exports dir or an allowed dir (no subdirectories), unless AllowUnsafe
// 4. Neither the parent directory nor the file is a symlink
//
// Requiring files to sit directly in an allowed directory means no
// intermediate component can be swapped for a symlink after validation;
// the final component is opened with O_NOFOLLOW.
func (p PathPolicy) ValidatePath(path string, mode PathCheckMode) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}

	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if filepath.Ext(cleaned) != ExportExt {
		return errors.NewInvalidRequest("path must have .jsonl extension")
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	if !p.AllowUnsafe {
		allowed, err := p.allowedDirs()
		if err != nil {
			return err
		}

		parentDir := filepath.Dir(absPath)
		if !isDirectlyIn(parentDir, allowed) {
			return errors.NewInvalidRequest(
				fmt.Sprintf("file must be directly in an allowed directory (no subdirectories); allowed: %v", allowed))
		}

		if info, err := os.Lstat(parentDir); err == nil && info.Mode()&os.ModeSymlink != 0 {
			return errors.NewInvalidRequest("parent directory must not be a symlink")
		}
	}

	if mode == PathCheckRead {
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			return errors.NewFileNotFound(path)
		}
	}

	if info, err := os.Lstat(absPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("path must not be a symlink")
	}

	return nil
}

// allowedDirs returns the exports dir plus configured dirs, absolute and
// with symlinked entries resolved to their targets.
func (p PathPolicy) allowedDirs() ([]string, error) {
	dirs := append([]string{p.ExportsDir}, p.AllowedDirs...)

	result := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if d == "" {
			continue
		}
		abs, err := filepath.Abs(filepath.Clean(d))
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid allowed path: %v", err))
		}
		if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(abs)
			if err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
			}
			abs = resolved
		}
		result = append(result, abs)
	}
	return result, nil
}

// isDirectlyIn checks if dir exactly matches one of the allowed directories.
func isDirectlyIn(dir string, allowed []string) bool {
	dir = filepath.Clean(dir)
	for _, a := range allowed {
		if dir == filepath.Clean(a) {
			return true
		}
	}
	return false
}

// containsTraversal checks if path contains a ".." component.
func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	// User input may use forward slashes on any platform
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}
