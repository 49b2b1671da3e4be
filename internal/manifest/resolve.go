package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// ErrNotFound is wrapped by ResolveError when no candidate exists.
var ErrNotFound = errors.New("cannot find module")

// ResolveError reports a request that module resolution could not satisfy.
type ResolveError struct {
	Request string
	BaseDir string
	Err     error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("manifest: resolve %q from %s: %v", e.Request, e.BaseDir, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

const modulesDir = "node_modules"

// Resolver locates manifests with node-style module resolution.
type Resolver struct{}

// NewResolver returns a resolver backed by the local filesystem.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve finds the file request names when resolved from baseDir. Absolute
// and relative ("./", "../") requests are taken as paths; bare requests are
// searched in node_modules of baseDir and each of its ancestors. The result
// is a real (symlink-free) absolute path.
func (r *Resolver) Resolve(request, baseDir string) (string, error) {
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return "", &ResolveError{Request: request, BaseDir: baseDir, Err: err}
	}
	for _, candidate := range candidates(request, base) {
		ok, err := isFile(candidate)
		if err != nil {
			return "", &ResolveError{Request: request, BaseDir: base, Err: err}
		}
		if !ok {
			continue
		}
		resolved, err := filepath.EvalSymlinks(candidate)
		if err != nil {
			return "", &ResolveError{Request: request, BaseDir: base, Err: err}
		}
		return resolved, nil
	}
	return "", &ResolveError{Request: request, BaseDir: base, Err: ErrNotFound}
}

// Load reads the manifest at path.
func (r *Resolver) Load(path string) (*Manifest, error) {
	return Load(path)
}

// RealPath returns the absolute, symlink-resolved form of dir.
func (r *Resolver) RealPath(dir string) (string, error) {
	return RealPath(dir)
}

// RealPath returns the absolute, symlink-resolved form of dir so two paths
// naming the same location compare equal.
func RealPath(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("manifest: abs %s: %w", dir, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("manifest: realpath %s: %w", abs, err)
	}
	return resolved, nil
}

func candidates(request, base string) []string {
	if filepath.IsAbs(request) {
		return []string{filepath.Clean(request)}
	}
	if isRelative(request) {
		return []string{filepath.Join(base, request)}
	}
	var out []string
	dir := base
	for {
		if filepath.Base(dir) != modulesDir {
			out = append(out, filepath.Join(dir, modulesDir, request))
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return out
}

func isRelative(request string) bool {
	slashed := filepath.ToSlash(request)
	return slashed == "." || slashed == ".." ||
		strings.HasPrefix(slashed, "./") || strings.HasPrefix(slashed, "../")
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}
