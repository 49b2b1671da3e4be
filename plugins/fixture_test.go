package plugins

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kingrea/lattice-hub/internal/config"
	"github.com/kingrea/lattice-hub/internal/manifest"
)

// pkg describes a package.json written by the fixtures. Dependency order is
// preserved in the written JSON.
type pkg struct {
	name       string
	plugin     bool
	apiVersion string
	src        string
	inRepo     []string
	deps       []string
	devDeps    []string
	raw        string
}

func (p pkg) json() string {
	if p.raw != "" {
		return p.raw
	}
	fields := []string{`"name": ` + strconv.Quote(p.name)}
	if p.plugin {
		fields = append(fields, `"keywords": ["hub-plugin"]`)
		version := p.apiVersion
		if version == "" {
			version = "1"
		}
		descriptor := []string{`"api-version": ` + version}
		if p.src != "" {
			descriptor = append(descriptor, `"src": `+strconv.Quote(p.src))
		}
		if len(p.inRepo) > 0 {
			descriptor = append(descriptor, `"in-repo-plugins": `+quoteList(p.inRepo))
		}
		fields = append(fields, `"hub-plugin": {`+strings.Join(descriptor, ", ")+`}`)
	}
	if len(p.deps) > 0 {
		fields = append(fields, `"dependencies": `+depObject(p.deps))
	}
	if len(p.devDeps) > 0 {
		fields = append(fields, `"devDependencies": `+depObject(p.devDeps))
	}
	return "{\n  " + strings.Join(fields, ",\n  ") + "\n}\n"
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func depObject(names []string) string {
	entries := make([]string, len(names))
	for i, name := range names {
		entries[i] = strconv.Quote(name) + `: "*"`
	}
	return "{" + strings.Join(entries, ", ") + "}"
}

// project is a temporary directory tree laid out like an installed node
// project: the root package plus a flat node_modules.
type project struct {
	t    *testing.T
	root string
}

func newProject(t *testing.T, root pkg) *project {
	t.Helper()
	dir, err := manifest.RealPath(t.TempDir())
	require.NoError(t, err)
	p := &project{t: t, root: dir}
	p.write(dir, root)
	return p
}

func (p *project) write(dir string, desc pkg) string {
	p.t.Helper()
	require.NoError(p.t, os.MkdirAll(dir, 0o755))
	require.NoError(p.t, os.WriteFile(filepath.Join(dir, manifest.FileName), []byte(desc.json()), 0o644))
	return dir
}

// install writes desc under node_modules/<name> of the project root.
func (p *project) install(desc pkg) string {
	p.t.Helper()
	return p.write(p.moduleDir(desc.name), desc)
}

func (p *project) moduleDir(name string) string {
	return filepath.Join(p.root, "node_modules", filepath.FromSlash(name))
}

// file creates an empty feature implementation at rel under dir.
func (p *project) file(dir, rel string) string {
	p.t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(p.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(p.t, os.WriteFile(path, []byte("package main\n"), 0o644))
	return path
}

func (p *project) config(includeDev bool) *config.Config {
	return &config.Config{
		ProjectDir:    p.root,
		HubProjectDir: filepath.Join(p.root, config.HubDir),
		Project:       config.ProjectConfig{Version: 1, Testing: includeDev},
	}
}

func (p *project) loader(includeDev bool, opts ...Option) *Loader {
	p.t.Helper()
	l, err := New(p.config(includeDev), opts...)
	require.NoError(p.t, err)
	return l
}

func names(plugins []Plugin) []string {
	out := make([]string, len(plugins))
	for i, p := range plugins {
		out[i] = p.Name
	}
	return out
}

// countingSource wraps the filesystem resolver and counts manifest reads.
type countingSource struct {
	inner ManifestSource
	loads atomic.Int64
}

func newCountingSource() *countingSource {
	return &countingSource{inner: manifest.NewResolver()}
}

func (c *countingSource) Resolve(request, baseDir string) (string, error) {
	return c.inner.Resolve(request, baseDir)
}

func (c *countingSource) Load(path string) (*manifest.Manifest, error) {
	c.loads.Add(1)
	return c.inner.Load(path)
}

func (c *countingSource) RealPath(dir string) (string, error) {
	return c.inner.RealPath(dir)
}

func record(module string, attributes map[string]any) config.PluginConfig {
	attrs := map[string]any{"module": module}
	for k, v := range attributes {
		attrs[k] = v
	}
	return config.PluginConfig{Type: "plugin-configs", ID: module, Attributes: attrs}
}
