package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pluginManifest = `{
  "name": "@hub/git",
  "keywords": ["hub-plugin", "git"],
  "dependencies": {"zeta": "1.0.0", "alpha": "1.0.0", "@scope/mid": "^2"},
  "devDependencies": {"test-helper": "*"},
  "hub-plugin": {
    "api-version": 1,
    "src": "lib",
    "in-repo-plugins": ["sub/one", "sub/two"]
  }
}`

func TestParsePreservesDeclarationOrder(t *testing.T) {
	m, err := Parse("package.json", []byte(pluginManifest))
	require.NoError(t, err)

	assert.Equal(t, "@hub/git", m.Name)
	assert.Equal(t, []string{"zeta", "alpha", "@scope/mid"}, m.Dependencies)
	assert.Equal(t, []string{"test-helper"}, m.DevDependencies)
	require.NotNil(t, m.Plugin)
	assert.True(t, m.IsPlugin())
	assert.True(t, m.Plugin.SupportsAPIVersion())
	assert.Equal(t, "lib", m.Plugin.Src)
	assert.Equal(t, []string{"sub/one", "sub/two"}, m.Plugin.InRepoPlugins)
}

func TestIsPluginRequiresKeywordAndDescriptor(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{name: "keyword only", body: `{"name":"a","keywords":["hub-plugin"]}`, want: false},
		{name: "descriptor only", body: `{"name":"a","hub-plugin":{"api-version":1}}`, want: false},
		{name: "both", body: `{"name":"a","keywords":["hub-plugin"],"hub-plugin":{}}`, want: true},
		{name: "descriptor false", body: `{"name":"a","keywords":["hub-plugin"],"hub-plugin":false}`, want: false},
		{name: "descriptor true", body: `{"name":"a","keywords":["hub-plugin"],"hub-plugin":true}`, want: true},
		{name: "descriptor empty string", body: `{"name":"a","keywords":["hub-plugin"],"hub-plugin":""}`, want: false},
		{name: "descriptor zero", body: `{"name":"a","keywords":["hub-plugin"],"hub-plugin":0}`, want: false},
		{name: "descriptor null", body: `{"name":"a","keywords":["hub-plugin"],"hub-plugin":null}`, want: false},
		{name: "keywords not array", body: `{"name":"a","keywords":"hub-plugin","hub-plugin":{}}`, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse("package.json", []byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.IsPlugin())
		})
	}
}

func TestParseUnknownAPIVersion(t *testing.T) {
	m, err := Parse("package.json", []byte(`{"name":"a","keywords":["hub-plugin"],"hub-plugin":{"api-version":"1"}}`))
	require.NoError(t, err)
	require.NotNil(t, m.Plugin)
	assert.False(t, m.Plugin.SupportsAPIVersion())
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse("broken/package.json", []byte(`{"name":`))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "broken/package.json", perr.Path)

	_, err = Parse("array/package.json", []byte(`[]`))
	require.ErrorAs(t, err, &perr)
}

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func realTempDir(t *testing.T) string {
	t.Helper()
	dir, err := RealPath(t.TempDir())
	require.NoError(t, err)
	return dir
}

func TestResolveWalksAncestorNodeModules(t *testing.T) {
	root := realTempDir(t)
	want := writeManifest(t, filepath.Join(root, "node_modules", "dep"), `{"name":"dep"}`)
	nested := filepath.Join(root, "node_modules", "app", "node_modules", "other")
	writeManifest(t, nested, `{"name":"other"}`)

	r := NewResolver()
	got, err := r.Resolve("dep/package.json", filepath.Join(root, "node_modules", "app"))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = r.Resolve("other/package.json", filepath.Join(root, "node_modules", "app"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(nested, FileName), got)
}

func TestResolvePrefersNearestNodeModules(t *testing.T) {
	root := realTempDir(t)
	writeManifest(t, filepath.Join(root, "node_modules", "dep"), `{"name":"dep","version":"1"}`)
	app := filepath.Join(root, "node_modules", "app")
	near := writeManifest(t, filepath.Join(app, "node_modules", "dep"), `{"name":"dep","version":"2"}`)

	got, err := NewResolver().Resolve("dep/package.json", app)
	require.NoError(t, err)
	assert.Equal(t, near, got)
}

func TestResolveScopedAndAbsolute(t *testing.T) {
	root := realTempDir(t)
	scoped := writeManifest(t, filepath.Join(root, "node_modules", "@scope", "pkg"), `{"name":"@scope/pkg"}`)
	local := writeManifest(t, filepath.Join(root, "plugins", "inline"), `{"name":"inline"}`)

	r := NewResolver()
	got, err := r.Resolve("@scope/pkg/package.json", root)
	require.NoError(t, err)
	assert.Equal(t, scoped, got)

	got, err = r.Resolve(filepath.Join(root, "plugins", "inline", FileName), "/")
	require.NoError(t, err)
	assert.Equal(t, local, got)

	got, err = r.Resolve("./plugins/inline/package.json", root)
	require.NoError(t, err)
	assert.Equal(t, local, got)
}

func TestResolveFollowsSymlinks(t *testing.T) {
	root := realTempDir(t)
	target := writeManifest(t, filepath.Join(root, "store", "dep"), `{"name":"dep"}`)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(root, "store", "dep"), filepath.Join(root, "node_modules", "dep")))

	got, err := NewResolver().Resolve("dep/package.json", root)
	require.NoError(t, err)
	assert.Equal(t, target, got)

	linked, err := RealPath(filepath.Join(root, "node_modules", "dep"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Dir(target), linked)
}

func TestResolveNotFound(t *testing.T) {
	root := realTempDir(t)
	_, err := NewResolver().Resolve("missing/package.json", root)

	var rerr *ResolveError
	require.ErrorAs(t, err, &rerr)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "missing/package.json", rerr.Request)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), FileName))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
