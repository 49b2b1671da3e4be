package plugins

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kingrea/lattice-hub/internal/config"
	"github.com/kingrea/lattice-hub/internal/feature"
	"github.com/kingrea/lattice-hub/internal/manifest"
)

func TestNewRequiresProject(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrConfig)

	_, err = New(&config.Config{ProjectDir: "  "})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestPluginsAreMemoized(t *testing.T) {
	p := newProject(t, pkg{name: "P", deps: []string{"A"}})
	p.install(pkg{name: "A", plugin: true})
	source := newCountingSource()
	l := p.loader(false, WithManifestSource(source))

	first, err := l.Plugins(context.Background())
	require.NoError(t, err)
	loads := source.loads.Load()
	require.Equal(t, int64(2), loads)

	require.NoError(t, os.RemoveAll(p.root))

	second, err := l.Plugins(context.Background())
	require.NoError(t, err)
	assert.Equal(t, loads, source.loads.Load())
	require.Len(t, second, len(first))
	assert.Same(t, &first[0], &second[0])
}

func TestPluginsConcurrentCallersShareOneCrawl(t *testing.T) {
	p := newProject(t, pkg{name: "P", deps: []string{"A", "B"}})
	p.install(pkg{name: "A", plugin: true})
	p.install(pkg{name: "B", plugin: true})
	source := newCountingSource()
	l := p.loader(false, WithManifestSource(source))

	const callers = 16
	results := make([][]Plugin, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			installed, err := l.Plugins(context.Background())
			assert.NoError(t, err)
			results[i] = installed
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(3), source.loads.Load())
	for _, installed := range results {
		assert.Equal(t, []string{"P", "A", "B"}, names(installed))
	}
}

func TestFailedCrawlIsRetried(t *testing.T) {
	p := newProject(t, pkg{name: "P", deps: []string{"late"}})
	l := p.loader(false)

	_, err := l.Plugins(context.Background())
	require.ErrorIs(t, err, manifest.ErrNotFound)

	p.install(pkg{name: "late", plugin: true})
	installed, err := l.Plugins(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"P", "late"}, names(installed))
}

func TestPluginsHonorsCancellation(t *testing.T) {
	p := newProject(t, pkg{name: "P"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.loader(false).Plugins(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// gatedSource holds the first manifest read until release is closed.
type gatedSource struct {
	*countingSource
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedSource) Load(path string) (*manifest.Manifest, error) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	return g.countingSource.Load(path)
}

func TestCancelledCallerDoesNotFailSharedCrawl(t *testing.T) {
	p := newProject(t, pkg{name: "P", deps: []string{"A"}})
	p.install(pkg{name: "A", plugin: true})
	source := &gatedSource{
		countingSource: newCountingSource(),
		started:        make(chan struct{}),
		release:        make(chan struct{}),
	}
	l := p.loader(false, WithManifestSource(source))

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := l.Plugins(ctx)
		firstErr <- err
	}()
	<-source.started

	type result struct {
		installed []Plugin
		err       error
	}
	second := make(chan result, 1)
	go func() {
		installed, err := l.Plugins(context.Background())
		second <- result{installed, err}
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(source.release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, []string{"P", "A"}, names(got.installed))

	// The detached crawl was cached for later callers.
	loads := source.loads.Load()
	again, err := l.Plugins(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"P", "A"}, names(again))
	assert.Equal(t, loads, source.loads.Load())
	assert.Equal(t, int64(2), loads)
}

func TestInstalledPluginsPublicNames(t *testing.T) {
	p := newProject(t, pkg{name: "P", deps: []string{"A"}})
	dir := p.install(pkg{name: "A", plugin: true})
	p.file(dir, "writers/foo.go")
	p.file(dir, "searcher.go")

	public, err := p.loader(false).InstalledPlugins(context.Background())
	require.NoError(t, err)
	require.Len(t, public, 2)
	assert.Equal(t, PublicPlugin{Name: "P", Features: []PublicFeature{}}, public[0])
	assert.Equal(t, PublicPlugin{
		Name: "A",
		Features: []PublicFeature{
			{Type: feature.Writers, Name: "A::foo"},
			{Type: feature.Searchers, Name: "A"},
		},
	}, public[1])
}

func TestCrawlLogsSummaryAtDebug(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	p := newProject(t, pkg{name: "P", deps: []string{"A"}})
	dir := p.install(pkg{name: "A", plugin: true})
	p.file(dir, "writers/git.go")

	_, err := p.loader(false, WithLogger(zap.New(core))).Plugins(context.Background())
	require.NoError(t, err)

	summaries := logs.FilterMessage("installed plugin summary").All()
	require.Len(t, summaries, 1)
	summary, _ := summaries[0].ContextMap()["summary"].(string)
	assert.Contains(t, summary, "A::git")
	assert.Equal(t, "plugin-loader", summaries[0].ContextMap()["component"])

	counts := logs.FilterMessage("found installed plugins").All()
	require.Len(t, counts, 1)
	assert.EqualValues(t, 2, counts[0].ContextMap()["count"])
}

func TestActivePluginsRejectsRecordWithoutModule(t *testing.T) {
	// The project does not exist: the record check must fail before any crawl.
	l, err := New(&config.Config{ProjectDir: "/nonexistent/hub-project"})
	require.NoError(t, err)

	bad := config.PluginConfig{Type: "plugin-configs", ID: "x", Attributes: map[string]any{"enabled": true}}
	_, err = l.ActivePlugins(context.Background(), []config.PluginConfig{bad}, nil)
	require.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), "module attribute")
}

func TestActivePluginsWarnsAboutMissingPlugins(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	p := newProject(t, pkg{name: "P", deps: []string{"A"}})
	p.install(pkg{name: "A", plugin: true})
	l := p.loader(false, WithLogger(zap.New(core)))

	active, err := l.ActivePlugins(context.Background(), []config.PluginConfig{
		record("A", nil),
		record("ghost", nil),
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, active)

	warnings := logs.FilterMessageSnippet("not installed").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, []any{"ghost"}, warnings[0].ContextMap()["plugins"])
}

func TestActivePluginsMergesRelationships(t *testing.T) {
	p := newProject(t, pkg{name: "P", deps: []string{"A"}})
	p.install(pkg{name: "A", plugin: true})
	rec := record("A", map[string]any{"depth": 3})
	rec.Relationships = map[string]any{"depth": 4, "owner": "team"}

	active, err := p.loader(false).ActivePlugins(context.Background(), []config.PluginConfig{rec}, nil)
	require.NoError(t, err)

	cfg, ok := active.ConfigFor("A")
	require.True(t, ok)
	assert.Equal(t, Config{"module": "A", "depth": 4, "owner": "team"}, cfg)

	_, ok = active.ConfigFor("B")
	assert.False(t, ok)
}
