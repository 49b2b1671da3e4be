package plugins

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kingrea/lattice-hub/internal/config"
	"github.com/kingrea/lattice-hub/internal/logging"
	"github.com/kingrea/lattice-hub/internal/manifest"
)

const (
	defaultResolveConcurrency = 8
	installedKey              = "installed"
)

// Loader discovers the plugins installed in a project and activates them
// against configuration records. The crawl runs at most once per Loader.
type Loader struct {
	project     *config.Config
	manifests   ManifestSource
	logger      *zap.Logger
	concurrency int

	group     singleflight.Group
	mu        sync.Mutex
	installed []Plugin
	loaded    bool
}

// Option customizes a Loader.
type Option func(*Loader)

// WithLogger sets the logger used for crawl diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		l.logger = logging.OrNop(logger)
	}
}

// WithManifestSource replaces the filesystem manifest resolver.
func WithManifestSource(source ManifestSource) Option {
	return func(l *Loader) {
		if source != nil {
			l.manifests = source
		}
	}
}

// WithResolveConcurrency bounds how many sibling dependencies are resolved
// at once. Values below one resolve siblings one at a time.
func WithResolveConcurrency(n int) Option {
	return func(l *Loader) {
		if n < 1 {
			n = 1
		}
		l.concurrency = n
	}
}

// New returns a Loader for the project described by cfg.
func New(cfg *config.Config, opts ...Option) (*Loader, error) {
	if cfg == nil {
		return nil, configErrorf("missing project configuration")
	}
	if strings.TrimSpace(cfg.ProjectDir) == "" {
		return nil, configErrorf("project configuration must have a path")
	}
	l := &Loader{
		project:     cfg,
		manifests:   manifest.NewResolver(),
		logger:      zap.NewNop(),
		concurrency: defaultResolveConcurrency,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(zap.String("component", "plugin-loader"))
	return l, nil
}

// InstalledPlugins returns every installed plugin with fully-qualified
// feature names.
func (l *Loader) InstalledPlugins(ctx context.Context) ([]PublicPlugin, error) {
	installed, err := l.Plugins(ctx)
	if err != nil {
		return nil, err
	}
	return PublicNames(installed), nil
}

// Plugins returns the crawl records. The first call crawls the project;
// later calls return the same slice without touching the filesystem.
// Concurrent first calls share a single crawl, which is detached from any one
// caller's cancellation: a caller whose ctx ends stops waiting, the others
// still get the result. A failed crawl is not cached.
// Callers must not modify the returned slice.
func (l *Loader) Plugins(ctx context.Context) ([]Plugin, error) {
	if installed, ok := l.cached(); ok {
		return installed, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := l.group.DoChan(installedKey, func() (any, error) {
		if installed, ok := l.cached(); ok {
			return installed, nil
		}
		installed, err := l.crawl(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.installed = installed
		l.loaded = true
		l.mu.Unlock()
		return installed, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Plugin), nil
	}
}

// ActivePlugins combines the installed plugins with activation records.
// Every record must name its module in attributes.module; a malformed record
// fails before the crawl runs. Records naming plugins that are not installed
// are logged and otherwise ignored.
func (l *Loader) ActivePlugins(ctx context.Context, records []config.PluginConfig, provider Provider) (*Active, error) {
	configs := make(map[string]Config, len(records))
	for _, record := range records {
		module, ok := record.Module()
		if !ok {
			return nil, configErrorf("plugin-configs must have a module attribute. Found: (%s)", record)
		}
		merged := make(Config, len(record.Attributes)+len(record.Relationships))
		for key, value := range record.Attributes {
			merged[key] = value
		}
		for key, value := range record.Relationships {
			merged[key] = value
		}
		configs[module] = merged
	}

	installed, err := l.Plugins(ctx)
	if err != nil {
		return nil, err
	}
	if missing := missingPlugins(installed, configs); len(missing) > 0 {
		l.logger.Warn("plugins are configured but not installed", zap.Strings("plugins", missing))
	}
	return newActive(installed, configs, provider), nil
}

func (l *Loader) cached() ([]Plugin, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.installed, l.loaded
}

func (l *Loader) crawl(ctx context.Context) ([]Plugin, error) {
	// devDependencies of the project under test are part of the crawl.
	includeDev := l.project.Testing()
	l.logger.Info("plugin loader starting", zap.String("path", l.project.ProjectDir))
	installed, err := newCrawler(l.manifests, l.project.ProjectDir, l.logger, l.concurrency).run(ctx, includeDev)
	if err != nil {
		return nil, err
	}
	l.logger.Info("found installed plugins", zap.Int("count", len(installed)))
	if ce := l.logger.Check(zap.DebugLevel, "installed plugin summary"); ce != nil {
		ce.Write(zap.String("summary", "\n"+RenderSummary(installed)))
	}
	return installed, nil
}

func missingPlugins(installed []Plugin, configs map[string]Config) []string {
	var missing []string
	for name := range configs {
		if _, ok := findPlugin(installed, name); !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}
