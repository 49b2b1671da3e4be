package plugins

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kingrea/lattice-hub/internal/feature"
	"github.com/kingrea/lattice-hub/internal/manifest"
)

// ManifestSource locates and reads package manifests for the crawl.
type ManifestSource interface {
	Resolve(request, baseDir string) (string, error)
	Load(path string) (*manifest.Manifest, error)
	RealPath(dir string) (string, error)
}

// crawler performs one depth-first walk. It is not safe for concurrent use;
// only dependency resolution fans out, and the visited set and output are
// touched from the walking goroutine alone.
type crawler struct {
	manifests   ManifestSource
	projectPath string
	logger      *zap.Logger
	concurrency int

	seen   map[string]struct{}
	output []Plugin
}

func newCrawler(manifests ManifestSource, projectPath string, logger *zap.Logger, concurrency int) *crawler {
	return &crawler{
		manifests:   manifests,
		projectPath: projectPath,
		logger:      logger,
		concurrency: concurrency,
		seen:        map[string]struct{}{},
	}
}

func (c *crawler) run(ctx context.Context, includeDevDependencies bool) ([]Plugin, error) {
	if err := c.visit(ctx, c.projectPath, includeDevDependencies, 0); err != nil {
		return nil, err
	}
	return c.output, nil
}

func (c *crawler) visit(ctx context.Context, dir string, includeDevDependencies bool, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.logger.Debug("plugin crawl",
		zap.String("dir", dir),
		zap.Bool("includeDevDependencies", includeDevDependencies),
		zap.Int("depth", depth),
	)
	realDir, err := c.manifests.RealPath(dir)
	if err != nil {
		return err
	}
	if _, ok := c.seen[realDir]; ok {
		return nil
	}
	c.seen[realDir] = struct{}{}

	manifestPath, err := c.manifests.Resolve(filepath.Join(realDir, manifest.FileName), c.projectPath)
	if err != nil {
		return err
	}
	m, err := c.manifests.Load(manifestPath)
	if err != nil {
		return err
	}
	moduleRoot := filepath.Dir(manifestPath)

	if !m.IsPlugin() {
		// The project itself need not be a plugin; deeper dependencies only
		// matter when they are.
		if depth > 0 {
			c.logger.Debug("not a plugin, skipping", zap.String("dir", realDir))
			return nil
		}
	} else {
		if !m.Plugin.SupportsAPIVersion() {
			c.logger.Warn("unrecognized plugin api-version, trying anyway",
				zap.String("dir", realDir),
				zap.Float64("apiVersion", m.Plugin.APIVersion),
			)
		}
		if m.Plugin.Src != "" {
			moduleRoot = filepath.Join(moduleRoot, m.Plugin.Src)
		}
	}

	features, err := feature.Discover(moduleRoot)
	if err != nil {
		return err
	}
	c.output = append(c.output, Plugin{
		Name:     m.Name,
		Dir:      moduleRoot,
		Features: features,
	})

	requests := make([]string, 0, len(m.Dependencies)+len(m.DevDependencies))
	for _, dep := range m.Dependencies {
		requests = append(requests, dep+"/"+manifest.FileName)
	}
	if includeDevDependencies {
		for _, dep := range m.DevDependencies {
			requests = append(requests, dep+"/"+manifest.FileName)
		}
	}
	if m.Plugin != nil {
		for _, sub := range m.Plugin.InRepoPlugins {
			requests = append(requests, filepath.Join(moduleRoot, sub, manifest.FileName))
		}
	}

	children, err := c.resolveAll(ctx, requests, realDir)
	if err != nil {
		return err
	}
	for _, child := range children {
		// devDependencies of deeper levels are never followed.
		if err := c.visit(ctx, child, false, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// resolveAll resolves sibling requests concurrently and returns their module
// directories in request order.
func (c *crawler) resolveAll(ctx context.Context, requests []string, baseDir string) ([]string, error) {
	if len(requests) == 0 {
		return nil, nil
	}
	dirs := make([]string, len(requests))
	g, gctx := errgroup.WithContext(ctx)
	if c.concurrency > 0 {
		g.SetLimit(c.concurrency)
	}
	for i, request := range requests {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			resolved, err := c.manifests.Resolve(request, baseDir)
			if err != nil {
				return err
			}
			dirs[i] = filepath.Dir(resolved)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("plugin: dependencies of %s: %w", baseDir, err)
	}
	return dirs, nil
}
