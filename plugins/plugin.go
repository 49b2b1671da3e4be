package plugins

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/kingrea/lattice-hub/internal/feature"
)

// Plugin is one module found by the crawl. Records are immutable once the
// crawl that produced them completes.
type Plugin struct {
	Name     string
	Dir      string
	Features []feature.Feature
}

// PublicFeature is a feature as exposed outside the loader: the name is
// always the fully-qualified string form.
type PublicFeature struct {
	Type feature.Type `json:"type"`
	Name string       `json:"name"`
}

// PublicPlugin is the projection returned by InstalledPlugins.
type PublicPlugin struct {
	Name     string          `json:"name"`
	Features []PublicFeature `json:"features"`
}

// PublicNames projects crawl records onto their public form.
func PublicNames(plugins []Plugin) []PublicPlugin {
	out := make([]PublicPlugin, 0, len(plugins))
	for _, p := range plugins {
		features := make([]PublicFeature, 0, len(p.Features))
		for _, f := range p.Features {
			features = append(features, PublicFeature{
				Type: f.Type,
				Name: feature.Qualify(p.Name, f.Name),
			})
		}
		out = append(out, PublicPlugin{Name: p.Name, Features: features})
	}
	return out
}

// Summarize flattens plugins into (plugin, type, name) rows. A plugin with no
// features still gets a row so it shows up in listings.
func Summarize(plugins []Plugin) [][]string {
	var rows [][]string
	for _, p := range PublicNames(plugins) {
		if len(p.Features) == 0 {
			rows = append(rows, []string{p.Name, "", ""})
			continue
		}
		for _, f := range p.Features {
			rows = append(rows, []string{p.Name, string(f.Type), f.Name})
		}
	}
	return rows
}

// RenderSummary renders Summarize as a bordered table.
func RenderSummary(plugins []Plugin) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PLUGIN", "TYPE", "NAME").
		Rows(Summarize(plugins)...).
		String()
}

func findPlugin(plugins []Plugin, name string) (Plugin, bool) {
	for _, p := range plugins {
		if p.Name == name {
			return p, true
		}
	}
	return Plugin{}, false
}
