package plugins

import (
	"fmt"

	"github.com/kingrea/lattice-hub/internal/container"
	"github.com/kingrea/lattice-hub/internal/feature"
)

// Config is the merged attributes and relationships of an activation record.
type Config map[string]any

// Provider turns a resolved feature identifier into a loaded capability.
type Provider interface {
	Lookup(identifier string) (any, error)
	FactoryFor(identifier string) (container.Factory, error)
}

// Active answers lookups against the installed plugins that have an
// activation record. It is read-only after construction.
type Active struct {
	installed []Plugin
	configs   map[string]Config
	provider  Provider
}

func newActive(installed []Plugin, configs map[string]Config, provider Provider) *Active {
	return &Active{installed: installed, configs: configs, provider: provider}
}

// ConfigFor returns the activation config for a plugin.
func (a *Active) ConfigFor(name string) (Config, bool) {
	cfg, ok := a.configs[name]
	return cfg, ok
}

// ListAll returns the fully-qualified names of every feature of typ offered
// by an activated plugin, in crawl order.
func (a *Active) ListAll(typ feature.Type) []string {
	var names []string
	for _, p := range a.installed {
		if _, ok := a.configs[p.Name]; !ok {
			continue
		}
		for _, f := range p.Features {
			if f.Type == typ {
				names = append(names, feature.Qualify(p.Name, f.Name))
			}
		}
	}
	return names
}

// LookupFeature loads the named feature. It returns (nil, nil) when the
// plugin is not activated, not installed, or lacks the feature.
func (a *Active) LookupFeature(typ feature.Type, fullyQualified string) (any, error) {
	id, err := a.Identifier(typ, fullyQualified)
	if err != nil || id == "" {
		return nil, err
	}
	return a.instance(id)
}

// LookupFeatureFactory is LookupFeature returning the factory instead of an
// instance.
func (a *Active) LookupFeatureFactory(typ feature.Type, fullyQualified string) (container.Factory, error) {
	id, err := a.Identifier(typ, fullyQualified)
	if err != nil || id == "" {
		return nil, err
	}
	return a.factory(id)
}

// LookupFeatureAndAssert loads the named feature or returns a *LookupError
// saying why it cannot.
func (a *Active) LookupFeatureAndAssert(typ feature.Type, fullyQualified string) (any, error) {
	id, err := a.IdentifierAndAssert(typ, fullyQualified)
	if err != nil {
		return nil, err
	}
	return a.instance(id)
}

// LookupFeatureFactoryAndAssert is LookupFeatureAndAssert returning the
// factory instead of an instance.
func (a *Active) LookupFeatureFactoryAndAssert(typ feature.Type, fullyQualified string) (container.Factory, error) {
	id, err := a.IdentifierAndAssert(typ, fullyQualified)
	if err != nil {
		return nil, err
	}
	return a.factory(id)
}

// Identifier resolves a fully-qualified name to its loadable identifier
// without loading it. An empty identifier means nothing resolved.
func (a *Active) Identifier(typ feature.Type, fullyQualified string) (string, error) {
	if err := typ.Validate(); err != nil {
		return "", err
	}
	pluginName, featureName := feature.SplitQualified(fullyQualified)
	if _, ok := a.configs[pluginName]; !ok {
		return "", nil
	}
	p, ok := findPlugin(a.installed, pluginName)
	if !ok {
		return "", nil
	}
	f, ok := findFeature(p.Features, typ, featureName)
	if !ok {
		return "", nil
	}
	return identifier(f), nil
}

// IdentifierAndAssert resolves a fully-qualified name, checking in order
// that the plugin is installed, that it offers the feature, and that it is
// activated.
func (a *Active) IdentifierAndAssert(typ feature.Type, fullyQualified string) (string, error) {
	if err := typ.Validate(); err != nil {
		return "", err
	}
	pluginName, featureName := feature.SplitQualified(fullyQualified)
	_, activated := a.configs[pluginName]
	p, installed := findPlugin(a.installed, pluginName)

	fail := func(reason error) error {
		return &LookupError{Type: typ, Name: fullyQualified, Plugin: pluginName, Err: reason}
	}
	if !installed {
		return "", fail(ErrPluginNotInstalled)
	}
	f, ok := findFeature(p.Features, typ, featureName)
	if !ok {
		return "", fail(ErrFeatureNotFound)
	}
	if !activated {
		return "", fail(ErrPluginNotActivated)
	}
	return identifier(f), nil
}

func (a *Active) instance(id string) (any, error) {
	if a.provider == nil {
		return nil, configErrorf("no capability provider to load %s", id)
	}
	return a.provider.Lookup(id)
}

func (a *Active) factory(id string) (container.Factory, error) {
	if a.provider == nil {
		return nil, configErrorf("no capability provider to load %s", id)
	}
	return a.provider.FactoryFor(id)
}

func findFeature(features []feature.Feature, typ feature.Type, name feature.Name) (feature.Feature, bool) {
	for _, f := range features {
		if f.Type == typ && f.Name == name {
			return f, true
		}
	}
	return feature.Feature{}, false
}

func identifier(f feature.Feature) string {
	return fmt.Sprintf("plugin-%s:%s", f.Type, f.LoadPath)
}
