package feature

import (
	"errors"
	"fmt"
	"strings"
)

// Type is one of the fixed extension-point categories a plugin may provide.
// Values are the plural directory names scanned inside a plugin root.
type Type string

const (
	Constraints    Type = "constraints"
	Fields         Type = "fields"
	Writers        Type = "writers"
	Searchers      Type = "searchers"
	Indexers       Type = "indexers"
	Authenticators Type = "authenticators"
	Middleware     Type = "middleware"
	Messengers     Type = "messengers"
)

// ErrUnknownType reports a feature type outside the fixed enumeration.
var ErrUnknownType = errors.New("feature: no such feature type")

var canonicalOrder = []Type{
	Constraints,
	Fields,
	Writers,
	Searchers,
	Indexers,
	Authenticators,
	Middleware,
	Messengers,
}

// Types returns every feature type in discovery order.
func Types() []Type {
	return append([]Type(nil), canonicalOrder...)
}

// Valid reports whether t is one of the known feature types.
func (t Type) Valid() bool {
	for _, known := range canonicalOrder {
		if t == known {
			return true
		}
	}
	return false
}

// Singular returns the name used for the plugin's top-level feature file.
func (t Type) Singular() string {
	return strings.TrimSuffix(string(t), "s")
}

func (t Type) String() string { return string(t) }

// Validate returns ErrUnknownType (wrapped with the offending value) when t is
// not a known type.
func (t Type) Validate() error {
	if !t.Valid() {
		return fmt.Errorf("%w %q", ErrUnknownType, string(t))
	}
	return nil
}

// ParseType accepts either the plural ("writers") or singular ("writer")
// spelling of a feature type.
func ParseType(value string) (Type, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	for _, known := range canonicalOrder {
		if trimmed == string(known) || trimmed == known.Singular() {
			return known, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownType, value)
}

// Name identifies a feature inside one plugin. The zero value is not valid;
// build names with Named or TopLevel.
type Name struct {
	value string
	top   bool
}

// Named returns the name of a feature discovered from a typed subdirectory.
func Named(value string) Name {
	return Name{value: value}
}

// TopLevel returns the marker for a plugin's single, unnamed feature of a
// type. It never compares equal to any Named value.
func TopLevel() Name {
	return Name{top: true}
}

// IsTopLevel reports whether n is the top-level marker.
func (n Name) IsTopLevel() bool { return n.top }

// Value returns the string name. It is empty for the top-level marker.
func (n Name) Value() string { return n.value }

func (n Name) String() string {
	if n.top {
		return "<top-level>"
	}
	return n.value
}

// Feature is one extension point offered by a plugin.
type Feature struct {
	Type     Type
	Name     Name
	LoadPath string
}

// Separator joins a plugin name and a feature name in a fully-qualified name.
const Separator = "::"

// Qualify renders the fully-qualified name of a feature owned by plugin.
func Qualify(plugin string, name Name) string {
	if name.IsTopLevel() {
		return plugin
	}
	return plugin + Separator + name.Value()
}

// SplitQualified splits a fully-qualified name into the plugin name and the
// feature name. A name without a separator refers to the top-level feature.
func SplitQualified(fullyQualified string) (string, Name) {
	parts := strings.Split(fullyQualified, Separator)
	if len(parts) < 2 || parts[1] == "" {
		return parts[0], TopLevel()
	}
	return parts[0], Named(parts[1])
}
