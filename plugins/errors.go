package plugins

import (
	"errors"
	"fmt"

	"github.com/kingrea/lattice-hub/internal/feature"
	"github.com/kingrea/lattice-hub/internal/manifest"
)

var (
	// ErrConfig marks missing or malformed construction inputs.
	ErrConfig = errors.New("plugin: configuration error")
	// ErrUnknownFeatureType is returned when a lookup names a type outside
	// the fixed enumeration.
	ErrUnknownFeatureType = feature.ErrUnknownType

	ErrPluginNotInstalled = errors.New("plugin is not installed")
	ErrFeatureNotFound    = errors.New("no such feature exists in plugin")
	ErrPluginNotActivated = errors.New("plugin is not activated")
)

// LookupError is returned by the asserting lookups. Err is one of
// ErrPluginNotInstalled, ErrFeatureNotFound or ErrPluginNotActivated.
type LookupError struct {
	Type   feature.Type
	Name   string
	Plugin string
	Err    error
}

func (e *LookupError) Error() string {
	prefix := fmt.Sprintf("You're trying to use %s %s but", e.Type, e.Name)
	switch {
	case errors.Is(e.Err, ErrPluginNotInstalled):
		return fmt.Sprintf("%s the plugin %s is not installed. Make sure it appears in the dependencies section of %s", prefix, e.Plugin, manifest.FileName)
	case errors.Is(e.Err, ErrFeatureNotFound):
		return fmt.Sprintf("%s no such feature exists in plugin %s", prefix, e.Plugin)
	case errors.Is(e.Err, ErrPluginNotActivated):
		return fmt.Sprintf("%s the plugin %s is not activated", prefix, e.Plugin)
	default:
		return fmt.Sprintf("%s lookup failed: %v", prefix, e.Err)
	}
}

func (e *LookupError) Unwrap() error { return e.Err }

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}
