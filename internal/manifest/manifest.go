package manifest

import (
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

const (
	// FileName is the manifest file looked up in every module directory.
	FileName = "package.json"
	// PluginKeyword must appear in keywords for a dependency to count as a plugin.
	PluginKeyword = "hub-plugin"
	// DescriptorKey names the structured plugin descriptor object.
	DescriptorKey = "hub-plugin"
	// SupportedAPIVersion is the descriptor api-version this loader understands.
	SupportedAPIVersion = 1
)

// Descriptor is the plugin metadata block of a manifest.
type Descriptor struct {
	APIVersion    float64
	Src           string
	InRepoPlugins []string
}

// SupportsAPIVersion reports whether the descriptor declares the supported
// api-version. Anything else is still loaded, with a warning.
func (d Descriptor) SupportsAPIVersion() bool {
	return d.APIVersion == SupportedAPIVersion
}

// Manifest holds the fields of package.json the loader consumes. Dependency
// names keep their declaration order.
type Manifest struct {
	Path            string
	Name            string
	Keywords        []string
	Dependencies    []string
	DevDependencies []string
	// Plugin is nil when the manifest carries no descriptor.
	Plugin *Descriptor
}

// IsPlugin reports whether the manifest both lists the plugin keyword and
// carries a descriptor.
func (m *Manifest) IsPlugin() bool {
	if m == nil || m.Plugin == nil {
		return false
	}
	for _, keyword := range m.Keywords {
		if keyword == PluginKeyword {
			return true
		}
	}
	return false
}

// ParseError reports a manifest that exists but cannot be decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("manifest: parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var errInvalidJSON = errors.New("invalid JSON")

// Load reads and decodes the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse decodes manifest bytes. path is only used for reporting.
func Parse(path string, data []byte) (*Manifest, error) {
	if !gjson.ValidBytes(data) {
		return nil, &ParseError{Path: path, Err: errInvalidJSON}
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, &ParseError{Path: path, Err: fmt.Errorf("top level must be an object")}
	}
	m := &Manifest{
		Path:            path,
		Name:            doc.Get("name").String(),
		Keywords:        stringArray(doc.Get("keywords")),
		Dependencies:    objectKeys(doc.Get("dependencies")),
		DevDependencies: objectKeys(doc.Get("devDependencies")),
	}
	// gjson path syntax treats '-' literally, so the key needs no escaping.
	if raw := doc.Get(DescriptorKey); truthy(raw) {
		m.Plugin = &Descriptor{}
		if raw.IsObject() {
			if v := raw.Get("api-version"); v.Type == gjson.Number {
				m.Plugin.APIVersion = v.Num
			}
			if v := raw.Get("src"); v.Type == gjson.String {
				m.Plugin.Src = v.Str
			}
			m.Plugin.InRepoPlugins = stringArray(raw.Get("in-repo-plugins"))
		}
	}
	return m, nil
}

func objectKeys(value gjson.Result) []string {
	if !value.IsObject() {
		return nil
	}
	var keys []string
	value.ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	return keys
}

func stringArray(value gjson.Result) []string {
	if !value.IsArray() {
		return nil
	}
	var out []string
	for _, item := range value.Array() {
		if item.Type == gjson.String {
			out = append(out, item.Str)
		}
	}
	return out
}

// truthy follows the loose truthiness package.json consumers apply to the
// descriptor key: objects and arrays always count, scalars only when non-empty.
func truthy(value gjson.Result) bool {
	switch value.Type {
	case gjson.JSON:
		return true
	case gjson.True:
		return true
	case gjson.String:
		return value.Str != ""
	case gjson.Number:
		return value.Num != 0
	default:
		return false
	}
}
