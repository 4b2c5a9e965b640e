// Package secrets resolves credentials for the provider ensemble and the
// vault cipher.
//
// A Resolver queries its sources in order and the first source carrying a
// value wins. The standard wiring is a managed YAML file followed by the
// process environment, so operators can keep keys out of the environment
// without breaking plain `.env` deployments.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/realarmaansidhu/NuestraBoveda/common/environment"
)

// ErrNotFound is returned when no source carries the requested secret.
var ErrNotFound = errors.New("secrets: not found")

// Source supplies named secret values.
type Source interface {
	// Lookup returns the value for name, reporting ok=false when this
	// source does not carry it.
	Lookup(name string) (value string, ok bool)
	// Name identifies the source in logs and status reports.
	Name() string
}

// Resolver resolves secrets by querying its sources in order.
type Resolver struct {
	sources []Source
}

// NewResolver returns a Resolver over the given sources. Earlier sources
// take precedence.
func NewResolver(sources ...Source) *Resolver {
	return &Resolver{sources: sources}
}

// Resolve returns the value of the named secret from the first source
// that carries it. Wraps ErrNotFound when no source does.
func (r *Resolver) Resolve(name string) (string, error) {
	for _, s := range r.sources {
		if v, ok := s.Lookup(name); ok {
			return v, nil
		}
	}
	return "", fmt.Errorf("secrets: resolve %s: %w", name, ErrNotFound)
}

// Probe reports, for each name, which source would satisfy it. Names no
// source carries map to "". Values themselves are never returned, which
// makes Probe safe to expose on a status endpoint.
func (r *Resolver) Probe(names ...string) map[string]string {
	out := make(map[string]string, len(names))
	for _, name := range names {
		out[name] = ""
		for _, s := range r.sources {
			if _, ok := s.Lookup(name); ok {
				out[name] = s.Name()
				break
			}
		}
	}
	return out
}

// FileSource reads secrets from a YAML file mapping names to values.
//
// The file is read once at construction. A missing file yields an empty
// source so deployments without a managed secrets file still boot.
type FileSource struct {
	path   string
	values map[string]string
}

// NewFileSource loads the YAML secrets file at path.
func NewFileSource(path string) (*FileSource, error) {
	fs := &FileSource{path: path, values: map[string]string{}}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, fmt.Errorf("secrets: read %s: %w", path, err)
	}

	var parsed map[string]string
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("secrets: parse %s: %w", path, err)
	}

	for k, v := range parsed {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			fs.values[k] = v
		}
	}
	return fs, nil
}

// Lookup implements Source.
func (f *FileSource) Lookup(name string) (string, bool) {
	v, ok := f.values[name]
	return v, ok
}

// Name implements Source.
func (f *FileSource) Name() string { return "file" }

// EnvSource reads secrets from the process environment. Empty variables
// count as absent.
type EnvSource struct{}

// Lookup implements Source.
func (EnvSource) Lookup(name string) (string, bool) {
	v := environment.String(name)
	return v, v != ""
}

// Name implements Source.
func (EnvSource) Name() string { return "env" }

// Static is a fixed in-memory source, mainly useful in tests.
type Static map[string]string

// Lookup implements Source.
func (s Static) Lookup(name string) (string, bool) {
	v, ok := s[name]
	return v, ok
}

// Name implements Source.
func (Static) Name() string { return "static" }
