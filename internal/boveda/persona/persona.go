// Package persona tracks who is speaking to the vault and which partner
// the AI features impersonate.
//
// The vault belongs to a pair. Whoever identifies as one persona gets
// the other as their counterpart: the memory curator writes in the
// partner's voice and the ghost writer replies as them. A personas file
// can replace the built-in pair, and is validated on load so a typo in
// a partner reference fails at startup instead of mid-conversation.
package persona

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Persona is one member of the pair.
type Persona struct {
	Name    string `yaml:"name"`
	Partner string `yaml:"partner"`
}

type fileFormat struct {
	Personas []Persona `yaml:"personas"`
}

// Registry holds the validated personas. Lookups are case-insensitive;
// declaration order is preserved for listings.
type Registry struct {
	byName map[string]Persona
	order  []string
}

var defaultPersonas = []Persona{
	{Name: "Anghily", Partner: "Armaan"},
	{Name: "Armaan", Partner: "Anghily"},
}

// Default returns the built-in pair the vault ships with.
func Default() *Registry {
	r, _ := New(defaultPersonas) // the built-in pair always validates
	return r
}

// Load reads a personas file. An empty path or a missing file falls
// back to the built-in pair; an invalid file is an error.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("persona: read %s: %w", path, err)
	}
	r, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("persona: %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes and validates a personas document.
func Parse(raw []byte) (*Registry, error) {
	var f fileFormat
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("persona: parse: %w", err)
	}
	return New(f.Personas)
}

// New builds a registry, rejecting the first rule violation it finds:
// fewer than two personas, an empty or duplicate name, or a partner
// that is missing, self-referential, or not a persona.
func New(personas []Persona) (*Registry, error) {
	if len(personas) < 2 {
		return nil, errors.New("persona: at least two personas are required")
	}

	byName := make(map[string]Persona, len(personas))
	order := make([]string, 0, len(personas))

	for _, p := range personas {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, errors.New("persona: name must not be empty")
		}
		key := strings.ToLower(name)
		if _, dup := byName[key]; dup {
			return nil, fmt.Errorf("persona: duplicate name %q", name)
		}
		byName[key] = Persona{Name: name, Partner: strings.TrimSpace(p.Partner)}
		order = append(order, name)
	}

	for _, name := range order {
		key := strings.ToLower(name)
		p := byName[key]
		if p.Partner == "" {
			return nil, fmt.Errorf("persona: %s has no partner", p.Name)
		}
		if strings.EqualFold(p.Partner, p.Name) {
			return nil, fmt.Errorf("persona: %s cannot be their own partner", p.Name)
		}
		partner, ok := byName[strings.ToLower(p.Partner)]
		if !ok {
			return nil, fmt.Errorf("persona: %s's partner %q is not a persona", p.Name, p.Partner)
		}
		// Normalize the reference to the partner's canonical spelling.
		p.Partner = partner.Name
		byName[key] = p
	}

	return &Registry{byName: byName, order: order}, nil
}

// Resolve finds a persona by name, case-insensitively.
func (r *Registry) Resolve(name string) (Persona, bool) {
	p, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Partner returns the counterpart of the named persona.
func (r *Registry) Partner(name string) (Persona, bool) {
	p, ok := r.Resolve(name)
	if !ok {
		return Persona{}, false
	}
	return r.Resolve(p.Partner)
}

// Names lists the persona names in declaration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
