package sites

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// SelectorChain is an ordered list of CSS selectors tried top to bottom.
// In YAML a chain may be written as a single string or as a sequence.
type SelectorChain []string

func (c *SelectorChain) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*c = SelectorChain{s}
		return nil
	case yaml.SequenceNode:
		var ss []string
		if err := value.Decode(&ss); err != nil {
			return err
		}
		*c = SelectorChain(ss)
		return nil
	default:
		return fmt.Errorf("selector chain must be a string or a sequence, got yaml kind %d", value.Kind)
	}
}

// Profile describes how one site is crawled: where its category listings
// live, how product fields are located, and how fast it may be visited.
type Profile struct {
	Name             string                   `yaml:"name"`
	BaseURL          string                   `yaml:"base_url"`
	CategoryPaths    map[string]string        `yaml:"category_paths"`
	Selectors        map[string]SelectorChain `yaml:"selectors"`
	RateLimitSeconds float64                  `yaml:"rate_limit_seconds"`
	Headers          map[string]string        `yaml:"headers,omitempty"`
}

// CategoryURL resolves the listing URL for a category, falling back to the
// base URL when the category has no configured path.
func (p *Profile) CategoryURL(category string) string {
	path, ok := p.CategoryPaths[category]
	if !ok {
		return p.BaseURL
	}
	return p.BaseURL + path
}

// Chain returns the selector fallback chain for a field, or nil when the
// profile does not configure the field at all.
func (p *Profile) Chain(field string) SelectorChain {
	return p.Selectors[field]
}

// FieldNames returns every configured field in deterministic order.
func (p *Profile) FieldNames() []string {
	names := make([]string, 0, len(p.Selectors))
	for name := range p.Selectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("site profile is missing a name")
	}
	if p.BaseURL == "" {
		return fmt.Errorf("site profile %q is missing base_url", p.Name)
	}
	if len(p.Selectors) == 0 {
		return fmt.Errorf("site profile %q has no selectors", p.Name)
	}
	if p.RateLimitSeconds < 0 {
		return fmt.Errorf("site profile %q has negative rate_limit_seconds", p.Name)
	}
	return nil
}

// Registry holds the loaded site profiles keyed by site name.
type Registry struct {
	profiles map[string]*Profile
}

// Load reads a YAML file mapping site names to profiles. Profiles without an
// explicit name inherit their map key.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read site profiles: %w", err)
	}
	return Parse(data)
}

// Parse decodes site profiles from YAML bytes.
func Parse(data []byte) (*Registry, error) {
	raw := map[string]*Profile{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse site profiles: %w", err)
	}
	for name, p := range raw {
		if p.Name == "" {
			p.Name = name
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return &Registry{profiles: raw}, nil
}

// Get returns the profile for a site name.
func (r *Registry) Get(name string) (*Profile, error) {
	p, ok := r.profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown site %q", name)
	}
	return p, nil
}

// Names lists the registered sites in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
