package normalize

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Adapter declares how one source's raw field names map onto the canonical
// schema. Sources without a declared adapter fall back to the default one,
// which recognizes both the Italian institutional field names and their
// English equivalents.
type Adapter struct {
	SourceID    string              `yaml:"source_id"`
	FieldMap    map[string][]string `yaml:"field_map"`
	DateLayouts []string            `yaml:"date_layouts,omitempty"`
	Boilerplate []string            `yaml:"boilerplate,omitempty"`
	Framework   string              `yaml:"framework,omitempty"`
}

// Canonical field keys an adapter may map to.
const (
	FieldName      = "name"
	FieldStartDate = "start_date"
	FieldEndDate   = "end_date"
	FieldCountry   = "country"
	FieldPersonnel = "personnel_total"
	FieldCost      = "cost_total"
)

// Registry holds per-source adapters with a shared fallback.
type Registry struct {
	adapters map[string]*Adapter
	fallback *Adapter
}

// DefaultAdapter returns the fallback adapter covering the field names the
// known institutional sources emit.
func DefaultAdapter() *Adapter {
	return &Adapter{
		SourceID: "default",
		FieldMap: map[string][]string{
			FieldName:      {"name", "nome_missione", "mission_name", "missione"},
			FieldStartDate: {"start_date", "data_inizio", "launch_date"},
			FieldEndDate:   {"end_date", "data_fine", "termination_date"},
			FieldCountry:   {"country", "paese", "countries", "host_country"},
			FieldPersonnel: {"personnel_total", "personale_totale", "personnel", "troops"},
			FieldCost:      {"cost_total", "costo_totale", "cost", "budget"},
		},
	}
}

// NewRegistry builds a registry from explicit adapters plus the default
// fallback for undeclared sources.
func NewRegistry(adapters []Adapter) *Registry {
	r := &Registry{
		adapters: make(map[string]*Adapter, len(adapters)),
		fallback: DefaultAdapter(),
	}
	for i := range adapters {
		r.adapters[adapters[i].SourceID] = &adapters[i]
	}
	return r
}

// LoadRegistry reads adapter declarations from a YAML file. A missing file
// is not an error: the registry then serves the default adapter for every
// source.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewRegistry(nil), nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "normalize: read adapters file")
	}

	var doc struct {
		Adapters []Adapter `yaml:"adapters"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "normalize: parse adapters file")
	}
	return NewRegistry(doc.Adapters), nil
}

// ForSource returns the adapter declared for the source, or the fallback.
func (r *Registry) ForSource(sourceID string) *Adapter {
	if a, ok := r.adapters[sourceID]; ok {
		return a
	}
	return r.fallback
}

// lookup returns the first non-empty raw value mapped to the canonical key.
// The adapter's own mapping is consulted first, then the fallback's, so a
// partial adapter still picks up common field names.
func (r *Registry) lookup(a *Adapter, fields map[string]string, key string) string {
	for _, raw := range a.FieldMap[key] {
		if v, ok := fields[raw]; ok && v != "" {
			return v
		}
	}
	if a != r.fallback {
		for _, raw := range r.fallback.FieldMap[key] {
			if v, ok := fields[raw]; ok && v != "" {
				return v
			}
		}
	}
	return ""
}
