// Package registry maps vocabulary names and URIs to their search indexes.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cloo-solutions/vocabtool/internal/domain"
	"github.com/cloo-solutions/vocabtool/internal/index"
)

// Canonical system URIs.
const (
	LOINCURI  = "http://loinc.org"
	RxNormURI = "http://www.nlm.nih.gov/research/umls/rxnorm"
	SNOMEDURI = "http://snomed.info/sct"
)

// Columns names the source header for each entry field.
type Columns struct {
	Code          string `yaml:"code" json:"code"`
	Display       string `yaml:"display" json:"display"`
	Synonyms      string `yaml:"synonyms" json:"synonyms,omitempty"`
	FrequencyRank string `yaml:"frequency_rank" json:"frequencyRank,omitempty"`
	Units         string `yaml:"units" json:"units,omitempty"`
}

// DefaultColumns is the header layout used when a system does not declare one.
var DefaultColumns = Columns{
	Code:          "code",
	Display:       "display",
	Synonyms:      "synonyms",
	FrequencyRank: "frequency_rank",
	Units:         "units",
}

// LOINCColumns matches the LOINC table distribution.
var LOINCColumns = Columns{
	Code:          "LOINC_NUM",
	Display:       "LONG_COMMON_NAME",
	Synonyms:      "RELATEDNAMES2",
	FrequencyRank: "COMMON_TEST_RANK",
	Units:         "EXAMPLE_UCUM_UNITS",
}

// System describes one vocabulary.
type System struct {
	Name      string  `yaml:"name" json:"name"`
	URI       string  `yaml:"uri" json:"uri"`
	IndexPath string  `yaml:"index" json:"index"`
	Source    string  `yaml:"source" json:"source,omitempty"`
	Columns   Columns `yaml:"columns" json:"columns"`
}

type file struct {
	Systems []System `yaml:"systems"`
}

// Defaults returns the built-in loinc, rxnorm and snomed systems rooted at dataDir.
func Defaults(dataDir string) []System {
	return []System{
		{
			Name:      "loinc",
			URI:       LOINCURI,
			IndexPath: filepath.Join(dataDir, "loinc.db"),
			Source:    filepath.Join(dataDir, "Loinc.csv"),
			Columns:   LOINCColumns,
		},
		{
			Name:      "rxnorm",
			URI:       RxNormURI,
			IndexPath: filepath.Join(dataDir, "rxnorm.db"),
			Source:    filepath.Join(dataDir, "rxnorm.csv"),
			Columns:   DefaultColumns,
		},
		{
			Name:      "snomed",
			URI:       SNOMEDURI,
			IndexPath: filepath.Join(dataDir, "snomed.db"),
			Source:    filepath.Join(dataDir, "snomed.csv"),
			Columns:   DefaultColumns,
		},
	}
}

// LoadSystems reads the registry file at path. An empty path yields the defaults.
// Relative index and source paths are resolved against dataDir.
func LoadSystems(path, dataDir string) ([]System, error) {
	if path == "" {
		return Defaults(dataDir), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse registry file: %w", err)
	}
	if len(f.Systems) == 0 {
		return nil, fmt.Errorf("registry file %s declares no systems", path)
	}

	for i := range f.Systems {
		s := &f.Systems[i]
		s.Name = strings.ToLower(strings.TrimSpace(s.Name))
		if s.IndexPath == "" {
			s.IndexPath = s.Name + ".db"
		}
		if !filepath.IsAbs(s.IndexPath) {
			s.IndexPath = filepath.Join(dataDir, s.IndexPath)
		}
		if s.Source != "" && !strings.Contains(s.Source, "://") && !filepath.IsAbs(s.Source) {
			s.Source = filepath.Join(dataDir, s.Source)
		}
		s.Columns = s.Columns.withDefaults()
	}
	return f.Systems, nil
}

// withDefaults fills every undeclared column from DefaultColumns. Optional
// columns absent from the source header are skipped at parse time.
func (c Columns) withDefaults() Columns {
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&c.Code, DefaultColumns.Code)
	fill(&c.Display, DefaultColumns.Display)
	fill(&c.Synonyms, DefaultColumns.Synonyms)
	fill(&c.FrequencyRank, DefaultColumns.FrequencyRank)
	fill(&c.Units, DefaultColumns.Units)
	return c
}

// Vocabulary is a registered system and its index.
type Vocabulary struct {
	System System
	Index  *index.Index
}

// Registry is built once at start-up and read-only afterwards.
type Registry struct {
	byName map[string]*Vocabulary
	byURI  map[string]*Vocabulary
	order  []string
}

// New opens the index of every system. Unbuilt indexes are registered and
// report unavailable until loaded.
func New(systems []System) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]*Vocabulary, len(systems)),
		byURI:  make(map[string]*Vocabulary, len(systems)),
	}
	for _, s := range systems {
		if err := validate(s); err != nil {
			r.Close()
			return nil, err
		}
		name := strings.ToLower(s.Name)
		if _, dup := r.byName[name]; dup {
			r.Close()
			return nil, fmt.Errorf("duplicate system %q", s.Name)
		}
		if _, dup := r.byURI[s.URI]; dup {
			r.Close()
			return nil, fmt.Errorf("duplicate system uri %q", s.URI)
		}

		ix, err := index.Open(s.IndexPath)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("open index for %s: %w", s.Name, err)
		}
		v := &Vocabulary{System: s, Index: ix}
		r.byName[name] = v
		r.byURI[s.URI] = v
		r.order = append(r.order, name)
	}
	sort.Strings(r.order)
	return r, nil
}

func validate(s System) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("system name is required")
	}
	if strings.TrimSpace(s.URI) == "" {
		return fmt.Errorf("system %s: uri is required", s.Name)
	}
	if s.IndexPath == "" {
		return fmt.Errorf("system %s: index path is required", s.Name)
	}
	return nil
}

// Resolve finds a vocabulary by short name (case-insensitive) or canonical URI.
func (r *Registry) Resolve(nameOrURI string) (*Vocabulary, error) {
	key := strings.TrimSpace(nameOrURI)
	if key == "" {
		return nil, domain.ErrMissingSystem
	}
	if v, ok := r.byURI[key]; ok {
		return v, nil
	}
	if v, ok := r.byName[strings.ToLower(key)]; ok {
		return v, nil
	}
	return nil, domain.NewDomainErrorWithCause(domain.ErrCodeNotFound, "unknown vocabulary system",
		fmt.Errorf("%q", nameOrURI))
}

// Vocabularies returns every registered vocabulary ordered by name.
func (r *Registry) Vocabularies() []*Vocabulary {
	out := make([]*Vocabulary, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Close closes every index.
func (r *Registry) Close() error {
	var firstErr error
	for _, v := range r.byName {
		if err := v.Index.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
