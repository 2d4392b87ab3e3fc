// Package slugs maps human-readable maker, model, prefecture, city, and
// feature names to URL slugs and back.
package slugs

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/carsearch/internal/textfold"
)

//go:embed registry.yaml
var defaultRegistry []byte

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Kind identifies a faceted dimension.
type Kind string

// Registered dimensions.
const (
	KindMaker   Kind = "maker"
	KindModel   Kind = "model"
	KindPref    Kind = "pref"
	KindCity    Kind = "city"
	KindFeature Kind = "feature"
)

// Kinds lists every dimension in registry order.
var Kinds = []Kind{KindMaker, KindModel, KindPref, KindCity, KindFeature}

// Entity is one registry row.
type Entity struct {
	Kind    Kind     `yaml:"-"`
	Slug    string   `yaml:"slug"`
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
	// Parent is the maker slug for models and the pref slug for cities.
	Parent string `yaml:"parent"`
}

// Set is a partial combination of slugs, one per dimension.
type Set struct {
	Maker   string `yaml:"maker" json:"maker,omitempty"`
	Model   string `yaml:"model" json:"model,omitempty"`
	Pref    string `yaml:"pref" json:"pref,omitempty"`
	City    string `yaml:"city" json:"city,omitempty"`
	Feature string `yaml:"feature" json:"feature,omitempty"`
}

// IsZero reports whether no dimension is set.
func (s Set) IsZero() bool {
	return s == Set{}
}

// Get returns the value for a dimension.
func (s Set) Get(kind Kind) string {
	switch kind {
	case KindMaker:
		return s.Maker
	case KindModel:
		return s.Model
	case KindPref:
		return s.Pref
	case KindCity:
		return s.City
	case KindFeature:
		return s.Feature
	default:
		return ""
	}
}

// With returns a copy of s with one dimension replaced.
func (s Set) With(kind Kind, slug string) Set {
	switch kind {
	case KindMaker:
		s.Maker = slug
	case KindModel:
		s.Model = slug
	case KindPref:
		s.Pref = slug
	case KindCity:
		s.City = slug
	case KindFeature:
		s.Feature = slug
	}
	return s
}

type keyword struct {
	Term string `yaml:"term"`
	Set  `yaml:",inline"`
}

type document struct {
	Makers   []Entity  `yaml:"makers"`
	Models   []Entity  `yaml:"models"`
	Prefs    []Entity  `yaml:"prefs"`
	Cities   []Entity  `yaml:"cities"`
	Features []Entity  `yaml:"features"`
	Keywords []keyword `yaml:"keywords"`
}

// Registry is an immutable bidirectional name/slug table. It is safe for
// concurrent use.
type Registry struct {
	entities map[Kind][]Entity
	bySlug   map[Kind]map[string]Entity
	// terms maps folded names, aliases, slugs, and curated keywords to every
	// slug combination they may denote.
	terms map[string][]Set
}

// Valid reports whether s is a syntactically valid slug.
func Valid(s string) bool {
	return slugPattern.MatchString(s)
}

// Default returns the registry compiled into the binary.
func Default() (*Registry, error) {
	return Load(bytes.NewReader(defaultRegistry))
}

// LoadFile reads a registry from a YAML file. An empty path loads the default.
func LoadFile(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path) //nolint:gosec // operator-supplied config path
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only
	return Load(f)
}

// Load parses and validates a registry document.
func Load(r io.Reader) (*Registry, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	reg := &Registry{
		entities: make(map[Kind][]Entity, len(Kinds)),
		bySlug:   make(map[Kind]map[string]Entity, len(Kinds)),
		terms:    make(map[string][]Set),
	}
	rows := map[Kind][]Entity{
		KindMaker:   doc.Makers,
		KindModel:   doc.Models,
		KindPref:    doc.Prefs,
		KindCity:    doc.Cities,
		KindFeature: doc.Features,
	}
	for _, kind := range Kinds {
		if err := reg.addKind(kind, rows[kind]); err != nil {
			return nil, err
		}
	}
	if err := reg.checkParents(); err != nil {
		return nil, err
	}
	for _, kind := range Kinds {
		for _, e := range reg.entities[kind] {
			set := reg.setFor(e)
			reg.addTerm(e.Slug, set)
			reg.addTerm(e.Name, set)
			for _, alias := range e.Aliases {
				reg.addTerm(alias, set)
			}
		}
	}
	for _, kw := range doc.Keywords {
		if kw.Set.IsZero() {
			return nil, fmt.Errorf("keyword %q maps to nothing", kw.Term)
		}
		if err := reg.checkSet(kw.Set); err != nil {
			return nil, fmt.Errorf("keyword %q: %w", kw.Term, err)
		}
		reg.addTerm(kw.Term, kw.Set)
	}
	return reg, nil
}

func (r *Registry) addKind(kind Kind, rows []Entity) error {
	index := make(map[string]Entity, len(rows))
	out := make([]Entity, 0, len(rows))
	for _, e := range rows {
		e.Kind = kind
		if !Valid(e.Slug) {
			return fmt.Errorf("%s slug %q is not a valid slug", kind, e.Slug)
		}
		if e.Name == "" {
			return fmt.Errorf("%s %q has no display name", kind, e.Slug)
		}
		if _, dup := index[e.Slug]; dup {
			return fmt.Errorf("duplicate %s slug %q", kind, e.Slug)
		}
		index[e.Slug] = e
		out = append(out, e)
	}
	r.entities[kind] = out
	r.bySlug[kind] = index
	return nil
}

func (r *Registry) checkParents() error {
	for _, e := range r.entities[KindModel] {
		if !r.Has(KindMaker, e.Parent) {
			return fmt.Errorf("model %q references unknown maker %q", e.Slug, e.Parent)
		}
	}
	for _, e := range r.entities[KindCity] {
		if !r.Has(KindPref, e.Parent) {
			return fmt.Errorf("city %q references unknown pref %q", e.Slug, e.Parent)
		}
	}
	return nil
}

func (r *Registry) checkSet(s Set) error {
	for _, kind := range Kinds {
		if v := s.Get(kind); v != "" && !r.Has(kind, v) {
			return fmt.Errorf("unknown %s %q", kind, v)
		}
	}
	if s.Model != "" && s.Maker != "" && r.Parent(KindModel, s.Model) != s.Maker {
		return errors.New("model does not belong to maker")
	}
	if s.City != "" && s.Pref != "" && r.Parent(KindCity, s.City) != s.Pref {
		return errors.New("city does not belong to pref")
	}
	return nil
}

// setFor expands an entity into the slug set it implies, pulling in parents.
func (r *Registry) setFor(e Entity) Set {
	set := Set{}.With(e.Kind, e.Slug)
	switch e.Kind {
	case KindModel:
		set.Maker = e.Parent
	case KindCity:
		set.Pref = e.Parent
	}
	return set
}

func (r *Registry) addTerm(term string, set Set) {
	key := textfold.Fold(term)
	if key == "" {
		return
	}
	for _, existing := range r.terms[key] {
		if existing == set {
			return
		}
	}
	r.terms[key] = append(r.terms[key], set)
}

// Has reports whether slug is registered for kind.
func (r *Registry) Has(kind Kind, slug string) bool {
	_, ok := r.bySlug[kind][slug]
	return ok
}

// Entity returns the registry row for kind and slug.
func (r *Registry) Entity(kind Kind, slug string) (Entity, bool) {
	e, ok := r.bySlug[kind][slug]
	return e, ok
}

// Name returns the display name for a slug, or the slug itself when unknown.
func (r *Registry) Name(kind Kind, slug string) string {
	if e, ok := r.bySlug[kind][slug]; ok {
		return e.Name
	}
	return slug
}

// Parent returns the parent slug of a model or city, or "" when none.
func (r *Registry) Parent(kind Kind, slug string) string {
	return r.bySlug[kind][slug].Parent
}

// Entities returns every registered entity of kind in file order.
func (r *Registry) Entities(kind Kind) []Entity {
	out := make([]Entity, len(r.entities[kind]))
	copy(out, r.entities[kind])
	return out
}

// Lookup returns every slug combination the term may denote. More than one
// result means the term is ambiguous.
func (r *Registry) Lookup(term string) []Set {
	sets := r.terms[textfold.Fold(term)]
	out := make([]Set, len(sets))
	copy(out, sets)
	return out
}

// Resolve maps a slug or a display name/alias to the slug of kind. It fails
// when the value names nothing of that kind or names more than one.
func (r *Registry) Resolve(kind Kind, value string) (string, bool) {
	folded := textfold.Fold(value)
	if folded == "" {
		return "", false
	}
	if r.Has(kind, folded) {
		return folded, true
	}
	var found []string
	for _, set := range r.terms[folded] {
		v := set.Get(kind)
		if v == "" || (kind != KindModel && kind != KindCity && !onlyDimension(set, kind)) {
			continue
		}
		if !contains(found, v) {
			found = append(found, v)
		}
	}
	if len(found) != 1 {
		return "", false
	}
	return found[0], true
}

// Slugs returns the sorted slugs of kind.
func (r *Registry) Slugs(kind Kind) []string {
	out := make([]string, 0, len(r.bySlug[kind]))
	for slug := range r.bySlug[kind] {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}

// onlyDimension reports whether set names kind and nothing else, so that a
// city term such as "渋谷" (which also implies its pref) is not taken as a pref.
func onlyDimension(set Set, kind Kind) bool {
	return set == Set{}.With(kind, set.Get(kind))
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
