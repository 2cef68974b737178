// Package rules holds the lexical tables that drive tag cleaning: street
// type, directional and generic word abbreviations, saint names, tag key
// lists and US state codes.
package rules

import (
	_ "embed"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

type file struct {
	Street        map[string]string `yaml:"street"`
	Directional   map[string]string `yaml:"directional"`
	Words         map[string]string `yaml:"words"`
	Saints        []string          `yaml:"saints"`
	UselessTags   []string          `yaml:"useless_tags"`
	RepeatTags    []string          `yaml:"repeat_tags"`
	NecessaryTags []string          `yaml:"necessary_tags"`
	States        map[string]string `yaml:"states"`
}

// Tables is an immutable set of rule tables. A single value is shared by
// every goroutine cleaning datasets.
type Tables struct {
	expansion     map[string]string
	directional   map[string]string
	abbreviations []string
	saints        []string
	uselessTags   []string
	repeatTags    []string
	necessaryTags []string
	states        map[string]string
}

var (
	defaultOnce   sync.Once
	defaultTables *Tables
	defaultErr    error
)

// Default returns the embedded tables, parsed once.
func Default() (*Tables, error) {
	defaultOnce.Do(func() {
		defaultTables, defaultErr = Parse(defaultRules)
	})
	return defaultTables, defaultErr
}

// Load reads tables from path. An empty path returns the embedded tables.
func Load(path string) (*Tables, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "rules: read %s", path)
	}
	return Parse(data)
}

// Parse builds tables from a YAML document.
func Parse(data []byte) (*Tables, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "rules: parse")
	}
	if len(f.Street) == 0 {
		return nil, eris.New("rules: street table is empty")
	}
	if len(f.Directional) == 0 {
		return nil, eris.New("rules: directional table is empty")
	}

	// Street types win over generic words when both define a key.
	expansion := make(map[string]string, len(f.Street)+len(f.Words))
	for k, v := range f.Words {
		expansion[normalizeKey(k)] = v
	}
	for k, v := range f.Street {
		expansion[normalizeKey(k)] = v
	}

	directional := make(map[string]string, len(f.Directional))
	for k, v := range f.Directional {
		directional[normalizeKey(k)] = v
	}

	states := make(map[string]string, len(f.States))
	for k, v := range f.States {
		states[strings.ToUpper(strings.TrimSpace(k))] = v
	}

	t := &Tables{
		expansion:     expansion,
		directional:   directional,
		abbreviations: sortedKeys(expansion),
		saints:        append([]string(nil), f.Saints...),
		uselessTags:   append([]string(nil), f.UselessTags...),
		repeatTags:    append([]string(nil), f.RepeatTags...),
		necessaryTags: append([]string(nil), f.NecessaryTags...),
		states:        states,
	}
	return t, nil
}

// WithNecessaryTags returns a copy of t using tags as the necessary set.
// An empty list keeps the current set.
func (t *Tables) WithNecessaryTags(tags []string) *Tables {
	if len(tags) == 0 {
		return t
	}
	c := *t
	c.necessaryTags = append([]string(nil), tags...)
	return &c
}

// Expansion returns the expansion of an abbreviation from the merged street
// type and word tables. Case and a trailing period are ignored.
func (t *Tables) Expansion(abbr string) (string, bool) {
	v, ok := t.expansion[normalizeKey(abbr)]
	return v, ok
}

// Directional returns the expansion of a directional token such as "N.E.".
func (t *Tables) Directional(token string) (string, bool) {
	v, ok := t.directional[normalizeKey(strings.ReplaceAll(token, ".", ""))]
	return v, ok
}

// Abbreviations returns every expandable key, longest first.
func (t *Tables) Abbreviations() []string {
	return append([]string(nil), t.abbreviations...)
}

// DirectionalKeys returns the directional tokens, longest first.
func (t *Tables) DirectionalKeys() []string {
	return sortedKeys(t.directional)
}

// Saints returns the known saint names.
func (t *Tables) Saints() []string { return append([]string(nil), t.saints...) }

// UselessTags returns the crawler bookkeeping keys stripped from features.
func (t *Tables) UselessTags() []string { return append([]string(nil), t.uselessTags...) }

// RepeatTags returns the keys eligible for repeated-value removal.
func (t *Tables) RepeatTags() []string { return append([]string(nil), t.repeatTags...) }

// NecessaryTags returns the keys of which a feature must carry at least one.
func (t *Tables) NecessaryTags() []string { return append([]string(nil), t.necessaryTags...) }

// IsStateCode reports whether code is a recognized US state or territory.
func (t *Tables) IsStateCode(code string) bool {
	_, ok := t.states[code]
	return ok
}

// StateName returns the full name for a state code.
func (t *Tables) StateName(code string) (string, bool) {
	v, ok := t.states[strings.ToUpper(code)]
	return v, ok
}

func normalizeKey(k string) string {
	return strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(k)), ".")
}

// sortedKeys orders keys longest first so alternations prefer the longest
// token, then alphabetically for a stable pattern.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}
