package nsi

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/rotisserie/eris"

	"github.com/sells-group/atp-clean/internal/model"
)

// WikidataKey is the tag used to match features to index items.
const WikidataKey = "brand:wikidata"

// AmbiguousError is returned when several index items share a Wikidata id
// and the feature name does not pick one.
type AmbiguousError struct {
	Key        string
	Value      string
	QID        string
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("nsi: %d entries in brands/%s/%s match %s: %s",
		len(e.Candidates), e.Key, e.Value, e.QID, strings.Join(e.Candidates, ", "))
}

// Unwrap makes errors.Is(err, model.ErrAmbiguousReference) hold.
func (e *AmbiguousError) Unwrap() error { return model.ErrAmbiguousReference }

// Lookup returns a copy of the canonical tags for the brand with Wikidata
// id qid in the brands/<key>/<value> category. When several items match,
// one whose display name equals name wins, then the single closest name
// by edit distance when it is within maxNameDistance.
func (idx *Index) Lookup(key, value, qid, name string) (map[string]string, error) {
	path := brandsPrefix + key + "/" + value
	cat, ok := idx.NSI[path]
	if !ok || cat == nil {
		return nil, eris.Wrapf(model.ErrNotFound, "nsi: no category %s", path)
	}

	var candidates []Item
	for _, it := range cat.Items {
		if it.Tags[WikidataKey] == qid {
			candidates = append(candidates, it)
		}
	}

	switch len(candidates) {
	case 0:
		return nil, eris.Wrapf(model.ErrNotFound, "nsi: %s not in %s", qid, path)
	case 1:
		return copyTags(candidates[0].Tags), nil
	}

	if it, ok := pickByName(candidates, name); ok {
		return copyTags(it.Tags), nil
	}

	names := make([]string, len(candidates))
	for i, it := range candidates {
		names[i] = it.label()
	}
	return nil, &AmbiguousError{Key: key, Value: value, QID: qid, Candidates: names}
}

// maxNameDistance bounds the edit distance at which a candidate label still
// counts as the feature's name.
const maxNameDistance = 2

func pickByName(candidates []Item, name string) (Item, bool) {
	if name == "" {
		return Item{}, false
	}
	for _, it := range candidates {
		if strings.EqualFold(it.label(), name) {
			return it, true
		}
	}

	best, bestDist, tie := -1, 0, false
	for i, it := range candidates {
		d := levenshtein.ComputeDistance(strings.ToLower(it.label()), strings.ToLower(name))
		switch {
		case best < 0 || d < bestDist:
			best, bestDist, tie = i, d, false
		case d == bestDist:
			tie = true
		}
	}
	if tie || bestDist > maxNameDistance {
		return Item{}, false
	}
	return candidates[best], true
}

func (it Item) label() string {
	if it.DisplayName != "" {
		return it.DisplayName
	}
	return it.Tags["name"]
}

func copyTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}

// Mismatch is one canonical tag a feature gets wrong.
type Mismatch struct {
	Key     string
	Want    string
	Got     string
	Missing bool
}

func (m Mismatch) String() string {
	if m.Missing {
		return fmt.Sprintf("%s missing, want %q", m.Key, m.Want)
	}
	return fmt.Sprintf("%s is %q, want %q", m.Key, m.Got, m.Want)
}

// Compare lists the canonical tags that tags is missing or disagrees with,
// sorted by key. The name tag is ignored since stores are often named after
// their location.
func Compare(canon, tags map[string]string) []Mismatch {
	var out []Mismatch
	for k, want := range canon {
		if k == "name" {
			continue
		}
		got, ok := tags[k]
		switch {
		case !ok:
			out = append(out, Mismatch{Key: k, Want: want, Missing: true})
		case got != want:
			out = append(out, Mismatch{Key: k, Want: want, Got: got})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
