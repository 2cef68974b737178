// Package dataset holds the passes that look at a dataset as a whole rather
// than one feature at a time.
package dataset

import (
	"reflect"

	"github.com/rotisserie/eris"

	"github.com/sells-group/atp-clean/internal/model"
)

const keyState = "addr:state"

// RepeatedTags returns the candidate keys whose value is identical on every
// feature. A key missing from some feature counts as a differing value, and
// a key must carry a non-empty value somewhere. Datasets with fewer than two
// features never have repeated tags.
func RepeatedTags(features []*model.Feature, candidates []string) []string {
	if len(features) < 2 {
		return nil
	}

	var repeated []string
	for _, key := range candidates {
		first, ok := features[0].Raw(key)
		if !ok {
			continue
		}
		same := true
		nonEmpty := !isEmpty(first)
		for _, f := range features[1:] {
			v, ok := f.Raw(key)
			if !ok || !reflect.DeepEqual(v, first) {
				same = false
				break
			}
			nonEmpty = nonEmpty || !isEmpty(v)
		}
		if same && nonEmpty {
			repeated = append(repeated, key)
		}
	}
	return repeated
}

// StripTags removes keys from every feature.
func StripTags(features []*model.Feature, keys ...[]string) {
	for _, f := range features {
		for _, list := range keys {
			for _, key := range list {
				f.DeleteTag(key)
			}
		}
	}
}

// FilterStates keeps the features whose addr:state is accepted by valid.
// Features with a missing or unrecognized state are dropped.
func FilterStates(features []*model.Feature, valid func(string) bool) []*model.Feature {
	kept := make([]*model.Feature, 0, len(features))
	for _, f := range features {
		state, ok := f.Tag(keyState)
		if !ok || !valid(state) {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

// CheckNecessary returns a schema violation naming the first feature that
// carries none of the necessary keys.
func CheckNecessary(features []*model.Feature, necessary []string) error {
	for i, f := range features {
		if hasAny(f, necessary) {
			continue
		}
		id := f.ID()
		if id == "" {
			return eris.Wrapf(model.ErrSchemaViolation, "dataset: feature at index %d has no top-level tag", i)
		}
		return eris.Wrapf(model.ErrSchemaViolation, "dataset: feature %s has no top-level tag", id)
	}
	return nil
}

// StateCounts tallies features by addr:state. Features without a state are
// counted under the empty key.
func StateCounts(features []*model.Feature) map[string]int {
	counts := make(map[string]int)
	for _, f := range features {
		state, _ := f.Tag(keyState)
		counts[state]++
	}
	return counts
}

func hasAny(f *model.Feature, keys []string) bool {
	for _, k := range keys {
		if f.HasTag(k) {
			return true
		}
	}
	return false
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	}
	return false
}
