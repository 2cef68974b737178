// Package nsi reads the Name Suggestion Index and looks up canonical brand
// tags by category and Wikidata id.
package nsi

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// DefaultURL is the published index.
const DefaultURL = "https://raw.githubusercontent.com/osmlab/name-suggestion-index/main/dist/nsi.json"

const brandsPrefix = "brands/"

// Index is the decoded nsi.json document.
type Index struct {
	Meta json.RawMessage      `json:"_meta,omitempty"`
	NSI  map[string]*Category `json:"nsi"`
}

// Category holds the entries of one brands/<key>/<value> path.
type Category struct {
	Properties json.RawMessage `json:"properties,omitempty"`
	Items      []Item          `json:"items"`
}

// Item is one brand entry.
type Item struct {
	DisplayName  string            `json:"displayName,omitempty"`
	ID           string            `json:"id,omitempty"`
	LocationSet  *LocationSet      `json:"locationSet,omitempty"`
	FromTemplate *bool             `json:"fromTemplate,omitempty"`
	Tags         map[string]string `json:"tags"`
}

// LocationSet lists the regions an item applies to. Entries are usually
// region codes but may be coordinates or feature references.
type LocationSet struct {
	Include []any `json:"include,omitempty"`
	Exclude []any `json:"exclude,omitempty"`
}

func (ls *LocationSet) includes(code string) bool { return ls != nil && containsCode(ls.Include, code) }
func (ls *LocationSet) excludes(code string) bool { return ls != nil && containsCode(ls.Exclude, code) }

func containsCode(list []any, code string) bool {
	for _, v := range list {
		if s, ok := v.(string); ok && strings.EqualFold(s, code) {
			return true
		}
	}
	return false
}

// Decode reads an index document.
func Decode(r io.Reader) (*Index, error) {
	var idx Index
	if err := json.NewDecoder(r).Decode(&idx); err != nil {
		return nil, eris.Wrap(err, "nsi: decode index")
	}
	if idx.NSI == nil {
		return nil, eris.New("nsi: index has no nsi member")
	}
	return &idx, nil
}

// Load reads an index file.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "nsi: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return Decode(f)
}

// Save writes the index as indented JSON, creating parent directories.
func (idx *Index) Save(path string) error {
	data, err := json.Marshal(idx)
	if err != nil {
		return eris.Wrap(err, "nsi: encode index")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return eris.Wrap(err, "nsi: indent index")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "nsi: create %s", dir)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return eris.Wrapf(err, "nsi: write %s", path)
	}
	return nil
}

// Filter drops everything the cleaner does not need: non-brand categories
// and items that do not apply to the United States. Kept items lose their
// id, location set and template marker.
func (idx *Index) Filter() {
	for path, cat := range idx.NSI {
		if !strings.HasPrefix(path, brandsPrefix) || cat == nil {
			delete(idx.NSI, path)
			continue
		}
		kept := cat.Items[:0]
		for _, it := range cat.Items {
			ls := it.LocationSet
			if !ls.includes("us") && !(ls.includes("001") && !ls.excludes("us")) {
				continue
			}
			it.ID = ""
			it.LocationSet = nil
			it.FromTemplate = nil
			kept = append(kept, it)
		}
		cat.Items = kept
	}
}

// Size returns the number of brand items in the index.
func (idx *Index) Size() int {
	n := 0
	for _, cat := range idx.NSI {
		if cat != nil {
			n += len(cat.Items)
		}
	}
	return n
}
