package pipeline

import (
	"errors"

	"go.uber.org/zap"

	"github.com/sells-group/atp-clean/internal/model"
	"github.com/sells-group/atp-clean/pkg/nsi"
)

// BrandIndex resolves canonical brand tags. *nsi.Index implements it.
type BrandIndex interface {
	Lookup(key, value, qid, name string) (map[string]string, error)
}

// checkBrands compares features carrying brand:wikidata with their
// canonical tags and logs one line per wrong or missing tag. It never
// modifies features and returns the number of mismatched tags.
func (p *Pipeline) checkBrands(features []*model.Feature) int {
	if p.brands == nil {
		return 0
	}
	log := zap.L()
	total := 0
	for _, f := range features {
		qid, ok := f.Tag(nsi.WikidataKey)
		if !ok || qid == "" {
			continue
		}
		key, value, ok := p.category(f)
		if !ok {
			continue
		}
		name, _ := f.Tag("name")

		canon, err := p.brands.Lookup(key, value, qid, name)
		switch {
		case errors.Is(err, model.ErrAmbiguousReference):
			log.Warn("pipeline: ambiguous brand, skipping check",
				zap.String("feature", f.ID()), zap.Error(err))
			continue
		case errors.Is(err, model.ErrNotFound):
			log.Debug("pipeline: brand not in index",
				zap.String("feature", f.ID()), zap.String("wikidata", qid))
			continue
		case err != nil:
			log.Warn("pipeline: brand lookup failed",
				zap.String("feature", f.ID()), zap.Error(err))
			continue
		}

		for _, m := range nsi.Compare(canon, tagMap(f)) {
			log.Warn("pipeline: brand tag mismatch",
				zap.String("feature", f.ID()),
				zap.String("wikidata", qid),
				zap.String("mismatch", m.String()),
			)
			total++
		}
	}
	return total
}

// category returns the first necessary tag present on f, which names the
// brands/<key>/<value> category to search.
func (p *Pipeline) category(f *model.Feature) (string, string, bool) {
	for _, key := range p.tables.NecessaryTags() {
		if v, ok := f.Tag(key); ok && v != "" {
			return key, v, true
		}
	}
	return "", "", false
}

func tagMap(f *model.Feature) map[string]string {
	out := make(map[string]string)
	for _, k := range f.Keys() {
		if v, ok := f.Tag(k); ok {
			out[k] = v
		}
	}
	return out
}
