// Package fields normalizes individual tag families on a feature: names,
// phones, websites, postcodes, reference ids and opening hours.
package fields

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/atp-clean/internal/address"
	"github.com/sells-group/atp-clean/internal/model"
	"github.com/sells-group/atp-clean/internal/rewrite"
)

// NameKeys are the free-text name tags.
var NameKeys = []string{"name", "branch", "addr:city"}

const (
	keyCity     = "addr:city"
	keyPostcode = "addr:postcode"
)

// Severity controls how suspicious values are treated.
type Severity string

const (
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// ParseSeverity converts a configuration value. The empty string selects
// SeverityWarn.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case "", SeverityWarn:
		return SeverityWarn, nil
	case SeverityError:
		return SeverityError, nil
	default:
		return "", eris.Errorf("fields: unknown severity %q", s)
	}
}

// Options configures a Normalizer.
type Options struct {
	HoursSeverity Severity
}

// Normalizer applies every field family to a feature in a fixed order.
type Normalizer struct {
	rw   *rewrite.Rewriter
	addr *address.Decomposer
	opts Options
}

// NewNormalizer returns a Normalizer using rw for free-text values.
func NewNormalizer(rw *rewrite.Rewriter, opts Options) *Normalizer {
	if opts.HoursSeverity == "" {
		opts.HoursSeverity = SeverityWarn
	}
	return &Normalizer{rw: rw, addr: address.New(rw), opts: opts}
}

// Name repairs and expands a name-like value and keeps the first of several
// semicolon separated values.
func (n *Normalizer) Name(v string) string {
	v = n.rw.RewriteName(v, true)
	if strings.Contains(v, ";") {
		return rewrite.FixAllCaps(First(v), true)
	}
	return v
}

// City is Name plus title casing of single-word all-caps values.
func (n *Normalizer) City(v string) string {
	return rewrite.FixAllCaps(n.Name(v), false)
}

// Normalize cleans f in place. A website not using https aborts with a
// schema violation, as do suspicious opening hours when the hours severity
// is SeverityError. Other findings are returned as warnings.
func (n *Normalizer) Normalize(f *model.Feature) ([]Warning, error) {
	n.addr.Apply(f)

	for _, key := range NameKeys {
		if v, ok := f.Tag(key); ok {
			f.SetTag(key, n.Name(v))
		}
	}
	if v, ok := f.Tag(keyCity); ok {
		f.SetTag(keyCity, rewrite.FixAllCaps(v, false))
	}

	for _, key := range PhoneKeys {
		if v, ok := f.Tag(key); ok {
			f.SetTag(key, Phone(v))
		}
	}

	for _, key := range WebsiteKeys {
		v, ok := f.Tag(key)
		if !ok {
			continue
		}
		clean, err := Website(v)
		if err != nil {
			return nil, eris.Wrapf(err, "fields: feature %s", f.ID())
		}
		f.SetTag(key, clean)
	}

	address.ApplyHouseNumber(f)

	if v, ok := f.Tag(keyPostcode); ok {
		f.SetTag(keyPostcode, Postcode(v))
	}

	DropURLRefs(f)

	var warnings []Warning
	for _, key := range f.Keys() {
		if !strings.HasPrefix(key, HoursKeyPrefix) {
			continue
		}
		v, ok := f.Tag(key)
		if !ok {
			continue
		}
		clean, found := OpeningHours(v)
		for _, msg := range found {
			w := Warning{FeatureID: f.ID(), Key: key, Value: v, Message: msg}
			if n.opts.HoursSeverity == SeverityError {
				return nil, eris.Wrapf(model.ErrSchemaViolation, "fields: %s", w)
			}
			warnings = append(warnings, w)
		}
		f.SetTag(key, clean)
	}

	address.DropDuplicateUnit(f)
	return warnings, nil
}
