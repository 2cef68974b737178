// Package rewrite repairs casing and expands abbreviations in free-text tag
// values such as street names, POI names and cities.
//
// Rules run in a fixed order. All-caps repair comes first so the casing
// fixes that follow (Mc, ordinals) see title-cased text, and the saint rule
// runs before abbreviation expansion because "St" is also the abbreviation
// for Street.
package rewrite

import (
	"regexp"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/atp-clean/internal/rules"
)

// SaintMode selects how aggressively "St" is read as "Saint".
type SaintMode string

const (
	// SaintLenient expands a leading "St" followed by any word, and any
	// "St" followed by a known saint name.
	SaintLenient SaintMode = "lenient"
	// SaintStrict only expands "St" followed by a known saint name.
	SaintStrict SaintMode = "strict"
)

// ParseSaintMode converts a configuration value to a SaintMode. The empty
// string selects SaintLenient.
func ParseSaintMode(s string) (SaintMode, error) {
	switch SaintMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SaintLenient:
		return SaintLenient, nil
	case SaintStrict:
		return SaintStrict, nil
	default:
		return "", eris.Errorf("rewrite: unknown saint mode %q", s)
	}
}

// Options configures a Rewriter.
type Options struct {
	SaintMode    SaintMode
	MatchTimeout time.Duration
}

const defaultMatchTimeout = time.Second

var (
	mcRe       = regexp.MustCompile(`\bMc([a-z])`)
	usRe       = regexp.MustCompile(`\b[Uu]\.[Ss]\.`)
	elisionRe  = regexp.MustCompile(`\b[A-Za-z]'[a-z]`)
	ordinalRe  = regexp.MustCompile(`\b[0-9]+[SNRT][tTdDhH]\b`)
	doubleSpRe = regexp.MustCompile(` {2,}`)
)

// Rewriter applies the rewrite rules. It is immutable after New and safe for
// concurrent use.
type Rewriter struct {
	tables    *rules.Tables
	mode      SaintMode
	saint     *regexp2.Regexp
	abbr      *regexp2.Regexp
	direction *regexp2.Regexp
	stateRt   *regexp2.Regexp
}

// New compiles the rewrite patterns for tables.
func New(tables *rules.Tables, opts Options) (*Rewriter, error) {
	if tables == nil {
		return nil, eris.New("rewrite: nil rule tables")
	}
	mode := opts.SaintMode
	if mode == "" {
		mode = SaintLenient
	}
	timeout := opts.MatchTimeout
	if timeout <= 0 {
		timeout = defaultMatchTimeout
	}

	saints := quoteAll(tables.Saints())
	var saintPattern string
	switch mode {
	case SaintLenient:
		saintPattern = `^(St\.?)(?= )`
		if len(saints) > 0 {
			saintPattern += `|(\bSt\.?)(?= (?:` + strings.Join(saints, "|") + `))`
		}
	case SaintStrict:
		saintPattern = `(\bSt\.?)(?= (?:` + strings.Join(saints, "|") + `))`
		if len(saints) == 0 {
			saintPattern = `(?!)`
		}
	default:
		return nil, eris.Errorf("rewrite: unknown saint mode %q", mode)
	}

	dirs := make([]string, 0, 8)
	for _, k := range tables.DirectionalKeys() {
		parts := make([]string, 0, len(k))
		for _, r := range k {
			parts = append(parts, regexp.QuoteMeta(string(r)))
		}
		dirs = append(dirs, strings.Join(parts, `\.?`))
	}

	compile := func(expr string) (*regexp2.Regexp, error) {
		re, err := regexp2.Compile(expr, regexp2.IgnoreCase)
		if err != nil {
			return nil, eris.Wrapf(err, "rewrite: compile %q", expr)
		}
		re.MatchTimeout = timeout
		return re, nil
	}

	rw := &Rewriter{tables: tables, mode: mode}
	var err error
	if rw.saint, err = compile(saintPattern); err != nil {
		return nil, err
	}
	abbrs := strings.Join(quoteAll(tables.Abbreviations()), "|")
	if rw.abbr, err = compile(`(\b(?:` + abbrs + `)\b\.?)(?!')`); err != nil {
		return nil, err
	}
	dirPattern := `(?<!(?:^(?:Avenue) |[\.']))(\b(?:` + strings.Join(dirs, "|") + `)\b\.?)(?!(?:\.?[a-zA-Z]| (?:Street|Avenue)))`
	if rw.direction, err = compile(dirPattern); err != nil {
		return nil, err
	}
	if rw.stateRt, err = compile(`(\bS\.?R\b\.?)(?= [0-9]+)`); err != nil {
		return nil, err
	}
	return rw, nil
}

// Mode returns the configured saint mode.
func (rw *Rewriter) Mode() SaintMode { return rw.mode }

// Title converts s to title case. A letter following a single-letter
// elision such as "O'" is upper-cased too.
func Title(s string) string {
	return elisionRe.ReplaceAllStringFunc(cases.Title(language.English).String(s), func(m string) string {
		return m[:2] + strings.ToUpper(m[2:])
	})
}

// IsAllCaps reports whether s has cased letters and all of them are upper case.
func IsAllCaps(s string) bool {
	return strings.ToUpper(s) == s && strings.ToLower(s) != s
}

// FixAllCaps title-cases an all upper-case value. With requireSpace set the
// value must also contain a space, so single-word codes stay untouched.
func FixAllCaps(s string, requireSpace bool) string {
	if !IsAllCaps(s) {
		return s
	}
	if requireSpace && !strings.Contains(s, " ") {
		return s
	}
	return FixMc(Title(s))
}

// FixMc upper-cases the letter following an "Mc" prefix.
func FixMc(s string) string {
	return mcRe.ReplaceAllStringFunc(s, func(m string) string {
		return "Mc" + strings.ToUpper(m[2:])
	})
}

// FixUS rewrites "U.S." as "US". Case is ignored so values already title
// cased by all-caps repair ("U.s.") are caught too.
func FixUS(s string) string {
	return usRe.ReplaceAllString(s, "US")
}

// FixOrdinals lower-cases ordinal suffixes such as "1ST" or "2Nd".
func FixOrdinals(s string) string {
	return ordinalRe.ReplaceAllStringFunc(s, strings.ToLower)
}

// CollapseSpaces squeezes runs of spaces and trims the ends.
func CollapseSpaces(s string) string {
	return strings.TrimSpace(doubleSpRe.ReplaceAllString(s, " "))
}

// ExpandSaint rewrites "St" as "Saint" according to the saint mode.
func (rw *Rewriter) ExpandSaint(s string) string {
	return rw.replace(rw.saint, s, func(regexp2.Match) string { return "Saint" })
}

// ExpandAbbreviations replaces whole-word street type and generic word
// abbreviations with their title-cased expansion. A token followed by an
// apostrophe is left alone. A leading "St" is ambiguous and never becomes
// "Street".
func (rw *Rewriter) ExpandAbbreviations(s string) string {
	return rw.replace(rw.abbr, s, func(m regexp2.Match) string {
		token := m.String()
		key := strings.ToUpper(strings.TrimSuffix(token, "."))
		if key == "ST" && m.Index == 0 {
			return token
		}
		v, ok := rw.tables.Expansion(key)
		if !ok {
			return token
		}
		return Title(v)
	})
}

// ExpandDirectionals replaces directional tokens such as "N" or "S.W." with
// the full word.
func (rw *Rewriter) ExpandDirectionals(s string) string {
	return rw.replace(rw.direction, s, func(m regexp2.Match) string {
		v, ok := rw.tables.Directional(m.String())
		if !ok {
			return m.String()
		}
		return Title(v)
	})
}

// ExpandStateRoute rewrites "SR" followed by a route number as "State Route".
func (rw *Rewriter) ExpandStateRoute(s string) string {
	return rw.replace(rw.stateRt, s, func(regexp2.Match) string { return "State Route" })
}

// Expand runs every rule except all-caps repair.
func (rw *Rewriter) Expand(s string) string {
	s = FixMc(s)
	s = FixUS(s)
	s = FixOrdinals(s)
	s = doubleSpRe.ReplaceAllString(s, " ")
	s = rw.ExpandSaint(s)
	s = rw.ExpandAbbreviations(s)
	s = rw.ExpandDirectionals(s)
	s = rw.ExpandStateRoute(s)
	return CollapseSpaces(s)
}

// Rewrite repairs an all-caps value and expands it. Used for street names,
// where single-word values are repaired too.
func (rw *Rewriter) Rewrite(s string) string {
	return rw.Expand(FixAllCaps(s, false))
}

// RewriteName is Rewrite for name-like values. With requireSpace set a
// single all-caps word is kept as is, since it is often a brand acronym.
func (rw *Rewriter) RewriteName(s string, requireSpace bool) string {
	return rw.Expand(FixAllCaps(s, requireSpace))
}

func (rw *Rewriter) replace(re *regexp2.Regexp, s string, fn regexp2.MatchEvaluator) string {
	out, err := re.ReplaceFunc(s, fn, -1, -1)
	if err != nil {
		zap.L().Warn("rewrite: pattern failed, keeping value",
			zap.String("pattern", re.String()),
			zap.String("value", s),
			zap.Error(err),
		)
		return s
	}
	return out
}

func quoteAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = regexp.QuoteMeta(s)
	}
	return out
}
