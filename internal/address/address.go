// Package address splits combined street address values into house number,
// unit and street tags.
package address

import (
	"regexp"
	"strings"

	"github.com/sells-group/atp-clean/internal/model"
	"github.com/sells-group/atp-clean/internal/rewrite"
)

// Tag keys read and written by the decomposer.
const (
	KeyStreetAddress = "addr:street_address"
	KeyFull          = "addr:full"
	KeyStreet        = "addr:street"
	KeyHouseNumber   = "addr:housenumber"
	KeyUnit          = "addr:unit"
)

// SourceKeys are the combined address keys, in the order they are tried.
var SourceKeys = []string{KeyStreetAddress, KeyFull}

var (
	leadingRe = regexp.MustCompile(`^(?:([0-9]+(?:-[0-9]+)*)(?:-?([A-Za-z]{1,3}))?|((?i:one|two)))\s+(.+)$`)
	unitRe    = regexp.MustCompile(`(?i)[,\s]+(?:(?:suite|ste|unit|room|rm|apt|dept|trailer|hangar)\b\.?\s*|#\s*)([^\s,].*)$`)
	houseRe   = regexp.MustCompile(`^([0-9]+(?:-[0-9]+)*)[ /-]?([A-Za-z]+)$`)
)

var spelledNumbers = map[string]string{"one": "1", "two": "2"}

// Parts is the result of decomposing a street address.
type Parts struct {
	HouseNumber string
	Unit        string
	Street      string
}

// Decomposer splits street addresses and rewrites the street part.
type Decomposer struct {
	rw *rewrite.Rewriter
}

// New returns a Decomposer using rw for street names.
func New(rw *rewrite.Rewriter) *Decomposer {
	return &Decomposer{rw: rw}
}

// Decompose splits value into its parts. ok is false when value does not
// start with a house number, in which case it should be left alone.
func (d *Decomposer) Decompose(value string) (Parts, bool) {
	m := leadingRe.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return Parts{}, false
	}

	var p Parts
	switch {
	case m[1] != "":
		if isOrdinalSuffix(m[2]) {
			return Parts{}, false
		}
		p.HouseNumber = m[1]
		p.Unit = strings.ToUpper(m[2])
	default:
		p.HouseNumber = spelledNumbers[strings.ToLower(m[3])]
	}

	street := m[4]
	if um := unitRe.FindStringSubmatchIndex(street); um != nil {
		p.Unit = strings.ToUpper(strings.TrimSpace(street[um[2]:um[3]]))
		street = street[:um[0]]
	}

	p.Street = d.rw.Rewrite(street)
	if p.Street == "" {
		return Parts{}, false
	}
	return p, true
}

// Apply decomposes the first combined address key found on f. Existing
// street and house number tags are never overwritten, and nothing happens
// when both are already present. It reports whether f changed.
func (d *Decomposer) Apply(f *model.Feature) bool {
	for _, key := range SourceKeys {
		if f.HasTag(KeyStreet) && f.HasTag(KeyHouseNumber) {
			return false
		}
		value, ok := f.Tag(key)
		if !ok {
			continue
		}

		line, rest := streetLine(value, key == KeyFull)
		p, ok := d.Decompose(line)
		if !ok {
			continue
		}

		setIfMissing(f, KeyHouseNumber, p.HouseNumber)
		setIfMissing(f, KeyStreet, p.Street)
		setIfMissing(f, KeyUnit, p.Unit)
		if !rest {
			f.DeleteTag(key)
		}
		return true
	}
	return false
}

// streetLine returns the street part of a full address: the first comma
// separated segment plus any unit segments right after it. rest reports
// whether city or other trailing segments were left over.
func streetLine(value string, full bool) (string, bool) {
	if !full || !strings.Contains(value, ",") {
		return value, false
	}
	segments := strings.Split(value, ",")
	line := segments[0]
	i := 1
	for ; i < len(segments); i++ {
		if !unitRe.MatchString("," + segments[i]) {
			break
		}
		line += "," + segments[i]
	}
	return line, i < len(segments)
}

// SplitHouseNumber splits a house number with a trailing letter unit, such
// as "123A" or "12-14 B". Ordinal suffixes are not units.
func SplitHouseNumber(h string) (number, unit string, ok bool) {
	m := houseRe.FindStringSubmatch(strings.TrimSpace(h))
	if m == nil || isOrdinalSuffix(m[2]) {
		return "", "", false
	}
	return m[1], strings.ToUpper(m[2]), true
}

// ApplyHouseNumber splits a unit out of addr:housenumber. An existing
// addr:unit is kept.
func ApplyHouseNumber(f *model.Feature) bool {
	h, ok := f.Tag(KeyHouseNumber)
	if !ok {
		return false
	}
	number, unit, ok := SplitHouseNumber(h)
	if !ok {
		return false
	}
	f.SetTag(KeyHouseNumber, number)
	setIfMissing(f, KeyUnit, unit)
	return true
}

// DropDuplicateUnit removes addr:unit when it repeats addr:housenumber.
func DropDuplicateUnit(f *model.Feature) bool {
	unit, _ := f.Tag(KeyUnit)
	house, _ := f.Tag(KeyHouseNumber)
	if unit == "" || house == "" || unit != house {
		return false
	}
	f.DeleteTag(KeyUnit)
	return true
}

func isOrdinalSuffix(letters string) bool {
	if len(letters) < 2 {
		return false
	}
	switch strings.ToLower(letters[:2]) {
	case "st", "nd", "rd", "th":
		return true
	}
	return false
}

func setIfMissing(f *model.Feature, key, value string) {
	if value == "" || f.HasTag(key) {
		return
	}
	f.SetTag(key, value)
}
