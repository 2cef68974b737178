package fields

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// PhoneKeys are the tags holding phone numbers.
var PhoneKeys = []string{"phone", "contact:phone", "fax"}

var (
	nanpRe      = regexp.MustCompile(`^\(?(?:\+? ?1?[ -.]*)?(?:\(?([0-9]{3})\)?[ -.]*)([0-9]{3})[ -.]*([0-9]{4})$`)
	canonicalRe = regexp.MustCompile(`^\+1 [0-9]{3}-[0-9]{3}-[0-9]{4}$`)
)

// Phone canonicalizes a North American number as "+1 NNN-NNN-NNNN". Only
// the first of several semicolon separated numbers is kept. Values that are
// not recognizable NANP numbers are returned as given.
func Phone(v string) string {
	v = First(v)
	if canonicalRe.MatchString(v) {
		return v
	}
	if m := nanpRe.FindStringSubmatch(v); m != nil {
		return fmt.Sprintf("+1 %s-%s-%s", m[1], m[2], m[3])
	}
	if c, ok := parsePhone(v); ok {
		return c
	}
	return v
}

// parsePhone handles forms the pattern misses, such as vanity numbers.
func parsePhone(v string) (string, bool) {
	num, err := phonenumbers.Parse(v, "US")
	if err != nil {
		return "", false
	}
	if num.GetCountryCode() != 1 || num.GetExtension() != "" || !phonenumbers.IsValidNumber(num) {
		return "", false
	}
	nsn := phonenumbers.GetNationalSignificantNumber(num)
	if len(nsn) != 10 {
		return "", false
	}
	return fmt.Sprintf("+1 %s-%s-%s", nsn[:3], nsn[3:6], nsn[6:]), true
}

// First returns the first value of a semicolon separated list.
func First(v string) string {
	if i := strings.IndexByte(v, ';'); i >= 0 {
		return strings.TrimSpace(v[:i])
	}
	return v
}
