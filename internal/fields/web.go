package fields

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/atp-clean/internal/model"
)

// WebsiteKeys are the tags holding websites.
var WebsiteKeys = []string{"url", "website", "contact:website"}

var (
	trackingRe = regexp.MustCompile(`(https?://[^\s?#]+)(\?)[^#\s]*(utm|cid)[^#\s]*`)
	urlRe      = regexp.MustCompile(`^https?://(www\.)?[-a-zA-Z0-9@:%._+~#=]{1,256}\.[a-zA-Z0-9()]{1,6}\b[-a-zA-Z0-9()@:%_+.~#?&/=]*`)
)

// Website strips tracking query strings, lower-cases the URL and encodes
// spaces. Values not using https are a schema violation.
func Website(v string) (string, error) {
	if !strings.HasPrefix(v, "https:") {
		return v, eris.Wrapf(model.ErrSchemaViolation, "fields: website %q does not use https", v)
	}
	v = trackingRe.ReplaceAllString(v, "$1")
	return strings.ReplaceAll(strings.ToLower(v), " ", "%20"), nil
}

// IsURL reports whether v starts with a web address.
func IsURL(v string) bool {
	return urlRe.MatchString(v)
}

// DropURLRefs removes ref* tags whose value is a URL and returns the
// removed keys.
func DropURLRefs(f *model.Feature) []string {
	var dropped []string
	for _, key := range f.Keys() {
		if !strings.HasPrefix(key, "ref") {
			continue
		}
		v, ok := f.Tag(key)
		if !ok || !IsURL(v) {
			continue
		}
		f.DeleteTag(key)
		dropped = append(dropped, key)
	}
	return dropped
}

var postcodeRe = regexp.MustCompile(`^([0-9]{5})-?0000$`)

// Postcode trims a ZIP+4 code whose extension is all zeros.
func Postcode(v string) string {
	return postcodeRe.ReplaceAllString(v, "$1")
}
