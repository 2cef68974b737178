package fields

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/atp-clean/internal/model"
	"github.com/sells-group/atp-clean/internal/rewrite"
	"github.com/sells-group/atp-clean/internal/rules"
)

func newTestNormalizer(t *testing.T, severity Severity) *Normalizer {
	t.Helper()
	tables, err := rules.Default()
	require.NoError(t, err)
	rw, err := rewrite.New(tables, rewrite.Options{})
	require.NoError(t, err)
	return NewNormalizer(rw, Options{HoursSeverity: severity})
}

func TestPhone(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"dashes", "555-123-4567", "+1 555-123-4567"},
		{"already canonical", "+1 555-123-4567", "+1 555-123-4567"},
		{"first of several", "555.123.4567;555.987.6543", "+1 555-123-4567"},
		{"parentheses", "(212) 736-5000", "+1 212-736-5000"},
		{"country code", "+1 (212) 736 5000", "+1 212-736-5000"},
		{"bare digits", "2127365000", "+1 212-736-5000"},
		{"leading one", "1-212-736-5000", "+1 212-736-5000"},
		{"vanity number", "1-800-FLOWERS", "+1 800-356-9377"},
		{"international kept", "+44 20 7946 0958", "+44 20 7946 0958"},
		{"short kept", "736-5000", "736-5000"},
		{"garbage kept", "call us", "call us"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Phone(tt.in))
		})
	}
}

func TestWebsite(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain", "https://example.com/store/1", "https://example.com/store/1", false},
		{"utm query stripped", "https://example.com/s?utm_source=atp&x=1", "https://example.com/s", false},
		{"cid query stripped", "https://example.com/s?cid=9#top", "https://example.com/s#top", false},
		{"other query kept", "https://example.com/s?id=4", "https://example.com/s?id=4", false},
		{"lower cased", "https://Example.com/Store", "https://example.com/store", false},
		{"spaces encoded", "https://example.com/my store", "https://example.com/my%20store", false},
		{"http rejected", "http://example.com", "", true},
		{"bare domain rejected", "example.com", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Website(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, model.ErrSchemaViolation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPostcode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"123450000", "12345"},
		{"12345-0000", "12345"},
		{"12345-6789", "12345-6789"},
		{"12345", "12345"},
		{"K1A 0B1", "K1A 0B1"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Postcode(tt.in))
		})
	}
}

func TestDropURLRefs(t *testing.T) {
	f := model.NewFeature("1",
		"ref", "https://example.com/stores/12",
		"ref:store", "12",
		"ref:web", "http://www.example.org",
		"website", "https://example.com",
	)
	dropped := DropURLRefs(f)

	assert.Equal(t, []string{"ref", "ref:web"}, dropped)
	assert.Equal(t, []string{"ref:store", "website"}, f.Keys())
	assert.False(t, IsURL("12"))
}

func TestOpeningHours(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		want     string
		warnings int
	}{
		{"always open", "00:00-24:00", "24/7", 0},
		{"always open every day", "Mo-Su 0:00-24:00", "24/7", 0},
		{"short always open", "0-24", "24/7", 0},
		{"every day prefix stripped", "Mo-Su 09:00-17:00", "09:00-17:00", 0},
		{"identical groups collapsed", "Mo-Fr 09:00-17:00,Mo-Fr 09:00-17:00", "Mo-Fr 09:00-17:00", 0},
		{"split shift keeps first group", "Mo-Fr 08:00-12:00,13:00-17:00", "Mo-Fr 08:00-12:00", 0},
		{"per rule collapse", "Mo-Fr 09:00-17:00,Mo-Fr 09:00-17:00; Sa 10:00-14:00", "Mo-Fr 09:00-17:00; Sa 10:00-14:00", 0},
		{"same hour", "Mo-Fr 10:00-10:00", "Mo-Fr 10:00-10:00", 1},
		{"repeated weekday", "Mo-Fr 09:00-17:00; Mo 10:00-12:00", "Mo-Fr 09:00-17:00; Mo 10:00-12:00", 1},
		{"normal", "Mo-Fr 08:00-17:00; Sa 09:00-12:00", "Mo-Fr 08:00-17:00; Sa 09:00-12:00", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, warnings := OpeningHours(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Len(t, warnings, tt.warnings)
		})
	}
}

func TestName(t *testing.T) {
	n := newTestNormalizer(t, SeverityWarn)

	assert.Equal(t, "Home Depot", n.Name("HOME DEPOT"))
	assert.Equal(t, "CVS", n.Name("CVS"))
	assert.Equal(t, "Walgreens", n.Name("Walgreens;Duane Reade"))
	assert.Equal(t, "Saint Louis Bread Co", n.Name("ST LOUIS BREAD CO"))
	assert.Equal(t, "Boston", n.City("BOSTON"))
	assert.Equal(t, "Fort Worth", n.City("FT WORTH"))
}

func TestNormalize(t *testing.T) {
	n := newTestNormalizer(t, SeverityWarn)

	f := model.NewFeature("n1",
		"shop", "hardware",
		"name", "ACE HARDWARE",
		"addr:street_address", "123A MAIN ST N",
		"addr:city", "SPRINGFIELD",
		"addr:postcode", "627010000",
		"phone", "217.555.0123;217.555.0199",
		"website", "https://Example.com/ace?utm_campaign=x",
		"ref", "https://example.com/ace",
		"opening_hours", "Mo-Su 00:00-24:00",
		"opening_hours:pharmacy", "Mo-Fr 10:00-10:00",
	)

	warnings, err := n.Normalize(f)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, "opening_hours:pharmacy", warnings[0].Key)
	assert.Equal(t, "n1", warnings[0].FeatureID)
	assert.True(t, errors.Is(warnings[0].Err(), model.ErrSuspiciousData))

	want := map[string]string{
		"shop":                   "hardware",
		"name":                   "Ace Hardware",
		"addr:housenumber":       "123",
		"addr:unit":              "A",
		"addr:street":            "Main Street North",
		"addr:city":              "Springfield",
		"addr:postcode":          "62701",
		"phone":                  "+1 217-555-0123",
		"website":                "https://example.com/ace",
		"opening_hours":          "24/7",
		"opening_hours:pharmacy": "Mo-Fr 10:00-10:00",
	}
	assert.Len(t, f.Keys(), len(want))
	for k, v := range want {
		got, ok := f.Tag(k)
		assert.True(t, ok, k)
		assert.Equal(t, v, got, k)
	}
}

func TestNormalize_DuplicateUnit(t *testing.T) {
	n := newTestNormalizer(t, SeverityWarn)

	f := model.NewFeature("n1", "amenity", "bank", "addr:housenumber", "12", "addr:unit", "12")
	_, err := n.Normalize(f)
	require.NoError(t, err)
	assert.False(t, f.HasTag("addr:unit"))
}

func TestNormalize_Errors(t *testing.T) {
	t.Run("http website", func(t *testing.T) {
		n := newTestNormalizer(t, SeverityWarn)
		f := model.NewFeature("n2", "amenity", "cafe", "website", "http://example.com")
		_, err := n.Normalize(f)
		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrSchemaViolation))
		assert.Contains(t, err.Error(), "n2")
	})

	t.Run("suspicious hours as error", func(t *testing.T) {
		n := newTestNormalizer(t, SeverityError)
		f := model.NewFeature("n3", "amenity", "cafe", "opening_hours", "Mo-Fr 10:00-10:00")
		_, err := n.Normalize(f)
		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrSchemaViolation))
	})
}

func TestParseSeverity(t *testing.T) {
	s, err := ParseSeverity("")
	require.NoError(t, err)
	assert.Equal(t, SeverityWarn, s)

	s, err = ParseSeverity("ERROR")
	require.NoError(t, err)
	assert.Equal(t, SeverityError, s)

	_, err = ParseSeverity("fatal")
	assert.Error(t, err)
}
