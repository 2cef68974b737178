package fields

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/atp-clean/internal/model"
)

// HoursKeyPrefix marks opening hours tags, including variants such as
// opening_hours:pharmacy.
const HoursKeyPrefix = "opening_hours"

const (
	everyDay   = "Mo-Su "
	alwaysOpen = "24/7"
)

var alwaysOpenTokens = []string{"0:00-24:00", "00:00-24:00", "0-24"}

var (
	sameHourRe  = regexp2.MustCompile(`(\d{2}):\d{2}-\1:\d{2}`, regexp2.None)
	repeatDayRe = regexp2.MustCompile(`([MTWFS][ouehra]).*; ?\1`, regexp2.None)
)

// Warning is a non-fatal finding about a tag value.
type Warning struct {
	FeatureID string
	Key       string
	Value     string
	Message   string
}

// Err wraps the warning as ErrSuspiciousData.
func (w Warning) Err() error {
	return eris.Wrapf(model.ErrSuspiciousData, "%s=%q: %s", w.Key, w.Value, w.Message)
}

func (w Warning) String() string {
	if w.FeatureID == "" {
		return fmt.Sprintf("%s=%q: %s", w.Key, w.Value, w.Message)
	}
	return fmt.Sprintf("feature %s: %s=%q: %s", w.FeatureID, w.Key, w.Value, w.Message)
}

// OpeningHours simplifies an opening hours value. Round-the-clock values
// become "24/7", each semicolon separated rule keeps only its first comma
// separated group, and a redundant leading "Mo-Su " is dropped. Values that look
// self-contradictory are reported as warnings and otherwise kept.
func OpeningHours(v string) (string, []string) {
	if slices.Contains(alwaysOpenTokens, strings.TrimPrefix(v, everyDay)) {
		return alwaysOpen, nil
	}

	var warnings []string
	if matches(sameHourRe, v) {
		warnings = append(warnings, "opening and closing hour are the same")
	}
	if matches(repeatDayRe, v) {
		warnings = append(warnings, "weekday repeated across rules")
	}

	if strings.Contains(v, ",") {
		rules := strings.Split(v, ";")
		for i, rule := range rules {
			rules[i] = collapseGroups(rule)
		}
		v = strings.Join(rules, ";")
	}
	return strings.TrimPrefix(v, everyDay), warnings
}

// collapseGroups keeps the first comma separated group of a rule.
func collapseGroups(rule string) string {
	first, _, _ := strings.Cut(rule, ",")
	return first
}

func matches(re *regexp2.Regexp, v string) bool {
	ok, err := re.MatchString(v)
	return err == nil && ok
}
