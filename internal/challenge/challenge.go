// Package challenge summarizes the progress of a MapRoulette challenge built
// from cleaned datasets, per US state.
package challenge

import (
	"context"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/atp-clean/internal/model"
	"github.com/sells-group/atp-clean/internal/resilience"
)

// DefaultURL is the challenge view the stats command reads by default.
const DefaultURL = "https://maproulette.org/api/v2/challenge/view/43561"

const (
	keyTaskStatus = "mr_taskStatus"
	keyState      = "addr:state"
	statusCreated = "Created"
)

// StateStats counts the tasks of one state.
type StateStats struct {
	Code     string
	Name     string
	Unfixed  int
	Fixed    int
	PctFixed float64
}

// Summary is the per-state progress of a challenge.
type Summary struct {
	States  []StateStats
	Fixed   int
	Unfixed int
}

// PctFixed returns the share of fixed tasks over all counted tasks.
func (s Summary) PctFixed() float64 {
	if s.Fixed+s.Unfixed == 0 {
		return 0
	}
	return float64(s.Fixed) / float64(s.Fixed+s.Unfixed)
}

// Summarize counts tasks per state. A task still in the Created status is
// unfixed; any other status counts as fixed. Only states with unfixed tasks
// are listed, least fixed first, ties broken by most unfixed.
func Summarize(ds *model.Dataset, stateName func(string) (string, bool)) Summary {
	unfixed := map[string]int{}
	fixed := map[string]int{}
	for _, f := range ds.Features {
		state, _ := f.Tag(keyState)
		status, _ := f.Tag(keyTaskStatus)
		if status == statusCreated {
			unfixed[state]++
		} else {
			fixed[state]++
		}
	}

	var sum Summary
	for code, n := range unfixed {
		if code == "" {
			continue
		}
		name, _ := stateName(code)
		st := StateStats{Code: code, Name: name, Unfixed: n, Fixed: fixed[code]}
		st.PctFixed = float64(st.Fixed) / float64(st.Fixed+st.Unfixed)
		sum.States = append(sum.States, st)
		sum.Fixed += st.Fixed
		sum.Unfixed += st.Unfixed
	}
	sort.Slice(sum.States, func(i, j int) bool {
		a, b := sum.States[i], sum.States[j]
		if a.PctFixed != b.PctFixed {
			return a.PctFixed < b.PctFixed
		}
		if a.Unfixed != b.Unfixed {
			return a.Unfixed > b.Unfixed
		}
		return a.Code < b.Code
	})
	return sum
}

// Fetch downloads a challenge view and decodes it as a dataset.
func Fetch(ctx context.Context, hc *http.Client, url string, retry resilience.RetryConfig) (*model.Dataset, error) {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	retry.OnRetry = resilience.RetryLogger("maproulette", "challenge")
	return resilience.DoVal(ctx, retry, func(ctx context.Context) (*model.Dataset, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, eris.Wrap(err, "challenge: build request")
		}
		resp, err := hc.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "challenge: request")
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("challenge: unexpected status %d", resp.StatusCode)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "challenge: read body")
		}
		return model.DecodeDataset(data)
	})
}
