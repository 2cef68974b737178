package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/atp-clean/internal/challenge"
)

func TestFormatChallenge(t *testing.T) {
	s := challenge.Summary{
		States: []challenge.StateStats{
			{Code: "NY", Name: "New York", Unfixed: 3, Fixed: 1, PctFixed: 0.25},
			{Code: "PR", Unfixed: 1, Fixed: 1, PctFixed: 0.5},
		},
		Fixed:   2,
		Unfixed: 4,
	}

	var buf bytes.Buffer
	formatChallenge(&buf, s)

	output := buf.String()
	assert.Contains(t, output, "PCT_FIXED")
	assert.Contains(t, output, "New York")
	assert.Contains(t, output, "25.0%")
	assert.Contains(t, output, "PR")
	assert.Contains(t, output, "33.3%")
}
