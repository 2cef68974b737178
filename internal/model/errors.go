package model

import "github.com/rotisserie/eris"

// Error kinds shared by the pipeline and its collaborators. Callers wrap
// them with context and compare with errors.Is.
var (
	// ErrSchemaViolation aborts a dataset: a necessary tag is missing or a
	// website does not use https.
	ErrSchemaViolation = eris.New("schema violation")

	// ErrMalformedUpstreamResponse is returned when the address parsing
	// service answers without the expected result collection.
	ErrMalformedUpstreamResponse = eris.New("malformed upstream response")

	// ErrAmbiguousReference is returned when a brand lookup matches more
	// than one canonical entry.
	ErrAmbiguousReference = eris.New("ambiguous reference")

	// ErrNotFound is returned when a brand lookup matches nothing.
	ErrNotFound = eris.New("not found")

	// ErrSuspiciousData marks values that look self-contradictory.
	ErrSuspiciousData = eris.New("suspicious data")
)
