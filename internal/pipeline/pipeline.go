// Package pipeline drives one cleaning pass over a dataset.
package pipeline

import (
	"context"
	"errors"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/atp-clean/internal/dataset"
	"github.com/sells-group/atp-clean/internal/fields"
	"github.com/sells-group/atp-clean/internal/model"
	"github.com/sells-group/atp-clean/internal/rules"
)

// Version is stamped on every cleaned dataset. A dataset already carrying
// it is skipped.
const Version = "0.3.0"

const dateLayout = "2006-01-02"

// State is a step of the cleaning state machine.
type State string

const (
	StateLoaded       State = "loaded"
	StateFiltered     State = "filtered"
	StateDeduplicated State = "deduplicated"
	StateNormalized   State = "normalized"
	StateStamped      State = "stamped"
	StateDone         State = "done"
	StateSkipped      State = "skipped"
	StateFailed       State = "failed"
)

// Result summarizes one pass.
type Result struct {
	State           State
	FeaturesIn      int
	FeaturesOut     int
	RepeatedTags    []string
	Warnings        []fields.Warning
	BrandMismatches int
	// States counts the kept features per addr:state.
	States map[string]int
}

// Status maps the final state to a run status.
func (r *Result) Status() model.RunStatus {
	switch r.State {
	case StateDone:
		return model.RunStatusProcessed
	case StateSkipped:
		return model.RunStatusSkipped
	default:
		return model.RunStatusFailed
	}
}

// Pipeline cleans datasets. It holds no per-dataset state, so one value can
// run many datasets concurrently.
type Pipeline struct {
	tables *rules.Tables
	norm   *fields.Normalizer
	clock  clockwork.Clock
	brands BrandIndex
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock used for the provenance date.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithBrandIndex enables the brand consistency check.
func WithBrandIndex(idx BrandIndex) Option {
	return func(p *Pipeline) { p.brands = idx }
}

// New creates a Pipeline.
func New(tables *rules.Tables, norm *fields.Normalizer, opts ...Option) *Pipeline {
	p := &Pipeline{
		tables: tables,
		norm:   norm,
		clock:  clockwork.NewRealClock(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ShouldSkip reports whether ds was already cleaned by this version or has
// been imported.
func ShouldSkip(ds *model.Dataset) bool {
	c, ok := ds.Cleaning()
	if !ok {
		return false
	}
	return c.Version == Version || c.Status == model.StatusImported
}

// Run cleans ds in place. A skipped dataset is left untouched. On error the
// dataset may be partially modified and must be discarded.
func (p *Pipeline) Run(ctx context.Context, ds *model.Dataset) (*Result, error) {
	res := &Result{State: StateLoaded, FeaturesIn: len(ds.Features)}
	log := zap.L().With(zap.Int("features", res.FeaturesIn))

	if ShouldSkip(ds) {
		res.State = StateSkipped
		res.FeaturesOut = res.FeaturesIn
		log.Info("pipeline: dataset already cleaned, skipping")
		return res, nil
	}

	steps := []struct {
		state State
		fn    func() error
	}{
		{StateFiltered, func() error {
			ds.Features = dataset.FilterStates(ds.Features, p.tables.IsStateCode)
			return nil
		}},
		{StateDeduplicated, func() error {
			if err := dataset.CheckNecessary(ds.Features, p.tables.NecessaryTags()); err != nil {
				return err
			}
			res.RepeatedTags = dataset.RepeatedTags(ds.Features, p.tables.RepeatTags())
			dataset.StripTags(ds.Features, p.tables.UselessTags(), res.RepeatedTags)
			res.BrandMismatches = p.checkBrands(ds.Features)
			return nil
		}},
		{StateNormalized, func() error {
			for _, f := range ds.Features {
				if err := ctx.Err(); err != nil {
					return eris.Wrap(err, "pipeline: normalize")
				}
				warnings, err := p.norm.Normalize(f)
				if err != nil {
					return err
				}
				for _, w := range warnings {
					log.Warn("pipeline: suspicious value",
						zap.String("feature", w.FeatureID),
						zap.Error(w.Err()),
					)
				}
				res.Warnings = append(res.Warnings, warnings...)
			}
			return nil
		}},
		{StateStamped, func() error {
			return ds.SetCleaning(model.Cleaning{
				Version: Version,
				Date:    p.clock.Now().Format(dateLayout),
			})
		}},
	}

	for _, step := range steps {
		start := p.clock.Now()
		if err := step.fn(); err != nil {
			res.State = StateFailed
			log.Error("pipeline: step failed",
				zap.String("step", string(step.state)),
				zap.Error(err),
			)
			return res, err
		}
		res.State = step.state
		log.Debug("pipeline: step complete",
			zap.String("step", string(step.state)),
			zap.Duration("duration", p.clock.Since(start)),
		)
	}

	res.State = StateDone
	res.FeaturesOut = len(ds.Features)
	res.States = dataset.StateCounts(ds.Features)
	fieldsOut := []zap.Field{
		zap.Int("features_out", res.FeaturesOut),
		zap.Strings("repeated_tags", res.RepeatedTags),
		zap.Int("warnings", len(res.Warnings)),
		zap.Int("states", len(res.States)),
	}
	if b, ok := ds.Bounds(); ok {
		fieldsOut = append(fieldsOut, zap.Float64s("bounds", []float64{b.Min(0), b.Min(1), b.Max(0), b.Max(1)}))
	}
	log.Info("pipeline: dataset cleaned", fieldsOut...)
	return res, nil
}

// IsSchemaViolation reports whether err aborted a dataset because of a
// schema violation.
func IsSchemaViolation(err error) bool {
	return errors.Is(err, model.ErrSchemaViolation)
}
