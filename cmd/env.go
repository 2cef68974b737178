package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/atp-clean/internal/config"
	"github.com/sells-group/atp-clean/internal/fields"
	"github.com/sells-group/atp-clean/internal/pipeline"
	"github.com/sells-group/atp-clean/internal/rewrite"
	"github.com/sells-group/atp-clean/internal/rules"
	"github.com/sells-group/atp-clean/internal/store"
	"github.com/sells-group/atp-clean/pkg/nsi"
)

// cleanEnv holds what the clean and serve commands need.
type cleanEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Tables   *rules.Tables
}

// Close releases the store.
func (e *cleanEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initCleaner validates the config for mode, opens the run store and builds
// the pipeline. Callers should defer env.Close().
func initCleaner(ctx context.Context, mode string) (*cleanEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	p, tables, err := buildPipeline(cfg.Clean, cfg.NSI.Path)
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	return &cleanEnv{Store: st, Pipeline: p, Tables: tables}, nil
}

// buildPipeline assembles rule tables, rewriter, normalizer and the
// optional brand index from the clean settings.
func buildPipeline(cc config.CleanConfig, nsiPath string) (*pipeline.Pipeline, *rules.Tables, error) {
	tables, err := rules.Load(cc.RulesPath)
	if err != nil {
		return nil, nil, err
	}
	tables = tables.WithNecessaryTags(cc.NecessaryTags)

	mode, err := rewrite.ParseSaintMode(cc.SaintMode)
	if err != nil {
		return nil, nil, err
	}
	rw, err := rewrite.New(tables, rewrite.Options{SaintMode: mode})
	if err != nil {
		return nil, nil, err
	}

	severity, err := fields.ParseSeverity(cc.HoursSeverity)
	if err != nil {
		return nil, nil, err
	}
	norm := fields.NewNormalizer(rw, fields.Options{HoursSeverity: severity})

	var opts []pipeline.Option
	if cc.BrandCheck {
		idx, err := nsi.Load(nsiPath)
		if err != nil {
			return nil, nil, eris.Wrap(err, "brand check needs the index, run `atp-clean nsi fetch`")
		}
		zap.L().Info("brand check enabled", zap.String("index", nsiPath), zap.Int("items", idx.Size()))
		opts = append(opts, pipeline.WithBrandIndex(idx))
	}
	return pipeline.New(tables, norm, opts...), tables, nil
}

// initStore opens and migrates the configured run store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open run store")
	}
	return st, nil
}
