package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/atp-clean/internal/model"
	"github.com/sells-group/atp-clean/internal/pipeline"
	"github.com/sells-group/atp-clean/internal/resilience"
	"github.com/sells-group/atp-clean/internal/rewrite"
	"github.com/sells-group/atp-clean/internal/store"
)

var (
	cleanFile      string
	cleanDir       string
	cleanOutput    string
	cleanParallel  int
	cleanSaintMode string
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean a GeoJSON dataset or a directory of datasets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cleanSaintMode != "" {
			cfg.Clean.SaintMode = cleanSaintMode
		}
		if cleanParallel > 0 {
			cfg.Clean.Concurrency = cleanParallel
		}

		jobs, err := resolveJobs(cleanFile, cleanDir, cleanOutput, cfg.Clean.OutputSuffix)
		if err != nil {
			return err
		}

		env, err := initCleaner(ctx, "clean")
		if err != nil {
			return err
		}
		defer env.Close()

		r := &runner{
			pipeline: env.Pipeline,
			store:    env.Store,
			out:      os.Stdout,
			clock:    clockwork.NewRealClock(),
		}
		sum, err := r.processFiles(ctx, jobs, cfg.Clean.Concurrency)
		if err != nil {
			return err
		}
		if sum.Failed > 0 {
			return eris.Errorf("%d of %d datasets failed", sum.Failed, len(jobs))
		}
		return nil
	},
}

func init() {
	cleanCmd.Flags().StringVarP(&cleanFile, "file", "f", "", "input .geojson file")
	cleanCmd.Flags().StringVarP(&cleanDir, "directory", "d", "", "input directory of .geojson files")
	cleanCmd.Flags().StringVarP(&cleanOutput, "output", "o", "", "output file or directory (default: input with _processed suffix)")
	cleanCmd.Flags().IntVar(&cleanParallel, "concurrency", 0, "datasets cleaned in parallel (default from config)")
	cleanCmd.Flags().StringVar(&cleanSaintMode, "saint-mode", "", "lenient or strict (default from config)")
	rootCmd.AddCommand(cleanCmd)
}

// runner cleans dataset files and records each run.
type runner struct {
	pipeline *pipeline.Pipeline
	store    store.Store
	out      io.Writer
	clock    clockwork.Clock

	mu sync.Mutex
}

// summary counts dataset outcomes.
type summary struct {
	Processed int64
	Skipped   int64
	Failed    int64
}

// processFiles cleans jobs concurrently. A failing dataset never stops the
// others; only cancellation aborts the batch.
func (r *runner) processFiles(ctx context.Context, jobs []job, concurrency int) (summary, error) {
	if len(jobs) == 0 {
		zap.L().Info("no datasets found")
		return summary{}, nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("cleaning datasets",
		zap.Int("datasets", len(jobs)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var processed, skipped, failed atomic.Int64
	for _, j := range jobs {
		g.Go(func() error {
			run := r.cleanOne(gctx, j)
			switch run.Status {
			case model.RunStatusProcessed:
				processed.Add(1)
			case model.RunStatusSkipped:
				skipped.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary{}, eris.Wrap(err, "clean batch")
	}
	if err := ctx.Err(); err != nil {
		return summary{}, eris.Wrap(err, "clean batch")
	}

	sum := summary{Processed: processed.Load(), Skipped: skipped.Load(), Failed: failed.Load()}
	zap.L().Info("clean complete",
		zap.Int64("processed", sum.Processed),
		zap.Int64("skipped", sum.Skipped),
		zap.Int64("failed", sum.Failed),
	)
	return sum, nil
}

// cleanOne runs one dataset, writes its output unless it was skipped or
// failed, prints the summary line and records the run.
func (r *runner) cleanOne(ctx context.Context, j job) *model.Run {
	log := zap.L().With(zap.String("file", j.In))
	run := &model.Run{
		Source:    j.In,
		Status:    model.RunStatusFailed,
		Version:   pipeline.Version,
		StartedAt: r.clock.Now(),
	}
	brand := "-"

	err := func() error {
		data, err := os.ReadFile(j.In)
		if err != nil {
			return eris.Wrapf(err, "read %s", j.In)
		}
		ds, err := model.DecodeDataset(data)
		if err != nil {
			return err
		}
		brand = datasetBrand(ds)
		run.FeaturesIn = len(ds.Features)

		res, err := r.pipeline.Run(ctx, ds)
		if res != nil {
			run.RepeatedTags = res.RepeatedTags
			run.Warnings = len(res.Warnings)
		}
		if err != nil {
			return err
		}
		run.Status = res.Status()
		run.FeaturesOut = res.FeaturesOut
		if res.State == pipeline.StateSkipped {
			return nil
		}

		out, err := ds.Encode()
		if err != nil {
			return err
		}
		return writeOutput(j.Out, out)
	}()
	if err != nil {
		run.Status = model.RunStatusFailed
		run.Error = err.Error()
		log.Error("dataset failed",
			zap.String("error_class", resilience.Classify(err)),
			zap.Error(err),
		)
	}
	run.FinishedAt = r.clock.Now()

	items := run.FeaturesOut
	if run.Status != model.RunStatusProcessed {
		items = run.FeaturesIn
	}
	r.printSummary(string(run.Status), filepath.Base(j.In), brand, items)

	if err := r.store.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		log.Warn("record run failed", zap.Error(err))
	}
	return run
}

func (r *runner) printSummary(action, file, brand string, items int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "%-16s%-34s%-30s%-6d\n", rewrite.Title(action)+"...", file, brand, items)
}

// datasetBrand names the dataset by the brand of its first feature.
func datasetBrand(ds *model.Dataset) string {
	if len(ds.Features) == 0 {
		return "-"
	}
	for _, key := range []string{"brand", "name"} {
		if v, ok := ds.Features[0].Tag(key); ok && v != "" {
			return v
		}
	}
	return "-"
}
