package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/atp-clean/internal/model"
	"github.com/sells-group/atp-clean/internal/resilience"
	"github.com/sells-group/atp-clean/pkg/atlus"
)

var (
	atlusField  string
	atlusFile   string
	atlusDir    string
	atlusOutput string
)

var atlusCmd = &cobra.Command{
	Use:   "atlus",
	Short: "Split addresses or phones with the Atlus batch service",
	Long:  "Submits addr:street_address/addr:full (or phone) values of cleaned datasets to the Atlus service and merges the parsed tags back. Output overwrites the input unless --output is given.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("atlus"); err != nil {
			return err
		}
		if _, err := atlus.SourceKeys(atlusField); err != nil {
			return err
		}
		jobs, err := resolveJobs(atlusFile, atlusDir, atlusOutput, "")
		if err != nil {
			return err
		}

		client := atlus.NewClient(
			atlus.WithBaseURL(cfg.Atlus.BaseURL),
			atlus.WithRateLimit(cfg.Atlus.RateLimit),
			atlus.WithTimeout(time.Duration(cfg.Atlus.TimeoutSecs)*time.Second),
			atlus.WithRetry(resilience.DefaultRetryConfig().WithAttempts(cfg.Atlus.MaxAttempts)),
		)
		opts := atlus.ApplyOptions{BatchSize: cfg.Atlus.BatchSize}

		for _, j := range jobs {
			if err := atlusFileJob(ctx, client, j, atlusField, opts, os.Stdout); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	atlusCmd.Flags().StringVar(&atlusField, "field", atlus.FieldAddress, "field to parse: address or phone")
	atlusCmd.Flags().StringVarP(&atlusFile, "file", "f", "", "input .geojson file")
	atlusCmd.Flags().StringVarP(&atlusDir, "directory", "d", "", "input directory of .geojson files")
	atlusCmd.Flags().StringVarP(&atlusOutput, "output", "o", "", "output file or directory (default: overwrite input)")
	rootCmd.AddCommand(atlusCmd)
}

// atlusFileJob applies the Atlus service to one dataset file. The output is
// only written when at least one feature was merged.
func atlusFileJob(ctx context.Context, c atlus.Client, j job, field string, opts atlus.ApplyOptions, w io.Writer) error {
	data, err := os.ReadFile(j.In)
	if err != nil {
		return eris.Wrapf(err, "read %s", j.In)
	}
	ds, err := model.DecodeDataset(data)
	if err != nil {
		return eris.Wrapf(err, "decode %s", j.In)
	}

	stats, err := atlus.Apply(ctx, c, ds.Features, field, opts)
	if err != nil {
		return eris.Wrapf(err, "atlus %s", j.In)
	}
	_, _ = fmt.Fprintf(w, "%-16s%-34s%-10d%-10d%-10d\n",
		"Atlus...", filepath.Base(j.In), stats.Submitted, stats.Merged, stats.Rejected)

	if stats.Merged == 0 {
		zap.L().Info("atlus: nothing merged, output not written", zap.String("file", j.In))
		return nil
	}
	out, err := ds.Encode()
	if err != nil {
		return err
	}
	return writeOutput(j.Out, out)
}
