package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/atp-clean/internal/resilience"
	"github.com/sells-group/atp-clean/pkg/nsi"
)

var nsiCmd = &cobra.Command{
	Use:   "nsi",
	Short: "Manage the local Name Suggestion Index",
}

var (
	nsiFetchURL string
	nsiFetchOut string
)

var nsiFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download and filter the Name Suggestion Index",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if nsiFetchURL != "" {
			cfg.NSI.URL = nsiFetchURL
		}
		if nsiFetchOut != "" {
			cfg.NSI.Path = nsiFetchOut
		}
		if err := cfg.Validate("nsi"); err != nil {
			return err
		}

		idx, err := nsi.Fetch(cmd.Context(), cfg.NSI.URL,
			nsi.WithRetry(resilience.DefaultRetryConfig()),
		)
		if err != nil {
			return err
		}
		if err := idx.Save(cfg.NSI.Path); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Saved %d items to %s\n", idx.Size(), cfg.NSI.Path)
		return nil
	},
}

func init() {
	nsiFetchCmd.Flags().StringVar(&nsiFetchURL, "url", "", "index URL (default from config)")
	nsiFetchCmd.Flags().StringVar(&nsiFetchOut, "out", "", "output path (default from config)")
	nsiCmd.AddCommand(nsiFetchCmd)
	rootCmd.AddCommand(nsiCmd)
}
