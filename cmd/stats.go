package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/atp-clean/internal/challenge"
	"github.com/sells-group/atp-clean/internal/model"
	"github.com/sells-group/atp-clean/internal/resilience"
	"github.com/sells-group/atp-clean/internal/rules"
)

var (
	statsURL  string
	statsFile string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-state progress of a MapRoulette challenge",
	RunE: func(cmd *cobra.Command, _ []string) error {
		tables, err := rules.Load(cfg.Clean.RulesPath)
		if err != nil {
			return err
		}

		var ds *model.Dataset
		if statsFile != "" {
			data, err := os.ReadFile(statsFile)
			if err != nil {
				return eris.Wrapf(err, "read %s", statsFile)
			}
			if ds, err = model.DecodeDataset(data); err != nil {
				return err
			}
		} else {
			ds, err = challenge.Fetch(cmd.Context(), nil, statsURL, resilience.DefaultRetryConfig())
			if err != nil {
				return err
			}
		}

		formatChallenge(os.Stdout, challenge.Summarize(ds, tables.StateName))
		return nil
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsURL, "url", challenge.DefaultURL, "challenge view URL")
	statsCmd.Flags().StringVar(&statsFile, "file", "", "read a saved challenge view instead of fetching")
	rootCmd.AddCommand(statsCmd)
}

// formatChallenge writes the per-state table and the overall totals to w.
func formatChallenge(out io.Writer, s challenge.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STATE\tUNFIXED\tFIXED\tPCT_FIXED")
	for _, st := range s.States {
		name := st.Name
		if name == "" {
			name = st.Code
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%.1f%%\n", name, st.Unfixed, st.Fixed, st.PctFixed*100)
	}
	_, _ = fmt.Fprintf(w, "Total\t%d\t%d\t%.1f%%\n", s.Unfixed, s.Fixed, s.PctFixed()*100)
	_ = w.Flush()
}
