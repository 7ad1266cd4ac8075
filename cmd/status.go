package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/transit-access/internal/checkpoint"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show progress of the latest resolution run",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.LatestRun(ctx, regionKey(cfg))
		if err != nil {
			return err
		}

		var resolved, unavailable int
		if run != nil {
			resolved, unavailable, err = st.Counts(ctx, run.ID)
			if err != nil {
				return err
			}
		}

		formatStatus(os.Stdout, run, resolved, unavailable)
		return nil
	},
}

func formatStatus(w io.Writer, run *checkpoint.Run, resolved, unavailable int) {
	p := message.NewPrinter(language.English)
	if run == nil {
		p.Fprintln(w, "no runs recorded for this region") //nolint:errcheck
		return
	}

	p.Fprintf(w, "run:         %s\n", run.ID)                                       //nolint:errcheck
	p.Fprintf(w, "status:      %s\n", run.Status)                                   //nolint:errcheck
	p.Fprintf(w, "departure:   %s\n", run.Departure.Format("2006-01-02 15:04:05"))  //nolint:errcheck
	p.Fprintf(w, "resolved:    %d centroids\n", resolved)                           //nolint:errcheck
	p.Fprintf(w, "unavailable: %d centroids\n", unavailable)                        //nolint:errcheck
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
