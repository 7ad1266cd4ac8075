package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve minimum transit travel times for every centroid",
	Long: `Resolve loads the block-group centroids and clinic locations, prunes
each centroid's clinics to the nearest candidates by geodesic distance,
then queries the transit routing service for each candidate in turn.
Progress is checkpointed per centroid, so an interrupted run resumes
where it left off instead of re-querying the routing service.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return resolveTravelTimes(ctx, cfg, st)
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
