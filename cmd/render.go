package main

import (
	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the travel-time choropleth map to a PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		units, err := joinedUnits(ctx, cfg, st)
		if err != nil {
			return err
		}

		return renderMap(cfg, units)
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
}
