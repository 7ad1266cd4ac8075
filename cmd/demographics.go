package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var demographicsCmd = &cobra.Command{
	Use:   "demographics",
	Short: "Fetch ACS block-group demographics into the checkpoint store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := fetchDemographics(ctx, cfg, st); err != nil {
			return err
		}

		zap.L().Info("demographics saved", zap.String("store", cfg.Store.Path))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(demographicsCmd)
}
