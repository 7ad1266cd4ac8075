package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/transit-access/internal/region"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: demographics, resolve, export, render",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		zap.L().Info("pipeline phase", zap.String("phase", "demographics"))
		if err := fetchDemographics(ctx, cfg, st); err != nil {
			return err
		}

		zap.L().Info("pipeline phase", zap.String("phase", "resolve"))
		if err := resolveTravelTimes(ctx, cfg, st); err != nil {
			return err
		}

		zap.L().Info("pipeline phase", zap.String("phase", "export"))
		units, err := joinedUnits(ctx, cfg, st)
		if err != nil {
			return err
		}
		if err := region.WriteShapefile(cfg.Region.OutputPath, units); err != nil {
			return err
		}

		zap.L().Info("pipeline phase", zap.String("phase", "render"))
		return renderMap(cfg, units)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
