package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/transit-access/internal/region"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Join travel times onto block-group polygons and write a shapefile",
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

		if err := region.WriteShapefile(cfg.Region.OutputPath, units); err != nil {
			return err
		}

		zap.L().Info("shapefile written",
			zap.String("path", cfg.Region.OutputPath),
			zap.Int("units", len(units)),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
