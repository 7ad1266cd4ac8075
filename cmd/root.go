package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/transit-access/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "transit-access",
	Short: "Transit access to PrEP clinics, by census block group",
	Long: "Computes the minimum public-transit travel time from each block-group " +
		"population centroid to the nearest PrEP clinic, joins the results onto " +
		"block-group geometry with ACS demographics, and renders a choropleth map.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
