package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"strava-training-load/internal/features"
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Recompute rolling training-load features",
	Long: `Recompute one feature row per stored activity from the activities table.

Each row carries the activity's pace and elevation ratio plus distance,
elevation and moving time summed over the trailing 7 and 28 days.
Running it twice without new activities changes nothing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(false)
		if err != nil {
			return err
		}
		defer rt.Close()

		n, err := features.NewDeriver(rt.db, rt.logger).Run(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to derive features: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "derived %d feature rows\n", n)
		return nil
	},
}
