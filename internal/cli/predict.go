package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"strava-training-load/internal/predict"
)

var predictFlags struct {
	athleteID int64
	scenario  predict.Scenario
	save      bool
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict race pace for a hypothetical effort",
	Long: `Train the pace model on the stored feature rows and predict the pace
and finish time of a race described by the flags.

Training load flags describe the 7 and 28 days before the race. Leave them
at zero when unknown; load ratios then count as zero.`,
	Example: `  strava-training-load predict --distance-km 21.1 --elevation-m 250 \
    --dist-7d-km 45 --time-7d-h 4.5 --dist-28d-km 180 --time-28d-h 18`,
	Args: cobra.NoArgs,
	RunE: runPredict,
}

func init() {
	f := predictCmd.Flags()
	s := &predictFlags.scenario
	f.Int64Var(&predictFlags.athleteID, "athlete-id", 0, "athlete the prediction is saved under")
	f.Float64Var(&s.DistanceKm, "distance-km", 0, "race distance in km")
	f.Float64Var(&s.ElevationGainM, "elevation-m", 0, "race elevation gain in m")
	f.Float64Var(&s.Dist7dKm, "dist-7d-km", 0, "distance over the previous 7 days in km")
	f.Float64Var(&s.Elev7dM, "elev-7d-m", 0, "elevation gain over the previous 7 days in m")
	f.Float64Var(&s.Time7dH, "time-7d-h", 0, "moving time over the previous 7 days in hours")
	f.Float64Var(&s.Dist28dKm, "dist-28d-km", 0, "distance over the previous 28 days in km")
	f.Float64Var(&s.Elev28dM, "elev-28d-m", 0, "elevation gain over the previous 28 days in m")
	f.Float64Var(&s.Time28dH, "time-28d-h", 0, "moving time over the previous 28 days in hours")
	f.BoolVar(&predictFlags.save, "save", false, "store the prediction (requires --athlete-id)")
	predictCmd.MarkFlagRequired("distance-km")
}

func runPredict(cmd *cobra.Command, args []string) error {
	if predictFlags.save && predictFlags.athleteID <= 0 {
		return fmt.Errorf("--save requires --athlete-id")
	}

	rt, err := setup(false)
	if err != nil {
		return err
	}
	defer rt.Close()

	predictor := predict.NewPredictor(rt.db, rt.logger)
	pred, model, err := predictor.Predict(cmd.Context(), predictFlags.athleteID, predictFlags.scenario, predictFlags.save)
	if err != nil {
		return fmt.Errorf("failed to predict: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "distance:  %.2f km, %.0f m gain\n", predictFlags.scenario.DistanceKm, predictFlags.scenario.ElevationGainM)
	fmt.Fprintf(out, "pace:      %s /km\n", predict.FormatSeconds(pred.PredictedPaceSPerKm))
	fmt.Fprintf(out, "time:      %s\n", predict.FormatSeconds(pred.PredictedTimeS))
	fmt.Fprintf(out, "model:     %s, %d train / %d test rows, MAE %.1f s/km, RMSE %.1f s/km\n",
		model.Version, model.TrainRows, model.TestRows, model.MAE, model.RMSE)
	if predictFlags.save {
		fmt.Fprintf(out, "saved:     %s\n", pred.PredictionID)
	}
	return nil
}
