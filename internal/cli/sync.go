package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"strava-training-load/internal/config"
	"strava-training-load/internal/features"
	"strava-training-load/internal/metrics"
	"strava-training-load/internal/strava"
	"strava-training-load/internal/syncer"
)

const pushJob = "strava_sync"

var syncFlags struct {
	athleteID      int64
	all            bool
	perPage        int
	afterDefault   int64
	deriveFeatures bool
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch new Strava activities",
	Long: `Fetch activities newer than each athlete's cursor and store them.

Select athletes with --athlete-id or --all. Without either, the refresh
token in STRAVA_REFRESH_TOKEN is used and the athlete id is learned from
Strava (STRAVA_ATHLETE_ID is only checked against it).

With --all, a failing athlete is reported and the others still sync; the
command exits non-zero if any athlete failed.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	f := syncCmd.Flags()
	f.Int64Var(&syncFlags.athleteID, "athlete-id", 0, "sync one athlete using its stored refresh token")
	f.BoolVar(&syncFlags.all, "all", false, "sync every athlete with a stored refresh token")
	f.IntVar(&syncFlags.perPage, "per-page", 0, "page size for the activities list (default STRAVA_PER_PAGE)")
	f.Int64Var(&syncFlags.afterDefault, "after-default", 0, "epoch to start from when an athlete has no cursor (default STRAVA_AFTER_EPOCH_DEFAULT)")
	f.BoolVar(&syncFlags.deriveFeatures, "derive-features", false, "recompute feature rows after syncing")
	syncCmd.MarkFlagsMutuallyExclusive("athlete-id", "all")
}

func runSync(cmd *cobra.Command, args []string) error {
	rt, err := setup(false)
	if err != nil {
		return err
	}
	defer rt.Close()

	if syncFlags.perPage < 0 || syncFlags.perPage > 200 {
		return fmt.Errorf("--per-page must be between 1 and 200")
	}

	sel, err := selectorFor(rt.cfg, syncFlags.athleteID, syncFlags.all)
	if err != nil {
		return err
	}

	opts := syncer.Options{PerPage: syncFlags.perPage}
	if cmd.Flags().Changed("after-default") {
		after := syncFlags.afterDefault
		opts.AfterDefault = &after
	}

	client := strava.NewClient(rt.cfg, rt.logger)
	s := syncer.New(rt.db, client, rt.cfg, rt.logger)

	summary, runErr := s.Run(cmd.Context(), sel, opts)
	if summary != nil {
		printSummary(cmd, summary)
	}

	if runErr == nil && syncFlags.deriveFeatures {
		if _, err := features.NewDeriver(rt.db, rt.logger).Run(cmd.Context()); err != nil {
			runErr = fmt.Errorf("failed to derive features: %w", err)
		}
	}

	if rt.cfg.PushgatewayURL != "" {
		if err := metrics.Push(rt.cfg.PushgatewayURL, pushJob); err != nil {
			rt.logger.Error("Failed to push metrics", "error", err)
		}
	}

	if runErr != nil {
		return runErr
	}
	if summary != nil {
		return summary.Err()
	}
	return nil
}

// selectorFor picks the sync mode from the flags, falling back to the
// bootstrap refresh token from the environment
func selectorFor(cfg *config.Config, athleteID int64, all bool) (syncer.Selector, error) {
	switch {
	case all:
		return syncer.ForAll(), nil
	case athleteID < 0:
		return syncer.Selector{}, fmt.Errorf("--athlete-id must be positive")
	case athleteID > 0:
		return syncer.ForAthlete(athleteID), nil
	case cfg.StravaRefreshToken != "":
		return syncer.ForRefreshToken(cfg.StravaRefreshToken, cfg.StravaAthleteID), nil
	default:
		return syncer.Selector{}, errors.New("no athlete selected: pass --athlete-id or --all, or set STRAVA_REFRESH_TOKEN")
	}
}

func printSummary(cmd *cobra.Command, summary *syncer.Summary) {
	out := cmd.OutOrStdout()
	for _, r := range summary.Results {
		if r.Err != nil {
			fmt.Fprintf(out, "athlete %d: FAILED: %v\n", r.AthleteID, r.Err)
			continue
		}
		fmt.Fprintf(out, "athlete %d: retrieved=%d upserted=%d cursor=%d->%d",
			r.AthleteID, r.Retrieved, r.Upserted, r.CursorBefore, r.CursorAfter)
		if r.Rotated {
			fmt.Fprint(out, " refresh_token=rotated")
		}
		fmt.Fprintf(out, " token_expires=%s\n", time.Unix(r.ExpiresAt, 0).UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(out, "athletes ok=%d failed=%d retrieved=%d upserted=%d in %s\n",
		summary.Succeeded(), summary.Failed(), summary.Retrieved(), summary.Upserted(),
		summary.Duration.Round(time.Millisecond))
}
