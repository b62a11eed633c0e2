package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"slopectl/internal/apperrors"
	"slopectl/internal/config"
	"slopectl/internal/slope"
	"slopectl/internal/workflow"
)

func newRunCmd(a *app) *cobra.Command {
	var planPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a full valuation from a plan file",
		Long: `Upload the scenario, assumption and inforce files named in the plan,
create a projection from the template, run it to completion and download the
configured reports when the run produced results.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plan, err := config.LoadValuationPlan(planPath)
			if err != nil {
				return err
			}
			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}

			res, runErr := workflow.RunValuation(cmd.Context(), s, plan, a.waitConfig())
			if res != nil && res.ProjectionID != 0 {
				if err := a.print(cmd.OutOrStdout(), res, []string{"PROJECTION", "STATUS", "REPORTS"}, [][]string{{
					strconv.Itoa(res.ProjectionID), res.Status, strings.Join(res.Reports, ","),
				}}); err != nil {
					return err
				}
			}
			if runErr != nil {
				return runErr
			}
			return requireResults(res.ProjectionID, res.Status)
		},
	}
	cmd.Flags().StringVar(&planPath, "plan", "", "valuation plan file (YAML)")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

func newWaitCmd(a *app) *cobra.Command {
	var (
		projectionID int
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Wait for a running projection to finish",
		Long:  "Resume waiting on a projection, for example after a run timed out locally. The remote run is never cancelled.",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if projectionID <= 0 {
				return apperrors.Validation("projection", "--projection is required")
			}
			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}

			cfg := a.runWait()
			if cmd.Flags().Changed("timeout") {
				cfg.Timeout = timeout
			}
			status, err := s.WaitForProjection(cmd.Context(), projectionID, cfg)
			if err != nil {
				return err
			}

			out := map[string]any{"projectionId": projectionID, "status": status}
			if err := a.print(cmd.OutOrStdout(), out, []string{"PROJECTION", "STATUS"}, [][]string{{
				strconv.Itoa(projectionID), status,
			}}); err != nil {
				return err
			}
			return requireResults(projectionID, status)
		},
	}
	cmd.Flags().IntVar(&projectionID, "projection", 0, "projection ID")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "maximum wait (0 waits until the run stops; env SLOPE_RUN_TIMEOUT)")
	return cmd
}

// requireResults turns a finished run without results into a job failure.
func requireResults(projectionID int, status string) error {
	if slope.HasResults(status) {
		return nil
	}
	return apperrors.JobFailed(fmt.Sprintf("projection %d", projectionID), "finished with status "+status)
}
