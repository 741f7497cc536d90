package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/Crosspost/internal/scheduler"
	"github.com/spf13/cobra"
)

// NewPublishDueCmd создаёт команду publish-due: один запуск scheduler'а.
func NewPublishDueCmd(envFn EnvFunc, outputFn func() *Output) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "publish-due",
		Short: "Dispatch publishing jobs for posts that are due",
		Long: `Finds scheduled posts whose time has come and enqueues one publishing
job per pending platform. Posts locked by another run are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := outputFn()

			env, err := envFn(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			sched, err := env.NewScheduler(ctx)
			if err != nil {
				return err
			}

			out.Infof("Checking for posts due for publishing...")

			report, err := sched.Run(ctx, time.Now(), dryRun)
			if err != nil {
				return err
			}

			// inline: ждём, пока Pool выполнит все попытки, включая retry
			if pool := env.Pool(); pool != nil && report.Dispatched > 0 {
				out.Infof("Waiting for %d publishing job(s) to finish...", pool.Pending())
				if err := pool.Wait(ctx); err != nil {
					return fmt.Errorf("wait for publishing jobs: %w", err)
				}
			}

			PrintReport(out, report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be published without dispatching")

	return cmd
}

// PrintReport выводит отчёт запуска.
func PrintReport(out *Output, report *scheduler.Report) {
	if out.IsJSON() {
		out.JSON(report)
		return
	}

	if report.Examined == 0 {
		out.Infof("No posts are due for publishing.")
		return
	}

	out.Infof("Found %d post(s) due for publishing.", report.Examined)

	for _, p := range report.Posts {
		switch p.Outcome {
		case scheduler.OutcomeLocked:
			out.Warnf("Post %s is already being processed. Skipping.", p.PostID)
		case scheduler.OutcomeNoPending:
			out.Warnf("Post %s has no pending platforms. Skipping.", p.PostID)
		}
	}

	headers := []string{"POST", "TITLE", "SCHEDULED", "PLATFORMS", "OUTCOME", "ERROR"}
	rows := make([][]string, len(report.Posts))
	for i, p := range report.Posts {
		rows[i] = []string{
			p.PostID.String(),
			p.Title,
			formatTime(p.ScheduledTime),
			strings.Join(p.Platforms, ", "),
			string(p.Outcome),
			p.Error,
		}
	}
	out.Table(headers, rows)

	summary := []string{"dispatched=" + strconv.Itoa(report.Dispatched)}
	if report.DryRun {
		summary = []string{"[DRY-RUN] would_dispatch=" + strconv.Itoa(report.WouldDispatch)}
	}
	summary = append(summary,
		"skipped_locked="+strconv.Itoa(report.SkippedLocked),
		"skipped_no_pending="+strconv.Itoa(report.SkippedNoPending),
		"errors="+strconv.Itoa(report.Errors),
	)
	out.Infof("Processing complete: %s", strings.Join(summary, " "))
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
