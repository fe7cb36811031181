package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshharrison/shotloom/internal/claude"
	"github.com/joshharrison/shotloom/internal/planner"
	"github.com/joshharrison/shotloom/internal/reporter"
	"github.com/joshharrison/shotloom/internal/state"
	"github.com/joshharrison/shotloom/internal/tj"
	"github.com/joshharrison/shotloom/internal/ui"
)

func scheduleCmd() *cobra.Command {
	var (
		flagExplain bool
		flagModel   string
		flagStale   time.Duration
		flagQuiet   bool
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run TaskJuggler over the workspace and import the computed dates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				run, err := state.Begin(stateDir(), os.Getenv("USER"), flagProjects, flagStale)
				if err != nil {
					return err
				}

				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				if !flagJSON && !flagQuiet {
					ui.PrintLogo()
					fmt.Fprintf(os.Stderr, "🚀 %s scheduling %s tasks with %s\n",
						ui.BoldCyan("Shotloom:"), ui.Bold(len(a.ws.Tasks())), ui.Dim(a.studio.Scheduler.Binary))
				}

				sch := &tj.Scheduler{
					Studio:     &a.studio,
					Workspace:  a.ws,
					Sink:       a.db,
					ProjectIDs: flagProjects,
					Log:        a.log,
				}
				res, runErr := sch.Schedule(ctx)

				var se *tj.SolverError
				if errors.As(runErr, &se) {
					run.SetStderr(se.Stderr)
				}
				tasks, msg := 0, "solver wrote no result"
				if res != nil && len(res.Rows) > 0 {
					tasks = res.Applied.Tasks
					msg = fmt.Sprintf("scheduled %d tasks in %d projects", res.Applied.Tasks, res.Applied.Projects)
				}
				if err := run.Finish(tasks, msg, runErr); err != nil {
					a.log.WithError(err).Warn("save run state")
				}

				// A cancelled context would fail these writes too.
				bg := context.WithoutCancel(ctx)
				if err := a.db.SetSetting(bg, settingLastSchedule, run.StartedAt.Format(time.RFC3339)); err != nil {
					a.log.WithError(err).Warn("store last schedule time")
				}
				if err := a.db.SetSetting(bg, settingLastScheduleMessage, run.Message); err != nil {
					a.log.WithError(err).Warn("store last schedule message")
				}

				rpt := reporter.New(a.ws, nil, run, a.workingHours())
				if flagJSON {
					if err := outputJSON(run); err != nil {
						return err
					}
				} else {
					fmt.Fprintln(os.Stderr, rpt.Summary())
				}

				if runErr != nil && se != nil && flagExplain {
					explainFailure(bg, a, flagModel, se.Stderr)
				}
				return runErr
			})
		},
	}

	cmd.Flags().Int64SliceVar(&flagProjects, "project", nil, "Only schedule these project ids")
	cmd.Flags().BoolVar(&flagExplain, "explain", false, "Ask Claude to explain a solver failure")
	cmd.Flags().StringVar(&flagModel, "model", "", "Claude model for --explain")
	cmd.Flags().DurationVar(&flagStale, "stale-after", time.Hour, "Take over a run that has been marked running this long")
	cmd.Flags().BoolVarP(&flagQuiet, "quiet", "q", false, "No banner")
	return cmd
}

func explainFailure(ctx context.Context, a *app, model, stderr string) {
	client, err := claude.NewClient("", model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.Yellow("⚠️  no explanation:"), err)
		return
	}
	tjp, err := exporter(a).Render(a.ws, a.studio.TJPID())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.Yellow("⚠️  no explanation:"), err)
		return
	}
	fmt.Fprintf(os.Stderr, "🔍 Asking Claude what went wrong...\n")
	text, err := client.ExplainSolverFailure(ctx, tjp, stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.Yellow("⚠️  no explanation:"), err)
		return
	}
	fmt.Fprintf(os.Stderr, "\n💡 %s\n%s\n", ui.Bold("Diagnosis:"), text)
}

func exporter(a *app) tj.Exporter {
	return tj.Exporter{
		Studio:           a.studio,
		TemplatePath:     a.studio.Scheduler.Template,
		ComputeResources: a.studio.Scheduler.ComputeResources,
		ProjectIDs:       flagProjects,
	}
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the TaskJuggler project file without running the solver",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := tj.Validate(a.ws); err != nil {
					return err
				}
				content, err := exporter(a).Render(a.ws, a.studio.TJPID())
				if err != nil {
					return err
				}
				if flagOutput == "" {
					fmt.Print(content)
					return nil
				}
				if err := os.WriteFile(flagOutput, []byte(content), 0o644); err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "📝 Wrote %s\n", ui.Bold(flagOutput))
				return nil
			})
		},
	}
	cmd.Flags().Int64SliceVar(&flagProjects, "project", nil, "Only export these project ids")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Write to file instead of stdout")
	return cmd
}

func planCmd() *cobra.Command {
	var flagIncludeDone bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Preview the critical path over leaf tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				plan, err := planner.Generate(a.ws, planner.Options{
					ProjectIDs:  flagProjects,
					IncludeDone: flagIncludeDone,
				})
				if err != nil {
					return err
				}
				if plan.TotalTasks == 0 {
					return fmt.Errorf("no open tasks found")
				}
				if flagJSON {
					return outputJSON(plan)
				}
				reporter.New(a.ws, plan, nil, a.workingHours()).PrintPlan(os.Stdout)
				return nil
			})
		},
	}
	cmd.Flags().Int64SliceVar(&flagProjects, "project", nil, "Only plan these project ids")
	cmd.Flags().BoolVar(&flagIncludeDone, "include-done", false, "Keep completed tasks as zero-length nodes")
	return cmd
}

func statusCmd() *cobra.Command {
	var flagHistory bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show task statuses, computed dates and the last scheduling run",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagHistory {
				return printHistory()
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				var run *state.RunState
				if state.Exists(stateDir()) {
					var err error
					if run, err = state.Load(stateDir()); err != nil {
						return err
					}
				}
				plan, err := planner.Generate(a.ws, planner.Options{IncludeDone: true})
				if err != nil {
					a.log.WithError(err).Warn("no critical path")
					plan = nil
				}

				rpt := reporter.New(a.ws, plan, run, a.workingHours())
				if flagJSON {
					data, err := rpt.JSON()
					if err != nil {
						return err
					}
					fmt.Println(string(data))
					return nil
				}
				rpt.PrintStatus(os.Stdout)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&flagHistory, "history", false, "List past scheduling runs")
	return cmd
}

func printHistory() error {
	runs, err := state.History(stateDir())
	if err != nil {
		return err
	}
	if flagJSON {
		return outputJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Printf("%s No scheduling runs yet.\n", ui.Dim("🎬"))
		return nil
	}
	for _, r := range runs {
		icon := ui.Green("✓")
		switch r.Status {
		case state.StatusFailed:
			icon = ui.Red("✗")
		case state.StatusCancelled:
			icon = ui.Yellow("■")
		}
		fmt.Printf("  %s %s  %s  %s  %s\n", icon, r.StartedAt.Local().Format("2006-01-02 15:04"),
			ui.Dim(r.RunID[:8]), ui.Dim(r.Duration().Truncate(time.Second)), r.Message)
	}
	return nil
}
