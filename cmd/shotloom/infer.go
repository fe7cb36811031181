package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshharrison/shotloom/internal/claude"
	"github.com/joshharrison/shotloom/internal/ui"
)

func inferDepsCmd() *cobra.Command {
	var (
		flagApply    bool
		flagModel    string
		flagFromFile string
	)

	cmd := &cobra.Command{
		Use:   "infer-deps",
		Short: "Use Claude to infer task dependencies from the task breakdown",
		Long: `Sends the open tasks to Claude and infers dependency edges. Every
suggestion passes the same cycle checks as a manual dependency.
By default runs in dry-run mode, use --apply to store the dependencies.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				summaries := claude.Summaries(a.ws, flagProjects)
				if len(summaries) == 0 {
					return fmt.Errorf("no open tasks found")
				}

				var result *claude.InferDepsResult
				if flagFromFile != "" {
					data, err := os.ReadFile(flagFromFile)
					if err != nil {
						return fmt.Errorf("read from-file: %w", err)
					}
					if result, err = claude.ParseInferDeps(string(data)); err != nil {
						return err
					}
					fmt.Fprintf(os.Stderr, "📂 Loaded %s edges from %s\n", ui.Bold(len(result.Edges)), ui.Dim(flagFromFile))
				} else {
					fmt.Fprintf(os.Stderr, "🔍 Sending %s tasks to Claude for dependency inference...\n", ui.Bold(len(summaries)))
					client, err := claude.NewClient("", flagModel)
					if err != nil {
						return err
					}
					if result, err = client.InferDeps(ctx, summaries); err != nil {
						return fmt.Errorf("infer deps: %w", err)
					}
				}

				// Edges are applied to the loaded workspace either way so that
				// later suggestions are checked against earlier ones; only
				// --apply saves them.
				out := claude.Apply(a.ws, result, a.log)

				if flagJSON {
					type edge struct {
						TaskID    string `json:"task_id"`
						DependsOn string `json:"depends_on_id"`
						Target    string `json:"target"`
					}
					type rejected struct {
						claude.DepEdge
						Error string `json:"error"`
					}
					o := struct {
						Added    []edge     `json:"added"`
						Rejected []rejected `json:"rejected"`
						Summary  string     `json:"summary"`
						Applied  bool       `json:"applied"`
					}{Summary: result.Summary, Applied: flagApply}
					for _, d := range out.Added {
						o.Added = append(o.Added, edge{d.Task.TJPID(), d.DependsOn.TJPID(), string(d.Target)})
					}
					for _, r := range out.Rejected {
						o.Rejected = append(o.Rejected, rejected{r.Edge, r.Err.Error()})
					}
					if err := outputJSON(o); err != nil {
						return err
					}
				} else {
					fmt.Printf("\n🔗 Inferred %s dependencies (%d suggested, %d rejected):\n\n",
						ui.Bold(len(out.Added)), len(result.Edges), len(out.Rejected))
					for _, d := range out.Added {
						fmt.Printf("  %s %s\n", ui.Cyan("→"), d)
					}
					for _, r := range out.Rejected {
						fmt.Printf("  %s %s -> %s: %v\n", ui.Yellow("⏭️  SKIP:"), r.Edge.TaskID, r.Edge.DependsOnID, r.Err)
					}
					if result.Summary != "" {
						fmt.Printf("\n💡 %s %s\n", ui.Bold("Summary:"), result.Summary)
					}
				}

				if !flagApply {
					if !flagJSON {
						fmt.Printf("\n🎯 %s\n", ui.Yellow("Dry run, use --apply to store these dependencies."))
					}
					return nil
				}
				if err := a.save(ctx); err != nil {
					return err
				}
				if !flagJSON {
					fmt.Printf("\n📝 Stored %s dependencies.\n", ui.Bold(len(out.Added)))
				}
				return nil
			})
		},
	}

	cmd.Flags().Int64SliceVar(&flagProjects, "project", nil, "Only consider these project ids")
	cmd.Flags().BoolVar(&flagApply, "apply", false, "Store the inferred dependencies")
	cmd.Flags().StringVar(&flagModel, "model", "", "Claude model (default: Sonnet)")
	cmd.Flags().StringVar(&flagFromFile, "from-file", "", "Read a saved edges response instead of calling Claude")
	return cmd
}
