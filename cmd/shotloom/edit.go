package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshharrison/shotloom/internal/task"
	"github.com/joshharrison/shotloom/internal/timeunit"
	"github.com/joshharrison/shotloom/internal/ui"
)

func projectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}

	var flagCode, flagStart, flagEnd string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(cmd, func(ctx context.Context, a *app) error {
				p := task.NewProject(a.ws.NextProjectID(), args[0], a.workingHours())
				p.Code = flagCode
				if flagStart != "" || flagEnd != "" {
					start, err := parseTime(flagStart)
					if err != nil {
						return err
					}
					end, err := parseTime(flagEnd)
					if err != nil {
						return err
					}
					if err := p.SetDates(start, end); err != nil {
						return err
					}
				}
				a.ws.AddProject(p)
				fmt.Printf("📁 Created %s %s\n", ui.Bold(p.TJPID()), p.Name)
				return nil
			})
		},
	}
	add.Flags().StringVar(&flagCode, "code", "", "Short project code")
	add.Flags().StringVar(&flagStart, "start", "", "Pinned start date")
	add.Flags().StringVar(&flagEnd, "end", "", "Pinned end date")

	cmd.AddCommand(add)
	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	var flagEmail string
	var flagEfficiency float64
	add := &cobra.Command{
		Use:   "add <login> <name>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(cmd, func(ctx context.Context, a *app) error {
				if a.ws.UserByLogin(args[0]) != nil {
					return fmt.Errorf("user %q already exists", args[0])
				}
				u := task.NewUser(a.ws.NextUserID(), args[1], args[0])
				u.Email = flagEmail
				if flagEfficiency > 0 {
					u.Efficiency = flagEfficiency
				}
				a.ws.AddUser(u)
				fmt.Printf("👤 Created %s %s\n", ui.Bold(u.TJPID()), u.Login)
				return nil
			})
		},
	}
	add.Flags().StringVar(&flagEmail, "email", "", "Email address")
	add.Flags().Float64Var(&flagEfficiency, "efficiency", 1, "Resource efficiency for the solver")

	cmd.AddCommand(add)
	return cmd
}

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks and their dependencies",
	}
	cmd.AddCommand(taskAddCmd(), taskDependCmd(), taskUndependCmd(), taskMoveCmd(), taskSetCmd())
	return cmd
}

func taskAddCmd() *cobra.Command {
	var (
		flagProject     string
		flagParent      string
		flagDescription string
		flagTiming      string
		flagModel       string
		flagStart       string
		flagMilestone   bool
		flagResources   []string
		flagResponsible []string
		flagPriority    int
	)
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(cmd, func(ctx context.Context, a *app) error {
				opts := task.Options{Description: flagDescription, IsMilestone: flagMilestone, Logger: a.log}
				if flagProject != "" {
					p, err := a.project(flagProject)
					if err != nil {
						return err
					}
					opts.Project = p
				}
				if flagParent != "" {
					parent, err := a.task(flagParent)
					if err != nil {
						return err
					}
					opts.Parent = parent
				}
				timing, unit, err := parseTiming(flagTiming)
				if err != nil {
					return err
				}
				model, err := timeunit.ParseModel(flagModel)
				if err != nil {
					return err
				}
				opts.Schedule = task.Schedule{Timing: timing, Unit: unit, Model: model, Start: a.studio.ScheduleNow()}
				if flagStart != "" {
					if opts.Schedule.Start, err = parseTime(flagStart); err != nil {
						return err
					}
				}
				if opts.Resources, err = a.users(flagResources); err != nil {
					return err
				}
				if opts.Responsible, err = a.users(flagResponsible); err != nil {
					return err
				}

				t, err := task.New(a.ws.NextTaskID(), args[0], opts)
				if err != nil {
					return err
				}
				t.SetPriority(flagPriority)
				fmt.Printf("%s Created %s %s\n", ui.StatusIcon(string(t.Status())), ui.TaskPrefix(t.TJPID()), t.Path())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&flagProject, "project", "", "Project id (ignored with --parent)")
	cmd.Flags().StringVar(&flagParent, "parent", "", "Parent task id")
	cmd.Flags().StringVar(&flagDescription, "description", "", "Description")
	cmd.Flags().StringVar(&flagTiming, "timing", "1h", "Planned timing, e.g. 2d or 4h")
	cmd.Flags().StringVar(&flagModel, "model", string(timeunit.Effort), "Schedule model (effort, length, duration)")
	cmd.Flags().StringVar(&flagStart, "start", "", "Start date")
	cmd.Flags().BoolVar(&flagMilestone, "milestone", false, "Create a milestone")
	cmd.Flags().StringSliceVar(&flagResources, "resource", nil, "Allocated users (logins)")
	cmd.Flags().StringSliceVar(&flagResponsible, "responsible", nil, "Responsible users (logins)")
	cmd.Flags().IntVar(&flagPriority, "priority", task.DefaultPriority, "Solver priority (0-1000)")
	return cmd
}

func taskSetCmd() *cobra.Command {
	var (
		flagTiming     string
		flagConstraint string
		flagPriority   int
		flagResources  []string
		flagAlloc      string
	)
	cmd := &cobra.Command{
		Use:   "set <task>",
		Short: "Change a task's timing, constraint, priority or resources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(cmd, func(ctx context.Context, a *app) error {
				t, err := a.task(args[0])
				if err != nil {
					return err
				}
				if cmd.Flags().Changed("timing") {
					timing, unit, err := parseTiming(flagTiming)
					if err != nil {
						return err
					}
					t.SetSchedule(timing, unit)
				}
				if cmd.Flags().Changed("constraint") {
					c, err := timeunit.ParseConstraint(flagConstraint)
					if err != nil {
						return err
					}
					t.SetScheduleConstraint(c)
				}
				if cmd.Flags().Changed("priority") {
					t.SetPriority(flagPriority)
				}
				if cmd.Flags().Changed("resource") {
					users, err := a.users(flagResources)
					if err != nil {
						return err
					}
					if err := t.SetResources(users...); err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("allocation") {
					if err := t.SetAllocation(flagAlloc, t.PersistentAllocation()); err != nil {
						return err
					}
				}
				s := t.Schedule()
				fmt.Printf("%s %s %g%s %s → %s\n", ui.StatusIcon(string(t.Status())), ui.TaskPrefix(t.TJPID()),
					s.Timing, s.Unit, s.Start.Format("2006-01-02 15:04"), s.End.Format("2006-01-02 15:04"))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&flagTiming, "timing", "", "Planned timing, e.g. 2d or 4h")
	cmd.Flags().StringVar(&flagConstraint, "constraint", "", "Pinned dates (none, start, end, both)")
	cmd.Flags().IntVar(&flagPriority, "priority", task.DefaultPriority, "Solver priority (0-1000)")
	cmd.Flags().StringSliceVar(&flagResources, "resource", nil, "Allocated users (logins)")
	cmd.Flags().StringVar(&flagAlloc, "allocation", task.AllocMinAllocated, "Allocation strategy")
	return cmd
}

func taskDependCmd() *cobra.Command {
	var (
		flagTarget   string
		flagGap      string
		flagGapModel string
	)
	cmd := &cobra.Command{
		Use:   "depend <task> <depends-on>",
		Short: "Make a task wait for another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(cmd, func(ctx context.Context, a *app) error {
				t, err := a.task(args[0])
				if err != nil {
					return err
				}
				dep, err := a.task(args[1])
				if err != nil {
					return err
				}
				var opts []task.DependencyOption
				if cmd.Flags().Changed("target") {
					target, err := task.ParseDependencyTarget(flagTarget)
					if err != nil {
						return err
					}
					opts = append(opts, task.WithTarget(target))
				}
				if flagGap != "" {
					timing, unit, err := parseTiming(flagGap)
					if err != nil {
						return err
					}
					model, err := task.ParseGapModel(flagGapModel)
					if err != nil {
						return err
					}
					opts = append(opts, task.WithGap(timing, unit, model))
				}
				d, err := t.AddDependency(dep, opts...)
				if err != nil {
					return err
				}
				fmt.Printf("🔗 %s (%s)\n", d, ui.Status(string(t.Status())))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&flagTarget, "target", string(task.OnEnd), "Wait for the end (onend) or start (onstart)")
	cmd.Flags().StringVar(&flagGap, "gap", "", "Gap after the target, e.g. 1d")
	cmd.Flags().StringVar(&flagGapModel, "gap-model", string(task.GapLength), "Gap model (length, duration)")
	return cmd
}

func taskUndependCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undepend <task> <depends-on>",
		Short: "Remove a dependency",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(cmd, func(ctx context.Context, a *app) error {
				t, err := a.task(args[0])
				if err != nil {
					return err
				}
				dep, err := a.task(args[1])
				if err != nil {
					return err
				}
				t.RemoveDependency(dep)
				fmt.Printf("✂️  %s no longer waits for %s (%s)\n", ui.TaskPrefix(t.TJPID()), ui.TaskPrefix(dep.TJPID()), ui.Status(string(t.Status())))
				return nil
			})
		},
	}
}

func taskMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <task> <parent|root>",
		Short: "Move a task under another task, or to its project's roots",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(cmd, func(ctx context.Context, a *app) error {
				t, err := a.task(args[0])
				if err != nil {
					return err
				}
				var parent *task.Task
				if args[1] != "root" {
					if parent, err = a.task(args[1]); err != nil {
						return err
					}
				}
				if err := t.SetParent(parent); err != nil {
					return err
				}
				fmt.Printf("📦 %s %s\n", ui.TaskPrefix(t.TJPID()), t.Path())
				return nil
			})
		},
	}
}

func logCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "log <task> <user> <start> <end>",
		Short: "Book time of a user on a task",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(cmd, func(ctx context.Context, a *app) error {
				t, err := a.task(args[0])
				if err != nil {
					return err
				}
				users, err := a.users(args[1:2])
				if err != nil {
					return err
				}
				start, err := parseTime(args[2])
				if err != nil {
					return err
				}
				end, err := parseTime(args[3])
				if err != nil {
					return err
				}
				l, err := t.CreateTimeLog(users[0], start, end)
				if err != nil {
					return err
				}
				fmt.Printf("⏱️  %s booked %s on %s (%s, %.0f%% done)\n", users[0].Login, l.Duration(),
					ui.TaskPrefix(t.TJPID()), ui.Status(string(t.Status())), t.PercentComplete())
				return nil
			})
		},
	}
}

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Request, approve and revise reviews",
	}

	var flagVersion string
	request := &cobra.Command{
		Use:   "request <task>",
		Short: "Ask the responsible users to review a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				t, err := a.task(args[0])
				if err != nil {
					return err
				}
				var v *task.Version
				if flagVersion != "" {
					v = t.NewVersion(flagVersion)
				}
				reviews, err := t.RequestReview(v)
				if err != nil {
					return err
				}
				if err := a.save(ctx); err != nil {
					return err
				}
				for _, r := range reviews {
					fmt.Printf("%s Review %d (round %d) of %s for %s\n", ui.StatusIcon(string(r.Status())),
						r.ID, r.ReviewNumber(), ui.TaskPrefix(t.TJPID()), r.Reviewer().Login)
				}
				return nil
			})
		},
	}
	request.Flags().StringVar(&flagVersion, "version", "", "Create a version with this description and attach it")

	approve := &cobra.Command{
		Use:   "approve <review>",
		Short: "Approve a review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(cmd, func(ctx context.Context, a *app) error {
				r, err := a.review(args[0])
				if err != nil {
					return err
				}
				if err := r.Approve(); err != nil {
					return err
				}
				printReviewOutcome(r)
				return nil
			})
		},
	}

	var flagTiming, flagDescription string
	revise := &cobra.Command{
		Use:   "revise <review>",
		Short: "Request a revision with extra time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(cmd, func(ctx context.Context, a *app) error {
				r, err := a.review(args[0])
				if err != nil {
					return err
				}
				timing, unit, err := parseTiming(flagTiming)
				if err != nil {
					return err
				}
				if err := r.RequestRevision(timing, unit, flagDescription); err != nil {
					return err
				}
				printReviewOutcome(r)
				return nil
			})
		},
	}
	revise.Flags().StringVar(&flagTiming, "timing", "1h", "Extra time for the revision")
	revise.Flags().StringVar(&flagDescription, "description", "", "What to change")

	cmd.AddCommand(request, approve, revise)
	return cmd
}

func printReviewOutcome(r *task.Review) {
	t := r.Task()
	if !r.IsFinalized() {
		var waiting []string
		for _, o := range r.ReviewSet() {
			if o.Status() == task.StatusNEW {
				waiting = append(waiting, o.Reviewer().Login)
			}
		}
		fmt.Printf("%s Review %d %s, waiting for %s\n", ui.StatusIcon(string(r.Status())), r.ID,
			ui.Status(string(r.Status())), strings.Join(waiting, ", "))
		return
	}
	fmt.Printf("%s %s is now %s\n", ui.StatusIcon(string(t.Status())), ui.TaskPrefix(t.TJPID()), ui.Status(string(t.Status())))
	for _, d := range t.Dependents() {
		fmt.Printf("   %s %s %s\n", ui.Dim("↳"), ui.TaskPrefix(d.Task.TJPID()), ui.Status(string(d.Task.Status())))
	}
}

func statusOpCmd(use, short string, op func(*task.Task) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <task>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(cmd, func(ctx context.Context, a *app) error {
				t, err := a.task(args[0])
				if err != nil {
					return err
				}
				if err := op(t); err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "%s %s is now %s\n", ui.StatusIcon(string(t.Status())),
					ui.TaskPrefix(t.TJPID()), ui.Status(string(t.Status())))
				return nil
			})
		},
	}
}

func holdCmd() *cobra.Command {
	return statusOpCmd("hold", "Put a task on hold", (*task.Task).Hold)
}

func stopCmd() *cobra.Command {
	return statusOpCmd("stop", "Stop a task, keeping only the logged time", (*task.Task).Stop)
}

func resumeCmd() *cobra.Command {
	return statusOpCmd("resume", "Resume a held or stopped task", (*task.Task).Resume)
}
