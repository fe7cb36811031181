package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/joshharrison/shotloom/internal/store"
	"github.com/joshharrison/shotloom/internal/studio"
	"github.com/joshharrison/shotloom/internal/task"
	"github.com/joshharrison/shotloom/internal/timeunit"
)

var (
	flagDB        string
	flagStudio    string
	flagJSON      bool
	flagLogLevel  string
	flagLogFormat string
	flagProjects  []int64
	flagOutput    string
)

// Settings kept in the workspace database.
const (
	settingLastSchedule        = "last_schedule"
	settingLastScheduleMessage = "last_schedule_message"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "shotloom",
		Short: "Schedule production tasks, bookings and reviews",
		Long: `Shotloom keeps the task breakdown of animation and VFX productions:
task hierarchies, dependencies, time logs and review rounds. It exports
the workspace to TaskJuggler, runs tj3 and imports the computed dates.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flagDB, "db", store.DefaultPath, "Workspace database path")
	rootCmd.PersistentFlags().StringVar(&flagStudio, "studio", studio.FileName, "Studio config path")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", envOr("SHOTLOOM_LOG_LEVEL", "warn"), "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(holdCmd(), stopCmd(), resumeCmd())
	rootCmd.AddCommand(inferDepsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func setupLogger(level, format string) *logrus.Entry {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	switch format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.WarnLevel
		log.WithField("level", level).Warn("unknown log level, using warn")
	}
	log.SetLevel(lvl)
	return logrus.NewEntry(log)
}

// app is what every command works on: the studio, the database and the
// workspace loaded from it.
type app struct {
	log    *logrus.Entry
	studio studio.Studio
	db     *store.DB
	ws     *task.Workspace
}

func openApp(ctx context.Context) (*app, error) {
	log := setupLogger(flagLogLevel, flagLogFormat)

	st, err := studio.Load(flagStudio)
	if err != nil {
		return nil, err
	}
	db, err := store.Open(flagDB, log)
	if err != nil {
		return nil, fmt.Errorf("open workspace: %w", err)
	}
	ws, err := db.Load(ctx, st.WorkingHoursSnapshot())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load workspace: %w", err)
	}
	return &app{log: log, studio: st, db: db, ws: ws}, nil
}

func (a *app) save(ctx context.Context) error {
	if err := a.db.Save(ctx, a.ws); err != nil {
		return fmt.Errorf("save workspace: %w", err)
	}
	return nil
}

func (a *app) close() { a.db.Close() }

func (a *app) workingHours() timeunit.Source { return a.studio.WorkingHoursSnapshot() }

// stateDir keeps run state next to the database.
func stateDir() string { return filepath.Dir(flagDB) }

// withApp opens the workspace, runs fn and closes it again.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

// mutate is withApp for commands that change the workspace; it saves after
// fn succeeds.
func mutate(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if err := fn(ctx, a); err != nil {
			return err
		}
		return a.save(ctx)
	})
}

func outputJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// parseID accepts "12" or a prefixed id like "Task_12".
func parseID(s, prefix string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, prefix), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func (a *app) task(s string) (*task.Task, error) {
	id, err := parseID(s, "Task_")
	if err != nil {
		return nil, err
	}
	t := a.ws.Task(id)
	if t == nil {
		return nil, fmt.Errorf("no task %s", s)
	}
	return t, nil
}

func (a *app) project(s string) (*task.Project, error) {
	id, err := parseID(s, "Project_")
	if err != nil {
		return nil, err
	}
	p := a.ws.Project(id)
	if p == nil {
		return nil, fmt.Errorf("no project %s", s)
	}
	return p, nil
}

// users resolves logins (or User_N ids).
func (a *app) users(refs []string) ([]*task.User, error) {
	var out []*task.User
	for _, ref := range refs {
		u := a.ws.UserByLogin(ref)
		if u == nil {
			if id, err := parseID(ref, "User_"); err == nil {
				u = a.ws.User(id)
			}
		}
		if u == nil {
			return nil, fmt.Errorf("no user %q", ref)
		}
		out = append(out, u)
	}
	return out, nil
}

func (a *app) review(s string) (*task.Review, error) {
	id, err := parseID(s, "Review_")
	if err != nil {
		return nil, err
	}
	for _, t := range a.ws.Tasks() {
		for _, r := range t.Reviews() {
			if r.ID == id {
				return r, nil
			}
		}
	}
	return nil, fmt.Errorf("no review %s", s)
}

// parseTiming reads "2d", "1.5h" or "30min".
func parseTiming(s string) (float64, timeunit.Unit, error) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, func(r rune) bool { return (r < '0' || r > '9') && r != '.' })
	if i <= 0 {
		return 0, "", fmt.Errorf("invalid timing %q (want e.g. 2d, 4h)", s)
	}
	timing, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid timing %q: %w", s, err)
	}
	unit, err := timeunit.ParseUnit(s[i:])
	if err != nil {
		return 0, "", err
	}
	return timing, unit, nil
}

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02-15:04", "2006-01-02"}

// parseTime reads a date in local time unless it carries a zone.
func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q (want YYYY-MM-DD HH:MM)", s)
}
