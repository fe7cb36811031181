package tj

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/joshharrison/shotloom/internal/graph"
	"github.com/joshharrison/shotloom/internal/studio"
	"github.com/joshharrison/shotloom/internal/task"
)

// ErrNoStudio is returned when scheduling without a studio configuration.
var ErrNoStudio = errors.New("scheduler has no studio")

// ResultSink persists the rows of a successful run.
type ResultSink interface {
	ApplyScheduleResult(ctx context.Context, rows []Row, computeResources bool) error
}

// Scheduler runs one export, solve and import pass over a workspace.
type Scheduler struct {
	Studio    *studio.Studio
	Workspace *task.Workspace
	Solver    Solver
	// Sink, when set, receives the rows before the workspace is updated.
	Sink ResultSink
	// ProjectIDs limits the pass to these projects. Empty means all.
	ProjectIDs []int64
	// TempDir is where the run directory is created. Empty uses os.TempDir.
	TempDir string
	Log     *logrus.Entry
}

// Result describes a finished pass.
type Result struct {
	Rows    []Row
	Applied Applied
	TJP     string
}

// Schedule exports the workspace, runs the solver and imports the computed
// dates. Nothing is updated when the solver fails.
func (s *Scheduler) Schedule(ctx context.Context) (*Result, error) {
	if s.Studio == nil {
		return nil, ErrNoStudio
	}
	log := s.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("operation", "schedule")

	if err := Validate(s.Workspace); err != nil {
		return nil, err
	}

	solver := s.Solver
	if solver == nil {
		solver = NewRunner(s.Studio.Scheduler.Binary, s.Studio.Scheduler.Timeout, log)
	}
	compute := s.Studio.Scheduler.ComputeResources
	exp := Exporter{
		Studio:           *s.Studio,
		TemplatePath:     s.Studio.Scheduler.Template,
		ComputeResources: compute,
		ProjectIDs:       s.ProjectIDs,
	}
	report := s.Studio.TJPID()
	content, err := exp.Render(s.Workspace, report)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(s.TempDir, "shotloom-")
	if err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			log.WithError(rmErr).Warn("remove run dir")
		}
	}()

	tjpPath := filepath.Join(dir, report+".tjp")
	if err := os.WriteFile(tjpPath, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("write tjp: %w", err)
	}
	if err := solver.Run(ctx, tjpPath, dir); err != nil {
		return nil, err
	}

	rows, err := ParseResult(filepath.Join(dir, report+".csv"), compute)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		log.Warn("solver wrote no result, nothing to update")
		return &Result{TJP: content}, nil
	}
	if s.Sink != nil {
		if err := s.Sink.ApplyScheduleResult(ctx, rows, compute); err != nil {
			return nil, fmt.Errorf("store schedule result: %w", err)
		}
	}
	applied := Apply(s.Workspace, rows, compute, log)
	log.WithFields(logrus.Fields{
		"tasks":    applied.Tasks,
		"projects": applied.Projects,
		"skipped":  applied.Skipped,
	}).Info("schedule imported")
	return &Result{Rows: rows, Applied: applied, TJP: content}, nil
}

// Validate checks that the dependency edges of the workspace form a DAG.
func Validate(ws *task.Workspace) error {
	var nodes []graph.Node
	for _, t := range ws.Tasks() {
		n := graph.Node{ID: strconv.FormatInt(t.ID, 10), Title: t.Name, Priority: t.Priority()}
		for _, d := range t.Depends() {
			n.BlockedBy = append(n.BlockedBy, strconv.FormatInt(d.DependsOn.ID, 10))
		}
		nodes = append(nodes, n)
	}
	if _, err := graph.Build(nodes); err != nil {
		return fmt.Errorf("validate dependencies: %w", err)
	}
	return nil
}
