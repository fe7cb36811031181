// Package state tracks scheduling runs on disk so that only one run
// touches a workspace at a time.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	stateFile  = "schedule.json"
	historyDir = "history"
)

// DefaultDir holds run state next to the workspace database.
const DefaultDir = ".shotloom"

// RunStatus is the outcome of a scheduling run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
)

// ErrSchedulingInProgress is returned when another run holds the workspace.
var ErrSchedulingInProgress = errors.New("scheduling already in progress")

// RunState is the persistent state of one scheduling run.
type RunState struct {
	RunID      string     `json:"run_id"`
	By         string     `json:"by,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     RunStatus  `json:"status"`
	ProjectIDs []int64    `json:"project_ids,omitempty"`
	Tasks      int        `json:"tasks"`
	Message    string     `json:"message,omitempty"`
	Stderr     string     `json:"stderr,omitempty"`

	mu  sync.Mutex `json:"-"`
	dir string     `json:"-"`
}

// Begin starts a run in dir. A run still marked running blocks the new one
// unless it started more than staleAfter ago. Zero staleAfter never expires.
func Begin(dir, by string, projectIDs []int64, staleAfter time.Duration) (*RunState, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	if prev, err := Load(dir); err == nil && prev.Status == StatusRunning {
		if staleAfter == 0 || time.Since(prev.StartedAt) < staleAfter {
			return nil, fmt.Errorf("%w: run %s by %q since %s",
				ErrSchedulingInProgress, prev.RunID, prev.By, prev.StartedAt.Format(time.RFC3339))
		}
	}

	s := &RunState{
		RunID:      uuid.NewString(),
		By:         by,
		StartedAt:  time.Now().UTC(),
		Status:     StatusRunning,
		ProjectIDs: projectIDs,
		dir:        dir,
	}
	if err := s.Save(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads the latest run in dir.
func Load(dir string) (*RunState, error) {
	return read(filepath.Join(dir, stateFile), dir)
}

func read(path, dir string) (*RunState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	var s RunState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	s.dir = dir
	return &s, nil
}

// Exists checks if a run state file exists.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, stateFile))
	return err == nil
}

// IsScheduling reports whether a run in dir is marked running.
func IsScheduling(dir string) bool {
	s, err := Load(dir)
	return err == nil && s.Status == StatusRunning
}

// Save persists the current state.
func (s *RunState) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return os.WriteFile(filepath.Join(s.dir, stateFile), data, 0o644)
}

// Finish records the outcome of the run, archives it and saves.
// A nil err marks the run completed.
func (s *RunState) Finish(tasks int, message string, runErr error) error {
	now := time.Now().UTC()
	s.mu.Lock()
	s.FinishedAt = &now
	s.Tasks = tasks
	s.Message = message
	switch {
	case runErr == nil:
		s.Status = StatusCompleted
	case errors.Is(runErr, context.Canceled):
		s.Status = StatusCancelled
		s.Message = runErr.Error()
	default:
		s.Status = StatusFailed
		s.Message = runErr.Error()
	}
	s.mu.Unlock()

	if err := s.Save(); err != nil {
		return err
	}
	return s.archive()
}

// SetStderr keeps the solver's diagnostic output with the run.
func (s *RunState) SetStderr(stderr string) {
	s.mu.Lock()
	s.Stderr = stderr
	s.mu.Unlock()
}

// Duration is how long the run took, or has taken so far.
func (s *RunState) Duration() time.Duration {
	if s.FinishedAt != nil {
		return s.FinishedAt.Sub(s.StartedAt)
	}
	return time.Since(s.StartedAt)
}

func (s *RunState) archive() error {
	dir := filepath.Join(s.dir, historyDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	s.mu.Lock()
	data, err := json.MarshalIndent(s, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	name := s.StartedAt.Format("20060102-150405") + "-" + s.RunID + ".json"
	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}

// History returns archived runs, newest first.
func History(dir string) ([]*RunState, error) {
	entries, err := os.ReadDir(filepath.Join(dir, historyDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history: %w", err)
	}
	var runs []*RunState
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		s, err := read(filepath.Join(dir, historyDir, e.Name()), dir)
		if err != nil {
			return nil, err
		}
		runs = append(runs, s)
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	return runs, nil
}

// Clean removes the current run state but keeps the history.
func Clean(dir string) error {
	err := os.Remove(filepath.Join(dir, stateFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
