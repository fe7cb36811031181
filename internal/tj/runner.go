package tj

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joshharrison/shotloom/internal/ui"
)

// DefaultTimeout bounds a single solver run.
const DefaultTimeout = 10 * time.Minute

// Solver runs TaskJuggler over a tjp file, writing reports into outDir.
type Solver interface {
	Run(ctx context.Context, tjpPath, outDir string) error
}

// SolverError is returned when tj3 exits non-zero or runs out of time.
type SolverError struct {
	ExitCode int
	Stderr   string
	TimedOut bool
	Err      error
}

func (e *SolverError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("tj3 timed out: %v\n%s", e.Err, e.Stderr)
	}
	return fmt.Sprintf("tj3 exited with %d: %s", e.ExitCode, strings.TrimSpace(e.Stderr))
}

func (e *SolverError) Unwrap() error { return e.Err }

// Runner invokes the tj3 binary.
type Runner struct {
	Binary  string
	Timeout time.Duration
	Log     *logrus.Entry
}

// NewRunner creates a Runner with defaults for empty values.
func NewRunner(binary string, timeout time.Duration, log *logrus.Entry) *Runner {
	if binary == "" {
		binary = "tj3"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Runner{Binary: binary, Timeout: timeout, Log: log}
}

// Run executes tj3 and streams its output into the log line by line.
func (r *Runner) Run(ctx context.Context, tjpPath, outDir string) error {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	log := r.Log.WithField("operation", "tj3")
	var mu sync.Mutex
	var stderr bytes.Buffer
	errLines := ui.NewLineWriter(func(line string) { logSolverLine(log, line) }, &mu)
	outLines := ui.NewLineWriter(func(line string) { log.Debug(line) }, &mu)

	cmd := exec.CommandContext(ctx, r.Binary, "--no-color", "-o", outDir, tjpPath)
	cmd.Stderr = io.MultiWriter(&stderr, errLines)
	cmd.Stdout = outLines
	cmd.WaitDelay = time.Second

	started := time.Now()
	log.WithField("file", tjpPath).Info("running solver")
	err := cmd.Run()
	errLines.Flush()
	outLines.Flush()
	log.WithField("elapsed", time.Since(started).Round(time.Millisecond)).Debug("solver finished")

	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &SolverError{ExitCode: -1, Stderr: stderr.String(), TimedOut: true, Err: ctx.Err()}
	}
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return &SolverError{ExitCode: code, Stderr: stderr.String(), Err: err}
}

func logSolverLine(log *logrus.Entry, line string) {
	switch {
	case strings.Contains(line, "Error"):
		log.Error(line)
	case strings.Contains(line, "Warning"):
		log.Warn(line)
	default:
		log.Info(line)
	}
}
