package task

import (
	"fmt"

	"github.com/joshharrison/shotloom/internal/timeunit"
)

// DependencyTarget says which end of the predecessor the dependent waits on.
type DependencyTarget string

const (
	OnEnd   DependencyTarget = "onend"
	OnStart DependencyTarget = "onstart"
)

// GapModel is how a dependency gap is measured.
type GapModel string

const (
	GapLength   GapModel = "length"
	GapDuration GapModel = "duration"
)

// Dependency is an edge saying Task can not start before DependsOn reaches
// its Target.
type Dependency struct {
	Task      *Task
	DependsOn *Task
	Target    DependencyTarget
	GapTiming float64
	GapUnit   timeunit.Unit
	GapModel  GapModel
}

// DependencyOption customizes a dependency edge.
type DependencyOption func(*Dependency)

// WithTarget sets the dependency target.
func WithTarget(target DependencyTarget) DependencyOption {
	return func(d *Dependency) { d.Target = target }
}

// WithGap sets a gap between the predecessor's target and the dependent's start.
func WithGap(timing float64, unit timeunit.Unit, model GapModel) DependencyOption {
	return func(d *Dependency) {
		d.GapTiming, d.GapUnit, d.GapModel = timing, unit, model
	}
}

// Satisfied reports whether the predecessor is far enough along for the
// dependent to proceed.
func (d *Dependency) Satisfied() bool {
	if d.Target == OnStart {
		return d.DependsOn.status.in(started...)
	}
	return d.DependsOn.status.in(StatusCMPL, StatusSTOP)
}

func (d *Dependency) String() string {
	return fmt.Sprintf("%s -> %s (%s)", d.Task.label(), d.DependsOn.label(), d.Target)
}

// ParseDependencyTarget parses onend or onstart.
func ParseDependencyTarget(s string) (DependencyTarget, error) {
	switch DependencyTarget(s) {
	case OnEnd, OnStart:
		return DependencyTarget(s), nil
	}
	return "", fmt.Errorf("unknown dependency target %q (want onend or onstart)", s)
}

// ParseGapModel parses length or duration.
func ParseGapModel(s string) (GapModel, error) {
	switch GapModel(s) {
	case GapLength, GapDuration:
		return GapModel(s), nil
	}
	return "", fmt.Errorf("unknown gap model %q (want length or duration)", s)
}
