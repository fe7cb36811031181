package task

import (
	"time"

	"github.com/joshharrison/shotloom/internal/timeunit"
)

// Schedule is the planned effort of a task and the dates it is pinned to.
type Schedule struct {
	Timing     float64
	Unit       timeunit.Unit
	Model      timeunit.Model
	Constraint timeunit.Constraint
	Start      time.Time
	End        time.Time
}

// minimumSpan keeps end strictly after start for zero-length schedules.
const minimumSpan = time.Hour

// DefaultSchedule is one hour of effort.
func DefaultSchedule() Schedule {
	return Schedule{Timing: 1, Unit: timeunit.Hour, Model: timeunit.Effort}
}

// reschedule moves the unpinned date so the span matches the timing.
func (s *Schedule) reschedule(src timeunit.Source) {
	d := timeunit.ToDuration(src, s.Model, s.Timing, s.Unit)
	if d < minimumSpan {
		d = minimumSpan
	}
	switch s.Constraint {
	case timeunit.ConstrainEnd:
		s.Start = s.End.Add(-d)
	case timeunit.ConstrainBoth:
		if !s.End.After(s.Start) {
			s.End = s.Start.Add(d)
		}
	default:
		s.End = s.Start.Add(d)
	}
}
