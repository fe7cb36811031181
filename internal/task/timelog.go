package task

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joshharrison/shotloom/internal/timeunit"
)

// TimeLog is a span of work a resource booked on a leaf task.
type TimeLog struct {
	ID int64

	task     *Task
	resource *User
	start    time.Time
	end      time.Time
}

func (l *TimeLog) Task() *Task             { return l.task }
func (l *TimeLog) Resource() *User         { return l.resource }
func (l *TimeLog) Start() time.Time        { return l.start }
func (l *TimeLog) End() time.Time          { return l.end }
func (l *TimeLog) Duration() time.Duration { return l.end.Sub(l.start) }

// TotalSeconds is the length of the booking in seconds.
func (l *TimeLog) TotalSeconds() float64 { return l.Duration().Seconds() }

// CreateTimeLog books [start, end) of resource on the task. The schedule
// grows when the booking exceeds the remaining effort, and a ready task
// moves to work in progress.
func (t *Task) CreateTimeLog(resource *User, start, end time.Time) (*TimeLog, error) {
	if !t.status.in(StatusRTS, StatusWIP, StatusHREV, StatusDREV) {
		return nil, &StatusError{Task: t, Status: t.status, Op: "book time"}
	}
	l, err := t.newTimeLog(resource, start, end)
	if err != nil {
		return nil, err
	}

	secs := l.TotalSeconds()
	if remaining := t.RemainingSeconds(); secs > remaining {
		shortfall := secs - remaining
		grow := shortfall / timeunit.Ratio(t.workingHours(), t.sched.Unit)
		t.log.WithFields(logrus.Fields{
			"timing": t.sched.Timing,
			"grow":   grow,
			"unit":   t.sched.Unit,
		}).Debug("booking exceeds remaining effort, expanding schedule")
		t.sched.Timing += grow
		t.reschedule()
	}

	t.attach(l)
	if t.status.in(StatusRTS, StatusHREV) {
		t.status = StatusWIP
		t.UpdateParentStatuses()
		t.updateDependents()
	}
	return l, nil
}

// AttachTimeLog restores a persisted booking. Only the overlap and date
// checks run.
func (t *Task) AttachTimeLog(id int64, resource *User, start, end time.Time) (*TimeLog, error) {
	l, err := t.newTimeLog(resource, start, end)
	if err != nil {
		return nil, err
	}
	l.ID = id
	t.attach(l)
	return l, nil
}

func (t *Task) newTimeLog(resource *User, start, end time.Time) (*TimeLog, error) {
	if t.IsContainer() {
		return nil, fmt.Errorf("%s: time logs go on leaf tasks: %w", t.label(), ErrNotLeaf)
	}
	if resource == nil {
		return nil, fmt.Errorf("%s: %w", t.label(), ErrInvalidResource)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("%s: time log: %w", t.label(), ErrInvalidDates)
	}
	if clash := resource.booking(start, end); clash != nil {
		return nil, &OverBookedError{Resource: resource, Existing: clash, Start: start, End: end}
	}
	return &TimeLog{task: t, resource: resource, start: start, end: end}, nil
}

func (t *Task) attach(l *TimeLog) {
	t.timeLogs = append(t.timeLogs, l)
	l.resource.timeLogs = append(l.resource.timeLogs, l)
}
