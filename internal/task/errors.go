package task

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoProject          = errors.New("task has no project")
	ErrInvalidTask        = errors.New("invalid task")
	ErrInvalidResource    = errors.New("invalid resource")
	ErrInvalidReviewer    = errors.New("invalid reviewer")
	ErrNotResponsible     = errors.New("reviewer is not responsible for the task")
	ErrNoResponsible      = errors.New("task has no responsible users")
	ErrNotLeaf            = errors.New("task is not a leaf task")
	ErrContainerResources = errors.New("container tasks can not have resources")
	ErrMilestoneResources = errors.New("milestones can not have resources")
	ErrHasTimeLogs        = errors.New("task has time logs")
	ErrInvalidDates       = errors.New("end must be after start")
	ErrVersionMismatch    = errors.New("version belongs to another task")
	ErrReviewFinalized    = errors.New("review is already finalized")
	ErrOverBooked         = errors.New("resource is over booked")
	ErrStatus             = errors.New("invalid status transition")
)

// OverBookedError names the booking that collides with a new time log.
type OverBookedError struct {
	Resource *User
	Existing *TimeLog
	Start    time.Time
	End      time.Time
}

func (e *OverBookedError) Error() string {
	return fmt.Sprintf("%s: %s is already booked on %s between %s and %s, can not book %s - %s",
		ErrOverBooked, e.Resource.label(), e.Existing.Task().label(),
		e.Existing.Start().Format(time.RFC3339), e.Existing.End().Format(time.RFC3339),
		e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

func (e *OverBookedError) Unwrap() error { return ErrOverBooked }

// StatusError is returned when an operation is not allowed in the task's
// current status.
type StatusError struct {
	Task   *Task
	Status Status
	Op     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s is %s, it can not %s", ErrStatus, e.Task.label(), e.Status, e.Op)
}

func (e *StatusError) Unwrap() error { return ErrStatus }
