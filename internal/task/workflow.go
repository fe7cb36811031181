package task

import (
	"fmt"

	"github.com/joshharrison/shotloom/internal/timeunit"
)

// UpdateStatusWithDependentStatuses derives a leaf task's status from the
// edges it waits on.
func (t *Task) UpdateStatusWithDependentStatuses() {
	if t.IsContainer() {
		return
	}
	satisfied := true
	for _, d := range t.depends {
		if !d.Satisfied() {
			satisfied = false
			break
		}
	}
	switch t.status {
	case StatusWFD, StatusRTS:
		if satisfied {
			t.status = StatusRTS
		} else {
			t.status = StatusWFD
		}
	case StatusWIP, StatusCMPL:
		if !satisfied {
			t.status = StatusDREV
		}
	case StatusDREV:
		if satisfied {
			t.status = StatusWIP
		}
	}
}

// UpdateParentStatuses re-aggregates every ancestor. Tasks waiting on an
// ancestor whose status changed are updated too.
func (t *Task) UpdateParentStatuses() {
	for p := t.parent; p != nil; p = p.parent {
		prev := p.status
		p.status = containerStatus(p.children)
		if p.status == prev {
			continue
		}
		for _, d := range p.dependents {
			d.Task.UpdateStatusWithDependentStatuses()
			d.Task.UpdateParentStatuses()
		}
	}
}

// Hold puts work in progress on hold and drops the task to the lowest priority.
func (t *Task) Hold() error {
	if t.IsContainer() {
		return fmt.Errorf("%s: %w", t.label(), ErrNotLeaf)
	}
	if !t.status.in(StatusWIP, StatusDREV, StatusOH) {
		return &StatusError{Task: t, Status: t.status, Op: "be held"}
	}
	t.status = StatusOH
	t.priority = MinPriority
	t.UpdateParentStatuses()
	t.updateDependents()
	return nil
}

// Stop ends the task early and shrinks the plan to what was booked.
func (t *Task) Stop() error {
	if t.IsContainer() {
		return fmt.Errorf("%s: %w", t.label(), ErrNotLeaf)
	}
	if !t.status.in(StatusWIP, StatusDREV, StatusOH, StatusSTOP) {
		return &StatusError{Task: t, Status: t.status, Op: "be stopped"}
	}
	t.status = StatusSTOP
	timing, unit := timeunit.LeastMeaningful(t.workingHours(), t.TotalLoggedSeconds())
	t.SetSchedule(timing, unit)
	t.UpdateParentStatuses()
	t.updateDependents()
	return nil
}

// Resume restarts a held or stopped task.
func (t *Task) Resume() error {
	if t.IsContainer() {
		return fmt.Errorf("%s: %w", t.label(), ErrNotLeaf)
	}
	if !t.status.in(StatusOH, StatusSTOP) {
		return &StatusError{Task: t, Status: t.status, Op: "be resumed"}
	}
	t.status = StatusWIP
	for _, d := range t.depends {
		if !d.Satisfied() {
			t.status = StatusDREV
			break
		}
	}
	t.UpdateParentStatuses()
	t.updateDependents()
	return nil
}

// RequestReview opens a review round with one review per responsible user.
func (t *Task) RequestReview(version *Version) ([]*Review, error) {
	if t.IsContainer() {
		return nil, fmt.Errorf("%s: %w", t.label(), ErrNotLeaf)
	}
	if t.status != StatusWIP {
		return nil, &StatusError{Task: t, Status: t.status, Op: "request a review"}
	}
	reviewers := t.Responsible()
	if len(reviewers) == 0 {
		return nil, fmt.Errorf("%s: %w", t.label(), ErrNoResponsible)
	}
	var reviews []*Review
	for _, u := range reviewers {
		r, err := NewReview(t, u, version)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	t.status = StatusPREV
	t.UpdateParentStatuses()
	return reviews, nil
}

// RestoreStatus sets a persisted status without running any transition.
func (t *Task) RestoreStatus(s Status) { t.status = s }

// RestoreReviewNumber sets a persisted review round number.
func (t *Task) RestoreReviewNumber(n int) { t.reviewNumber = n }

// updateDependents re-derives the status of every task directly waiting on t.
func (t *Task) updateDependents() {
	for _, d := range t.dependents {
		d.Task.UpdateStatusWithDependentStatuses()
		d.Task.UpdateParentStatuses()
	}
}
