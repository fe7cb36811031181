package task

import (
	"fmt"

	"github.com/joshharrison/shotloom/internal/timeunit"
)

// Version is a published iteration of a task's output.
type Version struct {
	ID          int64
	Number      int
	Description string

	task *Task
}

// Task returns the task the version belongs to.
func (v *Version) Task() *Task { return v.task }

// NewVersion publishes the next version of the task.
func (t *Task) NewVersion(description string) *Version {
	v := &Version{Number: len(t.versions) + 1, Description: description, task: t}
	t.versions = append(t.versions, v)
	return v
}

// Review is one reviewer's verdict in a review round of a leaf task.
type Review struct {
	ID          int64
	Description string

	task     *Task
	reviewer *User
	version  *Version
	number   int
	status   Status
	timing   float64
	unit     timeunit.Unit
}

// NewReview opens a review of task by reviewer in the task's next round.
// version may be nil.
func NewReview(t *Task, reviewer *User, version *Version) (*Review, error) {
	if t == nil {
		return nil, fmt.Errorf("review: %w: nil task", ErrInvalidTask)
	}
	if t.IsContainer() {
		return nil, fmt.Errorf("review of %s: %w", t.label(), ErrNotLeaf)
	}
	if reviewer == nil {
		return nil, fmt.Errorf("review of %s: %w", t.label(), ErrInvalidReviewer)
	}
	if !containsUser(t.Responsible(), reviewer) {
		return nil, fmt.Errorf("review of %s by %s: %w", t.label(), reviewer.label(), ErrNotResponsible)
	}
	if version != nil && version.task != t {
		return nil, fmt.Errorf("review of %s: %w", t.label(), ErrVersionMismatch)
	}
	r := &Review{
		task:     t,
		reviewer: reviewer,
		version:  version,
		number:   t.reviewNumber + 1,
		status:   StatusNEW,
		unit:     timeunit.Hour,
	}
	t.reviews = append(t.reviews, r)
	return r, nil
}

// AttachReview restores a persisted review without touching the task.
func (t *Task) AttachReview(id int64, reviewer *User, version *Version, number int, status Status,
	timing float64, unit timeunit.Unit, description string) *Review {
	r := &Review{
		ID:          id,
		Description: description,
		task:        t,
		reviewer:    reviewer,
		version:     version,
		number:      number,
		status:      status,
		timing:      timing,
		unit:        unit,
	}
	t.reviews = append(t.reviews, r)
	return r
}

func (r *Review) Task() *Task                 { return r.task }
func (r *Review) Reviewer() *User             { return r.reviewer }
func (r *Review) Version() *Version           { return r.version }
func (r *Review) ReviewNumber() int           { return r.number }
func (r *Review) Status() Status              { return r.status }
func (r *Review) ScheduleTiming() float64     { return r.timing }
func (r *Review) ScheduleUnit() timeunit.Unit { return r.unit }

// ScheduleSeconds is the extra effort requested by the review.
func (r *Review) ScheduleSeconds() float64 {
	return timeunit.ToSeconds(r.task.workingHours(), r.timing, r.unit)
}

// RequestRevision asks for timing more work on the task.
func (r *Review) RequestRevision(timing float64, unit timeunit.Unit, description string) error {
	if r.status != StatusNEW {
		return fmt.Errorf("review %d of %s: %w", r.number, r.task.label(), ErrReviewFinalized)
	}
	if timing < 0 {
		timing = 0
	}
	if unit == "" {
		unit = timeunit.Hour
	}
	r.timing, r.unit, r.Description = timing, unit, description
	r.status = StatusRREV
	r.FinalizeReviewSet()
	return nil
}

// Approve accepts the work under review.
func (r *Review) Approve() error {
	if r.status != StatusNEW {
		return fmt.Errorf("review %d of %s: %w", r.number, r.task.label(), ErrReviewFinalized)
	}
	r.status = StatusAPP
	r.FinalizeReviewSet()
	return nil
}

// ReviewSet returns every review of the same task and round.
func (r *Review) ReviewSet() []*Review {
	var set []*Review
	for _, o := range r.task.reviews {
		if o.number == r.number {
			set = append(set, o)
		}
	}
	return set
}

// IsFinalized reports whether every review of the round has a verdict.
func (r *Review) IsFinalized() bool {
	for _, o := range r.ReviewSet() {
		if o.status == StatusNEW {
			return false
		}
	}
	return true
}

// FinalizeReviewSet applies the verdicts of a complete review round to the
// task and its dependents. It does nothing while any review is still new.
func (r *Review) FinalizeReviewSet() {
	if !r.IsFinalized() {
		return
	}
	t := r.task
	// The round was already applied.
	if t.reviewNumber >= r.number {
		return
	}

	total := t.TotalLoggedSeconds()
	revise := false
	for _, o := range r.ReviewSet() {
		if o.status == StatusRREV {
			total += o.ScheduleSeconds()
			revise = true
		}
	}
	timing, unit := timeunit.LeastMeaningful(t.workingHours(), total)
	t.reviewNumber++

	if revise {
		if total > t.ScheduleSeconds() {
			t.SetSchedule(timing, unit)
		}
		t.status = StatusHREV
	} else {
		t.status = StatusCMPL
		t.SetSchedule(timing, unit)
	}
	t.log.WithField("status", t.status).Debugf("review round %d finalized", r.number)
	t.UpdateParentStatuses()

	queue := append([]*Dependency(nil), t.dependents...)
	seen := make(map[*Dependency]bool)
	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]
		if seen[d] {
			continue
		}
		seen[d] = true

		d.Task.UpdateStatusWithDependentStatuses()
		if d.DependsOn.status.in(notDone...) {
			d.Target = OnStart
		}
		d.Task.UpdateParentStatuses()
		queue = append(queue, d.Task.dependents...)
	}
}
