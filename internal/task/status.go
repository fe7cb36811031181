package task

// Status is a status code. Task statuses and review statuses share the type.
type Status string

// Task statuses.
const (
	StatusWFD  Status = "WFD"  // waiting for dependency
	StatusRTS  Status = "RTS"  // ready to start
	StatusWIP  Status = "WIP"  // work in progress
	StatusPREV Status = "PREV" // pending review
	StatusHREV Status = "HREV" // has revision
	StatusDREV Status = "DREV" // dependency has revision
	StatusOH   Status = "OH"   // on hold
	StatusSTOP Status = "STOP" // stopped
	StatusCMPL Status = "CMPL" // completed
)

// Review statuses.
const (
	StatusNEW  Status = "NEW"
	StatusRREV Status = "RREV" // revision requested
	StatusAPP  Status = "APP"  // approved
)

var statusNames = map[Status]string{
	StatusWFD:  "Waiting For Dependency",
	StatusRTS:  "Ready To Start",
	StatusWIP:  "Work In Progress",
	StatusPREV: "Pending Review",
	StatusHREV: "Has Revision",
	StatusDREV: "Dependency Has Revision",
	StatusOH:   "On Hold",
	StatusSTOP: "Stopped",
	StatusCMPL: "Completed",
	StatusNEW:  "New",
	StatusRREV: "Requested Revision",
	StatusAPP:  "Approved",
}

// Name is the human readable name of the status.
func (s Status) Name() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return string(s)
}

// LookupStatus resolves a status code.
func LookupStatus(code string) (Status, bool) {
	s := Status(code)
	_, ok := statusNames[s]
	return s, ok
}

func (s Status) in(set ...Status) bool {
	for _, o := range set {
		if s == o {
			return true
		}
	}
	return false
}

// Statusable is anything carrying a workflow status.
type Statusable interface {
	Status() Status
}

// notDone are the predecessor statuses that make a dependency start-only.
var notDone = []Status{StatusHREV, StatusPREV, StatusDREV, StatusOH, StatusSTOP}

// started are the statuses a task has once work began on it.
var started = []Status{StatusWIP, StatusPREV, StatusHREV, StatusDREV, StatusOH, StatusSTOP, StatusCMPL}

// containerStatus aggregates the statuses of a container's children.
func containerStatus(children []*Task) Status {
	if len(children) == 0 {
		return StatusRTS
	}
	allWFD, waiting, finished := true, true, true
	for _, c := range children {
		s := c.status
		if s != StatusWFD {
			allWFD = false
		}
		if !s.in(StatusWFD, StatusRTS) {
			waiting = false
		}
		if !s.in(StatusCMPL, StatusSTOP) {
			finished = false
		}
	}
	switch {
	case allWFD:
		return StatusWFD
	case waiting:
		return StatusRTS
	case finished:
		return StatusCMPL
	default:
		return StatusWIP
	}
}
