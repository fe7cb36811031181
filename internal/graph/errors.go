package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCircularDependency is the Kind of every *CycleError.
var ErrCircularDependency = errors.New("circular dependency")

// CycleError reports an edge that would make the task relations cyclic.
type CycleError struct {
	Kind error
	Path []string
	Msg  string
}

func (e *CycleError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Msg
	if msg == "" && len(e.Path) > 0 {
		msg = strings.Join(e.Path, " -> ")
	}
	if msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), msg)
}

func (e *CycleError) Unwrap() error { return e.Kind }

func cycleError(path []string) error {
	return &CycleError{Kind: ErrCircularDependency, Path: path}
}

func circularf(format string, args ...any) error {
	return &CycleError{Kind: ErrCircularDependency, Msg: fmt.Sprintf(format, args...)}
}
