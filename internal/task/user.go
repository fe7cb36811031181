package task

import (
	"fmt"
	"time"
)

// User is a resource that can be allocated to tasks and book time on them.
type User struct {
	ID         int64
	Name       string
	Login      string
	Email      string
	Efficiency float64

	timeLogs []*TimeLog
}

// NewUser returns a user with full efficiency.
func NewUser(id int64, name, login string) *User {
	return &User{ID: id, Name: name, Login: login, Efficiency: 1}
}

// TJPID is the resource id used in the tjp file.
func (u *User) TJPID() string { return fmt.Sprintf("User_%d", u.ID) }

// TimeLogs returns every booking of the user across all tasks.
func (u *User) TimeLogs() []*TimeLog { return u.timeLogs }

func (u *User) label() string { return fmt.Sprintf("%s (%s)", u.TJPID(), u.Name) }

// booking returns the first time log of u intersecting [start, end).
func (u *User) booking(start, end time.Time) *TimeLog {
	for _, l := range u.timeLogs {
		if start.Before(l.end) && l.start.Before(end) {
			return l
		}
	}
	return nil
}

func removeUser(users []*User, u *User) []*User {
	out := users[:0]
	for _, x := range users {
		if x != u {
			out = append(out, x)
		}
	}
	return out
}

func containsUser(users []*User, u *User) bool {
	for _, x := range users {
		if x == u {
			return true
		}
	}
	return false
}
