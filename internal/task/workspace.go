package task

import "sort"

// Workspace is the in-memory registry of every project and user.
type Workspace struct {
	Projects []*Project
	Users    []*User
}

// AddProject registers p.
func (w *Workspace) AddProject(p *Project) { w.Projects = append(w.Projects, p) }

// AddUser registers u.
func (w *Workspace) AddUser(u *User) { w.Users = append(w.Users, u) }

// Project looks a project up by id.
func (w *Workspace) Project(id int64) *Project {
	for _, p := range w.Projects {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// User looks a user up by id.
func (w *Workspace) User(id int64) *User {
	for _, u := range w.Users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

// UserByLogin looks a user up by login.
func (w *Workspace) UserByLogin(login string) *User {
	for _, u := range w.Users {
		if u.Login == login {
			return u
		}
	}
	return nil
}

// Task looks a task up by id across all projects.
func (w *Workspace) Task(id int64) *Task {
	for _, p := range w.Projects {
		for _, t := range p.Tasks() {
			if t.ID == id {
				return t
			}
		}
	}
	return nil
}

// Tasks returns every task of every project, parents before children.
func (w *Workspace) Tasks() []*Task {
	var out []*Task
	for _, p := range w.Projects {
		out = append(out, p.Tasks()...)
	}
	return out
}

// TimeLogs returns every booking ordered by start.
func (w *Workspace) TimeLogs() []*TimeLog {
	var out []*TimeLog
	for _, t := range w.Tasks() {
		out = append(out, t.timeLogs...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].start.Before(out[j].start) })
	return out
}

// NextTaskID returns one past the highest task id.
func (w *Workspace) NextTaskID() int64 {
	var hi int64
	for _, t := range w.Tasks() {
		if t.ID > hi {
			hi = t.ID
		}
	}
	return hi + 1
}

// NextProjectID returns one past the highest project id.
func (w *Workspace) NextProjectID() int64 {
	var hi int64
	for _, p := range w.Projects {
		if p.ID > hi {
			hi = p.ID
		}
	}
	return hi + 1
}

// NextUserID returns one past the highest user id.
func (w *Workspace) NextUserID() int64 {
	var hi int64
	for _, u := range w.Users {
		if u.ID > hi {
			hi = u.ID
		}
	}
	return hi + 1
}
