package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const SchemaVersion = 1

// Session is one closed interval of work on a project.
type Session struct {
	Start time.Time
	Stop  time.Time
}

// Duration is the whole number of minutes between Start and Stop.
func (s Session) Duration() int {
	seconds := int64(s.Stop.Sub(s.Start) / time.Second)
	if seconds < 0 {
		return 0
	}
	return int(seconds / 60)
}

// Project is the unit of time tracking, keyed by Name.
//
// Active is true exactly when CurrentSessionStart is set. Sessions are kept in
// the order they were closed and are only ever appended to.
type Project struct {
	Name                string
	Created             time.Time
	Active              bool
	CurrentSessionStart *time.Time
	Sessions            []Session
}

// NewProject returns an inactive project with no sessions.
func NewProject(name string, created time.Time) Project {
	return Project{
		Name:     name,
		Created:  created,
		Sessions: []Session{},
	}
}

func (p Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("project name is required")
	}
	if p.Active != (p.CurrentSessionStart != nil) {
		return fmt.Errorf("project %s: active flag and open session disagree", p.Name)
	}
	return nil
}

// TotalMinutes sums the duration of every closed session.
func (p Project) TotalMinutes() int {
	total := 0
	for _, s := range p.Sessions {
		total += s.Duration()
	}
	return total
}

// TotalHours is TotalMinutes in hours rounded to one decimal place. Rounding
// applies to the exact binary value of the quotient, so 3 minutes (0.05000000000000000277)
// gives 0.1 and only exact ties such as 0.25 go to even.
func (p Project) TotalHours() float64 {
	hours := float64(p.TotalMinutes()) / 60
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(hours, 'f', 1, 64), 64)
	if err != nil {
		return hours
	}
	return rounded
}

// Activate opens a session at now. An already open session is restarted and
// its elapsed time is dropped.
func (p *Project) Activate(now time.Time) {
	start := now
	p.Active = true
	p.CurrentSessionStart = &start
}

// Deactivate closes the open session at now and appends it. It reports false
// and leaves p untouched when no session is open.
func (p *Project) Deactivate(now time.Time) (Session, bool) {
	if p.CurrentSessionStart == nil {
		return Session{}, false
	}
	session := Session{Start: *p.CurrentSessionStart, Stop: now}
	p.Sessions = append(p.Sessions, session)
	p.Active = false
	p.CurrentSessionStart = nil
	return session, true
}

// Clone returns a copy that shares no memory with p.
func (p Project) Clone() Project {
	out := p
	if p.CurrentSessionStart != nil {
		start := *p.CurrentSessionStart
		out.CurrentSessionStart = &start
	}
	out.Sessions = make([]Session, len(p.Sessions))
	copy(out.Sessions, p.Sessions)
	return out
}

// ProjectFilter selects projects by field equality. Nil fields match anything.
type ProjectFilter struct {
	Active *bool
}

func (f ProjectFilter) Matches(p Project) bool {
	if f.Active != nil && p.Active != *f.Active {
		return false
	}
	return true
}

// ActiveProjects matches projects with an open session.
func ActiveProjects() ProjectFilter {
	active := true
	return ProjectFilter{Active: &active}
}
