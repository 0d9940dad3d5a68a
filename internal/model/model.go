// Package model defines the tracker's entities: companies, projects,
// resources and tasks. Task phases are an explicit status field with
// transitions validated by functions, keeping task collections uniform.
package model

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// TaskStatus is the lifecycle phase of a task.
type TaskStatus string

const (
	StatusToDo       TaskStatus = "ToDo"
	StatusInProgress TaskStatus = "InProgress"
	StatusDone       TaskStatus = "Done"
	StatusBlocked    TaskStatus = "Blocked"
	StatusCancelled  TaskStatus = "Cancelled"
)

// transitions lists the allowed next statuses for each status. Blocked is
// reversible; Done and Cancelled are terminal.
var transitions = map[TaskStatus][]TaskStatus{
	StatusToDo:       {StatusInProgress, StatusBlocked, StatusCancelled},
	StatusInProgress: {StatusDone, StatusBlocked, StatusCancelled},
	StatusBlocked:    {StatusToDo, StatusInProgress, StatusCancelled},
	StatusDone:       {},
	StatusCancelled:  {},
}

// CanTransition reports whether a status change is allowed.
func (s TaskStatus) CanTransition(to TaskStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Priority orders tasks by urgency.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// Task is one unit of schedulable work inside a project.
type Task struct {
	Code        string     `yaml:"code" validate:"required"`
	Name        string     `yaml:"name" validate:"required"`
	ProjectCode string     `yaml:"projectCode" validate:"required"`
	Status      TaskStatus `yaml:"status"`
	Priority    Priority   `yaml:"priority"`
	Start       time.Time  `yaml:"estimatedStartDate,omitempty"`
	End         time.Time  `yaml:"estimatedEndDate,omitempty"`
	Duration    int        `yaml:"durationDays,omitempty"`
	Fixed       bool       `yaml:"fixed,omitempty"`
	Assignees   []string   `yaml:"assignees,omitempty"`
	Tags        []string   `yaml:"tags,omitempty"`
}

// Validate checks structural and domain invariants.
func (t *Task) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("task %s: %w", t.Code, err)
	}
	if !t.Start.IsZero() && !t.End.IsZero() && t.End.Before(t.Start) {
		return fmt.Errorf("task %s: due date %s precedes start date %s",
			t.Code, t.End.Format("2006-01-02"), t.Start.Format("2006-01-02"))
	}
	if t.Duration < 0 {
		return fmt.Errorf("task %s: negative duration", t.Code)
	}
	return nil
}

// ChangeStatus applies a validated status transition.
func (t *Task) ChangeStatus(to TaskStatus) error {
	if !t.Status.CanTransition(to) {
		return fmt.Errorf("task %s: illegal transition %s -> %s", t.Code, t.Status, to)
	}
	t.Status = to
	return nil
}

// DependencyLink is a persisted dependency record between two tasks of the
// same project.
type DependencyLink struct {
	ID   string `yaml:"id"`
	From string `yaml:"from" validate:"required"`
	To   string `yaml:"to" validate:"required"`
	Type string `yaml:"type" validate:"required,oneof=FS SS FF SF"`
	Lag  int    `yaml:"lagDays"`
}

// Validate checks the link record.
func (d *DependencyLink) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("dependency %s -> %s: %w", d.From, d.To, err)
	}
	return nil
}

// Company is the top-level tenant of a workspace.
type Company struct {
	Code string `yaml:"code" validate:"required"`
	Name string `yaml:"name" validate:"required"`
}

// Validate checks the company record.
func (c *Company) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("company %s: %w", c.Code, err)
	}
	return nil
}

// Project groups tasks under a company.
type Project struct {
	Code        string    `yaml:"code" validate:"required"`
	Name        string    `yaml:"name" validate:"required"`
	CompanyCode string    `yaml:"companyCode" validate:"required"`
	Start       time.Time `yaml:"startDate,omitempty"`
	End         time.Time `yaml:"endDate,omitempty"`
}

// Validate checks the project record.
func (p *Project) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("project %s: %w", p.Code, err)
	}
	return nil
}

// VacationPeriod is one absence window of a resource.
type VacationPeriod struct {
	Start time.Time `yaml:"start"`
	End   time.Time `yaml:"end"`
}

// Resource is a person or asset assignable to tasks. Availability conflicts
// are out of the scheduling engine's scope; the tracker only records them.
type Resource struct {
	Code      string           `yaml:"code" validate:"required"`
	Name      string           `yaml:"name" validate:"required"`
	Type      string           `yaml:"type,omitempty"`
	Email     string           `yaml:"email,omitempty" validate:"omitempty,email"`
	Vacations []VacationPeriod `yaml:"vacations,omitempty"`
}

// Validate checks the resource record.
func (r *Resource) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("resource %s: %w", r.Code, err)
	}
	for _, v := range r.Vacations {
		if v.End.Before(v.Start) {
			return fmt.Errorf("resource %s: vacation ends before it starts", r.Code)
		}
	}
	return nil
}
