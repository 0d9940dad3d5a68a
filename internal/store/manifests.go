package store

import (
	"fmt"
	"time"

	"github.com/flaviogranato/tasktaskrevolution/internal/model"
)

// Manifest envelope shared by every persisted entity. The layout mirrors a
// kubernetes-style document: apiVersion/kind/metadata/spec.
const apiVersion = "ttr.dev/v1"

const dateLayout = "2006-01-02"

type metadata struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

type companyManifest struct {
	APIVersion string   `yaml:"apiVersion"`
	Kind       string   `yaml:"kind"`
	Metadata   metadata `yaml:"metadata"`
}

type projectManifest struct {
	APIVersion string   `yaml:"apiVersion"`
	Kind       string   `yaml:"kind"`
	Metadata   metadata `yaml:"metadata"`
	Spec       struct {
		CompanyCode string `yaml:"companyCode"`
		StartDate   string `yaml:"startDate,omitempty"`
		EndDate     string `yaml:"endDate,omitempty"`
	} `yaml:"spec"`
}

type taskManifest struct {
	APIVersion string   `yaml:"apiVersion"`
	Kind       string   `yaml:"kind"`
	Metadata   metadata `yaml:"metadata"`
	Spec       struct {
		ProjectCode        string   `yaml:"projectCode"`
		Status             string   `yaml:"status"`
		Priority           string   `yaml:"priority,omitempty"`
		EstimatedStartDate string   `yaml:"estimatedStartDate,omitempty"`
		EstimatedEndDate   string   `yaml:"estimatedEndDate,omitempty"`
		DurationDays       int      `yaml:"durationDays,omitempty"`
		Fixed              bool     `yaml:"fixed,omitempty"`
		Assignees          []string `yaml:"assignees,omitempty"`
		Tags               []string `yaml:"tags,omitempty"`
	} `yaml:"spec"`
}

type resourceManifest struct {
	APIVersion string   `yaml:"apiVersion"`
	Kind       string   `yaml:"kind"`
	Metadata   metadata `yaml:"metadata"`
	Spec       struct {
		Type      string `yaml:"type,omitempty"`
		Email     string `yaml:"email,omitempty"`
		Vacations []struct {
			Start string `yaml:"start"`
			End   string `yaml:"end"`
		} `yaml:"vacations,omitempty"`
	} `yaml:"spec"`
}

type dependencyManifest struct {
	APIVersion string                 `yaml:"apiVersion"`
	Kind       string                 `yaml:"kind"`
	Links      []model.DependencyLink `yaml:"links"`
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func parseDate(s, field string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	return t.UTC(), nil
}

func companyToManifest(c *model.Company) *companyManifest {
	return &companyManifest{
		APIVersion: apiVersion,
		Kind:       "Company",
		Metadata:   metadata{Code: c.Code, Name: c.Name},
	}
}

func companyFromManifest(m *companyManifest) *model.Company {
	return &model.Company{Code: m.Metadata.Code, Name: m.Metadata.Name}
}

func projectToManifest(p *model.Project) *projectManifest {
	m := &projectManifest{
		APIVersion: apiVersion,
		Kind:       "Project",
		Metadata:   metadata{Code: p.Code, Name: p.Name},
	}
	m.Spec.CompanyCode = p.CompanyCode
	m.Spec.StartDate = formatDate(p.Start)
	m.Spec.EndDate = formatDate(p.End)
	return m
}

func projectFromManifest(m *projectManifest) (*model.Project, error) {
	start, err := parseDate(m.Spec.StartDate, "startDate")
	if err != nil {
		return nil, err
	}
	end, err := parseDate(m.Spec.EndDate, "endDate")
	if err != nil {
		return nil, err
	}
	return &model.Project{
		Code:        m.Metadata.Code,
		Name:        m.Metadata.Name,
		CompanyCode: m.Spec.CompanyCode,
		Start:       start,
		End:         end,
	}, nil
}

func taskToManifest(t *model.Task) *taskManifest {
	m := &taskManifest{
		APIVersion: apiVersion,
		Kind:       "Task",
		Metadata:   metadata{Code: t.Code, Name: t.Name},
	}
	m.Spec.ProjectCode = t.ProjectCode
	m.Spec.Status = string(t.Status)
	m.Spec.Priority = string(t.Priority)
	m.Spec.EstimatedStartDate = formatDate(t.Start)
	m.Spec.EstimatedEndDate = formatDate(t.End)
	m.Spec.DurationDays = t.Duration
	m.Spec.Fixed = t.Fixed
	m.Spec.Assignees = t.Assignees
	m.Spec.Tags = t.Tags
	return m
}

func taskFromManifest(m *taskManifest) (*model.Task, error) {
	start, err := parseDate(m.Spec.EstimatedStartDate, "estimatedStartDate")
	if err != nil {
		return nil, err
	}
	end, err := parseDate(m.Spec.EstimatedEndDate, "estimatedEndDate")
	if err != nil {
		return nil, err
	}
	status := model.TaskStatus(m.Spec.Status)
	if status == "" {
		status = model.StatusToDo
	}
	return &model.Task{
		Code:        m.Metadata.Code,
		Name:        m.Metadata.Name,
		ProjectCode: m.Spec.ProjectCode,
		Status:      status,
		Priority:    model.Priority(m.Spec.Priority),
		Start:       start,
		End:         end,
		Duration:    m.Spec.DurationDays,
		Fixed:       m.Spec.Fixed,
		Assignees:   m.Spec.Assignees,
		Tags:        m.Spec.Tags,
	}, nil
}

func resourceToManifest(r *model.Resource) *resourceManifest {
	m := &resourceManifest{
		APIVersion: apiVersion,
		Kind:       "Resource",
		Metadata:   metadata{Code: r.Code, Name: r.Name},
	}
	m.Spec.Type = r.Type
	m.Spec.Email = r.Email
	for _, v := range r.Vacations {
		m.Spec.Vacations = append(m.Spec.Vacations, struct {
			Start string `yaml:"start"`
			End   string `yaml:"end"`
		}{Start: formatDate(v.Start), End: formatDate(v.End)})
	}
	return m
}

func resourceFromManifest(m *resourceManifest) (*model.Resource, error) {
	r := &model.Resource{
		Code:  m.Metadata.Code,
		Name:  m.Metadata.Name,
		Type:  m.Spec.Type,
		Email: m.Spec.Email,
	}
	for _, v := range m.Spec.Vacations {
		start, err := parseDate(v.Start, "vacation start")
		if err != nil {
			return nil, err
		}
		end, err := parseDate(v.End, "vacation end")
		if err != nil {
			return nil, err
		}
		r.Vacations = append(r.Vacations, model.VacationPeriod{Start: start, End: end})
	}
	return r, nil
}
