// Package store persists tracker entities as YAML manifests under a
// workspace directory tree:
//
//	<root>/companies/<code>/company.yaml
//	<root>/companies/<code>/projects/<code>/project.yaml
//	<root>/companies/<code>/projects/<code>/tasks/<code>.yaml
//	<root>/companies/<code>/projects/<code>/dependencies.yaml
//	<root>/resources/<code>.yaml
//
// Listing functions return records in file-name order so graph construction
// downstream is deterministic. Writes go through a temp file plus rename so
// a crash never leaves a half-written manifest.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/flaviogranato/tasktaskrevolution/internal/model"
)

const (
	companiesDir = "companies"
	projectsDir  = "projects"
	tasksDir     = "tasks"
	resourcesDir = "resources"
)

// Store is a file-backed repository rooted at a workspace directory.
type Store struct {
	root string
}

// NewStore opens a store rooted at dir. The directory is created lazily on
// first write.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the workspace directory.
func (s *Store) Root() string { return s.root }

func (s *Store) companyDir(company string) string {
	return filepath.Join(s.root, companiesDir, company)
}

func (s *Store) projectDir(company, project string) string {
	return filepath.Join(s.companyDir(company), projectsDir, project)
}

// SaveCompany writes a company manifest.
func (s *Store) SaveCompany(c *model.Company) error {
	if err := c.Validate(); err != nil {
		return err
	}
	path := filepath.Join(s.companyDir(c.Code), "company.yaml")
	return writeManifest(path, companyToManifest(c))
}

// LoadCompany reads one company by code.
func (s *Store) LoadCompany(code string) (*model.Company, error) {
	var m companyManifest
	if err := readManifest(filepath.Join(s.companyDir(code), "company.yaml"), &m); err != nil {
		return nil, err
	}
	return companyFromManifest(&m), nil
}

// ListCompanies returns all companies in file-name order.
func (s *Store) ListCompanies() ([]*model.Company, error) {
	dirs, err := sortedSubdirs(filepath.Join(s.root, companiesDir))
	if err != nil {
		return nil, err
	}
	var out []*model.Company
	for _, dir := range dirs {
		c, err := s.LoadCompany(dir)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// SaveProject writes a project manifest.
func (s *Store) SaveProject(p *model.Project) error {
	if err := p.Validate(); err != nil {
		return err
	}
	path := filepath.Join(s.projectDir(p.CompanyCode, p.Code), "project.yaml")
	return writeManifest(path, projectToManifest(p))
}

// LoadProject reads one project by company and code.
func (s *Store) LoadProject(company, code string) (*model.Project, error) {
	var m projectManifest
	if err := readManifest(filepath.Join(s.projectDir(company, code), "project.yaml"), &m); err != nil {
		return nil, err
	}
	return projectFromManifest(&m)
}

// ListProjects returns all projects of a company in file-name order.
func (s *Store) ListProjects(company string) ([]*model.Project, error) {
	dirs, err := sortedSubdirs(filepath.Join(s.companyDir(company), projectsDir))
	if err != nil {
		return nil, err
	}
	var out []*model.Project
	for _, dir := range dirs {
		p, err := s.LoadProject(company, dir)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// SaveTask writes a task manifest under its project.
func (s *Store) SaveTask(company string, t *model.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	path := filepath.Join(s.projectDir(company, t.ProjectCode), tasksDir, t.Code+".yaml")
	return writeManifest(path, taskToManifest(t))
}

// SaveTasks writes a batch of task manifests.
func (s *Store) SaveTasks(company string, tasks []*model.Task) error {
	for _, t := range tasks {
		if err := s.SaveTask(company, t); err != nil {
			return err
		}
	}
	return nil
}

// LoadTasks returns a project's tasks in file-name order.
func (s *Store) LoadTasks(company, project string) ([]*model.Task, error) {
	dir := filepath.Join(s.projectDir(company, project), tasksDir)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tasks dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".yaml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []*model.Task
	for _, name := range names {
		var m taskManifest
		if err := readManifest(filepath.Join(dir, name), &m); err != nil {
			return nil, err
		}
		t, err := taskFromManifest(&m)
		if err != nil {
			return nil, fmt.Errorf("task manifest %s: %w", name, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// SaveDependencies writes a project's dependency links as one manifest.
func (s *Store) SaveDependencies(company, project string, links []model.DependencyLink) error {
	for i := range links {
		if err := links[i].Validate(); err != nil {
			return err
		}
	}
	m := &dependencyManifest{APIVersion: apiVersion, Kind: "DependencySet", Links: links}
	return writeManifest(filepath.Join(s.projectDir(company, project), "dependencies.yaml"), m)
}

// LoadDependencies returns a project's dependency links in stored order.
func (s *Store) LoadDependencies(company, project string) ([]model.DependencyLink, error) {
	var m dependencyManifest
	err := readManifest(filepath.Join(s.projectDir(company, project), "dependencies.yaml"), &m)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.Links, nil
}

// SaveResource writes a resource manifest.
func (s *Store) SaveResource(r *model.Resource) error {
	if err := r.Validate(); err != nil {
		return err
	}
	path := filepath.Join(s.root, resourcesDir, r.Code+".yaml")
	return writeManifest(path, resourceToManifest(r))
}

// ListResources returns all resources in file-name order.
func (s *Store) ListResources() ([]*model.Resource, error) {
	dir := filepath.Join(s.root, resourcesDir)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read resources dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".yaml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []*model.Resource
	for _, name := range names {
		var m resourceManifest
		if err := readManifest(filepath.Join(dir, name), &m); err != nil {
			return nil, err
		}
		r, err := resourceFromManifest(&m)
		if err != nil {
			return nil, fmt.Errorf("resource manifest %s: %w", name, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func readManifest(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read manifest %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return nil
}

func writeManifest(path string, m any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write manifest %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit manifest %s: %w", path, err)
	}
	return nil
}

func sortedSubdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
