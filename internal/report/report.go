// Package report renders workspace state into CSV files and a static HTML
// index suitable for serving to a browser.
package report

import (
	"encoding/csv"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/flaviogranato/tasktaskrevolution/internal/model"
	"github.com/flaviogranato/tasktaskrevolution/internal/store"
	"github.com/flaviogranato/tasktaskrevolution/internal/telemetry"
)

const dateLayout = "2006-01-02"

// Builder renders reports for one workspace.
type Builder struct {
	store *store.Store
	out   string
	log   *slog.Logger
}

// NewBuilder writes reports under outDir.
func NewBuilder(s *store.Store, outDir string, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{store: s, out: outDir, log: log}
}

// BuildAll renders every report for every company in the workspace and
// returns the paths written.
func (b *Builder) BuildAll() ([]string, error) {
	companies, err := b.store.ListCompanies()
	if err != nil {
		return nil, err
	}
	var written []string
	for _, c := range companies {
		paths, err := b.BuildCompany(c.Code)
		if err != nil {
			return written, fmt.Errorf("company %s: %w", c.Code, err)
		}
		written = append(written, paths...)
	}
	path, err := b.buildVacationReport()
	if err != nil {
		return written, err
	}
	if path != "" {
		written = append(written, path)
	}
	idx, err := b.buildIndex(written)
	if err != nil {
		return written, err
	}
	written = append(written, idx)
	b.log.Info("built reports", "files", len(written), "dir", b.out)
	return written, nil
}

// BuildCompany renders the task schedule and WIP reports for one company.
func (b *Builder) BuildCompany(company string) ([]string, error) {
	projects, err := b.store.ListProjects(company)
	if err != nil {
		return nil, err
	}
	var written []string
	for _, p := range projects {
		path, err := b.buildTaskReport(company, p.Code)
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	path, err := b.buildWIPReport(company, projects)
	if err != nil {
		return written, err
	}
	written = append(written, path)
	return written, nil
}

// buildTaskReport writes one CSV row per task, sorted as stored.
func (b *Builder) buildTaskReport(company, project string) (string, error) {
	tasks, err := b.store.LoadTasks(company, project)
	if err != nil {
		return "", err
	}
	links, err := b.store.LoadDependencies(company, project)
	if err != nil {
		return "", err
	}
	predCount := make(map[string]int)
	succCount := make(map[string]int)
	for _, l := range links {
		succCount[l.From]++
		predCount[l.To]++
	}

	path := filepath.Join(b.out, company, project+"-tasks.csv")
	rows := [][]string{{"code", "name", "status", "priority", "start", "end", "duration", "predecessors", "successors", "fixed"}}
	for _, t := range tasks {
		rows = append(rows, []string{
			t.Code,
			t.Name,
			string(t.Status),
			string(t.Priority),
			formatDay(t.Start),
			formatDay(t.End),
			strconv.Itoa(durationDays(t)),
			strconv.Itoa(predCount[t.Code]),
			strconv.Itoa(succCount[t.Code]),
			strconv.FormatBool(t.Fixed),
		})
	}
	if err := writeCSV(path, rows); err != nil {
		return "", err
	}
	telemetry.ReportBuilds.WithLabelValues("tasks").Inc()
	return path, nil
}

// buildWIPReport counts tasks per status for each project.
func (b *Builder) buildWIPReport(company string, projects []*model.Project) (string, error) {
	path := filepath.Join(b.out, company, "wip.csv")
	rows := [][]string{{"project", "todo", "in_progress", "done", "blocked", "cancelled"}}
	for _, p := range projects {
		tasks, err := b.store.LoadTasks(company, p.Code)
		if err != nil {
			return "", err
		}
		counts := make(map[model.TaskStatus]int)
		for _, t := range tasks {
			counts[t.Status]++
		}
		rows = append(rows, []string{
			p.Code,
			strconv.Itoa(counts[model.StatusToDo]),
			strconv.Itoa(counts[model.StatusInProgress]),
			strconv.Itoa(counts[model.StatusDone]),
			strconv.Itoa(counts[model.StatusBlocked]),
			strconv.Itoa(counts[model.StatusCancelled]),
		})
	}
	if err := writeCSV(path, rows); err != nil {
		return "", err
	}
	telemetry.ReportBuilds.WithLabelValues("wip").Inc()
	return path, nil
}

// buildVacationReport lists every absence window across resources. Returns
// an empty path when the workspace has no resources.
func (b *Builder) buildVacationReport() (string, error) {
	resources, err := b.store.ListResources()
	if err != nil {
		return "", err
	}
	if len(resources) == 0 {
		return "", nil
	}
	path := filepath.Join(b.out, "vacations.csv")
	rows := [][]string{{"resource", "name", "start", "end", "days"}}
	for _, r := range resources {
		for _, v := range r.Vacations {
			days := int(v.End.Sub(v.Start).Hours()/24) + 1
			rows = append(rows, []string{
				r.Code,
				r.Name,
				formatDay(v.Start),
				formatDay(v.End),
				strconv.Itoa(days),
			})
		}
	}
	if err := writeCSV(path, rows); err != nil {
		return "", err
	}
	telemetry.ReportBuilds.WithLabelValues("vacations").Inc()
	return path, nil
}

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>ttr reports</title></head>
<body>
<h1>Reports</h1>
<p>Generated {{.GeneratedAt}}</p>
<ul>
{{- range .Files}}
<li><a href="{{.}}">{{.}}</a></li>
{{- end}}
</ul>
</body>
</html>
`))

type indexData struct {
	GeneratedAt string
	Files       []string
}

// buildIndex writes an HTML page linking every generated file.
func (b *Builder) buildIndex(files []string) (string, error) {
	rel := make([]string, 0, len(files))
	for _, f := range files {
		r, err := filepath.Rel(b.out, f)
		if err != nil {
			r = f
		}
		rel = append(rel, filepath.ToSlash(r))
	}
	path := filepath.Join(b.out, "index.html")
	if err := os.MkdirAll(b.out, 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	data := indexData{
		GeneratedAt: time.Now().Format(time.RFC3339),
		Files:       rel,
	}
	if err := indexTmpl.Execute(f, data); err != nil {
		return "", err
	}
	telemetry.ReportBuilds.WithLabelValues("index").Inc()
	return path, nil
}

func writeCSV(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// durationDays is the inclusive span when both dates are set, the declared
// duration otherwise.
func durationDays(t *model.Task) int {
	if !t.Start.IsZero() && !t.End.IsZero() && !t.End.Before(t.Start) {
		return int(t.End.Sub(t.Start).Hours()/24) + 1
	}
	return t.Duration
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
