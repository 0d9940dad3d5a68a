// Package tracker is the application service tying the manifest store to
// the scheduling engine: it builds dependency graphs from persisted tasks,
// validates and recomputes schedules, and writes the results back.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flaviogranato/tasktaskrevolution/internal/ids"
	"github.com/flaviogranato/tasktaskrevolution/internal/model"
	"github.com/flaviogranato/tasktaskrevolution/internal/schedule"
	"github.com/flaviogranato/tasktaskrevolution/internal/store"
	"github.com/flaviogranato/tasktaskrevolution/internal/telemetry"
)

// Tracker coordinates one workspace.
type Tracker struct {
	store     *store.Store
	engine    *schedule.Engine
	cache     *schedule.Cache
	lastStats schedule.CacheStats
	log       *slog.Logger

	// Workers > 1 recomputes independent tasks concurrently.
	Workers int
}

// New builds a Tracker over a workspace store. A nil cache disables
// calculation caching.
func New(s *store.Store, cache *schedule.Cache, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	eng := schedule.NewEngine()
	if cache != nil {
		eng = schedule.NewEngineWithCache(cache)
	}
	return &Tracker{store: s, engine: eng, cache: cache, log: log}
}

// Store exposes the underlying manifest store.
func (t *Tracker) Store() *store.Store { return t.store }

// BuildGraph loads a project's tasks and dependency links and assembles the
// in-memory dependency graph. Tasks load in file name order and links in
// stored order, so the graph is identical across invocations.
func (t *Tracker) BuildGraph(company, project string) (*schedule.Graph, []*model.Task, error) {
	tasks, err := t.store.LoadTasks(company, project)
	if err != nil {
		return nil, nil, fmt.Errorf("load tasks: %w", err)
	}
	links, err := t.store.LoadDependencies(company, project)
	if err != nil {
		return nil, nil, fmt.Errorf("load dependencies: %w", err)
	}

	g := schedule.NewGraph()
	for _, task := range tasks {
		if err := g.AddTask(schedule.TaskNode{
			Code:     task.Code,
			Name:     task.Name,
			Start:    task.Start,
			End:      task.End,
			Duration: task.Duration,
			Fixed:    task.Fixed,
		}); err != nil {
			return nil, nil, err
		}
	}
	for _, link := range links {
		if err := g.AddDependency(schedule.Dependency{
			ID:   link.ID,
			From: link.From,
			To:   link.To,
			Type: schedule.DependencyType(link.Type),
			Lag:  link.Lag,
		}); err != nil {
			return nil, nil, err
		}
	}
	return g, tasks, nil
}

// Validate runs a dry-run conflict check over a project. Nothing is
// persisted regardless of outcome.
func (t *Tracker) Validate(ctx context.Context, company, project string) (*schedule.ConflictReport, error) {
	ctx, span := telemetry.StartValidateSpan(ctx, project)
	defer span.End()

	g, _, err := t.BuildGraph(company, project)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	report := schedule.NewValidator(t.engine).Validate(ctx, g)
	t.log.Info("validated project",
		"company", company,
		"project", project,
		"cycles", len(report.Cycles),
		"violations", len(report.Violations))
	return report, nil
}

// RecomputeOptions controls a Recompute run.
type RecomputeOptions struct {
	// From restricts propagation to descendants of one task.
	From string
	// DryRun computes but never persists.
	DryRun bool
	// Strict refuses to persist when any task conflicted.
	Strict bool
}

// Recompute runs the scheduling engine over a project and writes the moved
// dates back to the task manifests. Cycles abort before any computation.
func (t *Tracker) Recompute(ctx context.Context, company, project string, opts RecomputeOptions) (*schedule.Outcome, error) {
	g, tasks, err := t.BuildGraph(company, project)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartRecomputeSpan(ctx, project, g.Len())
	defer span.End()
	started := time.Now()

	if cycles := schedule.DetectCycles(g); len(cycles) > 0 {
		err := fmt.Errorf("project %s has %d dependency cycle(s); run validate for details", project, len(cycles))
		telemetry.RecordError(span, err)
		return nil, err
	}

	var outcome *schedule.Outcome
	switch {
	case opts.From != "":
		outcome, err = t.engine.RecomputeFrom(ctx, g, opts.From)
	case t.Workers > 1:
		outcome, err = t.engine.RecomputeAllParallel(ctx, g, t.Workers)
	default:
		outcome = t.engine.RecomputeAll(ctx, g)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	recomputed, conflicted := tally(outcome)
	telemetry.RecordScheduleResult(span, recomputed, conflicted, len(outcome.Violations))
	telemetry.ObserveRecompute(started, recomputed, conflicted, len(outcome.Violations))
	t.observeCache()
	t.log.Info("recomputed schedule",
		"company", company,
		"project", project,
		"tasks", len(outcome.Results),
		"recomputed", recomputed,
		"conflicted", conflicted,
		"violations", len(outcome.Violations))

	if opts.DryRun {
		return outcome, nil
	}
	if opts.Strict && conflicted > 0 {
		return outcome, fmt.Errorf("project %s: %d task(s) conflicted, refusing to persist", project, conflicted)
	}
	if err := t.persist(company, tasks, outcome); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// observeCache publishes calculation-cache hit/miss deltas since the last
// recompute.
func (t *Tracker) observeCache() {
	if t.cache == nil {
		return
	}
	stats := t.cache.Stats()
	telemetry.CacheHits.Add(float64(stats.Hits - t.lastStats.Hits))
	telemetry.CacheMisses.Add(float64(stats.Misses - t.lastStats.Misses))
	t.lastStats = stats
}

func tally(o *schedule.Outcome) (recomputed, conflicted int) {
	for _, r := range o.Results {
		switch r.Status {
		case schedule.StatusRecomputed:
			recomputed++
		case schedule.StatusConflicted:
			conflicted++
		}
	}
	return recomputed, conflicted
}

// persist writes moved dates back to task manifests. Unchanged tasks are
// not rewritten. Conflicted tasks keep their stored dates but move to
// Blocked so the conflict is visible in listings.
func (t *Tracker) persist(company string, tasks []*model.Task, outcome *schedule.Outcome) error {
	byCode := make(map[string]*model.Task, len(tasks))
	for _, task := range tasks {
		byCode[task.Code] = task
	}
	var dirty []*model.Task
	for _, r := range outcome.Results {
		task, ok := byCode[r.Code]
		if !ok {
			continue
		}
		switch r.Status {
		case schedule.StatusRecomputed:
			task.Start = r.Start
			task.End = r.End
			task.Duration = 0 // dates are now authoritative
			dirty = append(dirty, task)
		case schedule.StatusConflicted:
			if task.Status.CanTransition(model.StatusBlocked) {
				task.Status = model.StatusBlocked
				dirty = append(dirty, task)
			}
		}
	}
	if len(dirty) == 0 {
		return nil
	}
	return t.store.SaveTasks(company, dirty)
}

// Link records a dependency between two tasks of the same project. The edge
// is rejected when either endpoint is missing, when it duplicates an
// existing edge, or when it would close a cycle; rejection leaves the stored
// links untouched.
func (t *Tracker) Link(ctx context.Context, company, project, from, to string, typ schedule.DependencyType, lag int) (model.DependencyLink, error) {
	if !typ.Valid() {
		return model.DependencyLink{}, fmt.Errorf("unknown dependency type %q", typ)
	}

	g, _, err := t.BuildGraph(company, project)
	if err != nil {
		return model.DependencyLink{}, err
	}
	if g.HasDependency(from, to) {
		return model.DependencyLink{}, fmt.Errorf("dependency %s -> %s already exists", from, to)
	}
	link := model.DependencyLink{
		ID:   ids.NewDependencyID(),
		From: from,
		To:   to,
		Type: string(typ),
		Lag:  lag,
	}
	if err := g.AddDependency(schedule.Dependency{
		ID:   link.ID,
		From: link.From,
		To:   link.To,
		Type: typ,
		Lag:  lag,
	}); err != nil {
		return model.DependencyLink{}, err
	}
	if cycles := schedule.DetectCycles(g); len(cycles) > 0 {
		return model.DependencyLink{}, fmt.Errorf("dependency %s -> %s would create a cycle: %v", from, to, cycles[0].Path)
	}

	links, err := t.store.LoadDependencies(company, project)
	if err != nil {
		return model.DependencyLink{}, err
	}
	links = append(links, link)
	if err := t.store.SaveDependencies(company, project, links); err != nil {
		return model.DependencyLink{}, err
	}
	t.log.Info("linked tasks", "project", project, "from", from, "to", to, "type", typ, "lag", lag)
	return link, nil
}

// Unlink removes a stored dependency. Removing an absent edge is an error
// so typos surface instead of silently succeeding.
func (t *Tracker) Unlink(ctx context.Context, company, project, from, to string) error {
	links, err := t.store.LoadDependencies(company, project)
	if err != nil {
		return err
	}
	kept := links[:0]
	removed := 0
	for _, l := range links {
		if l.From == from && l.To == to {
			removed++
			if t.cache != nil {
				t.cache.InvalidateDependency(l.ID)
			}
			continue
		}
		kept = append(kept, l)
	}
	if removed == 0 {
		return fmt.Errorf("no dependency %s -> %s in project %s", from, to, project)
	}
	if err := t.store.SaveDependencies(company, project, kept); err != nil {
		return err
	}
	t.log.Info("unlinked tasks", "project", project, "from", from, "to", to)
	return nil
}

// CreateTask validates and persists a new task.
func (t *Tracker) CreateTask(company string, task *model.Task) error {
	if task.Status == "" {
		task.Status = model.StatusToDo
	}
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}
	if err := task.Validate(); err != nil {
		return err
	}
	existing, err := t.store.LoadTasks(company, task.ProjectCode)
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e.Code == task.Code {
			return fmt.Errorf("task %s already exists in project %s", task.Code, task.ProjectCode)
		}
	}
	return t.store.SaveTask(company, task)
}
