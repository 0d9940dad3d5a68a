package schedule

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// TracerName is the instrumentation scope for engine spans.
const TracerName = "github.com/flaviogranato/tasktaskrevolution/internal/schedule"

// ResultStatus describes what the engine did to one task.
type ResultStatus string

const (
	// StatusUnchanged: no incoming constraint moved the task's dates.
	StatusUnchanged ResultStatus = "unchanged"
	// StatusRecomputed: the task's dates were updated from its constraints.
	StatusRecomputed ResultStatus = "recomputed"
	// StatusConflicted: a constraint could not be applied; dates preserved.
	StatusConflicted ResultStatus = "conflicted"
)

// CalculationResult records the before/after dates of one task.
type CalculationResult struct {
	Code          string
	PreviousStart time.Time
	PreviousEnd   time.Time
	Start         time.Time
	End           time.Time
	Status        ResultStatus
}

// Violation is a date constraint that could not be satisfied. It is report
// data, not an error: the caller chooses strict-abort or warn-and-continue.
type Violation struct {
	Task     string
	Rule     string
	Required time.Time
	Actual   time.Time
}

// Outcome is what one engine pass produced: per-task results in processing
// order plus every violation in emission order.
type Outcome struct {
	Results    []CalculationResult
	Violations []Violation
}

// Result returns the calculation result for a task code, if present.
func (o *Outcome) Result(code string) (CalculationResult, bool) {
	for _, r := range o.Results {
		if r.Code == code {
			return r, true
		}
	}
	return CalculationResult{}, false
}

// Conflicted returns the codes of tasks that ended up conflicted.
func (o *Outcome) Conflicted() []string {
	var codes []string
	for _, r := range o.Results {
		if r.Status == StatusConflicted {
			codes = append(codes, r.Code)
		}
	}
	return codes
}

// Engine walks a dependency graph in topological order and computes each
// task's minimally-feasible dates from its incoming constraints.
//
// Precondition: the graph is acyclic. Run DetectCycles first; the engine
// does not re-check and its output on a cyclic graph is undefined (nodes on
// or downstream of a cycle are silently skipped).
type Engine struct {
	cache *Cache
}

// NewEngine returns an engine without a calculation cache.
func NewEngine() *Engine { return &Engine{} }

// NewEngineWithCache returns an engine that memoizes per-task calculations.
func NewEngineWithCache(c *Cache) *Engine { return &Engine{cache: c} }

// RecomputeAll processes every task in topological order, mutating node
// dates in place, and returns the full outcome.
func (e *Engine) RecomputeAll(ctx context.Context, g *Graph) *Outcome {
	_, span := otel.Tracer(TracerName).Start(ctx, "schedule.RecomputeAll")
	defer span.End()
	span.SetAttributes(
		attribute.Int("graph.tasks", g.Len()),
		attribute.Int("graph.edges", g.EdgeCount()),
	)

	out := e.walk(g, TopoOrder(g), nil)
	span.SetAttributes(attribute.Int("schedule.violations", len(out.Violations)))
	return out
}

// TopoOrder returns a deterministic topological order via Kahn's algorithm:
// layers of zero-indegree nodes peeled off in task-insertion order. On a
// cyclic graph the order is truncated to the acyclic prefix.
func TopoOrder(g *Graph) []string {
	var order []string
	for _, layer := range Layers(g) {
		order = append(order, layer...)
	}
	return order
}

// Layers groups tasks by topological depth: every node in layer i has all
// its predecessors in layers < i. Nodes within a layer share no edges, so a
// layer may be computed concurrently.
func Layers(g *Graph) [][]string {
	indegree := make(map[string]int, g.Len())
	for _, code := range g.order {
		indegree[code] = len(g.pred[code])
	}

	ready := make([]string, 0, g.Len())
	for _, code := range g.order {
		if indegree[code] == 0 {
			ready = append(ready, code)
		}
	}

	var layers [][]string
	for len(ready) > 0 {
		layers = append(layers, ready)
		var next []string
		for _, code := range ready {
			for _, edge := range g.succ[code] {
				indegree[edge.To]--
				if indegree[edge.To] == 0 {
					next = append(next, edge.To)
				}
			}
		}
		ready = next
	}
	return layers
}

// walk runs the engine over the given order. When scope is non-nil only
// tasks in scope are recomputed; everything else keeps its stored dates and
// serves as fixed input.
func (e *Engine) walk(g *Graph, order []string, scope map[string]bool) *Outcome {
	out := &Outcome{}
	for _, code := range order {
		if scope != nil && !scope[code] {
			continue
		}
		ev := e.evaluate(g, code)
		e.apply(g, ev, out)
	}
	return out
}

// evaluation is the read-only part of processing one node, separated from
// apply so independent nodes of one layer can be evaluated concurrently.
type evaluation struct {
	result     CalculationResult
	violations []Violation
	mutate     bool
}

func (e *Engine) evaluate(g *Graph, code string) evaluation {
	node := g.nodes[code]

	var key CacheKey
	if e.cache != nil {
		key = e.cacheKey(g, node)
		if cached, ok := e.cache.Get(key); ok {
			return cached
		}
	}

	ev := e.compute(g, node)

	if e.cache != nil {
		depIDs := make([]string, 0, len(g.pred[code]))
		for _, edge := range g.pred[code] {
			depIDs = append(depIDs, edge.ID)
		}
		e.cache.Put(key, ev, depIDs)
	}
	return ev
}

func (e *Engine) compute(g *Graph, node *TaskNode) evaluation {
	res := CalculationResult{
		Code:          node.Code,
		PreviousStart: node.Start,
		PreviousEnd:   node.End,
		Start:         node.Start,
		End:           node.End,
		Status:        StatusUnchanged,
	}
	ev := evaluation{result: res}

	// Aggregate incoming constraints. Same-kind bounds combine by max: the
	// tightest bound wins, dependencies only push dates later.
	var minStart, minEnd time.Time
	overflowed := false
	for _, edge := range g.pred[node.Code] {
		pred := g.nodes[edge.From]

		var base time.Time
		var offset int
		var isStart bool
		switch edge.Type {
		case FinishToStart:
			base, offset, isStart = pred.End, edge.Lag+1, true
		case StartToStart:
			base, offset, isStart = pred.Start, edge.Lag, true
		case FinishToFinish:
			base, offset, isStart = pred.End, edge.Lag, false
		case StartToFinish:
			base, offset, isStart = pred.Start, edge.Lag, false
		}
		if base.IsZero() {
			// Predecessor carries no date for this constraint kind; there is
			// nothing to propagate along this edge.
			continue
		}

		bound, ok := addDays(base, offset)
		if !ok {
			overflowed = true
			ev.violations = append(ev.violations, Violation{
				Task: node.Code,
				Rule: fmt.Sprintf("date overflow applying %s%+d from %s", edge.Type, edge.Lag, edge.From),
			})
			continue
		}
		if isStart {
			if minStart.IsZero() || bound.After(minStart) {
				minStart = bound
			}
		} else {
			if minEnd.IsZero() || bound.After(minEnd) {
				minEnd = bound
			}
		}
	}

	if overflowed {
		// Partial-failure isolation: this node fails, the rest of the graph
		// still computes against its preserved dates.
		ev.result.Status = StatusConflicted
		return ev
	}
	if minStart.IsZero() && minEnd.IsZero() {
		return ev
	}

	if node.Fixed {
		return fixedEvaluation(ev, node, minStart, minEnd)
	}

	newStart, newEnd, ok := resolveDates(node, minStart, minEnd)
	if !ok {
		ev.result.Status = StatusConflicted
		ev.violations = append(ev.violations, Violation{
			Task: node.Code,
			Rule: "date overflow extending task to its duration",
		})
		return ev
	}
	if newStart.Equal(node.Start) && newEnd.Equal(node.End) {
		return ev
	}
	ev.result.Start = newStart
	ev.result.End = newEnd
	ev.result.Status = StatusRecomputed
	ev.mutate = true
	return ev
}

// fixedEvaluation checks computed bounds against a fixed task's
// authoritative dates. Bounds tighter than the fixed dates become
// violations; the task's own dates are never overwritten.
func fixedEvaluation(ev evaluation, node *TaskNode, minStart, minEnd time.Time) evaluation {
	if !minStart.IsZero() && (node.Start.IsZero() || minStart.After(node.Start)) {
		ev.violations = append(ev.violations, Violation{
			Task:     node.Code,
			Rule:     fmt.Sprintf("fixed task start %s violates required start >= %s", formatDay(node.Start), formatDay(minStart)),
			Required: minStart,
			Actual:   node.Start,
		})
	}
	if !minEnd.IsZero() && (node.End.IsZero() || minEnd.After(node.End)) {
		ev.violations = append(ev.violations, Violation{
			Task:     node.Code,
			Rule:     fmt.Sprintf("fixed task end %s violates required end >= %s", formatDay(node.End), formatDay(minEnd)),
			Required: minEnd,
			Actual:   node.End,
		})
	}
	if len(ev.violations) > 0 {
		ev.result.Status = StatusConflicted
	}
	return ev
}

// resolveDates turns aggregated bounds into concrete dates, preserving the
// task's duration when only one side was constrained.
func resolveDates(node *TaskNode, minStart, minEnd time.Time) (start, end time.Time, ok bool) {
	duration := node.ResolvedDuration()
	switch {
	case !minStart.IsZero() && minEnd.IsZero():
		end, ok = addDays(minStart, duration-1)
		return minStart, end, ok
	case minStart.IsZero() && !minEnd.IsZero():
		start, ok = addDays(minEnd, -(duration - 1))
		return start, minEnd, ok
	default:
		end, ok = addDays(minStart, duration-1)
		if !ok {
			return time.Time{}, time.Time{}, false
		}
		if minEnd.After(end) {
			end = minEnd
		}
		return minStart, end, true
	}
}

// apply commits an evaluation: mutates the node when needed and appends the
// result and violations to the outcome.
func (e *Engine) apply(g *Graph, ev evaluation, out *Outcome) {
	if ev.mutate {
		node := g.nodes[ev.result.Code]
		node.Start = ev.result.Start
		node.End = ev.result.End
	}
	out.Results = append(out.Results, ev.result)
	out.Violations = append(out.Violations, ev.violations...)
}

// cacheKey fingerprints everything a node's evaluation depends on: its own
// stored facts and every incoming edge with the predecessor dates behind it.
func (e *Engine) cacheKey(g *Graph, node *TaskNode) CacheKey {
	return CacheKey{
		Task:        node.Code,
		Fingerprint: fingerprintNode(g, node),
	}
}
