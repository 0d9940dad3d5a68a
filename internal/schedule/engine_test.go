package schedule

import (
	"context"
	"testing"
	"time"
)

func recompute(t *testing.T, g *Graph) *Outcome {
	t.Helper()
	return NewEngine().RecomputeAll(context.Background(), g)
}

func wantDates(t *testing.T, g *Graph, code string, start, end time.Time) {
	t.Helper()
	node, ok := g.Task(code)
	if !ok {
		t.Fatalf("task %s not in graph", code)
	}
	if !node.Start.Equal(start) || !node.End.Equal(end) {
		t.Errorf("%s = %s..%s, want %s..%s",
			code, formatDay(node.Start), formatDay(node.End), formatDay(start), formatDay(end))
	}
}

func TestFinishToStartWithLag(t *testing.T) {
	// A ends 2025-01-05; FS with lag 1 pushes B to start at 2025-01-07
	// (one day gap after the finish plus one day of lag).
	g := NewGraph()
	mustAdd(t, g, task("A", Day(2025, 1, 1), Day(2025, 1, 5)))
	mustAdd(t, g, TaskNode{Code: "B", Start: Day(2025, 1, 1), End: Day(2025, 1, 3)})
	mustLink(t, g, Dependency{From: "A", To: "B", Type: FinishToStart, Lag: 1})

	out := recompute(t, g)

	wantDates(t, g, "B", Day(2025, 1, 7), Day(2025, 1, 9))
	res, _ := out.Result("B")
	if res.Status != StatusRecomputed {
		t.Errorf("B status = %s, want recomputed", res.Status)
	}
	if !res.PreviousStart.Equal(Day(2025, 1, 1)) {
		t.Errorf("B previous start = %s", formatDay(res.PreviousStart))
	}
}

func TestDependencyKinds(t *testing.T) {
	predStart := Day(2025, 3, 10)
	predEnd := Day(2025, 3, 14)

	tests := []struct {
		name      string
		dep       DependencyType
		lag       int
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"FS no lag", FinishToStart, 0, Day(2025, 3, 15), Day(2025, 3, 17)},
		{"FS lead", FinishToStart, -2, Day(2025, 3, 13), Day(2025, 3, 15)},
		{"SS lag", StartToStart, 3, Day(2025, 3, 13), Day(2025, 3, 15)},
		{"FF lag", FinishToFinish, 2, Day(2025, 3, 14), Day(2025, 3, 16)},
		{"SF lag", StartToFinish, 4, Day(2025, 3, 12), Day(2025, 3, 14)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGraph()
			mustAdd(t, g, task("P", predStart, predEnd))
			mustAdd(t, g, TaskNode{Code: "S", Duration: 3})
			mustLink(t, g, Dependency{From: "P", To: "S", Type: tt.dep, Lag: tt.lag})

			recompute(t, g)
			wantDates(t, g, "S", tt.wantStart, tt.wantEnd)
		})
	}
}

func TestConstraintAggregationTakesMax(t *testing.T) {
	// Three FS predecessors; the latest finish wins.
	g := NewGraph()
	mustAdd(t, g, task("A", Day(2025, 1, 1), Day(2025, 1, 3)))
	mustAdd(t, g, task("B", Day(2025, 1, 1), Day(2025, 1, 10)))
	mustAdd(t, g, task("C", Day(2025, 1, 1), Day(2025, 1, 7)))
	mustAdd(t, g, TaskNode{Code: "D", Duration: 2})
	for _, from := range []string{"A", "B", "C"} {
		mustLink(t, g, Dependency{From: from, To: "D", Type: FinishToStart})
	}

	recompute(t, g)
	wantDates(t, g, "D", Day(2025, 1, 11), Day(2025, 1, 12))
}

func TestMixedStartAndEndBounds(t *testing.T) {
	// Start bound from SS, end bound from FF; the end bound is farther out
	// than start+duration so the task stretches.
	g := NewGraph()
	mustAdd(t, g, task("A", Day(2025, 2, 1), Day(2025, 2, 20)))
	mustAdd(t, g, TaskNode{Code: "B", Duration: 3})
	mustLink(t, g, Dependency{From: "A", To: "B", Type: StartToStart, Lag: 0})
	mustLink(t, g, Dependency{From: "A", To: "B", Type: FinishToFinish, Lag: 0})

	recompute(t, g)
	wantDates(t, g, "B", Day(2025, 2, 1), Day(2025, 2, 20))
}

func TestNoIncomingConstraintsUnchanged(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, task("A", Day(2025, 1, 1), Day(2025, 1, 5)))
	mustAdd(t, g, task("Lone", Day(2025, 6, 1), Day(2025, 6, 2)))

	out := recompute(t, g)

	for _, code := range []string{"A", "Lone"} {
		res, ok := out.Result(code)
		if !ok {
			t.Fatalf("no result for %s", code)
		}
		if res.Status != StatusUnchanged {
			t.Errorf("%s status = %s, want unchanged", code, res.Status)
		}
	}
	wantDates(t, g, "Lone", Day(2025, 6, 1), Day(2025, 6, 2))
}

func TestFixedTaskViolation(t *testing.T) {
	// Fixed C starts 2025-02-01 but an SS edge demands start >= 2025-02-03:
	// dates preserved, status conflicted, exactly one violation.
	g := NewGraph()
	mustAdd(t, g, task("A", Day(2025, 2, 3), Day(2025, 2, 10)))
	mustAdd(t, g, TaskNode{Code: "C", Start: Day(2025, 2, 1), End: Day(2025, 2, 5), Fixed: true})
	mustLink(t, g, Dependency{From: "A", To: "C", Type: StartToStart})

	out := recompute(t, g)

	wantDates(t, g, "C", Day(2025, 2, 1), Day(2025, 2, 5))
	res, _ := out.Result("C")
	if res.Status != StatusConflicted {
		t.Errorf("C status = %s, want conflicted", res.Status)
	}
	if len(out.Violations) != 1 {
		t.Fatalf("violations = %d, want 1", len(out.Violations))
	}
	v := out.Violations[0]
	if v.Task != "C" || !v.Required.Equal(Day(2025, 2, 3)) || !v.Actual.Equal(Day(2025, 2, 1)) {
		t.Errorf("violation = %+v", v)
	}
}

func TestFixedTaskSatisfiedUnchanged(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, task("A", Day(2025, 2, 1), Day(2025, 2, 2)))
	mustAdd(t, g, TaskNode{Code: "C", Start: Day(2025, 2, 10), End: Day(2025, 2, 12), Fixed: true})
	mustLink(t, g, Dependency{From: "A", To: "C", Type: FinishToStart})

	out := recompute(t, g)

	res, _ := out.Result("C")
	if res.Status != StatusUnchanged {
		t.Errorf("C status = %s, want unchanged", res.Status)
	}
	if len(out.Violations) != 0 {
		t.Errorf("violations = %v, want none", out.Violations)
	}
}

func TestDateOverflowIsolation(t *testing.T) {
	// The lag pushes B past the representable range: B conflicts, C behind
	// an independent chain still computes.
	g := NewGraph()
	mustAdd(t, g, task("A", Day(9999, 12, 1), Day(9999, 12, 20)))
	mustAdd(t, g, TaskNode{Code: "B", Duration: 2})
	mustAdd(t, g, task("D", Day(2025, 1, 1), Day(2025, 1, 2)))
	mustAdd(t, g, TaskNode{Code: "C", Duration: 1})
	mustLink(t, g, Dependency{From: "A", To: "B", Type: FinishToStart, Lag: 365})
	mustLink(t, g, Dependency{From: "D", To: "C", Type: FinishToStart})

	out := recompute(t, g)

	res, _ := out.Result("B")
	if res.Status != StatusConflicted {
		t.Errorf("B status = %s, want conflicted", res.Status)
	}
	if node, _ := g.Task("B"); !node.Start.IsZero() {
		t.Error("overflowed node dates were mutated")
	}
	wantDates(t, g, "C", Day(2025, 1, 3), Day(2025, 1, 3))
}

func TestRecomputeIdempotent(t *testing.T) {
	build := func() *Graph {
		g := NewGraph()
		mustAdd(t, g, task("A", Day(2025, 1, 1), Day(2025, 1, 5)))
		mustAdd(t, g, TaskNode{Code: "B", Duration: 4})
		mustAdd(t, g, TaskNode{Code: "C", Duration: 2})
		mustLink(t, g, Dependency{From: "A", To: "B", Type: FinishToStart, Lag: 1})
		mustLink(t, g, Dependency{From: "B", To: "C", Type: StartToStart, Lag: 2})
		return g
	}

	g := build()
	recompute(t, g)
	second := recompute(t, g)

	for _, res := range second.Results {
		if res.Status != StatusUnchanged {
			t.Errorf("second pass: %s status = %s, want unchanged", res.Code, res.Status)
		}
	}
}

func TestDeterministicAcrossInsertionPermutations(t *testing.T) {
	// Same edge set, different task/edge insertion orders: identical dates.
	type arrangement struct {
		codes []string
		deps  []Dependency
	}
	base := arrangement{
		codes: []string{"A", "B", "C", "D"},
		deps: []Dependency{
			{From: "A", To: "C", Type: FinishToStart, Lag: 1},
			{From: "B", To: "C", Type: FinishToStart},
			{From: "C", To: "D", Type: StartToStart, Lag: 3},
		},
	}
	permuted := arrangement{
		codes: []string{"D", "C", "B", "A"},
		deps: []Dependency{
			{From: "C", To: "D", Type: StartToStart, Lag: 3},
			{From: "B", To: "C", Type: FinishToStart},
			{From: "A", To: "C", Type: FinishToStart, Lag: 1},
		},
	}

	run := func(s arrangement) *Graph {
		g := NewGraph()
		starts := map[string]TaskNode{
			"A": task("A", Day(2025, 1, 1), Day(2025, 1, 4)),
			"B": task("B", Day(2025, 1, 2), Day(2025, 1, 8)),
			"C": {Code: "C", Duration: 5},
			"D": {Code: "D", Duration: 2},
		}
		for _, code := range s.codes {
			mustAdd(t, g, starts[code])
		}
		for _, d := range s.deps {
			mustLink(t, g, d)
		}
		recompute(t, g)
		return g
	}

	first := run(base)
	second := run(permuted)
	for _, code := range base.codes {
		a, _ := first.Task(code)
		b, _ := second.Task(code)
		if !a.Start.Equal(b.Start) || !a.End.Equal(b.End) {
			t.Errorf("%s diverged: %s..%s vs %s..%s", code,
				formatDay(a.Start), formatDay(a.End), formatDay(b.Start), formatDay(b.End))
		}
	}
}

func TestResultsInTopologicalOrder(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, TaskNode{Code: "C", Duration: 1})
	mustAdd(t, g, TaskNode{Code: "B", Duration: 1})
	mustAdd(t, g, task("A", Day(2025, 1, 1), Day(2025, 1, 2)))
	mustLink(t, g, Dependency{From: "A", To: "B", Type: FinishToStart})
	mustLink(t, g, Dependency{From: "B", To: "C", Type: FinishToStart})

	out := recompute(t, g)

	pos := make(map[string]int)
	for i, res := range out.Results {
		pos[res.Code] = i
	}
	if !(pos["A"] < pos["B"] && pos["B"] < pos["C"]) {
		t.Errorf("results out of topological order: %v", pos)
	}
}
