package schedule

import (
	"context"
	"errors"
	"testing"
)

// chainGraph builds A -> B -> C -> D plus an unrelated X.
func chainGraph(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph()
	mustAdd(t, g, task("A", Day(2025, 1, 1), Day(2025, 1, 5)))
	mustAdd(t, g, TaskNode{Code: "B", Duration: 3})
	mustAdd(t, g, TaskNode{Code: "C", Duration: 2})
	mustAdd(t, g, TaskNode{Code: "D", Duration: 4})
	mustAdd(t, g, task("X", Day(2025, 6, 1), Day(2025, 6, 3)))
	mustLink(t, g, Dependency{From: "A", To: "B", Type: FinishToStart})
	mustLink(t, g, Dependency{From: "B", To: "C", Type: FinishToStart, Lag: 1})
	mustLink(t, g, Dependency{From: "C", To: "D", Type: StartToStart})
	return g
}

func TestDescendants(t *testing.T) {
	g := chainGraph(t)

	got := Descendants(g, "B")
	want := map[string]bool{"C": true, "D": true}
	if len(got) != len(want) {
		t.Fatalf("Descendants(B) = %v, want %v", got, want)
	}
	for code := range want {
		if !got[code] {
			t.Errorf("Descendants(B) missing %s", code)
		}
	}
	if got["B"] || got["A"] || got["X"] {
		t.Errorf("Descendants(B) contains non-descendants: %v", got)
	}
}

func TestRecomputeFromMatchesFullRecompute(t *testing.T) {
	ctx := context.Background()

	// Full recompute on one copy.
	full := chainGraph(t)
	node, _ := full.Task("A")
	node.Start, node.End = Day(2025, 2, 1), Day(2025, 2, 7)
	NewEngine().RecomputeAll(ctx, full)

	// Incremental recompute from the edited task on another.
	inc := chainGraph(t)
	NewEngine().RecomputeAll(ctx, inc) // settle baseline dates
	node, _ = inc.Task("A")
	node.Start, node.End = Day(2025, 2, 1), Day(2025, 2, 7)
	out, err := NewEngine().RecomputeFrom(ctx, inc, "A")
	if err != nil {
		t.Fatalf("RecomputeFrom: %v", err)
	}

	for code := range Descendants(inc, "A") {
		f, _ := full.Task(code)
		i, _ := inc.Task(code)
		if !f.Start.Equal(i.Start) || !f.End.Equal(i.End) {
			t.Errorf("%s: incremental %s..%s != full %s..%s", code,
				formatDay(i.Start), formatDay(i.End), formatDay(f.Start), formatDay(f.End))
		}
	}

	// Only descendants show up in the outcome.
	if _, ok := out.Result("X"); ok {
		t.Error("unrelated task X present in incremental outcome")
	}
	if _, ok := out.Result("A"); ok {
		t.Error("edited task itself was recomputed")
	}
}

func TestRecomputeFromLeavesUnrelatedAlone(t *testing.T) {
	g := chainGraph(t)
	_, err := NewEngine().RecomputeFrom(context.Background(), g, "A")
	if err != nil {
		t.Fatalf("RecomputeFrom: %v", err)
	}
	wantDates(t, g, "X", Day(2025, 6, 1), Day(2025, 6, 3))
}

func TestRecomputeFromUnknownTask(t *testing.T) {
	g := chainGraph(t)
	_, err := NewEngine().RecomputeFrom(context.Background(), g, "nope")
	var unknown *UnknownTaskReferenceError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownTaskReferenceError, got %v", err)
	}
}

func TestRecomputeFromLeaf(t *testing.T) {
	g := chainGraph(t)
	out, err := NewEngine().RecomputeFrom(context.Background(), g, "D")
	if err != nil {
		t.Fatalf("RecomputeFrom: %v", err)
	}
	if len(out.Results) != 0 {
		t.Errorf("leaf propagation produced %d results, want 0", len(out.Results))
	}
}
