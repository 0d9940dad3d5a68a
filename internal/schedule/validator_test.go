package schedule

import (
	"context"
	"strings"
	"testing"
)

func validate(t *testing.T, g *Graph) *ConflictReport {
	t.Helper()
	return NewValidator(NewEngine()).Validate(context.Background(), g)
}

func TestValidateCleanGraph(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, task("A", Day(2025, 1, 1), Day(2025, 1, 5)))
	mustAdd(t, g, TaskNode{Code: "B", Duration: 2})
	mustLink(t, g, Dependency{From: "A", To: "B", Type: FinishToStart})

	report := validate(t, g)
	if !report.Clean() {
		t.Fatalf("expected clean report, got %s", report.Summary())
	}
}

func TestValidateCycleFailsFast(t *testing.T) {
	// Date calculation is meaningless on a cyclic graph: the report carries
	// only the cycles, no violations.
	g := NewGraph()
	mustAdd(t, g, TaskNode{Code: "A", Start: Day(2025, 2, 5), End: Day(2025, 2, 6), Fixed: true})
	mustAdd(t, g, task("B", Day(2025, 1, 1), Day(2025, 1, 2)))
	mustLink(t, g, Dependency{From: "A", To: "B", Type: FinishToStart})
	mustLink(t, g, Dependency{From: "B", To: "A", Type: FinishToStart})

	report := validate(t, g)
	if len(report.Cycles) != 1 {
		t.Fatalf("cycles = %d, want 1", len(report.Cycles))
	}
	if len(report.Violations) != 0 {
		t.Errorf("violations = %v, want none on a cyclic graph", report.Violations)
	}
}

func TestValidateDryRunDoesNotMutate(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, task("A", Day(2025, 1, 1), Day(2025, 1, 5)))
	mustAdd(t, g, task("B", Day(2025, 1, 2), Day(2025, 1, 3)))
	mustLink(t, g, Dependency{From: "A", To: "B", Type: FinishToStart})

	validate(t, g)

	// B would be pushed to 2025-01-06 by a real recompute.
	wantDates(t, g, "B", Day(2025, 1, 2), Day(2025, 1, 3))
}

func TestValidateCollectsViolations(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, task("A", Day(2025, 2, 3), Day(2025, 2, 10)))
	mustAdd(t, g, TaskNode{Code: "C", Start: Day(2025, 2, 1), End: Day(2025, 2, 5), Fixed: true})
	mustLink(t, g, Dependency{From: "A", To: "C", Type: StartToStart})

	report := validate(t, g)
	if len(report.Violations) != 1 {
		t.Fatalf("violations = %d, want 1", len(report.Violations))
	}
	if !strings.Contains(report.Summary(), "C") {
		t.Errorf("summary does not name the task: %s", report.Summary())
	}
}

func TestValidateAfterRemovingClosingEdge(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, task("A", Day(2025, 1, 1), Day(2025, 1, 2)))
	mustAdd(t, g, TaskNode{Code: "B", Duration: 1})
	mustLink(t, g, Dependency{From: "A", To: "B", Type: FinishToStart})
	mustLink(t, g, Dependency{From: "B", To: "A", Type: FinishToStart})

	if report := validate(t, g); len(report.Cycles) == 0 {
		t.Fatal("expected a cycle before removal")
	}

	g.RemoveDependency("B", "A")

	if report := validate(t, g); len(report.Cycles) != 0 {
		t.Fatalf("cycles remain after removing closing edge: %s", report.Summary())
	}
}
