package schedule

import (
	"context"
	"fmt"
	"testing"
)

// wideGraph builds a root feeding n parallel branches that all join at a
// sink, with varying durations and lags so branch results differ.
func wideGraph(t *testing.T, n int) *Graph {
	t.Helper()
	g := NewGraph()
	mustAdd(t, g, task("root", Day(2025, 1, 1), Day(2025, 1, 3)))
	for i := 0; i < n; i++ {
		code := fmt.Sprintf("branch-%02d", i)
		mustAdd(t, g, TaskNode{Code: code, Duration: 1 + i%5})
		mustLink(t, g, Dependency{From: "root", To: code, Type: FinishToStart, Lag: i % 3})
	}
	mustAdd(t, g, TaskNode{Code: "sink", Duration: 2})
	for i := 0; i < n; i++ {
		mustLink(t, g, Dependency{From: fmt.Sprintf("branch-%02d", i), To: "sink", Type: FinishToStart})
	}
	return g
}

func TestParallelMatchesSequential(t *testing.T) {
	ctx := context.Background()

	seq := wideGraph(t, 20)
	seqOut := NewEngine().RecomputeAll(ctx, seq)

	par := wideGraph(t, 20)
	parOut, err := NewEngine().RecomputeAllParallel(ctx, par, 4)
	if err != nil {
		t.Fatalf("RecomputeAllParallel: %v", err)
	}

	if len(parOut.Results) != len(seqOut.Results) {
		t.Fatalf("result count %d != %d", len(parOut.Results), len(seqOut.Results))
	}
	for i := range seqOut.Results {
		s, p := seqOut.Results[i], parOut.Results[i]
		if s.Code != p.Code || s.Status != p.Status || !s.Start.Equal(p.Start) || !s.End.Equal(p.End) {
			t.Errorf("result %d diverged: %+v vs %+v", i, s, p)
		}
	}
	for _, node := range seq.Tasks() {
		other, _ := par.Task(node.Code)
		if !node.Start.Equal(other.Start) || !node.End.Equal(other.End) {
			t.Errorf("%s dates diverged", node.Code)
		}
	}
}

func TestParallelSingleWorker(t *testing.T) {
	g := wideGraph(t, 8)
	if _, err := NewEngine().RecomputeAllParallel(context.Background(), g, 0); err != nil {
		t.Fatalf("worker floor: %v", err)
	}
}

func TestParallelCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := wideGraph(t, 50)
	if _, err := NewEngine().RecomputeAllParallel(ctx, g, 4); err == nil {
		t.Fatal("expected cancellation error")
	}
}
