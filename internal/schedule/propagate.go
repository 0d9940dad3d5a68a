package schedule

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// RecomputeFrom recomputes only the downstream closure of one externally
// edited task: every descendant reachable over successor edges, walked in
// topological order, with the rest of the graph's stored dates (including
// the edited task's own) as fixed inputs.
//
// For any acyclic graph this produces results identical to RecomputeAll
// restricted to those descendants; it exists to avoid O(n) work on large
// graphs for single-task edits. The edited task itself is not recomputed.
func (e *Engine) RecomputeFrom(ctx context.Context, g *Graph, code string) (*Outcome, error) {
	if _, ok := g.nodes[code]; !ok {
		return nil, &UnknownTaskReferenceError{From: code, To: code, Missing: code}
	}

	_, span := otel.Tracer(TracerName).Start(ctx, "schedule.RecomputeFrom")
	defer span.End()

	closure := Descendants(g, code)
	span.SetAttributes(
		attribute.String("schedule.root", code),
		attribute.Int("schedule.closure", len(closure)),
	)
	if len(closure) == 0 {
		return &Outcome{}, nil
	}
	return e.walk(g, TopoOrder(g), closure), nil
}

// Descendants returns the forward-reachable set of a task, excluding the
// task itself. BFS over successor edges with visited-set deduping.
func Descendants(g *Graph, code string) map[string]bool {
	seen := map[string]bool{code: true}
	reached := make(map[string]bool)
	queue := []string{code}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, edge := range g.succ[current] {
			if seen[edge.To] {
				continue
			}
			seen[edge.To] = true
			reached[edge.To] = true
			queue = append(queue, edge.To)
		}
	}
	return reached
}
