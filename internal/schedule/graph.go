// Package schedule implements the task-dependency scheduling engine: a
// directed graph of inter-task temporal constraints with cycle detection,
// deterministic date propagation and conflict reporting.
//
// A Graph is built fresh from externally supplied task and dependency
// records, computed over once, and discarded. It is never the system of
// record; persistence of computed dates is the caller's concern.
package schedule

import "time"

// DependencyType classifies the temporal relation between two tasks.
type DependencyType string

const (
	// FinishToStart: successor may start only after predecessor finishes.
	FinishToStart DependencyType = "FS"
	// StartToStart: successor may start only after predecessor starts.
	StartToStart DependencyType = "SS"
	// FinishToFinish: successor may finish only after predecessor finishes.
	FinishToFinish DependencyType = "FF"
	// StartToFinish: successor may finish only after predecessor starts.
	StartToFinish DependencyType = "SF"
)

// Valid reports whether t is one of the four known dependency types.
func (t DependencyType) Valid() bool {
	switch t {
	case FinishToStart, StartToStart, FinishToFinish, StartToFinish:
		return true
	}
	return false
}

// Description returns the long name of the dependency type.
func (t DependencyType) Description() string {
	switch t {
	case FinishToStart:
		return "Finish to Start"
	case StartToStart:
		return "Start to Start"
	case FinishToFinish:
		return "Finish to Finish"
	case StartToFinish:
		return "Start to Finish"
	}
	return "Unknown"
}

// TaskNode holds the schedulable facts of one task. Start and End are
// inclusive calendar days at UTC midnight; the zero time means "no date".
// When Fixed is true the dates are authoritative constraints checked by the
// engine rather than outputs overwritten by it.
type TaskNode struct {
	Code     string
	Name     string
	Start    time.Time
	End      time.Time
	Duration int // days; derived from dates when both are set
	Fixed    bool
}

// ResolvedDuration returns the task duration in days: the span between Start
// and End when both are set, the declared Duration otherwise, and never less
// than one day.
func (n *TaskNode) ResolvedDuration() int {
	if !n.Start.IsZero() && !n.End.IsZero() && !n.End.Before(n.Start) {
		return daysBetween(n.Start, n.End) + 1
	}
	if n.Duration > 0 {
		return n.Duration
	}
	return 1
}

// Dependency is a directed edge from a predecessor task to a successor task.
// Lag is a signed day offset; negative values are leads allowing overlap.
type Dependency struct {
	ID   string
	From string
	To   string
	Type DependencyType
	Lag  int
}

// Graph owns a set of TaskNodes keyed by code plus the directed dependency
// edges between them. Adjacency is kept in insertion order in both
// directions so traversals are reproducible across runs given identical
// input order.
//
// The graph never auto-validates: an edge that closes a cycle is accepted by
// AddDependency so batch imports can build graphs edge-by-edge and validate
// once at the end. Callers must hold exclusive access for the duration of a
// mutation or recompute; concurrent read-only queries are safe between them.
type Graph struct {
	nodes map[string]*TaskNode
	order []string      // task insertion order
	edges []*Dependency // edge insertion order
	succ  map[string][]*Dependency
	pred  map[string][]*Dependency
}

// NewGraph returns an empty dependency graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]*TaskNode),
		succ:  make(map[string][]*Dependency),
		pred:  make(map[string][]*Dependency),
	}
}

// AddTask inserts a task node. The node is copied; later mutations of the
// argument do not affect the graph.
func (g *Graph) AddTask(n TaskNode) error {
	if _, ok := g.nodes[n.Code]; ok {
		return &DuplicateTaskError{Code: n.Code}
	}
	node := n
	g.nodes[n.Code] = &node
	g.order = append(g.order, n.Code)
	return nil
}

// AddDependency inserts a directed edge. Both endpoints must already exist
// and a task may not depend on itself. Acyclicity is not checked here.
func (g *Graph) AddDependency(d Dependency) error {
	if d.From == d.To {
		return &SelfDependencyError{Code: d.From}
	}
	if _, ok := g.nodes[d.From]; !ok {
		return &UnknownTaskReferenceError{From: d.From, To: d.To, Missing: d.From}
	}
	if _, ok := g.nodes[d.To]; !ok {
		return &UnknownTaskReferenceError{From: d.From, To: d.To, Missing: d.To}
	}
	edge := d
	g.edges = append(g.edges, &edge)
	g.succ[d.From] = append(g.succ[d.From], &edge)
	g.pred[d.To] = append(g.pred[d.To], &edge)
	return nil
}

// RemoveDependency deletes every edge from one task to another. Removing an
// absent edge is a no-op.
func (g *Graph) RemoveDependency(from, to string) {
	g.edges = dropEdges(g.edges, from, to)
	g.succ[from] = dropEdges(g.succ[from], from, to)
	g.pred[to] = dropEdges(g.pred[to], from, to)
}

func dropEdges(edges []*Dependency, from, to string) []*Dependency {
	kept := edges[:0]
	for _, e := range edges {
		if e.From != from || e.To != to {
			kept = append(kept, e)
		}
	}
	return kept
}

// Task returns the node for a code, or false if absent.
func (g *Graph) Task(code string) (*TaskNode, bool) {
	n, ok := g.nodes[code]
	return n, ok
}

// Tasks returns all nodes in insertion order.
func (g *Graph) Tasks() []*TaskNode {
	out := make([]*TaskNode, 0, len(g.order))
	for _, code := range g.order {
		out = append(out, g.nodes[code])
	}
	return out
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int { return len(g.order) }

// EdgeCount returns the number of dependency edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Dependencies returns all edges in insertion order.
func (g *Graph) Dependencies() []*Dependency {
	return append([]*Dependency(nil), g.edges...)
}

// Successors returns the outgoing edges of a task in insertion order.
func (g *Graph) Successors(code string) []*Dependency {
	return append([]*Dependency(nil), g.succ[code]...)
}

// Predecessors returns the incoming edges of a task in insertion order.
func (g *Graph) Predecessors(code string) []*Dependency {
	return append([]*Dependency(nil), g.pred[code]...)
}

// HasDependency reports whether an edge exists from one task to another.
func (g *Graph) HasDependency(from, to string) bool {
	for _, e := range g.succ[from] {
		if e.To == to {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the graph. Used for dry-run computation so
// validation never mutates caller data.
func (g *Graph) Clone() *Graph {
	c := NewGraph()
	for _, code := range g.order {
		node := *g.nodes[code]
		c.nodes[code] = &node
		c.order = append(c.order, code)
	}
	for _, e := range g.edges {
		edge := *e
		c.edges = append(c.edges, &edge)
		c.succ[edge.From] = append(c.succ[edge.From], &edge)
		c.pred[edge.To] = append(c.pred[edge.To], &edge)
	}
	return c
}
