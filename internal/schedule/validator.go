package schedule

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ConflictReport is the structured diagnostics of one validation pass:
// cycles first, then date constraint violations, each category in the
// detector's emission order.
type ConflictReport struct {
	Cycles     []Cycle
	Violations []Violation
}

// Clean reports whether the graph validated without findings.
func (r *ConflictReport) Clean() bool {
	return len(r.Cycles) == 0 && len(r.Violations) == 0
}

// Summary renders the report one finding per line.
func (r *ConflictReport) Summary() string {
	if r.Clean() {
		return "no conflicts"
	}
	var b strings.Builder
	for _, c := range r.Cycles {
		fmt.Fprintf(&b, "cycle: %s\n", strings.Join(c.Path, " -> "))
	}
	for _, v := range r.Violations {
		fmt.Fprintf(&b, "violation: %s: %s\n", v.Task, v.Rule)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Validator orchestrates cycle detection and a dry-run date calculation.
type Validator struct {
	engine *Engine
}

// NewValidator builds a validator around the given engine.
func NewValidator(engine *Engine) *Validator {
	return &Validator{engine: engine}
}

// Validate checks the graph. Any cycle short-circuits the pass: date
// calculation is meaningless on a cyclic graph, so the report then carries
// cycles only. Otherwise the engine runs against a scratch copy and every
// violation it emits is collected. The caller's graph is never mutated.
func (v *Validator) Validate(ctx context.Context, g *Graph) *ConflictReport {
	ctx, span := otel.Tracer(TracerName).Start(ctx, "schedule.Validate")
	defer span.End()

	if cycles := DetectCycles(g); len(cycles) > 0 {
		span.SetAttributes(attribute.Int("schedule.cycles", len(cycles)))
		return &ConflictReport{Cycles: cycles}
	}

	out := v.engine.RecomputeAll(ctx, g.Clone())
	span.SetAttributes(attribute.Int("schedule.violations", len(out.Violations)))
	return &ConflictReport{Violations: out.Violations}
}
