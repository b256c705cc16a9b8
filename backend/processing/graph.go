package processing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/giobale/dog-breed-explorer/internal/warehouse"
)

var (
	// ErrCycle is returned when the model dependencies are not a DAG.
	ErrCycle = errors.New("model graph contains a cycle")
	// ErrUnknownModel is returned for a reference to a model that is not registered.
	ErrUnknownModel = errors.New("unknown model")
)

// Relation is the output of a transform.
type Relation interface {
	Len() int
}

// TableRelation is a Relation that can be written to the warehouse.
type TableRelation interface {
	Relation
	Values() [][]any
}

// Transform is one named step of the model graph.
type Transform interface {
	Name() string
	Inputs() []string
	Apply(ctx context.Context, rc *RunContext) (Relation, error)
}

// TableTransform is a Transform whose output has a fixed warehouse schema.
type TableTransform interface {
	Transform
	Columns() []warehouse.Column
}

// RawSource reads the raw breed table.
type RawSource interface {
	ScanRaw(ctx context.Context) ([]warehouse.RawRow, error)
}

// RunContext carries the evaluation time, the raw source and upstream outputs through one evaluation.
type RunContext struct {
	Now time.Time
	Raw RawSource
	Log *zap.Logger

	outputs map[string]Relation
}

// NewRunContext returns an empty context evaluated at now.
func NewRunContext(now time.Time, raw RawSource, log *zap.Logger) *RunContext {
	return &RunContext{Now: now, Raw: raw, Log: log, outputs: make(map[string]Relation)}
}

// Set records the output of a model.
func (rc *RunContext) Set(name string, rel Relation) { rc.outputs[name] = rel }

// Output returns the recorded output of a model.
func (rc *RunContext) Output(name string) (Relation, bool) {
	rel, ok := rc.outputs[name]
	return rel, ok
}

// Input returns the output of an upstream model as T.
func Input[T Relation](rc *RunContext, name string) (T, error) {
	var zero T
	rel, ok := rc.outputs[name]
	if !ok {
		return zero, fmt.Errorf("%w: input %s has not been evaluated", ErrUnknownModel, name)
	}
	typed, ok := rel.(T)
	if !ok {
		return zero, fmt.Errorf("input %s is %T, want %T", name, rel, zero)
	}
	return typed, nil
}

// Graph is a set of transforms linked by their inputs.
type Graph struct {
	transforms map[string]Transform
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{transforms: make(map[string]Transform)}
}

// Add registers a transform. Names must be unique.
func (g *Graph) Add(t Transform) error {
	if t.Name() == "" {
		return fmt.Errorf("transform name cannot be empty")
	}
	if _, exists := g.transforms[t.Name()]; exists {
		return fmt.Errorf("transform %s already registered", t.Name())
	}
	g.transforms[t.Name()] = t
	return nil
}

// Get returns a transform by name.
func (g *Graph) Get(name string) (Transform, bool) {
	t, ok := g.transforms[name]
	return t, ok
}

// Names returns every registered name, sorted.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.transforms))
	for name := range g.transforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Order returns the transforms leaves first. Ties are broken by name so the order is stable.
func (g *Graph) Order() ([]Transform, error) {
	inDegree := make(map[string]int, len(g.transforms))
	dependants := make(map[string][]string, len(g.transforms))
	for name, t := range g.transforms {
		inDegree[name] += 0
		for _, in := range t.Inputs() {
			if _, ok := g.transforms[in]; !ok {
				return nil, fmt.Errorf("%w: %s (input of %s)", ErrUnknownModel, in, name)
			}
			inDegree[name]++
			dependants[in] = append(dependants[in], name)
		}
	}

	var ready []string
	for name, d := range inDegree {
		if d == 0 {
			ready = append(ready, name)
		}
	}

	order := make([]Transform, 0, len(g.transforms))
	for len(ready) > 0 {
		sort.Strings(ready)
		name := ready[0]
		ready = ready[1:]
		order = append(order, g.transforms[name])
		for _, dep := range dependants[name] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) != len(g.transforms) {
		var stuck []string
		for name, d := range inDegree {
			if d > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("%w: %s", ErrCycle, strings.Join(stuck, ", "))
	}
	return order, nil
}
