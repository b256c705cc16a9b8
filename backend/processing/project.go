package processing

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/giobale/dog-breed-explorer/internal/warehouse"
)

//go:embed project.yaml
var defaultProjectYAML []byte

// Generic test types.
const (
	TestNotNull           = "not_null"
	TestUnique            = "unique"
	TestTrimmed           = "trimmed"
	TestUniqueCombination = "unique_combination"
)

// Project binds model configuration to the registered transforms.
type Project struct {
	Name   string        `yaml:"name"`
	Models []ModelConfig `yaml:"models"`

	graph *Graph
	index map[string]*ModelConfig
}

// ModelConfig is the configuration of one model.
type ModelConfig struct {
	Name         string         `yaml:"name" json:"name"`
	Materialized string         `yaml:"materialized" json:"materialized"`
	Description  string         `yaml:"description" json:"description,omitempty"`
	Columns      []ColumnConfig `yaml:"columns" json:"columns,omitempty"`
	Tests        []ModelTest    `yaml:"tests" json:"tests,omitempty"`
}

// ColumnConfig documents a column and lists its generic tests.
type ColumnConfig struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description,omitempty"`
	Tests       []string `yaml:"tests" json:"tests,omitempty"`
}

// ModelTest is a model-level generic test spanning several columns.
type ModelTest struct {
	Type    string   `yaml:"type" json:"type"`
	Columns []string `yaml:"columns" json:"columns"`
}

// DefaultProject loads the embedded project file against DefaultGraph.
func DefaultProject() (*Project, error) {
	return LoadProject(defaultProjectYAML, DefaultGraph())
}

// LoadProject parses a project file and validates it against the graph.
func LoadProject(data []byte, g *Graph) (*Project, error) {
	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse project file: %w", err)
	}
	p.graph = g
	p.index = make(map[string]*ModelConfig, len(p.Models))

	for i := range p.Models {
		m := &p.Models[i]
		if _, dup := p.index[m.Name]; dup {
			return nil, fmt.Errorf("model %s configured twice", m.Name)
		}
		t, ok := g.Get(m.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %s is configured but not registered", ErrUnknownModel, m.Name)
		}
		if err := validateModel(m, t); err != nil {
			return nil, err
		}
		p.index[m.Name] = m
	}
	for _, name := range g.Names() {
		if _, ok := p.index[name]; !ok {
			return nil, fmt.Errorf("model %s has no configuration", name)
		}
	}
	if _, err := g.Order(); err != nil {
		return nil, err
	}
	return &p, nil
}

func validateModel(m *ModelConfig, t Transform) error {
	switch m.Materialized {
	case MaterializedSource:
		if len(t.Inputs()) > 0 {
			return fmt.Errorf("model %s: a source cannot have inputs", m.Name)
		}
	case MaterializedView:
	case MaterializedTable:
		if _, ok := t.(TableTransform); !ok {
			return fmt.Errorf("model %s: materialized as table but has no table schema", m.Name)
		}
	default:
		return fmt.Errorf("model %s: invalid materialization %q (source, view, table)", m.Name, m.Materialized)
	}

	hasTests := len(m.Tests) > 0
	for _, c := range m.Columns {
		if len(c.Tests) > 0 {
			hasTests = true
		}
	}
	if !hasTests {
		return nil
	}
	if m.Materialized != MaterializedTable {
		return fmt.Errorf("model %s: tests require a table materialization", m.Name)
	}

	known := make(map[string]bool)
	for _, col := range t.(TableTransform).Columns() {
		known[col.Name] = true
	}
	for _, c := range m.Columns {
		if !known[c.Name] {
			return fmt.Errorf("model %s: unknown column %s", m.Name, c.Name)
		}
		for _, test := range c.Tests {
			switch test {
			case TestNotNull, TestUnique, TestTrimmed:
			default:
				return fmt.Errorf("model %s column %s: unknown test %q", m.Name, c.Name, test)
			}
		}
	}
	for _, mt := range m.Tests {
		if mt.Type != TestUniqueCombination {
			return fmt.Errorf("model %s: unknown model test %q", m.Name, mt.Type)
		}
		if len(mt.Columns) < 2 {
			return fmt.Errorf("model %s: %s needs at least two columns", m.Name, mt.Type)
		}
		for _, col := range mt.Columns {
			if !known[col] {
				return fmt.Errorf("model %s: unknown column %s in %s", m.Name, col, mt.Type)
			}
		}
	}
	return nil
}

// Graph returns the graph the project was validated against.
func (p *Project) Graph() *Graph { return p.graph }

// Model returns the configuration of a model.
func (p *Project) Model(name string) (*ModelConfig, bool) {
	m, ok := p.index[name]
	return m, ok
}

// TableFor returns the warehouse table of a table model in the given dataset.
func (p *Project) TableFor(dataset, name string) (warehouse.Table, error) {
	t, ok := p.graph.Get(name)
	if !ok {
		return warehouse.Table{}, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	tt, ok := t.(TableTransform)
	if !ok {
		return warehouse.Table{}, fmt.Errorf("model %s is not a table", name)
	}
	return warehouse.Table{Schema: dataset, Name: name, Columns: tt.Columns()}, nil
}
