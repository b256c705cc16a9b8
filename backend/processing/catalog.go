package processing

import "fmt"

// ModelInfo describes a model for the catalog API.
type ModelInfo struct {
	ModelConfig
	Inputs    []string `json:"inputs"`
	DataTests []string `json:"data_tests,omitempty"`
}

// Catalog lists every model in evaluation order with its inputs and the names of the tests on it.
func (p *Project) Catalog() ([]ModelInfo, error) {
	order, err := p.graph.Order()
	if err != nil {
		return nil, err
	}
	testsByModel := make(map[string][]string)
	for _, dt := range p.Tests() {
		testsByModel[dt.Model] = append(testsByModel[dt.Model], dt.Name)
	}

	catalog := make([]ModelInfo, 0, len(order))
	for _, t := range order {
		cfg, ok := p.Model(t.Name())
		if !ok {
			return nil, fmt.Errorf("%w: %s has no configuration", ErrUnknownModel, t.Name())
		}
		catalog = append(catalog, ModelInfo{
			ModelConfig: *cfg,
			Inputs:      append([]string{}, t.Inputs()...),
			DataTests:   testsByModel[t.Name()],
		})
	}
	return catalog, nil
}
