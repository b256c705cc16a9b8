package processing

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/giobale/dog-breed-explorer/internal/warehouse"
)

// rawBreedsSource reads the raw table.
type rawBreedsSource struct{}

func (rawBreedsSource) Name() string     { return ModelRawBreeds }
func (rawBreedsSource) Inputs() []string { return nil }

func (rawBreedsSource) Apply(ctx context.Context, rc *RunContext) (Relation, error) {
	rows, err := rc.Raw.ScanRaw(ctx)
	if err != nil {
		return nil, err
	}
	return &RawBreeds{Rows: rows}, nil
}

// stagingBreeds parses the JSON blob of each raw row and keeps the latest ingestion per breed id.
type stagingBreeds struct{}

func (stagingBreeds) Name() string     { return ModelStagingBreeds }
func (stagingBreeds) Inputs() []string { return []string{ModelRawBreeds} }

func (stagingBreeds) Apply(ctx context.Context, rc *RunContext) (Relation, error) {
	raw, err := Input[*RawBreeds](rc, ModelRawBreeds)
	if err != nil {
		return nil, err
	}

	out := &ParsedBreeds{}
	latest := make(map[int64]ParsedBreed)
	for _, row := range raw.Rows {
		parsed, ok := parseBreed(row)
		if !ok {
			out.Dropped++
			continue
		}
		parsed.TransformedAt = rc.Now
		// Raw rows arrive oldest first, so a later row replaces an earlier one.
		if _, seen := latest[parsed.BreedID]; seen {
			out.Superseded++
		}
		latest[parsed.BreedID] = parsed
	}

	out.Rows = make([]ParsedBreed, 0, len(latest))
	for _, p := range latest {
		out.Rows = append(out.Rows, p)
	}
	sort.Slice(out.Rows, func(i, j int) bool { return out.Rows[i].BreedID < out.Rows[j].BreedID })

	if out.Dropped > 0 {
		rc.Log.Warn("Dropped raw rows without a usable breed id",
			zap.String("model", ModelStagingBreeds), zap.Int("dropped", out.Dropped))
	}
	return out, nil
}

// parseBreed projects the fixed fields out of a raw row. ok is false when the id is missing or not an integer.
func parseBreed(row warehouse.RawRow) (ParsedBreed, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(row.BreedJSON, &fields); err != nil {
		return ParsedBreed{}, false
	}
	id, ok := integerValue(fields["id"])
	if !ok {
		return ParsedBreed{}, false
	}

	p := ParsedBreed{
		BreedID:     id,
		BreedName:   scalarText(fields["name"]),
		BreedGroup:  scalarText(fields["breed_group"]),
		Temperament: scalarText(fields["temperament"]),
		LifeSpan:    scalarText(fields["life_span"]),
		LoadID:      row.LoadID,
		IngestedAt:  row.UpdatedAt,
	}
	var weight map[string]json.RawMessage
	if err := json.Unmarshal(fields["weight"], &weight); err == nil {
		p.WeightMetric = scalarText(weight["metric"])
	}
	return p, true
}

// scalarText renders a JSON scalar as text. Null, absent, objects and arrays yield nil.
func scalarText(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	default:
		return nil
	}
	return &s
}

// integerValue accepts an integral JSON number or a string holding an integer.
func integerValue(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var v any
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return 0, false
	}
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		f, err := t.Float64()
		if err != nil || f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
			return 0, false
		}
		return int64(f), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// normalizedBreeds derives the maximum life span.
type normalizedBreeds struct{}

func (normalizedBreeds) Name() string     { return ModelNormalizedBreeds }
func (normalizedBreeds) Inputs() []string { return []string{ModelStagingBreeds} }

func (normalizedBreeds) Apply(ctx context.Context, rc *RunContext) (Relation, error) {
	stg, err := Input[*ParsedBreeds](rc, ModelStagingBreeds)
	if err != nil {
		return nil, err
	}
	out := &NormalizedBreeds{Rows: make([]NormalizedBreed, len(stg.Rows))}
	for i, p := range stg.Rows {
		out.Rows[i] = NormalizedBreed{ParsedBreed: p}
		if p.LifeSpan == nil {
			continue
		}
		if years, ok := MaxLifeSpanYears(*p.LifeSpan); ok {
			out.Rows[i].LifeSpanMaxYears = &years
		}
		if AmbiguousLifeSpan(*p.LifeSpan) {
			out.Ambiguous = append(out.Ambiguous, p.BreedID)
		}
	}
	if len(out.Ambiguous) > 0 {
		rc.Log.Warn("Life spans with more than two numbers; kept the second number",
			zap.String("model", ModelNormalizedBreeds),
			zap.Int64s("breed_ids", out.Ambiguous))
	}
	return out, nil
}

// breedDimension is a pure projection of the normalized view.
type breedDimension struct{}

func (breedDimension) Name() string     { return ModelBreedDimension }
func (breedDimension) Inputs() []string { return []string{ModelNormalizedBreeds} }

func (breedDimension) Columns() []warehouse.Column {
	return []warehouse.Column{
		{Name: "breed_id", Type: warehouse.TypeBigInt},
		{Name: "breed_name", Type: warehouse.TypeVarchar},
		{Name: "breed_group", Type: warehouse.TypeVarchar},
		{Name: "temperament", Type: warehouse.TypeVarchar},
		{Name: "weight_class_kg", Type: warehouse.TypeVarchar},
		{Name: "life_span_max_years", Type: warehouse.TypeBigInt},
	}
}

func (breedDimension) Apply(ctx context.Context, rc *RunContext) (Relation, error) {
	norm, err := Input[*NormalizedBreeds](rc, ModelNormalizedBreeds)
	if err != nil {
		return nil, err
	}
	out := &BreedDimension{Rows: make([]DimensionRow, len(norm.Rows))}
	for i, n := range norm.Rows {
		out.Rows[i] = DimensionRow{
			BreedID:          n.BreedID,
			BreedName:        n.BreedName,
			BreedGroup:       n.BreedGroup,
			Temperament:      n.Temperament,
			WeightClassKg:    n.WeightMetric,
			LifeSpanMaxYears: n.LifeSpanMaxYears,
		}
	}
	sort.SliceStable(out.Rows, func(i, j int) bool { return out.Rows[i].BreedID < out.Rows[j].BreedID })
	return out, nil
}

// temperamentBridge explodes the comma-separated temperament into one row per trait.
type temperamentBridge struct{}

func (temperamentBridge) Name() string     { return ModelTemperamentBridge }
func (temperamentBridge) Inputs() []string { return []string{ModelNormalizedBreeds} }

func (temperamentBridge) Columns() []warehouse.Column {
	return []warehouse.Column{
		{Name: "breed_id", Type: warehouse.TypeBigInt},
		{Name: "temperament", Type: warehouse.TypeVarchar},
	}
}

func (temperamentBridge) Apply(ctx context.Context, rc *RunContext) (Relation, error) {
	norm, err := Input[*NormalizedBreeds](rc, ModelNormalizedBreeds)
	if err != nil {
		return nil, err
	}
	out := &TemperamentBridge{}
	seen := make(map[BridgeRow]bool)
	for _, n := range norm.Rows {
		if n.Temperament == nil {
			continue
		}
		for _, trait := range SplitTemperament(*n.Temperament) {
			row := BridgeRow{BreedID: n.BreedID, Temperament: trait}
			if seen[row] {
				continue
			}
			seen[row] = true
			out.Rows = append(out.Rows, row)
		}
	}
	sort.Slice(out.Rows, func(i, j int) bool {
		if out.Rows[i].BreedID != out.Rows[j].BreedID {
			return out.Rows[i].BreedID < out.Rows[j].BreedID
		}
		return out.Rows[i].Temperament < out.Rows[j].Temperament
	})
	return out, nil
}

// SplitTemperament splits on commas, trims each trait and drops empty ones.
func SplitTemperament(temperament string) []string {
	var traits []string
	for _, part := range strings.Split(temperament, ",") {
		if trait := strings.TrimSpace(part); trait != "" {
			traits = append(traits, trait)
		}
	}
	return traits
}

// DefaultGraph registers the breed models.
func DefaultGraph() *Graph {
	g := NewGraph()
	for _, t := range []Transform{
		rawBreedsSource{},
		stagingBreeds{},
		normalizedBreeds{},
		breedDimension{},
		temperamentBridge{},
	} {
		if err := g.Add(t); err != nil {
			panic(fmt.Sprintf("processing: %v", err))
		}
	}
	return g
}
