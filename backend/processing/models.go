package processing

import (
	"time"

	"github.com/giobale/dog-breed-explorer/internal/warehouse"
)

// Model names, leaves first.
const (
	ModelRawBreeds         = "raw_dog_breeds"
	ModelStagingBreeds     = "stg_dog_breeds"
	ModelNormalizedBreeds  = "int_dog_breeds_normalized"
	ModelBreedDimension    = "dim_dog_breeds"
	ModelTemperamentBridge = "bridge_breed_temperaments"
)

// Materializations.
const (
	MaterializedSource = "source"
	MaterializedView   = "view"
	MaterializedTable  = "table"
)

// RawBreeds is every row of the raw table.
type RawBreeds struct {
	Rows []warehouse.RawRow
}

func (r *RawBreeds) Len() int { return len(r.Rows) }

// ParsedBreed is one breed with scalar fields projected out of its JSON blob.
type ParsedBreed struct {
	BreedID       int64
	BreedName     *string
	BreedGroup    *string
	Temperament   *string
	LifeSpan      *string
	WeightMetric  *string
	LoadID        string
	IngestedAt    time.Time
	TransformedAt time.Time
}

// ParsedBreeds is the staging view, one row per breed id from its latest ingestion.
type ParsedBreeds struct {
	Rows []ParsedBreed
	// Dropped counts raw rows without a usable id or with an unparseable blob.
	Dropped int
	// Superseded counts raw rows replaced by a later ingestion of the same breed id.
	Superseded int
}

func (p *ParsedBreeds) Len() int { return len(p.Rows) }

// NormalizedBreed adds the derived maximum life span.
type NormalizedBreed struct {
	ParsedBreed
	LifeSpanMaxYears *int64
}

// NormalizedBreeds is the normalization view.
type NormalizedBreeds struct {
	Rows []NormalizedBreed
	// Ambiguous lists breeds whose life span held more than two numbers.
	Ambiguous []int64
}

func (n *NormalizedBreeds) Len() int { return len(n.Rows) }

// DimensionRow is one row of dim_dog_breeds.
type DimensionRow struct {
	BreedID          int64   `json:"breed_id"`
	BreedName        *string `json:"breed_name"`
	BreedGroup       *string `json:"breed_group"`
	Temperament      *string `json:"temperament"`
	WeightClassKg    *string `json:"weight_class_kg"`
	LifeSpanMaxYears *int64  `json:"life_span_max_years"`
}

// BreedDimension is the breed dimension table, ordered by breed id.
type BreedDimension struct {
	Rows []DimensionRow
}

func (d *BreedDimension) Len() int { return len(d.Rows) }

func (d *BreedDimension) Values() [][]any {
	values := make([][]any, len(d.Rows))
	for i, r := range d.Rows {
		values[i] = []any{r.BreedID, nullString(r.BreedName), nullString(r.BreedGroup), nullString(r.Temperament), nullString(r.WeightClassKg), nullInt(r.LifeSpanMaxYears)}
	}
	return values
}

// BridgeRow is one (breed, trait) pair.
type BridgeRow struct {
	BreedID     int64  `json:"breed_id"`
	Temperament string `json:"temperament"`
}

// TemperamentBridge is the breed-to-temperament table, ordered by breed id then trait.
type TemperamentBridge struct {
	Rows []BridgeRow
}

func (b *TemperamentBridge) Len() int { return len(b.Rows) }

func (b *TemperamentBridge) Values() [][]any {
	values := make([][]any, len(b.Rows))
	for i, r := range b.Rows {
		values[i] = []any{r.BreedID, r.Temperament}
	}
	return values
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullInt(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}
