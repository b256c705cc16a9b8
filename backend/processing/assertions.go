package processing

import (
	"fmt"
	"sort"
	"strings"
)

// Singular assertion names.
const (
	AssertNullRate = "assert_dim_dog_breeds_null_rate"
	AssertNotEmpty = "assert_dim_dog_breeds_not_empty"
)

// NullRateThreshold is the largest tolerated fraction of nulls per checked dimension column.
const NullRateThreshold = 0.10

// nullRateColumns are the derived dimension columns whose null rate is asserted.
var nullRateColumns = []string{"life_span_max_years", "weight_class_kg"}

// DataTest is a query that fails when it returns any row.
type DataTest struct {
	Name  string
	Model string
	// SQL renders the query against the dataset holding the model tables.
	SQL func(dataset string) string
}

// Tests returns the generic tests declared in the project followed by the singular assertions.
// Generic tests are sorted by name.
func (p *Project) Tests() []DataTest {
	var tests []DataTest
	for _, m := range p.Models {
		model := m.Name
		for _, c := range m.Columns {
			col := c.Name
			for _, kind := range c.Tests {
				tests = append(tests, columnTest(kind, model, col))
			}
		}
		for _, mt := range m.Tests {
			cols := append([]string(nil), mt.Columns...)
			tests = append(tests, DataTest{
				Name:  fmt.Sprintf("%s_%s_%s", TestUniqueCombination, model, strings.Join(cols, "__")),
				Model: model,
				SQL: func(dataset string) string {
					list := strings.Join(cols, ", ")
					return fmt.Sprintf("SELECT %s, COUNT(*) AS occurrences FROM %s.%s GROUP BY %s HAVING COUNT(*) > 1",
						list, dataset, model, list)
				},
			})
		}
	}
	sort.SliceStable(tests, func(i, j int) bool { return tests[i].Name < tests[j].Name })
	return append(tests, singularTests()...)
}

func columnTest(kind, model, col string) DataTest {
	t := DataTest{Name: fmt.Sprintf("%s_%s_%s", kind, model, col), Model: model}
	switch kind {
	case TestNotNull:
		t.SQL = func(dataset string) string {
			return fmt.Sprintf("SELECT * FROM %s.%s WHERE %s IS NULL", dataset, model, col)
		}
	case TestUnique:
		t.SQL = func(dataset string) string {
			return fmt.Sprintf("SELECT %s, COUNT(*) AS occurrences FROM %s.%s WHERE %s IS NOT NULL GROUP BY %s HAVING COUNT(*) > 1",
				col, dataset, model, col, col)
		}
	case TestTrimmed:
		t.SQL = func(dataset string) string {
			return fmt.Sprintf("SELECT %s FROM %s.%s WHERE %s <> TRIM(%s)", col, dataset, model, col, col)
		}
	}
	return t
}

// singularTests are the data-quality assertions over the breed dimension.
func singularTests() []DataTest {
	return []DataTest{
		{
			Name:  AssertNullRate,
			Model: ModelBreedDimension,
			SQL:   nullRateSQL,
		},
		{
			Name:  AssertNotEmpty,
			Model: ModelBreedDimension,
			SQL: func(dataset string) string {
				return fmt.Sprintf("SELECT COUNT(*) AS row_count FROM %s.%s HAVING COUNT(*) = 0", dataset, ModelBreedDimension)
			},
		},
	}
}

// nullRateSQL returns one row per checked column whose null fraction exceeds the threshold.
// An empty table returns nothing; emptiness is asserted separately.
func nullRateSQL(dataset string) string {
	parts := make([]string, len(nullRateColumns))
	for i, col := range nullRateColumns {
		parts[i] = fmt.Sprintf(
			"SELECT '%s' AS column_name, COUNT(*) FILTER (WHERE %s IS NULL) AS null_rows, COUNT(*) AS total_rows FROM %s.%s",
			col, col, dataset, ModelBreedDimension)
	}
	return fmt.Sprintf(
		"SELECT column_name, null_rows, total_rows FROM (%s) AS rates WHERE total_rows > 0 AND null_rows > total_rows * %g",
		strings.Join(parts, " UNION ALL "), NullRateThreshold)
}
