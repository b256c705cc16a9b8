// Package warehouse stores raw breed rows and materialized model tables.
// DuckDB is the default engine; PostgreSQL is supported through lib/pq.
// Both engines are driven through database/sql with the same portable SQL.
package warehouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // DuckDB driver
	_ "github.com/lib/pq"              // PostgreSQL driver
)

const (
	DriverDuckDB   = "duckdb"
	DriverPostgres = "postgres"
)

// Column types understood by both engines. TypeJSON is mapped per engine.
const (
	TypeBigInt    = "BIGINT"
	TypeVarchar   = "VARCHAR"
	TypeTimestamp = "TIMESTAMP"
	TypeJSON      = "JSON"
)

// Column is a named, typed table column.
type Column struct {
	Name string
	Type string
}

// Table describes a table to create or replace.
type Table struct {
	Schema  string
	Name    string
	Columns []Column
}

// Qualified returns schema.name.
func (t Table) Qualified() string {
	return t.Schema + "." + t.Name
}

// RawRow is one row of the append-only raw breed table.
type RawRow struct {
	RowID     int64
	BreedJSON json.RawMessage
	UpdatedAt time.Time
	LoadID    string
	RowUID    string
}

// Row is a generic query result row keyed by column name.
type Row map[string]any

// Warehouse wraps the database handle and the raw table location.
type Warehouse struct {
	db        *sql.DB
	driver    string
	rawSchema string
	rawTable  string
}

// Open connects to the warehouse. For DuckDB an empty DSN opens an in-memory database.
func Open(driver, dsn, rawSchema, rawTable string) (*Warehouse, error) {
	if driver != DriverDuckDB && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported warehouse driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s warehouse: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s warehouse: %w", driver, err)
	}
	return New(db, driver, rawSchema, rawTable), nil
}

// New wraps an existing handle.
func New(db *sql.DB, driver, rawSchema, rawTable string) *Warehouse {
	return &Warehouse{db: db, driver: driver, rawSchema: rawSchema, rawTable: rawTable}
}

// Driver returns the engine name.
func (w *Warehouse) Driver() string { return w.driver }

// RawTable returns the qualified name of the raw breed table.
func (w *Warehouse) RawTable() string { return w.rawSchema + "." + w.rawTable }

// RawTableSpec is the schema of the raw breed table.
func (w *Warehouse) RawTableSpec() Table {
	return Table{
		Schema: w.rawSchema,
		Name:   w.rawTable,
		Columns: []Column{
			{Name: "row_id", Type: TypeBigInt},
			{Name: "breed_json", Type: TypeJSON},
			{Name: "updated_at", Type: TypeTimestamp},
			{Name: "load_id", Type: TypeVarchar},
			{Name: "row_uid", Type: TypeVarchar},
		},
	}
}

// EnsureSchema creates the schema if it doesn't exist.
func (w *Warehouse) EnsureSchema(ctx context.Context, schema string) error {
	if _, err := w.db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+schema); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", schema, err)
	}
	return nil
}

// EnsureRawTable creates the raw schema and table if they don't exist.
func (w *Warehouse) EnsureRawTable(ctx context.Context) error {
	if err := w.EnsureSchema(ctx, w.rawSchema); err != nil {
		return err
	}
	spec := w.RawTableSpec()
	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", spec.Qualified(), w.columnDefs(spec.Columns))
	if _, err := w.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create raw table %s: %w", spec.Qualified(), err)
	}
	return nil
}

// AppendRaw inserts rows into the raw table in a single transaction.
// Either every row is written or none is.
func (w *Warehouse) AppendRaw(ctx context.Context, rows []RawRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin raw load transaction: %w", err)
	}
	defer tx.Rollback() // Rollback if not committed

	query := fmt.Sprintf(
		"INSERT INTO %s (row_id, breed_json, updated_at, load_id, row_uid) VALUES ($1, %s, $3, $4, $5)",
		w.RawTable(), w.jsonParam(2),
	)
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare raw insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.RowID, string(row.BreedJSON), row.UpdatedAt.UTC(), row.LoadID, row.RowUID); err != nil {
			return 0, fmt.Errorf("failed to insert raw row %d (load %s): %w", row.RowID, row.LoadID, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit raw load: %w", err)
	}
	return inserted, nil
}

// ScanRaw reads every raw row, oldest ingestion first.
func (w *Warehouse) ScanRaw(ctx context.Context) ([]RawRow, error) {
	query := fmt.Sprintf(
		"SELECT row_id, CAST(breed_json AS TEXT), updated_at, load_id, row_uid FROM %s ORDER BY updated_at, load_id, row_id",
		w.RawTable(),
	)
	rows, err := w.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to scan raw table %s: %w", w.RawTable(), err)
	}
	defer rows.Close()

	var out []RawRow
	for rows.Next() {
		var (
			r         RawRow
			breedJSON sql.NullString
			loadID    sql.NullString
			rowUID    sql.NullString
		)
		if err := rows.Scan(&r.RowID, &breedJSON, &r.UpdatedAt, &loadID, &rowUID); err != nil {
			return nil, fmt.Errorf("failed to scan raw row: %w", err)
		}
		if breedJSON.Valid {
			r.BreedJSON = json.RawMessage(breedJSON.String)
		}
		r.UpdatedAt = r.UpdatedAt.UTC()
		r.LoadID = loadID.String
		r.RowUID = rowUID.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating raw rows: %w", err)
	}
	return out, nil
}

// ReplaceTable drops and recreates the table, then inserts rows, all in one transaction.
// Each row must have one value per column; nil values are stored as NULL.
func (w *Warehouse) ReplaceTable(ctx context.Context, table Table, rows [][]any) error {
	if err := w.EnsureSchema(ctx, table.Schema); err != nil {
		return err
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for %s: %w", table.Qualified(), err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table.Qualified()); err != nil {
		return fmt.Errorf("failed to drop %s: %w", table.Qualified(), err)
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", table.Qualified(), w.columnDefs(table.Columns))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create %s: %w", table.Qualified(), err)
	}

	if len(rows) > 0 {
		names := make([]string, len(table.Columns))
		params := make([]string, len(table.Columns))
		for i, col := range table.Columns {
			names[i] = col.Name
			if col.Type == TypeJSON {
				params[i] = w.jsonParam(i + 1)
			} else {
				params[i] = fmt.Sprintf("$%d", i+1)
			}
		}
		insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			table.Qualified(), strings.Join(names, ", "), strings.Join(params, ", "))
		stmt, err := tx.PrepareContext(ctx, insert)
		if err != nil {
			return fmt.Errorf("failed to prepare insert into %s: %w", table.Qualified(), err)
		}
		defer stmt.Close()

		for i, values := range rows {
			if len(values) != len(table.Columns) {
				return fmt.Errorf("row %d of %s has %d values, want %d", i, table.Qualified(), len(values), len(table.Columns))
			}
			if _, err := stmt.ExecContext(ctx, values...); err != nil {
				return fmt.Errorf("failed to insert row %d into %s: %w", i, table.Qualified(), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", table.Qualified(), err)
	}
	return nil
}

// QueryRows runs a query and returns every row as a column-keyed map.
func (w *Warehouse) QueryRows(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := w.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns for query result: %w", err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range columns {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(Row, len(columns))
		for i, colName := range columns {
			if b, ok := values[i].([]byte); ok {
				row[colName] = string(b)
			} else {
				row[colName] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// Close closes the database handle.
func (w *Warehouse) Close() error {
	if w.db != nil {
		return w.db.Close()
	}
	return nil
}

func (w *Warehouse) columnDefs(cols []Column) string {
	defs := make([]string, len(cols))
	for i, col := range cols {
		defs[i] = col.Name + " " + w.sqlType(col.Type)
	}
	return strings.Join(defs, ", ")
}

func (w *Warehouse) sqlType(logical string) string {
	if logical == TypeJSON && w.driver == DriverPostgres {
		return "JSONB"
	}
	return logical
}

func (w *Warehouse) jsonParam(n int) string {
	return fmt.Sprintf("CAST($%d AS %s)", n, w.sqlType(TypeJSON))
}
