package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrSchemaMismatch is returned when an existing table lacks columns the
// incoming source header expects.
var ErrSchemaMismatch = eris.New("schema mismatch")

// ColumnInfo is one row of PRAGMA table_info.
type ColumnInfo struct {
	CID          int     `db:"cid" json:"cid"`
	Name         string  `db:"name" json:"name"`
	Type         string  `db:"type" json:"type"`
	NotNull      bool    `db:"notnull" json:"notnull"`
	DefaultValue *string `db:"dflt_value" json:"default_value,omitempty"`
	PK           int     `db:"pk" json:"pk"`
}

// columnTypes holds the columns that are not TEXT.
var columnTypes = map[string]string{
	"latitude":             "REAL",
	"longitude":            "REAL",
	"dlgf_prop_class_code": "INTEGER",
}

// primaryKeys names the auto-increment key of each known table.
var primaryKeys = map[string]string{
	TableLocations:     "location_id",
	TableEstimates:     "solar_id",
	TableCEJST:         "cejst_id",
	TablePropertyCodes: "property_code_id",
}

// PrimaryKey returns the auto-increment key column for a table.
func PrimaryKey(table string) string {
	if pk, ok := primaryKeys[table]; ok {
		return pk
	}
	return strings.ToLower(table) + "_id"
}

// ColumnType returns the SQLite type inferred for a source column.
func ColumnType(column string) string {
	if t, ok := columnTypes[column]; ok {
		return t
	}
	return "TEXT"
}

// BuildTableDDL derives a CREATE TABLE statement from a source header.
func BuildTableDDL(table string, header []string) (string, error) {
	if err := validTable(table); err != nil {
		return "", err
	}
	if len(header) == 0 {
		return "", eris.Errorf("sqlite: empty header for %s", table)
	}

	pk := PrimaryKey(table)
	defs := []string{quoteIdent(pk) + " INTEGER PRIMARY KEY AUTOINCREMENT"}
	if table == TableLocations {
		defs = append(defs, `"has_solar_data" INTEGER DEFAULT 0`)
	}

	seen := map[string]bool{pk: true, "has_solar_data": table == TableLocations}
	for _, col := range header {
		if col == "" {
			return "", eris.Errorf("sqlite: empty column name in header for %s", table)
		}
		if seen[col] {
			return "", eris.Errorf("sqlite: duplicate column %q in header for %s", col, table)
		}
		seen[col] = true
		defs = append(defs, quoteIdent(col)+" "+ColumnType(col))
	}

	if isReferenceTable(table) && !seen["date_added"] {
		defs = append(defs, `"date_added" DATETIME DEFAULT CURRENT_TIMESTAMP`)
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s);", table, strings.Join(defs, ", ")), nil
}

func isReferenceTable(table string) bool {
	return table == TableCEJST || table == TablePropertyCodes
}

// EnsureTable creates table from header when it does not exist. When it
// does, the header is checked against the stored columns and any missing
// column yields ErrSchemaMismatch. Reports whether the table was created.
func (s *SQLiteStore) EnsureTable(ctx context.Context, table string, header []string) (bool, error) {
	log := zap.L().With(zap.String("component", "store.schema"), zap.String("table", table))

	exists, err := s.TableExists(ctx, table)
	if err != nil {
		return false, err
	}

	if exists {
		cols, err := s.Columns(ctx, table)
		if err != nil {
			return false, err
		}
		have := make(map[string]bool, len(cols))
		for _, c := range cols {
			have[c.Name] = true
		}
		var missing []string
		for _, col := range header {
			if !have[col] {
				missing = append(missing, col)
			}
		}
		if len(missing) > 0 {
			return false, eris.Wrapf(ErrSchemaMismatch, "sqlite: table %s missing columns [%s]", table, strings.Join(missing, ", "))
		}
		log.Debug("table exists")
		return false, nil
	}

	ddl, err := BuildTableDDL(table, header)
	if err != nil {
		return false, err
	}
	log.Info("creating table", zap.String("ddl", ddl))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return false, eris.Wrapf(err, "sqlite: create table %s", table)
	}
	return true, nil
}

const estimateTableDDL = `
CREATE TABLE IF NOT EXISTS GOOGLE_SOLAR (
	solar_id                          INTEGER PRIMARY KEY AUTOINCREMENT,
	location_id                       INTEGER NOT NULL,
	latitude                          REAL NOT NULL,
	longitude                         REAL NOT NULL,
	imagery_quality                   TEXT,
	imagery_date                      DATE,
	max_array_panels_count            INTEGER,
	panel_capacity_watts              INTEGER,
	nominal_power_watts               INTEGER,
	yearly_energy_dc_kwh              REAL,
	carbon_offset_factor_kg_per_mwh   REAL,
	estimated_annual_co2_savings_tons REAL,
	estimated_houses_powered          REAL,
	date_added                        DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_google_solar_location_id ON GOOGLE_SOLAR(location_id);
`

// EnsureEstimateTable creates GOOGLE_SOLAR if absent.
func (s *SQLiteStore) EnsureEstimateTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, estimateTableDDL)
	return eris.Wrap(err, "sqlite: create estimate table")
}

const loadLogTableDDL = `
CREATE TABLE IF NOT EXISTS LOAD_LOG (
	run_id      TEXT PRIMARY KEY,
	table_name  TEXT NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'running',
	inserted    INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_load_log_table ON LOAD_LOG(table_name);
`

// EnsureLoadLogTable creates LOAD_LOG if absent.
func (s *SQLiteStore) EnsureLoadLogTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, loadLogTableDDL)
	return eris.Wrap(err, "sqlite: create load log table")
}

// TableExists reports whether table is present in sqlite_master.
func (s *SQLiteStore) TableExists(ctx context.Context, table string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: check table %s", table)
	}
	return n > 0, nil
}

// Columns returns the PRAGMA table_info rows for table.
func (s *SQLiteStore) Columns(ctx context.Context, table string) ([]ColumnInfo, error) {
	if err := validTable(table); err != nil {
		return nil, err
	}
	var cols []ColumnInfo
	if err := s.db.SelectContext(ctx, &cols, fmt.Sprintf("PRAGMA table_info(%s)", table)); err != nil {
		return nil, eris.Wrapf(err, "sqlite: table info %s", table)
	}
	return cols, nil
}

// CountRows returns the number of rows in table.
func (s *SQLiteStore) CountRows(ctx context.Context, table string) (int, error) {
	if err := validTable(table); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.GetContext(ctx, &n, fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(table))); err != nil {
		return 0, eris.Wrapf(err, "sqlite: count %s", table)
	}
	return n, nil
}
