package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const progressEvery = 1000

// RowFailure records one row the loader could not insert.
type RowFailure struct {
	Line int      `json:"line"` // 1-based data row number, header excluded
	Row  []string `json:"row"`
	Err  string   `json:"error"`
}

// LoadResult summarizes a bulk load.
type LoadResult struct {
	Table    string       `json:"table"`
	Inserted int          `json:"inserted"`
	Failures []RowFailure `json:"failures,omitempty"`
}

// Failed returns the number of rows that were not inserted.
func (r *LoadResult) Failed() int {
	return len(r.Failures)
}

// BuildInsert returns a positional INSERT for columns.
func BuildInsert(table string, columns []string) (string, error) {
	if err := validTable(table); err != nil {
		return "", err
	}
	if len(columns) == 0 {
		return "", eris.Errorf("sqlite: no columns for insert into %s", table)
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(quoted, ", "), placeholders), nil
}

// LoadRows inserts every row received on rows into table, binding values
// positionally in columns order. Short rows are padded with empty strings.
// Rows that fail to insert are logged and returned in the result; the load
// continues. The returned error covers storage failures and cancellation only.
//
// The caller must close rows. On error the remaining rows are drained so
// producers do not block.
func (s *SQLiteStore) LoadRows(ctx context.Context, table string, columns []string, rows <-chan []string) (*LoadResult, error) {
	log := zap.L().With(zap.String("component", "store.loader"), zap.String("table", table))

	query, err := BuildInsert(table, columns)
	if err != nil {
		drain(rows)
		return nil, err
	}

	result := &LoadResult{Table: table}
	var (
		tx   *sqlx.Tx
		stmt *sqlx.Stmt
		line int
	)

	begin := func() error {
		var err error
		tx, err = s.db.BeginTxx(ctx, nil)
		if err != nil {
			return eris.Wrapf(err, "sqlite: begin load %s", table)
		}
		stmt, err = tx.PreparexContext(ctx, query)
		if err != nil {
			tx.Rollback() //nolint:errcheck
			tx = nil
			return eris.Wrapf(err, "sqlite: prepare insert %s", table)
		}
		return nil
	}
	commit := func() error {
		if tx == nil {
			return nil
		}
		stmt.Close() //nolint:errcheck
		err := tx.Commit()
		tx, stmt = nil, nil
		return eris.Wrapf(err, "sqlite: commit load %s", table)
	}
	abort := func() {
		if tx != nil {
			stmt.Close()  //nolint:errcheck
			tx.Rollback() //nolint:errcheck
			tx, stmt = nil, nil
		}
		drain(rows)
	}

	pending := 0
	for row := range rows {
		if err := ctx.Err(); err != nil {
			abort()
			return result, eris.Wrapf(err, "sqlite: load %s cancelled", table)
		}
		line++

		if len(row) > len(columns) {
			fail := RowFailure{
				Line: line,
				Row:  row,
				Err:  fmt.Sprintf("row has %d values, expected %d", len(row), len(columns)),
			}
			log.Warn("skipping row", zap.Int("line", line), zap.Strings("row", row), zap.String("error", fail.Err))
			result.Failures = append(result.Failures, fail)
			continue
		}

		if tx == nil {
			if err := begin(); err != nil {
				abort()
				return result, err
			}
		}

		args := make([]any, len(columns))
		for i := range columns {
			if i < len(row) {
				args[i] = row[i]
			} else {
				args[i] = ""
			}
		}

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			log.Warn("insert failed", zap.Int("line", line), zap.Strings("row", row), zap.Error(err))
			result.Failures = append(result.Failures, RowFailure{Line: line, Row: row, Err: err.Error()})
			continue
		}
		result.Inserted++
		pending++

		if line%progressEvery == 0 {
			log.Info("load progress", zap.Int("rows", line), zap.Int("inserted", result.Inserted))
		}
		if pending >= s.commitEvery {
			if err := commit(); err != nil {
				abort()
				return result, err
			}
			pending = 0
		}
	}

	if err := commit(); err != nil {
		return result, err
	}

	log.Info("load complete",
		zap.Int("inserted", result.Inserted),
		zap.Int("failed", result.Failed()),
	)
	return result, nil
}

func drain(rows <-chan []string) {
	for range rows {
	}
}
