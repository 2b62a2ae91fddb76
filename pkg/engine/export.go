package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/peter-fm/snapbase/pkg/snaperr"
	"github.com/peter-fm/snapbase/pkg/snapshot"
)

// ExportRowsToParquetWithFlags writes rows (already rendered to their
// canonical string form) to parquetPath with __snapbase_added and
// __snapbase_modified boolean flag columns appended, mirroring the
// original's export_to_parquet_with_flags / create_temp_table_with_flags.
// Flag computation itself belongs to pkg/diff; this function only persists
// the classification the caller already produced.
func (e *Engine) ExportRowsToParquetWithFlags(
	ctx context.Context,
	parquetPath string,
	schema []snapshot.ColumnInfo,
	rows [][]string,
	added []bool,
	modified []bool,
) error {
	if len(added) != len(rows) || len(modified) != len(rows) {
		return snaperr.InvalidInput("flags", "slices must be the same length as rows")
	}

	if err := e.exec(ctx, "DROP TABLE IF EXISTS temp_flag_data"); err != nil {
		return snaperr.Engine(fmt.Errorf("%s: %s", "export", err.Error()))
	}

	var createSQL strings.Builder
	createSQL.WriteString("CREATE TABLE temp_flag_data (")
	for i, col := range schema {
		if i > 0 {
			createSQL.WriteString(", ")
		}
		fmt.Fprintf(&createSQL, "%q %s", col.Name, col.DataType)
	}
	if len(schema) > 0 {
		createSQL.WriteString(", ")
	}
	createSQL.WriteString(fmt.Sprintf("%q BOOLEAN, %q BOOLEAN)", snapshot.FlagColumnAdded, snapshot.FlagColumnModified))

	if err := e.exec(ctx, createSQL.String()); err != nil {
		return snaperr.Engine(fmt.Errorf("%s: %s", "export", err.Error()))
	}

	if len(rows) > 0 {
		placeholders := make([]string, len(schema)+2)
		for i := range placeholders {
			placeholders[i] = "?"
		}
		insertSQL := fmt.Sprintf("INSERT INTO temp_flag_data VALUES (%s)", strings.Join(placeholders, ", "))

		e.writeMu.Lock()
		stmt, err := e.db.PrepareContext(ctx, insertSQL)
		if err != nil {
			e.writeMu.Unlock()
			return snaperr.Engine(fmt.Errorf("%s: %s", "export", err.Error()))
		}
		for i, row := range rows {
			args := make([]any, 0, len(row)+2)
			for _, v := range row {
				args = append(args, v)
			}
			args = append(args, added[i], modified[i])
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				stmt.Close()
				e.writeMu.Unlock()
				return snaperr.Engine(fmt.Errorf("%s: %s", "export", err.Error()))
			}
		}
		stmt.Close()
		e.writeMu.Unlock()
	}

	copySQL := fmt.Sprintf("COPY (SELECT * FROM temp_flag_data) TO %s (FORMAT parquet)", quoteLiteral(parquetPath))
	if err := e.exec(ctx, copySQL); err != nil {
		return snaperr.Engine(fmt.Errorf("%s: %s", "export", err.Error()))
	}
	return nil
}
