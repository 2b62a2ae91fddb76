package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"

	"github.com/peter-fm/snapbase/pkg/snaperr"
)

// dbKind identifies the attached database family referenced by a .sql
// source file's connection statement, used only to decide whether table
// references need MySQL-style qualification before DuckDB evaluates them.
type dbKind int

const (
	dbKindDuckDB dbKind = iota
	dbKindMySQL
	dbKindPostgreSQL
	dbKindSQLite
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
var mysqlFromPattern = regexp.MustCompile(`(?i)\bFROM\s+([a-zA-Z_][a-zA-Z0-9_.]*)\b`)

// LoadSQLFile registers the .sql file's SELECT query as a streaming source:
// a setup block (ATTACH/USE/other DDL statements) is executed first, then
// the trailing SELECT/WITH query is cached for later extraction instead of
// being materialized into a view, following the original's load_sql_file.
func (e *Engine) LoadSQLFile(ctx context.Context, path string) (*SourceInfo, error) {
	if err := loadDotEnvIfPresent(); err != nil {
		e.log.Warn("failed to load .env file", "error", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, snaperr.InvalidInput(path, fmt.Sprintf("failed to read SQL file: %s", err))
	}

	setupStatements, selectQuery, kind, dbName := parseSQLFile(string(content))
	if selectQuery == "" {
		return nil, snaperr.InvalidInput(path, "no SELECT query found in SQL file")
	}

	for _, stmt := range setupStatements {
		substituted := substituteEnvVars(stmt)
		if err := e.exec(ctx, substituted); err != nil {
			return nil, snaperr.Engine(fmt.Errorf("%s: %s", "sql_setup", fmt.Sprintf("failed to execute setup statement %q: %s", stmt, err)))
		}
	}

	transformed := transformForMySQL(selectQuery, kind, dbName)

	rowCount, err := e.scalarInt64(ctx, fmt.Sprintf("SELECT COUNT(*) FROM (%s)", transformed))
	if err != nil {
		return nil, snaperr.Engine(fmt.Errorf("%s: %s", "row_count", err.Error()))
	}

	if err := e.exec(ctx, fmt.Sprintf("CREATE OR REPLACE VIEW schema_temp_view AS SELECT * FROM (%s) AS query_result LIMIT 0", transformed)); err != nil {
		return nil, snaperr.Engine(fmt.Errorf("%s: %s", "sql_schema", err.Error()))
	}
	columns, err := e.columnInfoFromView(ctx, "schema_temp_view", false)
	if err != nil {
		return nil, err
	}
	e.cachedColumns = columns
	_ = e.exec(ctx, "DROP VIEW IF EXISTS schema_temp_view")

	e.streamingQuery = transformed

	return &SourceInfo{Path: path, RowCount: rowCount, Columns: columns}, nil
}

// parseSQLFile splits a .sql source into its setup statements and its final
// SELECT/WITH query, stripping `--`/`//` comment lines per statement, and
// detects the attached database kind from any ATTACH statement found.
func parseSQLFile(content string) (setup []string, selectQuery string, kind dbKind, dbName string) {
	for _, raw := range strings.Split(content, ";") {
		cleaned := stripCommentLines(raw)
		if cleaned == "" {
			continue
		}

		upper := strings.ToUpper(cleaned)
		if (strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH")) && !strings.Contains(upper, "CREATE TABLE") {
			selectQuery = cleaned
			continue
		}

		setup = append(setup, cleaned)
		if strings.HasPrefix(upper, "ATTACH") {
			k, name := detectAttachedDatabase(cleaned)
			kind = k
			if name != "" {
				dbName = name
			}
		}
	}
	return setup, selectQuery, kind, dbName
}

func stripCommentLines(statement string) string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(statement), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "--") || strings.HasPrefix(trimmed, "//") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func detectAttachedDatabase(attachStatement string) (dbKind, string) {
	upper := strings.ToUpper(attachStatement)
	var kind dbKind
	switch {
	case strings.Contains(upper, "MYSQL"):
		kind = dbKindMySQL
	case strings.Contains(upper, "POSTGRES"):
		kind = dbKindPostgreSQL
	case strings.Contains(upper, "SQLITE"):
		kind = dbKindSQLite
	default:
		kind = dbKindDuckDB
	}

	dbName := ""
	if idx := strings.Index(strings.ToLower(attachStatement), "database="); idx >= 0 {
		rest := attachStatement[idx+len("database="):]
		end := strings.IndexAny(rest, " ;'\"")
		if end < 0 {
			end = len(rest)
		}
		dbName = rest[:end]
	}
	return kind, dbName
}

// transformForMySQL rewrites unqualified FROM clauses to "db.table" for
// MySQL-attached sources, since DuckDB's identifier resolution against
// attached MySQL databases is otherwise inconsistent about the default
// schema.
func transformForMySQL(query string, kind dbKind, dbName string) string {
	if kind != dbKindMySQL || dbName == "" {
		return query
	}
	return mysqlFromPattern.ReplaceAllStringFunc(query, func(match string) string {
		submatches := mysqlFromPattern.FindStringSubmatch(match)
		table := submatches[1]
		if strings.Contains(table, ".") {
			return match
		}
		return "FROM " + dbName + "." + table
	})
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

func loadDotEnvIfPresent() error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	envFile := filepath.Join(wd, ".env")
	if _, err := os.Stat(envFile); err != nil {
		return nil
	}
	return godotenv.Load(envFile)
}
