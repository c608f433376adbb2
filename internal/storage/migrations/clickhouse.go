package migrations

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	chstore "amm-indexer/internal/storage/clickhouse"
)

const clickhouseLedgerDDL = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		name       String,
		applied_at DateTime DEFAULT now()
	) ENGINE = ReplacingMergeTree()
	ORDER BY name`

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// RunClickhouseMigrations creates the DSN's database if needed, applies every
// embedded ClickHouse file not yet in schema_migrations and returns a connection
// to that database along with the names it applied.
//
// ClickHouse has no multi-statement Exec and no DDL transactions: files are split
// into statements and a file is recorded only after all of them succeed. Statements
// must therefore be safe to rerun (IF NOT EXISTS).
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, []string, error) {
	db, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, nil, err
	}
	all, err := load("clickhouse")
	if err != nil {
		return nil, nil, err
	}

	if err := createDatabase(ctx, dsn, db); err != nil {
		return nil, nil, err
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, db)
	if err != nil {
		return nil, nil, fmt.Errorf("connect clickhouse db: %w", err)
	}
	names, err := applyClickhouse(ctx, conn, all)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, names, nil
}

func createDatabase(ctx context.Context, dsn, db string) error {
	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return fmt.Errorf("connect clickhouse admin: %w", err)
	}
	defer admin.Close()

	if err := admin.Exec(ctx, "CREATE DATABASE IF NOT EXISTS "+db); err != nil {
		return fmt.Errorf("create database %s: %w", db, err)
	}
	return nil
}

func applyClickhouse(ctx context.Context, conn *chstore.Conn, all []migration) ([]string, error) {
	if err := conn.Exec(ctx, clickhouseLedgerDDL); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	rows, err := conn.Query(ctx, `SELECT name FROM schema_migrations FINAL`)
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		applied[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}

	var names []string
	for _, m := range pending(all, applied) {
		stmts, err := splitStatements(m.sql)
		if err != nil {
			return names, fmt.Errorf("parse migration %s: %w", m.name, err)
		}
		for i, stmt := range stmts {
			if err := conn.Exec(ctx, stmt); err != nil {
				return names, fmt.Errorf("apply migration %s statement %d: %w", m.name, i+1, err)
			}
		}
		if err := conn.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES (?)`, m.name); err != nil {
			return names, fmt.Errorf("record migration %s: %w", m.name, err)
		}
		names = append(names, m.name)
	}
	return names, nil
}

// splitStatements cuts a ClickHouse script at top-level semicolons. Quoted strings
// and identifiers are kept intact and comments are dropped.
func splitStatements(script string) ([]string, error) {
	var (
		stmts []string
		cur   strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(script); i++ {
		c := script[i]
		switch {
		case c == '-' && i+1 < len(script) && script[i+1] == '-':
			for i < len(script) && script[i] != '\n' {
				i++
			}
			cur.WriteByte('\n')
		case c == '/' && i+1 < len(script) && script[i+1] == '*':
			end := strings.Index(script[i+2:], "*/")
			if end < 0 {
				return nil, fmt.Errorf("unterminated block comment at offset %d", i)
			}
			i += end + 3
			cur.WriteByte(' ')
		case c == '\'' || c == '"' || c == '`':
			end, err := closingQuote(script, i)
			if err != nil {
				return nil, err
			}
			cur.WriteString(script[i : end+1])
			i = end
		case c == ';':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return stmts, nil
}

// closingQuote returns the index of the quote closing the one at start. A doubled
// quote or a backslash escapes the next character.
func closingQuote(s string, start int) (int, error) {
	q := s[start]
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case q:
			if i+1 < len(s) && s[i+1] == q {
				i++
				continue
			}
			return i, nil
		}
	}
	return 0, fmt.Errorf("unterminated %c quote at offset %d", q, start)
}

// databaseFromDSN returns the database named in the DSN path.
func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.Trim(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn %q names no database", u.Redacted())
	}
	if !identifier.MatchString(db) {
		return "", fmt.Errorf("clickhouse database %q is not a plain identifier", db)
	}
	return db, nil
}
