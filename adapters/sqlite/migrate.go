package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/artpar/typemap/core/convention"
	"github.com/artpar/typemap/core/schema"
)

// Migrate creates the tables of definitions that carry inline columns.
// Tables already recorded in schema_migrations are left untouched, so
// re-running is safe; changing an applied table needs a manual migration.
func (db *DB) Migrate(ctx context.Context, defs ...convention.Derived) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("query migrations: %w", err)
	}
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("scan migration: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, d := range defs {
		if len(d.Columns) == 0 {
			continue
		}
		version := "create_" + d.Table
		if applied[version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, CreateTableSQL(d)); err != nil {
			tx.Rollback()
			return fmt.Errorf("create table %s: %w", d.Table, err)
		}

		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", version, err)
		}
		applied[version] = true
	}

	return nil
}

// CreateTableSQL renders the CREATE TABLE statement for d.
func CreateTableSQL(d convention.Derived) string {
	defs := make([]string, 0, len(d.Columns))
	for _, c := range d.Columns {
		defs = append(defs, columnSQL(c))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		quoteIdent(d.Table), strings.Join(defs, ",\n\t"))
}

func columnSQL(c schema.RawColumn) string {
	var b strings.Builder
	b.WriteString(quoteIdent(c.Name))
	b.WriteByte(' ')
	b.WriteString(columnType(c))

	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
		if strings.EqualFold(c.SQLType, "integer") {
			b.WriteString(" AUTOINCREMENT")
		}
		return b.String()
	}
	if !c.Null {
		b.WriteString(" NOT NULL")
	}
	if c.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(quoteLiteral(*c.Default))
	}
	return b.String()
}

// columnType spells the declared type with its size metadata, so that
// PRAGMA table_info reports it back unchanged.
func columnType(c schema.RawColumn) string {
	t := strings.ToUpper(c.SQLType)
	if strings.Contains(t, "(") {
		return t
	}
	switch {
	case c.Precision > 0 && c.Scale > 0:
		return fmt.Sprintf("%s(%d,%d)", t, c.Precision, c.Scale)
	case c.Precision > 0:
		return fmt.Sprintf("%s(%d)", t, c.Precision)
	case c.Limit > 0:
		return fmt.Sprintf("%s(%d)", t, c.Limit)
	}
	return t
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
