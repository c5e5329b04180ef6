package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/artpar/typemap/core/model"
	"github.com/artpar/typemap/core/record"
)

// RecordStore persists records of any model to the model's table.
type RecordStore struct {
	db *DB
}

// NewRecordStore creates a record store over db.
func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{db: db}
}

// storedColumns lists the non-virtual column names of m.
func storedColumns(m *model.Model) []string {
	var names []string
	for _, c := range m.Columns() {
		if !c.Virtual {
			names = append(names, c.Name)
		}
	}
	return names
}

// Insert writes r as a new row. A nil primary key is left to the database
// and read back afterwards.
func (s *RecordStore) Insert(ctx context.Context, r *record.Record) error {
	m := r.Model()
	values, err := r.Serialized()
	if err != nil {
		return err
	}

	pk := m.PrimaryKey()
	var cols, marks []string
	var args []any
	for _, name := range storedColumns(m) {
		if name == pk && values[name] == nil {
			continue
		}
		cols = append(cols, quoteIdent(name))
		marks = append(marks, "?")
		args = append(args, values[name])
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(m.Table()), strings.Join(cols, ", "), strings.Join(marks, ", "))
	if len(cols) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", quoteIdent(m.Table()))
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert %s: %w", m.Name(), err)
	}

	if values[pk] == nil {
		if _, ok := m.Column(pk); ok {
			id, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("insert %s: %w", m.Name(), err)
			}
			if err := r.Set(pk, id); err != nil {
				return err
			}
		}
	}

	r.MarkPersisted()
	return nil
}

// Update writes the changed attributes of r.
func (s *RecordStore) Update(ctx context.Context, r *record.Record) error {
	m := r.Model()
	values, err := r.Serialized()
	if err != nil {
		return err
	}

	pk := m.PrimaryKey()
	var sets []string
	var args []any
	for _, name := range r.Changed() {
		v, stored := values[name]
		if !stored || name == pk {
			continue
		}
		sets = append(sets, quoteIdent(name)+" = ?")
		args = append(args, v)
	}
	if len(sets) == 0 {
		r.MarkPersisted()
		return nil
	}
	args = append(args, values[pk])

	result, err := s.db.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		quoteIdent(m.Table()), strings.Join(sets, ", "), quoteIdent(pk)), args...)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update %s: %w", m.Name(), err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}

	r.MarkPersisted()
	return nil
}

// Find loads the row of m whose primary key is id.
func (s *RecordStore) Find(ctx context.Context, m *model.Model, id any) (*record.Record, error) {
	cols := storedColumns(m)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		joinIdents(cols), quoteIdent(m.Table()), quoteIdent(m.PrimaryKey()))

	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", m.Name(), err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("find %s: %w", m.Name(), err)
		}
		return nil, ErrNotFound
	}
	return scanRecord(rows, m, cols)
}

// List loads every row of m ordered by primary key.
func (s *RecordStore) List(ctx context.Context, m *model.Model) ([]*record.Record, error) {
	cols := storedColumns(m)
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		joinIdents(cols), quoteIdent(m.Table()), quoteIdent(m.PrimaryKey()))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", m.Name(), err)
	}
	defer rows.Close()

	var out []*record.Record
	for rows.Next() {
		r, err := scanRecord(rows, m, cols)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Delete removes the row of m whose primary key is id.
func (s *RecordStore) Delete(ctx context.Context, m *model.Model, id any) error {
	result, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = ?",
		quoteIdent(m.Table()), quoteIdent(m.PrimaryKey())), id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", m.Name(), err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecord(rows *sql.Rows, m *model.Model, cols []string) (*record.Record, error) {
	dest := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan %s: %w", m.Name(), err)
	}

	row := make(map[string]any, len(cols))
	for i, name := range cols {
		row[name] = dest[i]
	}
	return record.Load(m, row), nil
}

func joinIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
