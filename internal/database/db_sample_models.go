package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-while/go-myapp/internal/models"
)

var (
	ErrSampleModelNotFound = errors.New("sample model not found")
	ErrInvalidColumn       = errors.New("invalid column")
)

// SampleModelFilter selects a page of sample models.
// Every term must match at least one of SearchFields (case-insensitive substring).
type SampleModelFilter struct {
	Terms        []string
	SearchFields []string
	OrderBy      string // column name, "" means id
	Desc         bool
	Limit        int // <= 0 means no limit
	Offset       int
}

const sampleModelColumns = `id, name, description, created_at, updated_at`

func scanSampleModel(scan func(dest ...interface{}) error) (*models.SampleModel, error) {
	var m models.SampleModel
	if err := scan(&m.ID, &m.Name, &m.Description, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

const query_CreateSampleModel = `INSERT INTO sample_models (name, description, created_at, updated_at) VALUES (?, ?, ?, ?)`

// CreateSampleModel validates and inserts m, filling in ID and timestamps
func (db *Database) CreateSampleModel(m *models.SampleModel) error {
	if err := m.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC().Truncate(time.Second)
	res, err := retryableExec(db.mainDB, query_CreateSampleModel, m.Name, m.Description, sqliteTime(now), sqliteTime(now))
	if err != nil {
		return fmt.Errorf("failed to create sample model: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get sample model id: %w", err)
	}
	m.ID = id
	m.CreatedAt = now
	m.UpdatedAt = now
	return nil
}

const query_GetSampleModelByID = `SELECT ` + sampleModelColumns + ` FROM sample_models WHERE id = ?`

// GetSampleModelByID returns ErrSampleModelNotFound for unknown ids
func (db *Database) GetSampleModelByID(id int64) (*models.SampleModel, error) {
	var m *models.SampleModel
	err := retryableQueryRowScanFunc(db.mainDB, query_GetSampleModelByID, []interface{}{id}, func(row *sql.Row) error {
		var err error
		m, err = scanSampleModel(row.Scan)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSampleModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sample model %d: %w", id, err)
	}
	return m, nil
}

const query_UpdateSampleModel = `UPDATE sample_models SET name = ?, description = ?, updated_at = ? WHERE id = ?`

// UpdateSampleModel saves name and description of an existing row.
// created_at is never changed.
func (db *Database) UpdateSampleModel(m *models.SampleModel) error {
	if err := m.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC().Truncate(time.Second)
	res, err := retryableExec(db.mainDB, query_UpdateSampleModel, m.Name, m.Description, sqliteTime(now), m.ID)
	if err != nil {
		return fmt.Errorf("failed to update sample model %d: %w", m.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSampleModelNotFound
	}
	m.UpdatedAt = now
	return nil
}

const query_DeleteSampleModel = `DELETE FROM sample_models WHERE id = ?`

func (db *Database) DeleteSampleModel(id int64) error {
	res, err := retryableExec(db.mainDB, query_DeleteSampleModel, id)
	if err != nil {
		return fmt.Errorf("failed to delete sample model %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSampleModelNotFound
	}
	return nil
}

const query_CountSampleModels = `SELECT COUNT(*) FROM sample_models`

func (db *Database) CountSampleModels() (int, error) {
	var count int
	if err := retryableQueryRowScan(db.mainDB, query_CountSampleModels, nil, &count); err != nil {
		return 0, fmt.Errorf("failed to count sample models: %w", err)
	}
	return count, nil
}

// escapeLike escapes LIKE wildcards so a term only matches literally
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}

// buildSampleModelWhere returns the WHERE clause (with leading " WHERE ")
// and its args. Column names are checked against models.SampleModelFields
// before being put into the query text.
func buildSampleModelWhere(f *SampleModelFilter) (string, []interface{}, error) {
	var terms []string
	for _, t := range f.Terms {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 {
		return "", nil, nil
	}
	if len(f.SearchFields) == 0 {
		return "", nil, fmt.Errorf("search terms given without search fields: %w", ErrInvalidColumn)
	}
	for _, name := range f.SearchFields {
		field, ok := models.LookupSampleField(name)
		if !ok || !field.Searchable() {
			return "", nil, fmt.Errorf("search field %q: %w", name, ErrInvalidColumn)
		}
	}

	var and []string
	var args []interface{}
	for _, term := range terms {
		or := make([]string, 0, len(f.SearchFields))
		for _, name := range f.SearchFields {
			or = append(or, fmt.Sprintf(`casefold(%s) LIKE '%%' || casefold(?) || '%%' ESCAPE '\'`, name))
			args = append(args, escapeLike(term))
		}
		and = append(and, "("+strings.Join(or, " OR ")+")")
	}
	return " WHERE " + strings.Join(and, " AND "), args, nil
}

// SearchSampleModels returns one page of matching rows and the total number
// of matching rows
func (db *Database) SearchSampleModels(f SampleModelFilter) ([]*models.SampleModel, int, error) {
	where, args, err := buildSampleModelWhere(&f)
	if err != nil {
		return nil, 0, err
	}

	orderBy := f.OrderBy
	if orderBy == "" {
		orderBy = "id"
	}
	if _, ok := models.LookupSampleField(orderBy); !ok {
		return nil, 0, fmt.Errorf("order field %q: %w", orderBy, ErrInvalidColumn)
	}
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	order := fmt.Sprintf(" ORDER BY %s %s", orderBy, dir)
	if orderBy != "id" {
		order += ", id " + dir
	}

	var total int
	if err := retryableQueryRowScan(db.mainDB, "SELECT COUNT(*) FROM sample_models"+where, args, &total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sample models: %w", err)
	}

	query := "SELECT " + sampleModelColumns + " FROM sample_models" + where + order
	queryArgs := append([]interface{}{}, args...)
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		queryArgs = append(queryArgs, f.Limit, max(f.Offset, 0))
	}

	rows, err := retryableQuery(db.mainDB, query, queryArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search sample models: %w", err)
	}
	defer rows.Close()

	var out []*models.SampleModel
	for rows.Next() {
		m, err := scanSampleModel(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
