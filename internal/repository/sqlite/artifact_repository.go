package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"chitcam/internal/dto"
	"chitcam/internal/model"
	"chitcam/internal/repository"

	"github.com/mattn/go-sqlite3"
)

const artifactColumns = `id, filename, uri, filepath, collection, mime_type, filter_name, lens, fallback, filesize, checksum, timestamp`

// ArtifactRepository implements repository.ArtifactRepository for SQLite.
type ArtifactRepository struct {
	db *DB
}

// NewArtifactRepository creates a new SQLite artifact repository.
func NewArtifactRepository(db *DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

// Insert adds a new artifact record to the database.
func (r *ArtifactRepository) Insert(a *model.Artifact) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO artifacts (filename, uri, filepath, collection, mime_type, filter_name, lens, fallback, filesize, checksum, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.Filename, a.URI, a.FilePath, a.Collection, a.MimeType, a.FilterName, a.Lens, a.Fallback, a.FileSize, a.Checksum, a.Timestamp.UTC())
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return 0, fmt.Errorf("failed to insert artifact %s: %w", a.Filename, repository.ErrDuplicate)
		}
		return 0, fmt.Errorf("failed to insert artifact: %w", err)
	}

	return result.LastInsertId()
}

// GetByID retrieves an artifact by its ID. Returns nil when not found.
func (r *ArtifactRepository) GetByID(id int64) (*model.Artifact, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`SELECT `+artifactColumns+` FROM artifacts WHERE id = ?`, id)
	return scanOne(row)
}

// GetByFilename retrieves an artifact by its filename. Returns nil when not found.
func (r *ArtifactRepository) GetByFilename(filename string) (*model.Artifact, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`SELECT `+artifactColumns+` FROM artifacts WHERE filename = ?`, filename)
	return scanOne(row)
}

// GetAll retrieves artifacts based on filter criteria, newest first.
func (r *ArtifactRepository) GetAll(filter *dto.ArtifactFilters) ([]model.Artifact, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)
	query := `SELECT ` + artifactColumns + ` FROM artifacts WHERE 1=1` + where + ` ORDER BY timestamp DESC, id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []model.Artifact
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		artifacts = append(artifacts, *a)
	}
	return artifacts, rows.Err()
}

// GetTotalCount returns the total count of artifacts matching the filter.
func (r *ArtifactRepository) GetTotalCount(filter *dto.ArtifactFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)
	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM artifacts WHERE 1=1`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count artifacts: %w", err)
	}
	return count, nil
}

// GetCollectionSize returns the summed size in bytes of all recorded artifacts.
func (r *ArtifactRepository) GetCollectionSize() (int64, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var size int64
	if err := r.db.Conn().QueryRow(`SELECT COALESCE(SUM(filesize), 0) FROM artifacts`).Scan(&size); err != nil {
		return 0, fmt.Errorf("failed to sum artifact sizes: %w", err)
	}
	return size, nil
}

// GetFilterNames returns the distinct filter names used by stored artifacts.
func (r *ArtifactRepository) GetFilterNames() ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT DISTINCT filter_name FROM artifacts ORDER BY filter_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query filter names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan filter name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// BulkInsert inserts artifacts in a single transaction, skipping filenames
// already recorded. It returns how many rows were added.
func (r *ArtifactRepository) BulkInsert(artifacts []model.Artifact) (int, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO artifacts (filename, uri, filepath, collection, mime_type, filter_name, lens, fallback, filesize, checksum, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare artifact statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, a := range artifacts {
		result, err := stmt.Exec(a.Filename, a.URI, a.FilePath, a.Collection, a.MimeType, a.FilterName, a.Lens, a.Fallback, a.FileSize, a.Checksum, a.Timestamp.UTC())
		if err != nil {
			return 0, fmt.Errorf("failed to insert artifact %s: %w", a.Filename, err)
		}
		if n, err := result.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit artifacts: %w", err)
	}
	return inserted, nil
}

// GetStats summarizes the recorded artifacts.
func (r *ArtifactRepository) GetStats() (*repository.Stats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &repository.Stats{PerFilter: map[string]int{}, PerLens: map[string]int{}}

	err := r.db.Conn().QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(filesize), 0), COALESCE(SUM(fallback), 0) FROM artifacts
	`).Scan(&stats.Total, &stats.TotalSize, &stats.Fallbacks)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact totals: %w", err)
	}

	if err := r.countBy("filter_name", stats.PerFilter); err != nil {
		return nil, err
	}
	if err := r.countBy("lens", stats.PerLens); err != nil {
		return nil, err
	}
	return stats, nil
}

// countBy fills out with row counts grouped by column. column is never user input.
func (r *ArtifactRepository) countBy(column string, out map[string]int) error {
	rows, err := r.db.Conn().Query(`SELECT ` + column + `, COUNT(*) FROM artifacts GROUP BY ` + column)
	if err != nil {
		return fmt.Errorf("failed to group artifacts by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan %s count: %w", column, err)
		}
		out[key] = count
	}
	return rows.Err()
}

// SetFallback updates the fallback flag of an artifact. It reports whether a row matched.
func (r *ArtifactRepository) SetFallback(filename string, fallback bool) (bool, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`UPDATE artifacts SET fallback = ? WHERE filename = ?`, fallback, filename)
	if err != nil {
		return false, fmt.Errorf("failed to update artifact: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update artifact: %w", err)
	}
	return n > 0, nil
}

// Delete removes an artifact by its ID.
func (r *ArtifactRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM artifacts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}

// DeleteByFilename removes an artifact by its filename.
func (r *ArtifactRepository) DeleteByFilename(filename string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM artifacts WHERE filename = ?`, filename); err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}

// DeleteAll removes all artifact records.
func (r *ArtifactRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM artifacts`); err != nil {
		return fmt.Errorf("failed to delete artifacts: %w", err)
	}
	return nil
}

func buildWhere(filter *dto.ArtifactFilters) (string, []interface{}) {
	if filter == nil {
		return "", nil
	}

	var b strings.Builder
	args := []interface{}{}

	if filter.FilterName != "" {
		b.WriteString(" AND filter_name = ? COLLATE NOCASE")
		args = append(args, filter.FilterName)
	}
	if filter.Lens != "" {
		b.WriteString(" AND lens = ?")
		args = append(args, filter.Lens)
	}
	if filter.Prefix != "" {
		b.WriteString(" AND filename LIKE ? ESCAPE '\\'")
		args = append(args, escapeLike(filter.Prefix)+"%")
	}
	if filter.Fallback != nil {
		b.WriteString(" AND fallback = ?")
		args = append(args, *filter.Fallback)
	}
	if !filter.DateAfter.IsZero() {
		b.WriteString(" AND DATE(timestamp) >= DATE(?)")
		args = append(args, filter.DateAfter.Format("2006-01-02"))
	}
	if !filter.DateBefore.IsZero() {
		b.WriteString(" AND DATE(timestamp) <= DATE(?)")
		args = append(args, filter.DateBefore.Format("2006-01-02"))
	}
	if !filter.TimeAfter.IsZero() {
		b.WriteString(" AND TIME(timestamp) >= TIME(?)")
		args = append(args, filter.TimeAfter.Format("15:04:05"))
	}
	if !filter.TimeBefore.IsZero() {
		b.WriteString(" AND TIME(timestamp) <= TIME(?)")
		args = append(args, filter.TimeBefore.Format("15:04:05"))
	}

	return b.String(), args
}

// escapeLike makes '_' in prefixes like FILTERED_ match literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scan(s scanner) (*model.Artifact, error) {
	var a model.Artifact
	if err := s.Scan(&a.ID, &a.Filename, &a.URI, &a.FilePath, &a.Collection, &a.MimeType,
		&a.FilterName, &a.Lens, &a.Fallback, &a.FileSize, &a.Checksum, &a.Timestamp); err != nil {
		return nil, err
	}
	return &a, nil
}

func scanOne(row *sql.Row) (*model.Artifact, error) {
	a, err := scan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	return a, nil
}
