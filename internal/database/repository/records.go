package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/jask/recordboard/internal/period"
)

// RecordFilters defines list filters. Zero values mean "no filter".
type RecordFilters struct {
	Range           period.Range
	CollectionID    string
	CategoryID      string
	Uncategorized   bool
	Tag             string
	Search          string
	IncludeArchived bool
}

// RecordRepo handles records.
type RecordRepo struct {
	db DBTX
}

func NewRecordRepo(db DBTX) *RecordRepo { return &RecordRepo{db: db} }

const recordColumns = `id, collection_id, occurred_on, title, amount, category_id, notes, status, fingerprint, created_at, updated_at`

// Insert stores a new record. A fingerprint collision returns ErrDuplicate.
func (r *RecordRepo) Insert(ctx context.Context, rec Record) error {
	status := rec.Status
	if status == "" {
		status = StatusActive
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO records(`+recordColumns+`)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP);
	`,
		rec.ID, rec.CollectionID, formatDate(rec.Date), rec.Title, rec.AmountCents,
		rec.CategoryID, rec.Notes, status, rec.Fingerprint)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: fingerprint %s", ErrDuplicate, rec.Fingerprint)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func (r *RecordRepo) UpdateCategory(ctx context.Context, id string, categoryID *string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE records SET category_id = ?, updated_at=CURRENT_TIMESTAMP WHERE id = ?`, categoryID, id)
	return err
}

func (r *RecordRepo) UpdateNotes(ctx context.Context, id string, notes *string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE records SET notes = ?, updated_at=CURRENT_TIMESTAMP WHERE id = ?`, notes, id)
	return err
}

func (r *RecordRepo) UpdateStatus(ctx context.Context, id string, status string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE records SET status = ?, updated_at=CURRENT_TIMESTAMP WHERE id = ?`, status, id)
	return err
}

func (r *RecordRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	return err
}

func (r *RecordRepo) AttachTag(ctx context.Context, recordID, tagID string) error {
	_, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO record_tags(record_id, tag_id) VALUES(?, ?)`, recordID, tagID)
	return err
}

func (r *RecordRepo) RemoveTag(ctx context.Context, recordID, tagID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM record_tags WHERE record_id = ? AND tag_id = ?`, recordID, tagID)
	return err
}

func buildWhere(f RecordFilters) (string, []interface{}) {
	var where []string
	var args []interface{}

	if !f.IncludeArchived {
		where = append(where, "r.status = ?")
		args = append(args, StatusActive)
	}
	if f.CollectionID != "" {
		where = append(where, "r.collection_id = ?")
		args = append(args, f.CollectionID)
	}
	if f.Uncategorized {
		where = append(where, "r.category_id IS NULL")
	} else if f.CategoryID != "" {
		where = append(where, "r.category_id = ?")
		args = append(args, f.CategoryID)
	}
	rng := f.Range.UTC()
	if !rng.Start.IsZero() {
		where = append(where, "r.occurred_on >= ?")
		args = append(args, formatDate(rng.Start))
	}
	if !rng.End.IsZero() {
		where = append(where, "r.occurred_on < ?")
		args = append(args, formatDate(rng.End))
	}
	if f.Tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM record_tags rt JOIN tags t ON t.id = rt.tag_id WHERE rt.record_id = r.id AND t.name = ?)")
		args = append(args, strings.ToLower(strings.TrimSpace(f.Tag)))
	}
	if f.Search != "" {
		where = append(where, "(r.title LIKE ? OR COALESCE(r.notes, '') LIKE ?)")
		like := "%" + f.Search + "%"
		args = append(args, like, like)
	}
	if len(where) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

// List returns matching records, newest first, with tags loaded.
func (r *RecordRepo) List(ctx context.Context, f RecordFilters) ([]Record, error) {
	where, args := buildWhere(f)
	query := "SELECT r." + strings.ReplaceAll(recordColumns, ", ", ", r.") + " FROM records r" + where +
		" ORDER BY r.occurred_on DESC, r.created_at DESC, r.id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadTags(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of matching records.
func (r *RecordRepo) Count(ctx context.Context, f RecordFilters) (int, error) {
	where, args := buildWhere(f)
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records r"+where, args...).Scan(&n)
	return n, err
}

func (r *RecordRepo) loadTags(ctx context.Context, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}
	pos := make(map[string]int, len(recs))
	for i := range recs {
		pos[recs[i].ID] = i
	}
	rows, err := r.db.QueryContext(ctx, `SELECT rt.record_id, t.id, t.name FROM record_tags rt JOIN tags t ON t.id = rt.tag_id ORDER BY t.name`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var recordID string
		var t Tag
		if err := rows.Scan(&recordID, &t.ID, &t.Name); err != nil {
			return err
		}
		if i, ok := pos[recordID]; ok {
			recs[i].Tags = append(recs[i].Tags, t)
		}
	}
	return rows.Err()
}

// Get returns the record with id, or nil when it does not exist.
func (r *RecordRepo) Get(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	out := []Record{rec}
	if err := r.loadTags(ctx, out); err != nil {
		return nil, err
	}
	return &out[0], nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	var date string
	var category, notes sql.NullString
	if err := row.Scan(&rec.ID, &rec.CollectionID, &date, &rec.Title, &rec.AmountCents,
		&category, &notes, &rec.Status, &rec.Fingerprint, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	d, err := parseDate(date)
	if err != nil {
		return Record{}, fmt.Errorf("record %s date %q: %w", rec.ID, date, err)
	}
	rec.Date = d
	if category.Valid {
		rec.CategoryID = &category.String
	}
	if notes.Valid {
		rec.Notes = &notes.String
	}
	return rec, nil
}
