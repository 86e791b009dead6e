package repository

import (
	"context"
	"database/sql"
	"errors"
)

// DuplicateRepo stores duplicate candidates awaiting review.
type DuplicateRepo struct{ db DBTX }

func NewDuplicateRepo(db DBTX) *DuplicateRepo { return &DuplicateRepo{db: db} }

// Add queues a candidate. A pair that is already known, in either order, is
// left as is and Add reports false.
func (r *DuplicateRepo) Add(ctx context.Context, c DuplicateCandidate) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM duplicate_candidates
	WHERE (record_a_id = ? AND record_b_id = ?) OR (record_a_id = ? AND record_b_id = ?)
	`, c.RecordAID, c.RecordBID, c.RecordBID, c.RecordAID).Scan(&exists)
	if err != nil {
		return false, err
	}
	if exists > 0 {
		return false, nil
	}
	status := c.Status
	if status == "" {
		status = CandidatePending
	}
	_, err = r.db.ExecContext(ctx, `
	INSERT INTO duplicate_candidates(id, record_a_id, record_b_id, similarity, status, created_at)
	VALUES(?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, c.ID, c.RecordAID, c.RecordBID, c.Similarity, status)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *DuplicateRepo) ListPending(ctx context.Context) ([]DuplicateCandidate, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, record_a_id, record_b_id, similarity, status, created_at FROM duplicate_candidates WHERE status = ? ORDER BY similarity DESC, created_at ASC`, CandidatePending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DuplicateCandidate
	for rows.Next() {
		var c DuplicateCandidate
		if err := rows.Scan(&c.ID, &c.RecordAID, &c.RecordBID, &c.Similarity, &c.Status, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *DuplicateRepo) UpdateStatus(ctx context.Context, id, status string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE duplicate_candidates SET status = ? WHERE id = ?`, status, id)
	return err
}

func (r *DuplicateRepo) Get(ctx context.Context, id string) (*DuplicateCandidate, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, record_a_id, record_b_id, similarity, status, created_at FROM duplicate_candidates WHERE id = ?`, id)
	var c DuplicateCandidate
	if err := row.Scan(&c.ID, &c.RecordAID, &c.RecordBID, &c.Similarity, &c.Status, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}
