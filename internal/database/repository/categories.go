package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// CategoryRepo handles categories.
type CategoryRepo struct {
	db DBTX
}

func NewCategoryRepo(db DBTX) *CategoryRepo {
	return &CategoryRepo{db: db}
}

func (r *CategoryRepo) Upsert(ctx context.Context, c Category) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO categories(id, parent_id, name, color, sort_order)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
	 parent_id=excluded.parent_id,
	 name=excluded.name,
	 color=excluded.color,
	 sort_order=excluded.sort_order;
	`, c.ID, c.ParentID, c.Name, c.Color, c.SortOrder)
	return err
}

func (r *CategoryRepo) List(ctx context.Context) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, parent_id, name, color, sort_order FROM categories ORDER BY sort_order, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.ParentID, &c.Name, &c.Color, &c.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ByName finds a category by case-insensitive name.
func (r *CategoryRepo) ByName(ctx context.Context, name string) (*Category, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, parent_id, name, color, sort_order FROM categories WHERE lower(name) = ? ORDER BY sort_order LIMIT 1`,
		strings.ToLower(strings.TrimSpace(name)))
	var c Category
	if err := row.Scan(&c.ID, &c.ParentID, &c.Name, &c.Color, &c.SortOrder); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// Delete removes a category. Records and child categories that referenced
// it are left uncategorised / top-level by the schema's ON DELETE SET NULL.
func (r *CategoryRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	return err
}
