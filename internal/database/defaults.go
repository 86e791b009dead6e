package database

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jask/recordboard/internal/database/repository"
)

var defaultCategories = []string{
	"Income",
	"Housing",
	"Food > Groceries",
	"Food > Eating Out",
	"Transport",
	"Utilities",
	"Subscriptions",
	"Health",
	"Leisure",
	"Savings",
}

// SeedDefaults ensures baseline categories exist for new databases.
// It is idempotent and safe to run on every startup.
func SeedDefaults(ctx context.Context, db *sql.DB) error {
	catRepo := repository.NewCategoryRepo(db)
	existing, err := catRepo.List(ctx)
	if err == nil && len(existing) > 0 {
		return nil
	}
	for idx, path := range defaultCategories {
		var parentID *string
		for _, raw := range strings.Split(path, ">") {
			name := strings.TrimSpace(raw)
			id := repository.CategoryID(name)
			cat := repository.Category{ID: id, Name: name, ParentID: parentID, SortOrder: idx}
			if err := catRepo.Upsert(ctx, cat); err != nil {
				return err
			}
			parentID = &id
		}
	}
	return nil
}
