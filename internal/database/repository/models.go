package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so a repo can be bound to
// a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ErrDuplicate is returned when a record's fingerprint already exists.
var ErrDuplicate = errors.New("duplicate record")

// Record statuses.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Duplicate candidate statuses.
const (
	CandidatePending   = "pending"
	CandidateMerged    = "merged"
	CandidateDismissed = "dismissed"
)

// Collection groups records by where they came from.
type Collection struct {
	ID        string
	Name      string
	Kind      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Category represents a category row.
type Category struct {
	ID        string  `json:"id"`
	ParentID  *string `json:"parent_id,omitempty"`
	Name      string  `json:"name"`
	Color     *string `json:"color,omitempty"`
	SortOrder int     `json:"sort_order"`
}

// Tag represents a tag row.
type Tag struct {
	ID   string
	Name string
}

// Record represents a record row. Date is a calendar day at UTC midnight.
type Record struct {
	ID           string
	CollectionID string
	Date         time.Time
	Title        string
	AmountCents  int64
	CategoryID   *string
	Notes        *string
	Status       string
	Fingerprint  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Tags         []Tag
}

// TagNames returns the record's tag names in stored order.
func (r Record) TagNames() []string {
	out := make([]string, 0, len(r.Tags))
	for _, t := range r.Tags {
		out = append(out, t.Name)
	}
	return out
}

// DuplicateCandidate is a pair of records that look like the same event.
type DuplicateCandidate struct {
	ID         string
	RecordAID  string
	RecordBID  string
	Similarity float64
	Status     string
	CreatedAt  time.Time
}

// CollectionID derives a stable id from a collection name.
func CollectionID(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("collection:"+key)).String()
}

// CategoryID derives a stable id from a category name.
func CategoryID(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("cat:"+key)).String()
}

const dateLayout = time.DateOnly

func formatDate(t time.Time) string { return t.UTC().Format(dateLayout) }

func parseDate(s string) (time.Time, error) { return time.Parse(dateLayout, s) }
