package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"

	"github.com/jask/recordboard/internal/database"
	"github.com/jask/recordboard/internal/database/repository"
)

var (
	// ErrNotPending is returned when deciding a candidate that was already decided.
	ErrNotPending = errors.New("duplicate candidate is not pending")
	// ErrRecordArchived is returned when a candidate's record was archived
	// since the scan; the candidate is dismissed.
	ErrRecordArchived = errors.New("duplicate candidate references an archived record")
)

// DuplicateFinder queues fuzzy duplicate pairs for review.
type DuplicateFinder struct {
	DB          *sql.DB
	Records     *repository.RecordRepo
	Candidates  *repository.DuplicateRepo
	WindowDays  int
	MaxDistance float64
	Logger      *slog.Logger
}

func (d *DuplicateFinder) window() int {
	if d.WindowDays <= 0 {
		return 7
	}
	return d.WindowDays
}

func (d *DuplicateFinder) maxDistance() float64 {
	if d.MaxDistance <= 0 {
		return 0.4
	}
	return d.MaxDistance
}

// Scan compares active records of equal amount and queues new pairs. It
// returns the number of pairs added.
func (d *DuplicateFinder) Scan(ctx context.Context) (int, error) {
	recs, err := d.Records.List(ctx, repository.RecordFilters{})
	if err != nil {
		return 0, err
	}

	byAmount := map[int64][]repository.Record{}
	for _, r := range recs {
		byAmount[r.AmountCents] = append(byAmount[r.AmountCents], r)
	}

	added := 0
	for _, group := range byAmount {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return recordBefore(group[i], group[j]) })
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				if err := ctx.Err(); err != nil {
					return added, err
				}
				a, b := group[i], group[j]
				if daysApart(a.Date, b.Date) > d.window() {
					// sorted by date, later j only get further away
					break
				}
				ratio := titleDistance(a.Title, b.Title)
				if ratio >= d.maxDistance() {
					continue
				}
				ok, err := d.Candidates.Add(ctx, repository.DuplicateCandidate{
					ID:         uuid.NewString(),
					RecordAID:  a.ID,
					RecordBID:  b.ID,
					Similarity: 1 - ratio,
					Status:     repository.CandidatePending,
					CreatedAt:  time.Now().UTC(),
				})
				if err != nil {
					return added, fmt.Errorf("queue candidate: %w", err)
				}
				if ok {
					added++
				}
			}
		}
	}
	d.logger().Info("duplicate scan finished", "records", len(recs), "queued", added)
	return added, nil
}

// Decide resolves a pending candidate. A duplicate is merged into the
// earlier-created record; otherwise the pair is dismissed. Everything runs in
// one transaction. A pair whose record was already archived by an earlier
// merge is dismissed and ErrRecordArchived is returned.
func (d *DuplicateFinder) Decide(ctx context.Context, id string, isDuplicate bool) error {
	if d.DB == nil {
		return fmt.Errorf("duplicate finder: db not configured")
	}
	stale := false
	err := database.WithTx(ctx, d.DB, func(tx *sql.Tx) error {
		records := repository.NewRecordRepo(tx)
		candidates := repository.NewDuplicateRepo(tx)

		c, err := candidates.Get(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("duplicate candidate %s not found", id)
		}
		if c.Status != repository.CandidatePending {
			return ErrNotPending
		}
		if !isDuplicate {
			return candidates.UpdateStatus(ctx, id, repository.CandidateDismissed)
		}

		a, err := records.Get(ctx, c.RecordAID)
		if err != nil {
			return err
		}
		b, err := records.Get(ctx, c.RecordBID)
		if err != nil {
			return err
		}
		if a == nil || b == nil {
			return fmt.Errorf("duplicate candidate %s references a missing record", id)
		}
		if a.Status != repository.StatusActive || b.Status != repository.StatusActive {
			stale = true
			return candidates.UpdateStatus(ctx, id, repository.CandidateDismissed)
		}
		tags := &TagService{Records: records, Tags: repository.NewTagRepo(tx)}
		if err := merge(ctx, records, tags, *a, *b); err != nil {
			return err
		}
		return candidates.UpdateStatus(ctx, id, repository.CandidateMerged)
	})
	if err != nil {
		return err
	}
	if stale {
		d.logger().Info("stale duplicate candidate dismissed", "candidate", id)
		return ErrRecordArchived
	}
	return nil
}

func merge(ctx context.Context, records *repository.RecordRepo, tags *TagService, a, b repository.Record) error {
	keep, drop := chooseKeep(a, b)
	if keep.CategoryID == nil && drop.CategoryID != nil {
		if err := records.UpdateCategory(ctx, keep.ID, drop.CategoryID); err != nil {
			return err
		}
	}
	if keep.Notes == nil && drop.Notes != nil {
		if err := records.UpdateNotes(ctx, keep.ID, drop.Notes); err != nil {
			return err
		}
	}
	if len(drop.Tags) > 0 {
		if err := tags.Attach(ctx, keep.ID, drop.TagNames()); err != nil {
			return err
		}
	}
	return records.UpdateStatus(ctx, drop.ID, repository.StatusArchived)
}

func (d *DuplicateFinder) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// chooseKeep keeps the record created first; A wins a tie.
func chooseKeep(a, b repository.Record) (keep, drop repository.Record) {
	if b.CreatedAt.Before(a.CreatedAt) {
		return b, a
	}
	return a, b
}

func recordBefore(a, b repository.Record) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	return a.ID < b.ID
}

// titleDistance is the Levenshtein distance of the upper-cased titles over
// the longer title's rune length.
func titleDistance(a, b string) float64 {
	a, b = strings.ToUpper(strings.TrimSpace(a)), strings.ToUpper(strings.TrimSpace(b))
	maxlen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxlen == 0 {
		return 0
	}
	return float64(levenshtein.ComputeDistance(a, b)) / float64(maxlen)
}

func daysApart(a, b time.Time) int {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return int(diff.Hours() / 24)
}
