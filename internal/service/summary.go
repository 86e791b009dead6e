package service

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/jask/recordboard/internal/database/repository"
	"github.com/jask/recordboard/internal/frame"
	"github.com/jask/recordboard/internal/period"
)

// UncategorizedName labels records without a category in aggregates.
const UncategorizedName = "Uncategorized"

// CategoryTotal is one category's share of spending.
type CategoryTotal struct {
	CategoryID string
	Name       string
	TotalCents int64
	Count      int
	Share      float64 // of total expenses, 0..1
}

// CollectionTotal is the net movement of one collection.
type CollectionTotal struct {
	Name     string
	NetCents int64
	Count    int
}

// Point is one time bucket of the dashboard series.
type Point struct {
	Label        string
	Start        time.Time
	IncomeCents  int64
	ExpenseCents int64
	NetCents     int64
}

// Summary is the dashboard aggregate over a range.
type Summary struct {
	Range         period.Range
	Granularity   period.Granularity
	Count         int
	Uncategorized int
	IncomeCents   int64
	ExpenseCents  int64
	NetCents      int64
	ByCategory    []CategoryTotal
	Series        []Point
	ByCollection  []CollectionTotal
	Stats         frame.Stats
}

// SummaryService computes dashboard aggregates.
type SummaryService struct {
	Records     *repository.RecordRepo
	Categories  *repository.CategoryRepo
	Collections *repository.CollectionRepo
}

// RecordsFrame lays records out as a frame with columns id, date, bucket,
// category, category_id, collection, title, amount, income and expense.
// Amounts are cents.
func RecordsFrame(recs []repository.Record, g period.Granularity, catNames, collNames map[string]string) (*frame.Frame, error) {
	n := len(recs)
	var (
		ids     = make([]string, n)
		dates   = make([]time.Time, n)
		buckets = make([]string, n)
		cats    = make([]string, n)
		catIDs  = make([]string, n)
		colls   = make([]string, n)
		titles  = make([]string, n)
		amounts = make([]int64, n)
		income  = make([]int64, n)
		expense = make([]int64, n)
	)
	for i, r := range recs {
		ids[i] = r.ID
		dates[i] = r.Date
		buckets[i] = period.Label(period.Truncate(r.Date, g), g)
		cats[i] = UncategorizedName
		if r.CategoryID != nil {
			catIDs[i] = *r.CategoryID
			if name, ok := catNames[*r.CategoryID]; ok {
				cats[i] = name
			}
		}
		colls[i] = collNames[r.CollectionID]
		titles[i] = r.Title
		amounts[i] = r.AmountCents
		if r.AmountCents > 0 {
			income[i] = r.AmountCents
		} else {
			expense[i] = r.AmountCents
		}
	}
	return frame.New(
		frame.Strings("id", ids),
		frame.Times("date", dates),
		frame.Strings("bucket", buckets),
		frame.Strings("category", cats),
		frame.Strings("category_id", catIDs),
		frame.Strings("collection", colls),
		frame.Strings("title", titles),
		frame.Ints("amount", amounts),
		frame.Ints("income", income),
		frame.Ints("expense", expense),
	)
}

func cents(f float64) int64 { return int64(math.Round(f)) }

// Summarize aggregates recs, which are assumed to already lie within rng.
// For an open range the series spans the first to the last record.
func Summarize(recs []repository.Record, rng period.Range, g period.Granularity, catNames, collNames map[string]string) (Summary, error) {
	out := Summary{Range: rng, Granularity: g, Count: len(recs)}
	f, err := RecordsFrame(recs, g, catNames, collNames)
	if err != nil {
		return out, err
	}

	for i := 0; i < f.Len(); i++ {
		row := f.Row(i)
		out.IncomeCents += row.Int("income")
		out.ExpenseCents += row.Int("expense")
		if row.String("category_id") == "" {
			out.Uncategorized++
		}
	}
	out.NetCents = out.IncomeCents + out.ExpenseCents

	if out.Stats, err = f.Describe("amount"); err != nil {
		return out, err
	}

	// categories, expenses only
	spend := f.Filter(func(r frame.Row) bool { return r.Int("amount") < 0 })
	byCat, err := spend.GroupBy("category_id", "category").Agg(
		frame.Agg{Col: "amount", Op: frame.Sum, As: "total"},
		frame.Agg{Col: "amount", Op: frame.Count, As: "n"},
	)
	if err != nil {
		return out, err
	}
	if byCat, err = byCat.SortBy("total", false); err != nil {
		return out, err
	}
	for i := 0; i < byCat.Len(); i++ {
		row := byCat.Row(i)
		ct := CategoryTotal{
			CategoryID: row.String("category_id"),
			Name:       row.String("category"),
			TotalCents: cents(row.Float("total")),
			Count:      int(row.Float("n")),
		}
		if out.ExpenseCents != 0 {
			ct.Share = float64(ct.TotalCents) / float64(out.ExpenseCents)
		}
		out.ByCategory = append(out.ByCategory, ct)
	}

	// series
	byBucket, err := f.GroupBy("bucket").Agg(
		frame.Agg{Col: "income", Op: frame.Sum},
		frame.Agg{Col: "expense", Op: frame.Sum},
	)
	if err != nil {
		return out, err
	}
	totals := make(map[string][2]int64, byBucket.Len())
	for i := 0; i < byBucket.Len(); i++ {
		row := byBucket.Row(i)
		totals[row.String("bucket")] = [2]int64{cents(row.Float("income_sum")), cents(row.Float("expense_sum"))}
	}
	span := rng
	if (span.Start.IsZero() || span.End.IsZero()) && f.Len() > 0 {
		byDate, err := f.SortBy("date", false)
		if err != nil {
			return out, err
		}
		first, last := byDate.Row(0).Time("date"), byDate.Row(byDate.Len()-1).Time("date")
		if span.Start.IsZero() {
			span.Start = first
		}
		if span.End.IsZero() {
			span.End = last.AddDate(0, 0, 1)
		}
	}
	for _, start := range period.Buckets(span, g) {
		label := period.Label(start, g)
		t := totals[label]
		out.Series = append(out.Series, Point{
			Label:        label,
			Start:        start,
			IncomeCents:  t[0],
			ExpenseCents: t[1],
			NetCents:     t[0] + t[1],
		})
	}

	// collections
	byColl, err := f.GroupBy("collection").Agg(
		frame.Agg{Col: "amount", Op: frame.Sum, As: "net"},
		frame.Agg{Col: "amount", Op: frame.Count, As: "n"},
	)
	if err != nil {
		return out, err
	}
	for i := 0; i < byColl.Len(); i++ {
		row := byColl.Row(i)
		out.ByCollection = append(out.ByCollection, CollectionTotal{
			Name:     row.String("collection"),
			NetCents: cents(row.Float("net")),
			Count:    int(row.Float("n")),
		})
	}
	sort.Slice(out.ByCollection, func(i, j int) bool { return out.ByCollection[i].Name < out.ByCollection[j].Name })
	return out, nil
}

func (s *SummaryService) load(ctx context.Context, rng period.Range) ([]repository.Record, map[string]string, map[string]string, error) {
	recs, err := s.Records.List(ctx, repository.RecordFilters{Range: rng.UTC()})
	if err != nil {
		return nil, nil, nil, err
	}
	catNames, err := categoryNames(ctx, s.Categories)
	if err != nil {
		return nil, nil, nil, err
	}
	collNames, err := collectionNames(ctx, s.Collections)
	if err != nil {
		return nil, nil, nil, err
	}
	return recs, catNames, collNames, nil
}

// Dashboard summarises active records in rng.
func (s *SummaryService) Dashboard(ctx context.Context, rng period.Range, g period.Granularity) (Summary, error) {
	recs, catNames, collNames, err := s.load(ctx, rng)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(recs, rng.UTC(), g, catNames, collNames)
}

// Pivot returns spending per bucket (rows, oldest first) and category
// (columns), in cents.
func (s *SummaryService) Pivot(ctx context.Context, rng period.Range, g period.Granularity) (*frame.Frame, error) {
	recs, catNames, collNames, err := s.load(ctx, rng)
	if err != nil {
		return nil, err
	}
	f, err := RecordsFrame(recs, g, catNames, collNames)
	if err != nil {
		return nil, err
	}
	f, err = f.Filter(func(r frame.Row) bool { return r.Int("amount") < 0 }).SortBy("date", false)
	if err != nil {
		return nil, err
	}
	return f.Pivot("bucket", "category", "amount", frame.Sum)
}
