package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jask/recordboard/internal/database/repository"
	"github.com/jask/recordboard/internal/period"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const summaryFixture = `date,amount,title,category
2026-02-02,3000.00,Salary,Income
2026-02-03,-42.50,Groceries,Food
2026-02-10,-57.50,Groceries,Food
2026-02-11,-1500.00,Rent,Housing
2026-02-12,-10.00,Misc,
2026-03-01,-9.99,Later,
`

func newSummary(e *testEnv) *SummaryService {
	return &SummaryService{Records: e.records, Categories: e.categories, Collections: e.collections}
}

func TestDashboardWeekly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t)
	require.Empty(t, e.importCSV(t, "Bank", summaryFixture).Errors)

	feb, err := period.Custom(day(2026, 2, 1), day(2026, 2, 28))
	require.NoError(t, err)
	sum, err := newSummary(e).Dashboard(ctx, feb, period.Week)
	require.NoError(t, err)

	require.Equal(t, 5, sum.Count)
	require.Equal(t, 1, sum.Uncategorized)
	require.Equal(t, int64(300000), sum.IncomeCents)
	require.Equal(t, int64(-161000), sum.ExpenseCents)
	require.Equal(t, int64(139000), sum.NetCents)

	require.Len(t, sum.ByCategory, 3)
	assert.Equal(t, "Housing", sum.ByCategory[0].Name)
	assert.Equal(t, int64(-150000), sum.ByCategory[0].TotalCents)
	assert.InDelta(t, 150000.0/161000.0, sum.ByCategory[0].Share, 1e-9)
	assert.Equal(t, "Food", sum.ByCategory[1].Name)
	assert.Equal(t, 2, sum.ByCategory[1].Count)
	assert.Equal(t, int64(-10000), sum.ByCategory[1].TotalCents)
	assert.Equal(t, UncategorizedName, sum.ByCategory[2].Name)
	assert.Empty(t, sum.ByCategory[2].CategoryID)

	labels := make([]string, 0, len(sum.Series))
	for _, p := range sum.Series {
		labels = append(labels, p.Label)
	}
	require.Equal(t, []string{"2026-W05", "2026-W06", "2026-W07", "2026-W08", "2026-W09"}, labels)
	assert.Equal(t, int64(300000), sum.Series[1].IncomeCents)
	assert.Equal(t, int64(-4250), sum.Series[1].ExpenseCents)
	assert.Equal(t, int64(295750), sum.Series[1].NetCents)
	assert.Equal(t, int64(-156750), sum.Series[2].ExpenseCents)
	assert.Equal(t, Point{Label: "2026-W08", Start: day(2026, 2, 16)}, sum.Series[3])

	require.Len(t, sum.ByCollection, 1)
	assert.Equal(t, CollectionTotal{Name: "Bank", NetCents: 139000, Count: 5}, sum.ByCollection[0])
	assert.Equal(t, 5, sum.Stats.Count)
	assert.Equal(t, 300000.0, sum.Stats.Max)
}

func TestDashboardAllTimeSpansRecords(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	require.Empty(t, e.importCSV(t, "Bank", summaryFixture).Errors)

	sum, err := newSummary(e).Dashboard(context.Background(), period.Range{}, period.Month)
	require.NoError(t, err)
	require.Equal(t, 6, sum.Count)
	require.Len(t, sum.Series, 2)
	assert.Equal(t, "2026-02", sum.Series[0].Label)
	assert.Equal(t, "2026-03", sum.Series[1].Label)
	assert.Equal(t, int64(-999), sum.Series[1].NetCents)
}

func TestSummarizeEmpty(t *testing.T) {
	t.Parallel()

	rng := period.Range{Start: day(2026, 1, 1), End: day(2026, 1, 3)}
	sum, err := Summarize(nil, rng, period.Day, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 0, sum.Count)
	require.Empty(t, sum.ByCategory)
	require.Len(t, sum.Series, 2)
	require.Equal(t, int64(0), sum.Series[0].NetCents)

	open, err := Summarize(nil, period.Range{}, period.Day, nil, nil)
	require.NoError(t, err)
	require.Empty(t, open.Series)
}

func TestPivotByMonth(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	require.Empty(t, e.importCSV(t, "Bank", summaryFixture).Errors)

	rng, err := period.Custom(day(2026, 2, 1), day(2026, 3, 31))
	require.NoError(t, err)
	f, err := newSummary(e).Pivot(context.Background(), rng, period.Month)
	require.NoError(t, err)
	require.Equal(t, []string{"bucket", "Food", "Housing", UncategorizedName}, f.Columns())
	require.Equal(t, 2, f.Len())

	feb, mar := f.Row(0), f.Row(1)
	assert.Equal(t, "2026-02", feb.String("bucket"))
	assert.Equal(t, -10000.0, feb.Float("Food"))
	assert.Equal(t, -1000.0, feb.Float(UncategorizedName))
	assert.Equal(t, "2026-03", mar.String("bucket"))
	assert.Equal(t, 0.0, mar.Float("Food"))
	assert.Equal(t, -999.0, mar.Float(UncategorizedName))
}

func TestRecordsFrameColumns(t *testing.T) {
	t.Parallel()

	cat := "c1"
	recs := []repository.Record{
		{ID: "r1", CollectionID: "k", Date: day(2026, 2, 3), Title: "x", AmountCents: -100, CategoryID: &cat},
		{ID: "r2", CollectionID: "k", Date: day(2026, 2, 4), Title: "y", AmountCents: 250},
	}
	f, err := RecordsFrame(recs, period.Month, map[string]string{"c1": "Food"}, map[string]string{"k": "Card"})
	require.NoError(t, err)
	require.Equal(t, []string{"id", "date", "bucket", "category", "category_id", "collection", "title", "amount", "income", "expense"}, f.Columns())

	r0, r1 := f.Row(0), f.Row(1)
	assert.Equal(t, "Food", r0.String("category"))
	assert.Equal(t, "2026-02", r0.String("bucket"))
	assert.Equal(t, int64(-100), r0.Int("expense"))
	assert.Equal(t, int64(0), r0.Int("income"))
	assert.Equal(t, UncategorizedName, r1.String("category"))
	assert.Equal(t, "Card", r1.String("collection"))
	assert.Equal(t, int64(250), r1.Int("income"))
}
