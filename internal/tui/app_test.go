package tui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jask/recordboard/internal/config"
	"github.com/jask/recordboard/internal/database"
	"github.com/jask/recordboard/internal/database/repository"
	"github.com/jask/recordboard/internal/logger"
	"github.com/jask/recordboard/internal/period"
	"github.com/jask/recordboard/internal/prefs"
	"github.com/jask/recordboard/internal/service"
)

const fixture = `date,amount,title,category
2026-02-02,3000.00,Salary,Income
2026-02-03,-4.50,Coffee Cart,
2026-02-05,-4.50,Coffee Cart.,
2026-02-10,-80.00,Groceries,Food
2026-01-15,-20.00,Old thing,
`

type harness struct {
	t       *testing.T
	app     *App
	records *repository.RecordRepo
	cats    *repository.CategoryRepo
	dir     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	db, err := database.Prepare(filepath.Join(dir, "tui.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	records := repository.NewRecordRepo(db)
	cats := repository.NewCategoryRepo(db)
	colls := repository.NewCollectionRepo(db)
	dups := repository.NewDuplicateRepo(db)
	tags := &service.TagService{Records: records, Tags: repository.NewTagRepo(db)}
	ingest := &service.IngestService{Records: records, Collections: colls, Categories: cats, Tags: tags, Logger: logger.Discard()}
	res, err := ingest.ImportCSV(ctx, strings.NewReader(fixture), service.ImportOptions{Collection: "Card"})
	require.NoError(t, err)
	require.Equal(t, 5, res.Imported)

	cfg := config.Config{
		Database: config.DatabaseConfig{Path: filepath.Join(dir, "tui.db")},
		UI: config.UIConfig{
			DateFormat:     "02 Jan",
			CurrencySymbol: "$",
			Timezone:       "UTC",
			Timeframe:      "this-month",
			Granularity:    "week",
		},
	}
	app := New(ctx, cfg,
		Repos{Records: records, Categories: cats, Collections: colls, Duplicates: dups},
		Services{
			Ingest:      ingest,
			Summary:     &service.SummaryService{Records: records, Categories: cats, Collections: colls},
			Duplicates:  &service.DuplicateFinder{DB: db, Records: records, Candidates: dups, Logger: logger.Discard()},
			Maintenance: &service.MaintenanceService{DB: db},
			Tags:        tags,
			Views:       &prefs.Store{Path: filepath.Join(dir, "views.json")},
		},
		logger.Discard(),
	)
	app.now = func() time.Time { return time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC) }

	h := &harness{t: t, app: app, records: records, cats: cats, dir: dir}
	h.exec(app.Init())
	return h
}

// collect runs cmd and flattens batches. Spinner ticks are dropped so the
// loop never waits on a timer.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	switch m := cmd().(type) {
	case nil:
		return nil
	case tea.BatchMsg:
		var out []tea.Msg
		for _, c := range m {
			out = append(out, collect(c)...)
		}
		return out
	case spinner.TickMsg:
		return nil
	default:
		return []tea.Msg{m}
	}
}

func (h *harness) exec(cmd tea.Cmd) {
	h.t.Helper()
	queue := collect(cmd)
	for steps := 0; len(queue) > 0; steps++ {
		require.Less(h.t, steps, 500, "update loop did not settle")
		msg := queue[0]
		queue = queue[1:]
		_, next := h.app.Update(msg)
		queue = append(queue, collect(next)...)
	}
}

func (h *harness) send(msg tea.Msg) {
	h.t.Helper()
	_, cmd := h.app.Update(msg)
	h.exec(cmd)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func (h *harness) press(keys ...string) {
	h.t.Helper()
	for _, k := range keys {
		h.send(key(k))
	}
}

func (h *harness) titles() []string {
	out := make([]string, 0, len(h.app.records))
	for _, r := range h.app.records {
		out = append(out, r.Title)
	}
	return out
}

func (h *harness) categoryIndex(name string) int {
	for i, c := range h.app.categories {
		if c.Name == name {
			return i
		}
	}
	h.t.Fatalf("category %s not loaded", name)
	return -1
}

func TestDashboard(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NotNil(t, h.app.summary)
	require.Equal(t, 4, h.app.summary.Count)

	view := h.app.View()
	assert.Contains(t, view, "$3,000.00")
	assert.Contains(t, view, "-$89.00")
	assert.Contains(t, view, "Records: 4")
	assert.Contains(t, view, "Food")
	assert.Contains(t, view, "2026-W07")

	h.press("]")
	require.Equal(t, period.LastMonth, h.app.preset)
	require.Equal(t, 1, h.app.summary.Count)
	require.Equal(t, []string{"Old thing"}, h.titles())

	h.press("[")
	require.Equal(t, period.ThisMonth, h.app.preset)
	h.press("g")
	require.Equal(t, period.Month, h.app.gran)
	require.Len(t, h.app.summary.Series, 1)
	assert.Equal(t, "2026-02", h.app.summary.Series[0].Label)
}

func TestRecordsEditing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	h.press("r")
	require.Equal(t, viewRecords, h.app.state)
	require.Equal(t, []string{"Groceries", "Coffee Cart.", "Coffee Cart", "Salary"}, h.titles())
	assert.Contains(t, h.app.View(), "Coffee Cart.")

	h.press("/", "coffee", "enter")
	require.Equal(t, "coffee", h.app.filter.Search)
	require.Equal(t, []string{"Coffee Cart.", "Coffee Cart"}, h.titles())
	target := h.app.records[0].ID

	h.press("c")
	require.Equal(t, modalCategoryPicker, h.app.modal)
	assert.Contains(t, h.app.View(), "[none] (clear category)")
	for i := 0; i <= h.categoryIndex("Food"); i++ {
		h.press("j")
	}
	h.press("enter")
	require.Equal(t, modalNone, h.app.modal)
	rec, err := h.records.Get(ctx, target)
	require.NoError(t, err)
	require.NotNil(t, rec.CategoryID)
	require.Equal(t, repository.CategoryID("Food"), *rec.CategoryID)
	require.Equal(t, "category updated", h.app.status)

	h.press("t", "treat, Morning", "enter")
	rec, err = h.records.Get(ctx, target)
	require.NoError(t, err)
	require.Equal(t, []string{"morning", "treat"}, rec.TagNames())

	h.press("n", "with cake", "enter")
	rec, err = h.records.Get(ctx, target)
	require.NoError(t, err)
	require.Equal(t, "with cake", *rec.Notes)
	assert.Contains(t, h.app.View(), "notes: with cake")

	h.press("n")
	require.Equal(t, "with cake", h.app.input.Value(), "notes editor is prefilled")
	h.press("esc")
	require.Equal(t, modalNone, h.app.modal)

	h.press("x")
	rec, err = h.records.Get(ctx, target)
	require.NoError(t, err)
	require.Equal(t, repository.StatusArchived, rec.Status)
	require.Equal(t, []string{"Coffee Cart"}, h.titles())

	h.press("esc")
	require.Empty(t, h.app.filter.Search)
	require.Equal(t, []string{"Groceries", "Coffee Cart", "Salary"}, h.titles())
}

func TestSavedViews(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.press("r", "/", "groc", "enter")
	require.Equal(t, []string{"Groceries"}, h.titles())

	h.press("s", "Food run", "enter")
	require.Len(t, h.app.savedViews, 1)
	require.Equal(t, 0, h.app.viewIdx)
	require.Equal(t, "view saved: Food run", h.app.status)
	data, err := os.ReadFile(filepath.Join(h.dir, "views.json"))
	require.NoError(t, err)
	require.Contains(t, string(data), `"search": "groc"`)

	h.press("esc")
	require.Len(t, h.app.records, 4)

	h.press("v")
	require.Equal(t, []string{"Groceries"}, h.titles())
	require.Equal(t, "view: Food run", h.app.status)
	assert.Contains(t, h.app.View(), `filter: search "groc"`)

	h.press("v")
	require.Equal(t, -1, h.app.viewIdx)
	require.Len(t, h.app.records, 4)
}

func TestDuplicatesView(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	h.press("u")
	assert.Contains(t, h.app.View(), "No pending candidates")

	h.press("s")
	require.Len(t, h.app.pending, 1)
	require.Equal(t, "scan complete: 1 new candidates", h.app.status)
	assert.Contains(t, h.app.View(), "Candidate 1 of 1")

	drop := h.app.pending[0].C.RecordBID
	h.press("y")
	require.Empty(t, h.app.pending)
	rec, err := h.records.Get(ctx, drop)
	require.NoError(t, err)
	require.Equal(t, repository.StatusArchived, rec.Status)
	require.Len(t, h.app.records, 3)
}

func TestSettingsCategoriesAndReset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	h.press("p")
	assert.Contains(t, h.app.View(), "Schema: v1")
	h.press("n", "Travel", "enter")
	got, err := h.cats.ByName(ctx, "travel")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Contains(t, h.app.View(), "Travel")

	h.press("n", "food", "enter")
	require.True(t, strings.HasPrefix(h.app.status, "error:"), h.app.status)

	idx := h.categoryIndex("Travel")
	h.app.settingsCursor = idx
	h.press("enter")
	require.Equal(t, modalRenameCategory, h.app.modal)
	h.press("backspace", "backspace", "backspace", "backspace", "backspace", "backspace", "Trips", "enter")
	renamed, err := h.cats.ByName(ctx, "trips")
	require.NoError(t, err)
	require.NotNil(t, renamed)
	require.Equal(t, got.ID, renamed.ID)

	h.app.settingsCursor = h.categoryIndex("Trips")
	h.press("backspace")
	gone, err := h.cats.ByName(ctx, "trips")
	require.NoError(t, err)
	require.Nil(t, gone)

	h.press("X")
	require.Equal(t, modalConfirmReset, h.app.modal)
	h.press("n")
	require.Equal(t, modalNone, h.app.modal)
	require.NotEmpty(t, h.app.records)

	h.press("X", "y")
	require.Empty(t, h.app.records)
	require.Empty(t, h.app.categories)
	n, err := h.records.Count(ctx, repository.RecordFilters{IncludeArchived: true})
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestImportView(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	path := filepath.Join(h.dir, "extra.csv")
	require.NoError(t, os.WriteFile(path, []byte("11/02/2026,-12.00,Cinema\n12/02/2026,-3.00,Bus\n"), 0o600))

	h.press("i")
	require.Equal(t, viewImport, h.app.state)
	h.press("q")
	require.Equal(t, viewImport, h.app.state, "q is typed into the path")
	h.press("backspace", path, "enter")
	require.Equal(t, viewRecords, h.app.state)
	require.Equal(t, "imported 2, skipped 0", h.app.status)
	require.Contains(t, h.titles(), "Cinema")

	h.press("i", "enter")
	require.Equal(t, viewRecords, h.app.state, "path is kept; re-import only skips")
	require.Equal(t, "imported 0, skipped 2", h.app.status)

	h.press("i")
	for range path {
		h.press("backspace")
	}
	h.press("enter")
	require.Equal(t, "enter a CSV or JSON path", h.app.status)
	h.press("esc")
	require.Equal(t, viewDashboard, h.app.state)
}

func TestQuit(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	_, cmd := h.app.Update(key("q"))
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())

	_, cmd = h.app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
}

func TestRenderBars(t *testing.T) {
	t.Parallel()

	out := renderBars("Spending", []barPoint{
		{Label: "2026-W06", Value: 100, Text: "$1.00"},
		{Label: "2026-W07", Value: 50, Text: "$0.50"},
		{Label: "2026-W08", Value: 0, Text: "$0.00"},
	}, 40, 10)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Spending", lines[0])
	full := strings.Count(lines[1], "#")
	assert.Equal(t, 40-8-5-4, full)
	assert.Equal(t, full/2, strings.Count(lines[2], "#"))
	assert.Zero(t, strings.Count(lines[3], "#"))

	assert.Equal(t, "Spending\n(no data)", renderBars("Spending", nil, 40, 10))
	assert.Empty(t, renderBars("Spending", nil, 0, 10))
}

func TestVisibleWindowAndCycles(t *testing.T) {
	t.Parallel()

	s, e := visibleWindow(5, 2, 10)
	assert.Equal(t, [2]int{0, 5}, [2]int{s, e})
	s, e = visibleWindow(100, 50, 10)
	assert.Equal(t, [2]int{45, 55}, [2]int{s, e})
	s, e = visibleWindow(100, 99, 10)
	assert.Equal(t, [2]int{90, 100}, [2]int{s, e})

	assert.Equal(t, period.All, cyclePreset(period.ThisMonth, -1))
	assert.Equal(t, period.ThisMonth, cyclePreset(period.All, 1))
	assert.Equal(t, period.Day, cycleGranularity(period.Year))
}
