package tui

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/recordboard/internal/config"
	"github.com/jask/recordboard/internal/database"
	"github.com/jask/recordboard/internal/database/repository"
	"github.com/jask/recordboard/internal/period"
	"github.com/jask/recordboard/internal/prefs"
	"github.com/jask/recordboard/internal/service"
)

// App ties together views.
type App struct {
	ctx      context.Context
	cfg      config.Config
	repos    Repos
	services Services
	log      *slog.Logger
	now      func() time.Time
	loc      *time.Location

	state  appState
	modal  modalState
	width  int
	height int
	status string
	busy   bool
	spin   spinner.Model
	input  textinput.Model // modal text entry
	path   textinput.Model // import path

	preset  period.Preset
	gran    period.Granularity
	summary *service.Summary

	records   []repository.Record
	recCursor int
	filter    recordFilter

	savedViews []prefs.View
	viewIdx    int // -1 when no saved view is applied

	pending   []candidateView
	dupCursor int

	categories     []repository.Category
	categoryName   map[string]string // id -> name
	collectionName map[string]string // id -> name
	pickerCursor   int
	settingsCursor int
	editingID      string

	lastImport *service.IngestResult
	schema     string
}

type Repos struct {
	Records     *repository.RecordRepo
	Categories  *repository.CategoryRepo
	Collections *repository.CollectionRepo
	Duplicates  *repository.DuplicateRepo
}

type Services struct {
	Ingest      *service.IngestService
	Summary     *service.SummaryService
	Duplicates  *service.DuplicateFinder
	Maintenance *service.MaintenanceService
	Tags        *service.TagService
	Views       *prefs.Store
}

type appState string

const (
	viewDashboard  appState = "dashboard"
	viewRecords    appState = "records"
	viewImport     appState = "import"
	viewDuplicates appState = "duplicates"
	viewSettings   appState = "settings"
)

type modalState string

const (
	modalNone           modalState = ""
	modalCategoryPicker modalState = "categoryPicker"
	modalTags           modalState = "tags"
	modalNotes          modalState = "notes"
	modalSearch         modalState = "search"
	modalSaveView       modalState = "saveView"
	modalNewCategory    modalState = "newCategory"
	modalRenameCategory modalState = "renameCategory"
	modalConfirmReset   modalState = "confirmReset"
)

// recordFilter narrows the records view on top of the timeframe.
type recordFilter struct {
	Search       string
	Tag          string
	CategoryID   string
	CollectionID string
}

func (f recordFilter) empty() bool { return f == recordFilter{} }

// candidateView enriches a duplicate candidate with its records.
type candidateView struct {
	C repository.DuplicateCandidate
	A *repository.Record
	B *repository.Record
}

func New(ctx context.Context, cfg config.Config, repos Repos, services Services, log *slog.Logger) *App {
	if log == nil {
		log = slog.Default()
	}
	preset, err := period.ParsePreset(cfg.UI.Timeframe)
	if err != nil {
		preset = period.ThisMonth
	}
	gran, err := period.ParseGranularity(cfg.UI.Granularity)
	if err != nil {
		gran = period.Week
	}

	input := textinput.New()
	input.Cursor.SetMode(cursor.CursorStatic)
	input.CharLimit = 256
	path := textinput.New()
	path.Cursor.SetMode(cursor.CursorStatic)
	path.Placeholder = "path/to/records.csv"
	path.Prompt = "File: "

	return &App{
		ctx:            ctx,
		cfg:            cfg,
		repos:          repos,
		services:       services,
		log:            log,
		now:            time.Now,
		loc:            cfg.Location(),
		state:          viewDashboard,
		spin:           spinner.New(spinner.WithSpinner(spinner.Dot)),
		input:          input,
		path:           path,
		preset:         preset,
		gran:           gran,
		viewIdx:        -1,
		categoryName:   map[string]string{},
		collectionName: map[string]string{},
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.reload(), a.loadViews())
}

// timeframe resolves the current preset into record-date bounds.
func (a *App) timeframe() period.Range {
	rng, err := period.Resolve(a.preset, a.now().In(a.loc))
	if err != nil {
		return period.Range{}
	}
	return rng.UTC()
}

func (a *App) reload() tea.Cmd {
	return tea.Batch(a.loadRecords(), a.loadSummary(), a.loadPending(), a.loadCategories(), a.loadCollections())
}

func (a *App) loadRecords() tea.Cmd {
	f := repository.RecordFilters{
		Range:        a.timeframe(),
		Search:       a.filter.Search,
		Tag:          a.filter.Tag,
		CategoryID:   a.filter.CategoryID,
		CollectionID: a.filter.CollectionID,
	}
	return func() tea.Msg {
		list, err := a.repos.Records.List(a.ctx, f)
		if err != nil {
			return errMsg{err}
		}
		return recordsMsg(list)
	}
}

func (a *App) loadSummary() tea.Cmd {
	if a.services.Summary == nil {
		return nil
	}
	rng, g := a.timeframe(), a.gran
	return func() tea.Msg {
		sum, err := a.services.Summary.Dashboard(a.ctx, rng, g)
		if err != nil {
			return errMsg{err}
		}
		return summaryMsg(sum)
	}
}

func (a *App) loadPending() tea.Cmd {
	if a.repos.Duplicates == nil {
		return nil
	}
	return func() tea.Msg {
		cs, err := a.repos.Duplicates.ListPending(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		views := make([]candidateView, 0, len(cs))
		for _, c := range cs {
			aRec, _ := a.repos.Records.Get(a.ctx, c.RecordAID)
			bRec, _ := a.repos.Records.Get(a.ctx, c.RecordBID)
			views = append(views, candidateView{C: c, A: aRec, B: bRec})
		}
		return pendingMsg(views)
	}
}

func (a *App) loadCategories() tea.Cmd {
	return func() tea.Msg {
		cats, err := a.repos.Categories.List(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		return categoryListMsg(cats)
	}
}

func (a *App) loadCollections() tea.Cmd {
	if a.repos.Collections == nil {
		return nil
	}
	return func() tea.Msg {
		colls, err := a.repos.Collections.List(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		return collectionListMsg(colls)
	}
}

func (a *App) loadViews() tea.Cmd {
	if a.services.Views == nil {
		return nil
	}
	return func() tea.Msg {
		views, err := a.services.Views.Load()
		if err != nil {
			return errMsg{err}
		}
		return viewsMsg(views)
	}
}

// action runs fn off the update loop with the spinner showing. The data is
// reloaded once fn reports back.
func (a *App) action(label string, fn func() (string, error)) tea.Cmd {
	a.busy = true
	a.status = label
	return tea.Batch(a.spin.Tick, func() tea.Msg {
		status, err := fn()
		if err != nil {
			return errMsg{err}
		}
		return doneMsg(status)
	})
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = m.Width, m.Height
	case spinner.TickMsg:
		if !a.busy {
			return a, nil
		}
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(m)
		return a, cmd
	case tea.KeyMsg:
		if m.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.modal != modalNone {
			return a.handleModalKey(m)
		}
		if a.state == viewImport {
			return a.handleImportKey(m)
		}
		switch m.String() {
		case "q":
			return a, tea.Quit
		case "d":
			a.state = viewDashboard
			return a, nil
		case "r":
			a.state = viewRecords
			return a, nil
		case "i":
			a.state = viewImport
			a.status = ""
			a.path.Focus()
			return a, nil
		case "u":
			a.state = viewDuplicates
			return a, nil
		case "p":
			a.state = viewSettings
			a.status = ""
			return a, a.loadSchema()
		}
		switch a.state {
		case viewDashboard:
			return a.handleDashboardKey(m)
		case viewRecords:
			return a.handleRecordsKey(m)
		case viewDuplicates:
			return a.handleDuplicatesKey(m)
		case viewSettings:
			return a.handleSettingsKey(m)
		}
	case recordsMsg:
		a.records = []repository.Record(m)
		if a.recCursor >= len(a.records) {
			a.recCursor = max(0, len(a.records)-1)
		}
	case summaryMsg:
		sum := service.Summary(m)
		a.summary = &sum
	case pendingMsg:
		a.pending = []candidateView(m)
		if a.dupCursor >= len(a.pending) {
			a.dupCursor = max(0, len(a.pending)-1)
		}
	case categoryListMsg:
		a.categories = []repository.Category(m)
		a.categoryName = make(map[string]string, len(a.categories))
		for _, c := range a.categories {
			a.categoryName[c.ID] = c.Name
		}
		if a.settingsCursor >= len(a.categories) {
			a.settingsCursor = max(0, len(a.categories)-1)
		}
	case collectionListMsg:
		a.collectionName = make(map[string]string, len(m))
		for _, c := range m {
			a.collectionName[c.ID] = c.Name
		}
	case schemaMsg:
		a.schema = string(m)
	case viewsMsg:
		a.savedViews = []prefs.View(m)
		if a.viewIdx >= len(a.savedViews) {
			a.viewIdx = -1
		}
	case viewSavedMsg:
		a.savedViews = m.views
		for i, v := range a.savedViews {
			if strings.EqualFold(v.Name, m.name) {
				a.viewIdx = i
			}
		}
		a.status = "view saved: " + m.name
	case doneMsg:
		a.busy = false
		a.status = string(m)
		return a, a.reload()
	case errMsg:
		a.busy = false
		a.status = "error: " + m.Error()
		a.log.Error("tui action failed", "view", string(a.state), "err", m.error)
	case ingestDoneMsg:
		a.busy = false
		a.lastImport = &m.Result
		summary := fmt.Sprintf("imported %d, skipped %d", m.Result.Imported, m.Result.Skipped)
		if len(m.Result.Errors) > 0 {
			summary += fmt.Sprintf(", errors %d (see import view)", len(m.Result.Errors))
		} else {
			a.state = viewRecords
			a.path.Blur()
		}
		a.status = summary
		return a, a.reload()
	}
	return a, nil
}

func (a *App) View() string {
	var body string
	switch a.state {
	case viewRecords:
		body = a.renderRecords()
	case viewImport:
		body = a.renderImport()
	case viewDuplicates:
		body = a.renderDuplicates()
	case viewSettings:
		body = a.renderSettings()
	default:
		body = a.renderDashboard()
	}
	if a.modal != modalNone {
		body += "\n\n" + modalStyle.Render(a.renderModal())
	}
	if line := a.renderStatus(); line != "" {
		body += "\n" + line
	}
	return body
}

func (a *App) handleDashboardKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "[":
		a.preset = cyclePreset(a.preset, -1)
	case "]":
		a.preset = cyclePreset(a.preset, 1)
	case "g":
		a.gran = cycleGranularity(a.gran)
	default:
		return a, nil
	}
	return a, tea.Batch(a.loadRecords(), a.loadSummary())
}

func cyclePreset(p period.Preset, step int) period.Preset {
	n := len(period.Presets)
	for i, q := range period.Presets {
		if q == p {
			return period.Presets[((i+step)%n+n)%n]
		}
	}
	return period.Presets[0]
}

func cycleGranularity(g period.Granularity) period.Granularity {
	for i, q := range period.Granularities {
		if q == g {
			return period.Granularities[(i+1)%len(period.Granularities)]
		}
	}
	return period.Granularities[0]
}

func (a *App) currentRecord() *repository.Record {
	if a.recCursor < 0 || a.recCursor >= len(a.records) {
		return nil
	}
	return &a.records[a.recCursor]
}

func (a *App) handleRecordsKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "up", "k":
		if a.recCursor > 0 {
			a.recCursor--
		}
	case "down", "j":
		if a.recCursor < len(a.records)-1 {
			a.recCursor++
		}
	case "c":
		rec := a.currentRecord()
		if rec == nil {
			a.status = "no records"
			return a, nil
		}
		a.editingID = rec.ID
		a.pickerCursor = 0
		if rec.CategoryID != nil {
			for i, c := range a.categories {
				if c.ID == *rec.CategoryID {
					a.pickerCursor = i + 1
				}
			}
		}
		a.modal = modalCategoryPicker
	case "t":
		if rec := a.currentRecord(); rec != nil {
			a.editingID = rec.ID
			a.openInput(modalTags, strings.Join(rec.TagNames(), ", "))
		}
	case "n":
		if rec := a.currentRecord(); rec != nil {
			a.editingID = rec.ID
			notes := ""
			if rec.Notes != nil {
				notes = *rec.Notes
			}
			a.openInput(modalNotes, notes)
		}
	case "/":
		a.openInput(modalSearch, a.filter.Search)
	case "s":
		name := ""
		if a.viewIdx >= 0 && a.viewIdx < len(a.savedViews) {
			name = a.savedViews[a.viewIdx].Name
		}
		a.openInput(modalSaveView, name)
	case "v":
		return a, a.cycleView()
	case "x":
		rec := a.currentRecord()
		if rec == nil {
			return a, nil
		}
		id := rec.ID
		return a, a.action("archiving...", func() (string, error) {
			return "record archived", a.repos.Records.UpdateStatus(a.ctx, id, repository.StatusArchived)
		})
	case "esc":
		if a.filter.empty() && a.viewIdx < 0 {
			return a, nil
		}
		a.filter = recordFilter{}
		a.viewIdx = -1
		a.status = "filters cleared"
		return a, a.loadRecords()
	}
	return a, nil
}

// cycleView applies the next saved view; after the last one filters clear.
func (a *App) cycleView() tea.Cmd {
	if len(a.savedViews) == 0 {
		a.status = "no saved views ([s] saves the current filters)"
		return nil
	}
	a.viewIdx++
	if a.viewIdx >= len(a.savedViews) {
		a.viewIdx = -1
		a.filter = recordFilter{}
		a.status = "all records"
		return a.loadRecords()
	}
	v := a.savedViews[a.viewIdx]
	a.filter = recordFilter{Search: v.Search, Tag: v.Tag, CategoryID: v.CategoryID, CollectionID: v.CollectionID}
	if p, err := period.ParsePreset(v.Timeframe); err == nil && v.Timeframe != "" {
		a.preset = p
	}
	a.status = "view: " + v.Name
	return tea.Batch(a.loadRecords(), a.loadSummary())
}

func (a *App) handleDuplicatesKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "up", "k":
		if a.dupCursor > 0 {
			a.dupCursor--
		}
	case "down", "j":
		if a.dupCursor < len(a.pending)-1 {
			a.dupCursor++
		}
	case "s":
		if a.services.Duplicates == nil {
			a.status = "duplicate finder not configured"
			return a, nil
		}
		return a, a.action("scanning...", func() (string, error) {
			n, err := a.services.Duplicates.Scan(a.ctx)
			return fmt.Sprintf("scan complete: %d new candidates", n), err
		})
	case "y", "n":
		if len(a.pending) == 0 || a.services.Duplicates == nil {
			return a, nil
		}
		id := a.pending[a.dupCursor].C.ID
		isDup := m.String() == "y"
		return a, a.action("saving decision...", func() (string, error) {
			if err := a.services.Duplicates.Decide(a.ctx, id, isDup); err != nil {
				return "", err
			}
			if isDup {
				return "merged", nil
			}
			return "dismissed", nil
		})
	}
	return a, nil
}

func (a *App) handleSettingsKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "esc":
		a.state = viewDashboard
		a.status = ""
	case "up", "k":
		if a.settingsCursor > 0 {
			a.settingsCursor--
		}
	case "down", "j":
		if a.settingsCursor < len(a.categories)-1 {
			a.settingsCursor++
		}
	case "n":
		a.openInput(modalNewCategory, "")
	case "enter":
		if len(a.categories) == 0 {
			a.status = "no categories to rename"
			return a, nil
		}
		cat := a.categories[a.settingsCursor]
		a.editingID = cat.ID
		a.openInput(modalRenameCategory, cat.Name)
	case "backspace", "delete":
		if len(a.categories) == 0 {
			return a, nil
		}
		cat := a.categories[a.settingsCursor]
		return a, a.action("removing category...", func() (string, error) {
			return fmt.Sprintf("category %s removed", cat.Name), a.repos.Categories.Delete(a.ctx, cat.ID)
		})
	case "X":
		a.modal = modalConfirmReset
	}
	return a, nil
}

func (a *App) handleImportKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.Type {
	case tea.KeyEsc:
		a.state = viewDashboard
		a.status = ""
		a.path.Blur()
		return a, nil
	case tea.KeyEnter:
		path := strings.TrimSpace(a.path.Value())
		if path == "" {
			a.status = "enter a CSV or JSON path"
			return a, nil
		}
		return a, a.ingestCmd(path)
	}
	var cmd tea.Cmd
	a.path, cmd = a.path.Update(m)
	return a, cmd
}

func (a *App) ingestCmd(path string) tea.Cmd {
	if a.services.Ingest == nil {
		return func() tea.Msg { return errMsg{fmt.Errorf("ingest service not configured")} }
	}
	abs := path
	if !filepath.IsAbs(path) {
		if p, err := filepath.Abs(path); err == nil {
			abs = p
		}
	}
	a.busy = true
	a.status = "importing..."
	return tea.Batch(a.spin.Tick, func() tea.Msg {
		res, err := a.services.Ingest.ImportFile(a.ctx, abs, service.ImportOptions{})
		if err != nil {
			return errMsg{err}
		}
		return ingestDoneMsg{Result: res}
	})
}

func (a *App) openInput(modal modalState, value string) {
	a.modal = modal
	a.input.SetValue(value)
	a.input.CursorEnd()
	a.input.Focus()
}

func (a *App) closeModal() {
	a.modal = modalNone
	a.input.Blur()
	a.input.SetValue("")
}

func (a *App) handleModalKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.modal {
	case modalCategoryPicker:
		switch m.String() {
		case "esc":
			a.modal = modalNone
		case "up", "k":
			if a.pickerCursor > 0 {
				a.pickerCursor--
			}
		case "down", "j":
			if a.pickerCursor < len(a.categories) { // +1 for [none]
				a.pickerCursor++
			}
		case "enter":
			a.modal = modalNone
			id := a.editingID
			var catID *string
			if a.pickerCursor > 0 && a.pickerCursor <= len(a.categories) {
				cid := a.categories[a.pickerCursor-1].ID
				catID = &cid
			}
			return a, a.action("saving category...", func() (string, error) {
				if err := a.repos.Records.UpdateCategory(a.ctx, id, catID); err != nil {
					return "", err
				}
				if catID == nil {
					return "category cleared", nil
				}
				return "category updated", nil
			})
		}
		return a, nil
	case modalConfirmReset:
		switch m.String() {
		case "y", "Y":
			a.modal = modalNone
			return a, a.resetCmd()
		case "n", "N", "esc":
			a.modal = modalNone
		}
		return a, nil
	}

	switch m.Type {
	case tea.KeyEsc:
		a.closeModal()
		return a, nil
	case tea.KeyEnter:
		mode, text := a.modal, strings.TrimSpace(a.input.Value())
		a.closeModal()
		return a, a.submit(mode, text)
	}
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(m)
	return a, cmd
}

// submit applies a text modal's value.
func (a *App) submit(mode modalState, text string) tea.Cmd {
	switch mode {
	case modalSearch:
		a.filter.Search = text
		a.recCursor = 0
		return a.loadRecords()
	case modalTags:
		rec := a.recordByID(a.editingID)
		if rec == nil || a.services.Tags == nil {
			return nil
		}
		r := *rec
		return a.action("saving tags...", func() (string, error) {
			return "tags updated", a.services.Tags.Set(a.ctx, r, service.NormalizeTags(text))
		})
	case modalNotes:
		id := a.editingID
		var notes *string
		if text != "" {
			notes = &text
		}
		return a.action("saving notes...", func() (string, error) {
			return "notes updated", a.repos.Records.UpdateNotes(a.ctx, id, notes)
		})
	case modalSaveView:
		if a.services.Views == nil {
			a.status = "saved views not configured"
			return nil
		}
		v := prefs.View{
			Name:         text,
			Timeframe:    string(a.preset),
			CollectionID: a.filter.CollectionID,
			CategoryID:   a.filter.CategoryID,
			Tag:          a.filter.Tag,
			Search:       a.filter.Search,
		}
		return func() tea.Msg {
			views, err := a.services.Views.Upsert(v)
			if err != nil {
				return errMsg{err}
			}
			return viewSavedMsg{name: v.Name, views: views}
		}
	case modalNewCategory:
		if text == "" {
			a.status = "enter a value"
			return nil
		}
		sortOrder := len(a.categories) + 1
		return a.action("adding category...", func() (string, error) {
			existing, err := a.repos.Categories.ByName(a.ctx, text)
			if err != nil {
				return "", err
			}
			if existing != nil {
				return "", fmt.Errorf("category %q already exists", existing.Name)
			}
			c := repository.Category{ID: repository.CategoryID(text), Name: text, SortOrder: sortOrder}
			return "category added", a.repos.Categories.Upsert(a.ctx, c)
		})
	case modalRenameCategory:
		cat := a.categoryByID(a.editingID)
		if cat == nil || text == "" {
			return nil
		}
		c := *cat
		c.Name = text
		return a.action("renaming category...", func() (string, error) {
			return "category renamed", a.repos.Categories.Upsert(a.ctx, c)
		})
	}
	return nil
}

// loadSchema reads the applied migration version for the settings view.
func (a *App) loadSchema() tea.Cmd {
	path := a.cfg.Database.Path
	return func() tea.Msg {
		v, dirty, err := database.SchemaVersion(path)
		if err != nil {
			a.log.Warn("schema version", "path", path, "err", err)
			return schemaMsg("unknown")
		}
		if v == 0 {
			return schemaMsg("none")
		}
		s := fmt.Sprintf("v%d", v)
		if dirty {
			s += " (dirty)"
		}
		return schemaMsg(s)
	}
}

func (a *App) resetCmd() tea.Cmd {
	if a.services.Maintenance == nil {
		return func() tea.Msg { return errMsg{fmt.Errorf("maintenance not configured")} }
	}
	a.recCursor, a.dupCursor, a.settingsCursor, a.pickerCursor = 0, 0, 0, 0
	return a.action("resetting...", func() (string, error) {
		return "database reset (empty) - import or seed records", a.services.Maintenance.Reset(a.ctx)
	})
}

func (a *App) categoryByID(id string) *repository.Category {
	for _, c := range a.categories {
		if c.ID == id {
			copy := c
			return &copy
		}
	}
	return nil
}

func (a *App) recordByID(id string) *repository.Record {
	for i := range a.records {
		if a.records[i].ID == id {
			return &a.records[i]
		}
	}
	return nil
}

// messages
type recordsMsg []repository.Record

type summaryMsg service.Summary

type pendingMsg []candidateView

type categoryListMsg []repository.Category

type collectionListMsg []repository.Collection

type viewsMsg []prefs.View

type schemaMsg string

type viewSavedMsg struct {
	name  string
	views []prefs.View
}

type doneMsg string

type errMsg struct{ error }

type ingestDoneMsg struct {
	Result service.IngestResult
}
