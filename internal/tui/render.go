package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jask/recordboard/internal/database/repository"
	"github.com/jask/recordboard/internal/service"
)

// styles
var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	helpStyle     = lipgloss.NewStyle().Faint(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	incomeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	expenseStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	selectedStyle = lipgloss.NewStyle().Bold(true)
	modalStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

const navHelp = "[d] Dashboard  [r] Records  [i] Import  [u] Duplicates  [p] Settings  [q] Quit"

func (a *App) money(cents int64) string {
	return service.FormatMoney(a.cfg.UI.CurrencySymbol, cents)
}

func (a *App) amount(cents int64) string {
	s := fmt.Sprintf("%12s", a.money(cents))
	if cents < 0 {
		return expenseStyle.Render(s)
	}
	return incomeStyle.Render(s)
}

func (a *App) contentWidth() int {
	if a.width <= 0 {
		return 80
	}
	return a.width
}

func (a *App) renderStatus() string {
	if a.status == "" && !a.busy {
		return ""
	}
	if a.busy {
		return a.spin.View() + " " + a.status
	}
	if strings.HasPrefix(a.status, "error:") {
		return errorStyle.Render(a.status)
	}
	return a.status
}

func (a *App) renderDashboard() string {
	rng := a.timeframe()
	out := titleStyle.Render(fmt.Sprintf("Dashboard - %s (%s, by %s)", a.preset.Label(), rng, a.gran)) + "\n"
	if a.summary == nil {
		return out + "loading...\n" + helpStyle.Render(navHelp)
	}
	s := a.summary
	out += fmt.Sprintf("Income: %s  Expenses: %s  Net: %s\n", a.money(s.IncomeCents), a.money(s.ExpenseCents), a.money(s.NetCents))
	out += fmt.Sprintf("Records: %d  Uncategorized: %d  Pending duplicates: %d\n", s.Count, s.Uncategorized, len(a.pending))
	if s.Count > 0 {
		out += "Average: " + a.money(int64(s.Stats.Mean))
		if s.Stats.Min < 0 {
			out += "  Largest expense: " + a.money(int64(s.Stats.Min))
		}
		out += "\n"
	}

	points := make([]barPoint, 0, len(s.Series))
	for _, p := range s.Series {
		points = append(points, barPoint{Label: p.Label, Value: float64(-p.ExpenseCents), Text: a.money(-p.ExpenseCents)})
	}
	out += "\n" + renderBars("Spending", points, a.contentWidth(), 14) + "\n"

	out += "\nTop categories:\n"
	if len(s.ByCategory) == 0 {
		out += "  (no spending)\n"
	}
	for i, c := range s.ByCategory {
		if i == 6 {
			out += fmt.Sprintf("  ... %d more\n", len(s.ByCategory)-i)
			break
		}
		out += fmt.Sprintf("  %-24s %12s  %5.1f%%  (%d)\n", c.Name, a.money(-c.TotalCents), c.Share*100, c.Count)
	}
	if len(s.ByCollection) > 1 {
		out += "\nCollections:\n"
		for _, c := range s.ByCollection {
			out += fmt.Sprintf("  %-24s %12s  (%d)\n", c.Name, a.money(c.NetCents), c.Count)
		}
	}
	out += "\n" + helpStyle.Render("[ / ] Timeframe  [g] Granularity  "+navHelp)
	return out
}

// visibleWindow returns the [start,end) slice of n rows to show around cursor.
func visibleWindow(n, cursor, rows int) (int, int) {
	if rows <= 0 || n <= rows {
		return 0, n
	}
	start := cursor - rows/2
	start = max(0, min(start, n-rows))
	return start, start + rows
}

func (a *App) renderRecords() string {
	title := fmt.Sprintf("Records - %s", a.preset.Label())
	if a.viewIdx >= 0 && a.viewIdx < len(a.savedViews) {
		title += " [" + a.savedViews[a.viewIdx].Name + "]"
	}
	out := titleStyle.Render(title) + "\n"
	if f := a.filterLabel(); f != "" {
		out += helpStyle.Render("filter: "+f) + "\n"
	}
	if len(a.records) == 0 {
		out += "No records. Import a file with [i].\n"
	}
	rows := 20
	if a.height > 0 {
		rows = max(3, a.height-8)
	}
	start, end := visibleWindow(len(a.records), a.recCursor, rows)
	for i := start; i < end; i++ {
		r := a.records[i]
		marker := " "
		if i == a.recCursor {
			marker = "▶"
		}
		tagText := ""
		if len(r.Tags) > 0 {
			tagText = " [" + strings.Join(r.TagNames(), ", ") + "]"
		}
		noteMark := ""
		if r.Notes != nil {
			noteMark = " *"
		}
		line := fmt.Sprintf("%s %-7s  %-36s %s  %s%s%s", marker, r.Date.Format(a.cfg.UI.DateFormat), truncate(r.Title, 36), a.amount(r.AmountCents), a.categoryLabel(r.CategoryID), tagText, noteMark)
		if i == a.recCursor {
			line = selectedStyle.Render(line)
		}
		out += line + "\n"
	}
	if rec := a.currentRecord(); rec != nil {
		detail := fmt.Sprintf("%s  %s", a.collectionName[rec.CollectionID], rec.Date.Format("2006-01-02"))
		if rec.Notes != nil {
			detail += "  notes: " + *rec.Notes
		}
		out += helpStyle.Render(detail) + "\n"
	}
	out += helpStyle.Render("[j/k] Move  [c] Category  [t] Tags  [n] Notes  [/] Search  [x] Archive  [s] Save view  [v] Next view  [esc] Clear  " + navHelp)
	return out
}

func (a *App) filterLabel() string {
	var parts []string
	if a.filter.Search != "" {
		parts = append(parts, fmt.Sprintf("search %q", a.filter.Search))
	}
	if a.filter.Tag != "" {
		parts = append(parts, "tag "+a.filter.Tag)
	}
	if a.filter.CategoryID != "" {
		id := a.filter.CategoryID
		parts = append(parts, "category "+a.categoryLabel(&id))
	}
	if a.filter.CollectionID != "" {
		name := a.collectionName[a.filter.CollectionID]
		if name == "" {
			name = a.filter.CollectionID
		}
		parts = append(parts, "collection "+name)
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func (a *App) renderImport() string {
	title := titleStyle.Render("Import")
	body := a.path.View() + "\n"
	body += "Type a CSV or JSON path and press Enter. The collection is named after the file.\n"
	body += helpStyle.Render("[enter] Import  [esc] Back  [ctrl+c] Quit")
	if a.lastImport != nil {
		body += fmt.Sprintf("\nLast import: %d imported, %d skipped, %d errors", a.lastImport.Imported, a.lastImport.Skipped, len(a.lastImport.Errors))
		for i, err := range a.lastImport.Errors {
			if i == 5 {
				body += fmt.Sprintf("\n  (+%d more)", len(a.lastImport.Errors)-i)
				break
			}
			body += "\n  " + err.Error()
		}
	}
	return fmt.Sprintf("%s\n%s", title, body)
}

func (a *App) renderDuplicates() string {
	title := titleStyle.Render("Duplicate Review")
	help := helpStyle.Render("[s] Scan  [y] Merge  [n] Not duplicate  [j/k] Move  " + navHelp)
	if len(a.pending) == 0 {
		return fmt.Sprintf("%s\nNo pending candidates.\n%s", title, help)
	}
	cv := a.pending[a.dupCursor]
	out := fmt.Sprintf("%s\nCandidate %d of %d  Similarity: %.2f\n", title, a.dupCursor+1, len(a.pending), cv.C.Similarity)
	out += a.duplicateLine("A", cv.A) + "\n"
	out += a.duplicateLine("B", cv.B) + "\n"
	return out + help
}

func (a *App) duplicateLine(label string, r *repository.Record) string {
	if r == nil {
		return label + ": <missing>"
	}
	return fmt.Sprintf("%s: %s  %-36s %s  %s  (%s)", label, r.Date.Format("2006-01-02"), truncate(r.Title, 36), a.amount(r.AmountCents), a.categoryLabel(r.CategoryID), a.collectionName[r.CollectionID])
}

func (a *App) renderSettings() string {
	out := titleStyle.Render("Settings") + "\n"
	out += "Categories\n"
	if len(a.categories) == 0 {
		out += "  (no categories yet)\n"
	}
	for i, c := range a.categories {
		marker := " "
		if i == a.settingsCursor {
			marker = "▶"
		}
		label := c.Name
		if c.ParentID != nil {
			if parent := a.categoryName[*c.ParentID]; parent != "" {
				label = parent + " > " + c.Name
			}
		}
		out += fmt.Sprintf("%s %s\n", marker, label)
	}
	out += helpStyle.Render("[n] New  [enter] Rename  [del] Delete") + "\n\n"
	out += fmt.Sprintf("Database: %s\n", a.cfg.Database.Path)
	if a.schema != "" {
		out += fmt.Sprintf("Schema: %s\n", a.schema)
	}
	out += fmt.Sprintf("Currency: %s  Timezone: %s  Date format: %s\n", a.cfg.UI.CurrencySymbol, a.loc, a.cfg.UI.DateFormat)
	out += fmt.Sprintf("Log: %s (%s)\n", a.cfg.Log.Path, a.cfg.Log.Level)
	out += fmt.Sprintf("Saved views: %d\n", len(a.savedViews))
	out += "\n" + helpStyle.Render("[X] Reset database (clears everything)  "+navHelp)
	return out
}

func (a *App) renderModal() string {
	switch a.modal {
	case modalCategoryPicker:
		out := titleStyle.Render("Select Category") + "\n"
		options := []string{"[none] (clear category)"}
		for _, c := range a.categories {
			label := c.Name
			if c.ParentID != nil {
				if parent := a.categoryName[*c.ParentID]; parent != "" {
					label = parent + " > " + c.Name
				}
			}
			options = append(options, label)
		}
		for i, opt := range options {
			marker := " "
			if i == a.pickerCursor {
				marker = "▶"
			}
			out += fmt.Sprintf("%s %s\n", marker, opt)
		}
		return out + "[enter] Select  [esc] Cancel"
	case modalConfirmReset:
		return titleStyle.Render("Reset database?") + "\nThis will delete all data.\n[y] Yes  [n] No"
	case modalTags:
		return titleStyle.Render("Edit tags (comma-separated)") + "\n" + a.input.View() + "\n[enter] Save  [esc] Cancel"
	case modalNotes:
		return titleStyle.Render("Notes") + "\n" + a.input.View() + "\n[enter] Save  [esc] Cancel"
	case modalSearch:
		return titleStyle.Render("Search title or notes") + "\n" + a.input.View() + "\n[enter] Apply  [esc] Cancel"
	case modalSaveView:
		return titleStyle.Render("Save view as") + "\n" + a.input.View() + "\n[enter] Save  [esc] Cancel"
	case modalNewCategory:
		return titleStyle.Render("New category") + "\n" + a.input.View() + "\n[enter] Save  [esc] Cancel"
	case modalRenameCategory:
		return titleStyle.Render("Rename category") + "\n" + a.input.View() + "\n[enter] Save  [esc] Cancel"
	default:
		return ""
	}
}

func (a *App) categoryLabel(id *string) string {
	if id == nil {
		return "[uncategorized]"
	}
	if name, ok := a.categoryName[*id]; ok && name != "" {
		return name
	}
	return *id
}

type barPoint struct {
	Label string
	Value float64
	Text  string
}

// renderBars draws a horizontal bar per point, scaled to the largest value.
func renderBars(title string, data []barPoint, width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	if len(data) == 0 {
		return title + "\n(no data)"
	}
	if len(data) > height-1 {
		data = data[len(data)-(height-1):]
	}
	maxV, labelW, textW := 0.0, 0, 0
	for _, p := range data {
		maxV = max(maxV, p.Value)
		labelW = max(labelW, len(p.Label))
		textW = max(textW, len(p.Text))
	}
	if maxV <= 0 {
		maxV = 1
	}
	barW := max(1, width-labelW-textW-4)
	lines := []string{title}
	for _, p := range data {
		w := 0
		if p.Value > 0 {
			w = max(1, int(p.Value/maxV*float64(barW)))
		}
		lines = append(lines, fmt.Sprintf("%-*s %*s %s", labelW, p.Label, textW, p.Text, strings.Repeat("#", w)))
	}
	return strings.Join(lines, "\n")
}
