package service

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jask/recordboard/internal/config"
	"github.com/jask/recordboard/internal/database/repository"
	"github.com/jask/recordboard/internal/period"
)

// IngestService imports records from CSV and JSON files.
type IngestService struct {
	Records     *repository.RecordRepo
	Collections *repository.CollectionRepo
	Categories  *repository.CategoryRepo
	Tags        *TagService
	Logger      *slog.Logger

	collectionCache map[string]repository.Collection
	categoryCache   map[string]string
}

type IngestResult struct {
	Imported int
	Skipped  int
	Errors   []error
}

// ImportOptions selects the target collection and CSV layout. With a nil
// Format the first row is inspected: a row containing a "date" cell is
// treated as a header and columns are mapped by name, otherwise the default
// layout applies. A non-empty collection cell sends that row to its own
// collection; Collection covers the rest.
type ImportOptions struct {
	Collection string
	Format     *config.ImportFormat
}

// row is one parsed input line, independent of source format.
type row struct {
	line       int
	collection string
	date       time.Time
	title      string
	cents      int64
	category   string
	notes      string
	tags       []string
}

// Fingerprint identifies a record by content so the same line imported
// twice is recognised.
func Fingerprint(collectionID string, date time.Time, cents int64, title string) string {
	norm := strings.Join(strings.Fields(strings.ToUpper(title)), " ")
	joined := strings.Join([]string{collectionID, date.Format(time.DateOnly), strconv.FormatInt(cents, 10), norm}, "|")
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}

// ImportFile opens path and dispatches on its extension. CSV rows without a
// collection of their own go into opts.Collection, or one named after the
// file; JSON records keep their own unless opts.Collection is set.
func (s *IngestService) ImportFile(ctx context.Context, path string, opts ImportOptions) (IngestResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return IngestResult{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var res IngestResult
	if strings.EqualFold(filepath.Ext(path), ".json") {
		res, err = s.ImportJSON(ctx, f, opts.Collection)
	} else {
		if strings.TrimSpace(opts.Collection) == "" {
			opts.Collection = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		res, err = s.ImportCSV(ctx, f, opts)
	}
	for i := range res.Errors {
		res.Errors[i] = fmt.Errorf("%s: %w", filepath.Base(path), res.Errors[i])
	}
	s.logger().Info("import finished", "file", path, "imported", res.Imported, "skipped", res.Skipped, "errors", len(res.Errors))
	return res, err
}

// ImportCSV reads delimited rows into the collection named in opts.
// Row-level problems are collected in the result; only failures that stop
// the whole import are returned as an error.
func (s *IngestService) ImportCSV(ctx context.Context, r io.Reader, opts ImportOptions) (IngestResult, error) {
	res := IngestResult{}
	s.resetCaches()
	coll, err := s.collectionForName(ctx, opts.Collection, "csv")
	if err != nil {
		return res, err
	}

	format := opts.Format
	csvr := csv.NewReader(bufio.NewReader(r))
	csvr.TrimLeadingSpace = true
	csvr.FieldsPerRecord = -1
	csvr.LazyQuotes = true
	if format != nil && format.Delimiter != "" {
		d, _ := utf8.DecodeRuneInString(format.Delimiter)
		csvr.Comma = d
	}

	first := true
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rec, err := csvr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return res, fmt.Errorf("read csv: %w", err)
			}
			res.Errors = append(res.Errors, err)
			continue
		}
		line, _ := csvr.FieldPos(0)
		if first {
			first = false
			if format == nil {
				if hf, ok := headerFormat(rec); ok {
					format = &hf
					continue
				}
				def := config.DefaultFormats()[0]
				format = &def
			} else if format.HasHeader {
				continue
			}
		}
		if isBlank(rec) {
			continue
		}
		parsed, err := parseRow(rec, *format)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		parsed.line = line
		target := coll
		if parsed.collection != "" {
			target, err = s.collectionForName(ctx, parsed.collection, "csv")
			if err != nil {
				res.Errors = append(res.Errors, fmt.Errorf("line %d collection: %w", line, err))
				continue
			}
		}
		s.store(ctx, target, parsed, &res)
	}
	return res, nil
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func intPtr(i int) *int { return &i }

// headerFormat maps columns by header name when rec looks like a header.
func headerFormat(rec []string) (config.ImportFormat, bool) {
	f := config.ImportFormat{Name: "header", HasHeader: true, DateCol: -1, AmountCol: -1, TitleCol: -1, AmountStrip: ",$"}
	for i, cell := range rec {
		switch strings.ToLower(strings.TrimSpace(cell)) {
		case "date", "occurred_on":
			f.DateCol = i
		case "amount", "value":
			f.AmountCol = i
		case "title", "description", "desc", "name":
			f.TitleCol = i
		case "category":
			f.CategoryCol = intPtr(i)
		case "notes", "note", "comment":
			f.NotesCol = intPtr(i)
		case "tags":
			f.TagsCol = intPtr(i)
		case "collection":
			f.CollectionCol = intPtr(i)
		}
	}
	if f.DateCol < 0 {
		return config.ImportFormat{}, false
	}
	if f.AmountCol < 0 {
		f.AmountCol = f.DateCol + 1
	}
	if f.TitleCol < 0 {
		f.TitleCol = f.AmountCol + 1
	}
	return f, true
}

func cell(rec []string, idx int) (string, bool) {
	if idx < 0 || idx >= len(rec) {
		return "", false
	}
	return strings.TrimSpace(rec[idx]), true
}

func optCell(rec []string, idx *int) string {
	if idx == nil {
		return ""
	}
	v, _ := cell(rec, *idx)
	return v
}

func parseRow(rec []string, f config.ImportFormat) (row, error) {
	var out row
	dateStr, ok := cell(rec, f.DateCol)
	if !ok {
		return out, fmt.Errorf("missing date column %d", f.DateCol)
	}
	date, err := period.ParseDate(dateStr, f.DateFormat)
	if err != nil {
		return out, fmt.Errorf("date: %w", err)
	}
	out.date = date

	amountStr, ok := cell(rec, f.AmountCol)
	if !ok {
		return out, fmt.Errorf("missing amount column %d", f.AmountCol)
	}
	cents, err := ParseCents(amountStr, f.AmountStrip)
	if err != nil {
		return out, fmt.Errorf("amount: %w", err)
	}
	if f.Negate {
		cents = -cents
	}
	out.cents = cents

	if f.TitleJoin && f.TitleCol >= 0 && f.TitleCol < len(rec) {
		var parts []string
		for _, p := range rec[f.TitleCol:] {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		out.title = strings.Join(parts, " ")
	} else {
		out.title, _ = cell(rec, f.TitleCol)
	}
	if out.title == "" {
		return out, fmt.Errorf("empty title")
	}

	out.category = optCell(rec, f.CategoryCol)
	out.notes = optCell(rec, f.NotesCol)
	out.tags = NormalizeTags(optCell(rec, f.TagsCol))
	out.collection = optCell(rec, f.CollectionCol)
	return out, nil
}

// store inserts one parsed row, updating res.
func (s *IngestService) store(ctx context.Context, coll repository.Collection, in row, res *IngestResult) {
	rec := repository.Record{
		ID:           uuid.NewString(),
		CollectionID: coll.ID,
		Date:         in.date,
		Title:        in.title,
		AmountCents:  in.cents,
		Notes:        nullableStr(in.notes),
		Status:       repository.StatusActive,
		Fingerprint:  Fingerprint(coll.ID, in.date, in.cents, in.title),
	}
	if in.category != "" {
		id, err := s.categoryForName(ctx, in.category)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("line %d category: %w", in.line, err))
			return
		}
		rec.CategoryID = &id
	}
	if err := s.Records.Insert(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			res.Skipped++
			return
		}
		res.Errors = append(res.Errors, fmt.Errorf("line %d insert: %w", in.line, err))
		return
	}
	if len(in.tags) > 0 && s.Tags != nil {
		if err := s.Tags.Attach(ctx, rec.ID, in.tags); err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("line %d tags: %w", in.line, err))
		}
	}
	res.Imported++
}

// ImportJSON reads a document produced by ExportService.WriteJSON. Each
// record keeps its own collection unless collection is non-empty.
func (s *IngestService) ImportJSON(ctx context.Context, r io.Reader, collection string) (IngestResult, error) {
	res := IngestResult{}
	s.resetCaches()
	var doc ExportDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return res, fmt.Errorf("decode json: %w", err)
	}
	if doc.Version != ExportVersion {
		return res, fmt.Errorf("unsupported export version %d", doc.Version)
	}
	for i, er := range doc.Records {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		line := i + 1
		name := er.Collection
		if strings.TrimSpace(collection) != "" {
			name = collection
		}
		coll, err := s.collectionForName(ctx, name, "json")
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("record %d collection: %w", line, err))
			continue
		}
		date, err := period.ParseDate(er.Date, time.DateOnly)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("record %d date: %w", line, err))
			continue
		}
		if strings.TrimSpace(er.Title) == "" {
			res.Errors = append(res.Errors, fmt.Errorf("record %d: empty title", line))
			continue
		}
		s.store(ctx, coll, row{
			line:     line,
			date:     date,
			title:    strings.TrimSpace(er.Title),
			cents:    er.AmountCents,
			category: er.Category,
			notes:    er.Notes,
			tags:     NormalizeTags(strings.Join(er.Tags, ",")),
		}, &res)
	}
	return res, nil
}

func nullableStr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func (s *IngestService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// resetCaches drops name lookups so a reset between imports is seen.
func (s *IngestService) resetCaches() {
	s.collectionCache = make(map[string]repository.Collection)
	s.categoryCache = make(map[string]string)
}

func (s *IngestService) collectionForName(ctx context.Context, name, kind string) (repository.Collection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return repository.Collection{}, errors.New("collection name required")
	}
	if s.collectionCache == nil {
		s.collectionCache = make(map[string]repository.Collection)
	}
	key := strings.ToLower(name)
	if c, ok := s.collectionCache[key]; ok {
		return c, nil
	}
	id := repository.CollectionID(name)
	existing, err := s.Collections.Get(ctx, id)
	if err != nil {
		return repository.Collection{}, err
	}
	c := repository.Collection{ID: id, Name: name, Kind: kind}
	if existing != nil {
		c = *existing
	} else if err := s.Collections.Upsert(ctx, c); err != nil {
		return repository.Collection{}, err
	}
	s.collectionCache[key] = c
	return c, nil
}

func (s *IngestService) categoryForName(ctx context.Context, name string) (string, error) {
	if s.categoryCache == nil {
		s.categoryCache = make(map[string]string)
	}
	key := strings.ToLower(strings.TrimSpace(name))
	if id, ok := s.categoryCache[key]; ok {
		return id, nil
	}
	cat, err := s.Categories.ByName(ctx, name)
	if err != nil {
		return "", err
	}
	if cat == nil {
		c := repository.Category{ID: repository.CategoryID(name), Name: strings.TrimSpace(name), SortOrder: 100}
		if err := s.Categories.Upsert(ctx, c); err != nil {
			return "", err
		}
		cat = &c
	}
	s.categoryCache[key] = cat.ID
	return cat.ID, nil
}
