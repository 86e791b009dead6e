package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jask/recordboard/internal/database/repository"
)

// ExportVersion is the JSON document version written and accepted.
const ExportVersion = 1

// ExportRecord is the serialised form of a record.
type ExportRecord struct {
	ID          string   `json:"id"`
	Date        string   `json:"date"`
	Collection  string   `json:"collection"`
	Title       string   `json:"title"`
	AmountCents int64    `json:"amount_cents"`
	Category    string   `json:"category,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Status      string   `json:"status"`
}

// ExportDocument wraps exported records.
type ExportDocument struct {
	Version    int            `json:"version"`
	ExportedAt time.Time      `json:"exported_at"`
	Records    []ExportRecord `json:"records"`
}

// Export formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// ExportService writes records out as CSV or JSON.
type ExportService struct {
	Records     *repository.RecordRepo
	Collections *repository.CollectionRepo
	Categories  *repository.CategoryRepo
	Now         func() time.Time
}

func (s *ExportService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Document builds the export document for records matching f, oldest first.
func (s *ExportService) Document(ctx context.Context, f repository.RecordFilters) (ExportDocument, error) {
	recs, err := s.Records.List(ctx, f)
	if err != nil {
		return ExportDocument{}, err
	}
	collNames, err := collectionNames(ctx, s.Collections)
	if err != nil {
		return ExportDocument{}, err
	}
	catNames, err := categoryNames(ctx, s.Categories)
	if err != nil {
		return ExportDocument{}, err
	}

	doc := ExportDocument{Version: ExportVersion, ExportedAt: s.now(), Records: make([]ExportRecord, 0, len(recs))}
	for i := len(recs) - 1; i >= 0; i-- {
		r := recs[i]
		er := ExportRecord{
			ID:          r.ID,
			Date:        r.Date.Format(time.DateOnly),
			Collection:  collNames[r.CollectionID],
			Title:       r.Title,
			AmountCents: r.AmountCents,
			Tags:        r.TagNames(),
			Status:      r.Status,
		}
		if r.CategoryID != nil {
			er.Category = catNames[*r.CategoryID]
		}
		if r.Notes != nil {
			er.Notes = *r.Notes
		}
		if len(er.Tags) == 0 {
			er.Tags = nil
		}
		doc.Records = append(doc.Records, er)
	}
	return doc, nil
}

// WriteJSON writes an indented export document and returns the record count.
func (s *ExportService) WriteJSON(ctx context.Context, w io.Writer, f repository.RecordFilters) (int, error) {
	doc, err := s.Document(ctx, f)
	if err != nil {
		return 0, err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return 0, fmt.Errorf("encode json: %w", err)
	}
	return len(doc.Records), nil
}

// CSVHeader is the header row written by WriteCSV. ImportCSV maps it back
// by name, collection included.
var CSVHeader = []string{"date", "collection", "title", "amount", "category", "notes", "tags"}

// WriteCSV writes records with a header row and returns the record count.
func (s *ExportService) WriteCSV(ctx context.Context, w io.Writer, f repository.RecordFilters) (int, error) {
	doc, err := s.Document(ctx, f)
	if err != nil {
		return 0, err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return 0, err
	}
	for _, r := range doc.Records {
		if err := cw.Write([]string{
			r.Date, r.Collection, r.Title, FormatCents(r.AmountCents), r.Category, r.Notes, strings.Join(r.Tags, ";"),
		}); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, err
	}
	return len(doc.Records), nil
}

// ExportFile writes to path atomically. An empty format is taken from the
// file extension.
func (s *ExportService) ExportFile(ctx context.Context, path, format string, f repository.RecordFilters) (int, error) {
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	var write func(context.Context, io.Writer, repository.RecordFilters) (int, error)
	switch format {
	case FormatCSV:
		write = s.WriteCSV
	case FormatJSON:
		write = s.WriteJSON
	default:
		return 0, fmt.Errorf("unknown export format %q", format)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("mkdir export dir: %w", err)
	}
	tmp := path + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, err
	}
	n, err := write(ctx, out, f)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, err
	}
	return n, nil
}

func collectionNames(ctx context.Context, repo *repository.CollectionRepo) (map[string]string, error) {
	out := map[string]string{}
	if repo == nil {
		return out, nil
	}
	colls, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range colls {
		out[c.ID] = c.Name
	}
	return out, nil
}

func categoryNames(ctx context.Context, repo *repository.CategoryRepo) (map[string]string, error) {
	out := map[string]string{}
	if repo == nil {
		return out, nil
	}
	cats, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range cats {
		out[c.ID] = c.Name
	}
	return out, nil
}
