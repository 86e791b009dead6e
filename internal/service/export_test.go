package service

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/recordboard/internal/database/repository"
	"github.com/jask/recordboard/internal/period"
)

const exportFixture = `date,amount,title,category,notes,tags
2026-02-03,-42.50,Groceries,Food,big shop,weekly;home
2026-02-01,3000.00,Salary,Income,,
2026-03-09,-7.25,Coffee,,,
`

func newExporter(e *testEnv) *ExportService {
	return &ExportService{
		Records:     e.records,
		Collections: e.collections,
		Categories:  e.categories,
		Now:         func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) },
	}
}

func TestWriteJSONRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := newEnv(t)
	require.Empty(t, src.importCSV(t, "Everyday", exportFixture).Errors)

	var buf bytes.Buffer
	n, err := newExporter(src).WriteJSON(ctx, &buf, repository.RecordFilters{})
	require.NoError(t, err)
	require.Equal(t, 3, n)

	var doc ExportDocument
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Equal(t, ExportVersion, doc.Version)
	require.Equal(t, 2026, doc.ExportedAt.Year())
	require.Len(t, doc.Records, 3)
	require.Equal(t, "Salary", doc.Records[0].Title, "oldest first")
	require.Equal(t, "Groceries", doc.Records[1].Title)
	require.Equal(t, "Everyday", doc.Records[1].Collection)
	require.Equal(t, "Food", doc.Records[1].Category)
	require.Equal(t, "big shop", doc.Records[1].Notes)
	require.Equal(t, []string{"home", "weekly"}, doc.Records[1].Tags)
	require.Empty(t, doc.Records[2].Category)
	require.NotContains(t, buf.String(), `"tags": []`)

	dst := newEnv(t)
	res, err := dst.ingest.ImportJSON(ctx, bytes.NewReader(buf.Bytes()), "")
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Equal(t, 3, res.Imported)

	got := dst.byTitle(t, repository.RecordFilters{})
	require.Equal(t, int64(-4250), got["Groceries"].AmountCents)
	require.Equal(t, []string{"home", "weekly"}, got["Groceries"].TagNames())
	require.Equal(t, repository.CollectionID("Everyday"), got["Groceries"].CollectionID)
	require.Equal(t, repository.CategoryID("Income"), *got["Salary"].CategoryID)

	again, err := dst.ingest.ImportJSON(ctx, bytes.NewReader(buf.Bytes()), "")
	require.NoError(t, err)
	require.Equal(t, 3, again.Skipped)

	moved, err := dst.ingest.ImportJSON(ctx, bytes.NewReader(buf.Bytes()), "Archive")
	require.NoError(t, err)
	require.Equal(t, 3, moved.Imported, "collection override changes fingerprints")
}

func TestWriteCSVRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := newEnv(t)
	require.Empty(t, src.importCSV(t, "Everyday", exportFixture).Errors)

	feb, err := period.Custom(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := newExporter(src).WriteCSV(ctx, &buf, repository.RecordFilters{Range: feb})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Equal(t, "date,collection,title,amount,category,notes,tags", lines[0])
	require.Equal(t, "2026-02-01,Everyday,Salary,3000.00,Income,,", lines[1])
	require.Equal(t, "2026-02-03,Everyday,Groceries,-42.50,Food,big shop,home;weekly", lines[2])

	dst := newEnv(t)
	res := dst.importCSV(t, "Copy", buf.String())
	require.Empty(t, res.Errors)
	require.Equal(t, 2, res.Imported)
	got := dst.byTitle(t, repository.RecordFilters{})
	require.Equal(t, int64(300000), got["Salary"].AmountCents)
	require.Equal(t, []string{"home", "weekly"}, got["Groceries"].TagNames())
	require.Equal(t, repository.CollectionID("Everyday"), got["Salary"].CollectionID, "collection cell wins over the default")
	copyColl, err := dst.collections.Get(ctx, repository.CollectionID("Copy"))
	require.NoError(t, err)
	require.NotNil(t, copyColl, "default collection is still created")
}

func TestWriteCSVKeepsEachCollection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := newEnv(t)
	require.Empty(t, src.importCSV(t, "Everyday", exportFixture).Errors)
	require.Empty(t, src.importCSV(t, "Travel", "date,amount,title\n2026-02-10,-120.00,Train\n").Errors)

	var buf bytes.Buffer
	n, err := newExporter(src).WriteCSV(ctx, &buf, repository.RecordFilters{})
	require.NoError(t, err)
	require.Equal(t, 4, n)

	dst := newEnv(t)
	path := filepath.Join(t.TempDir(), "backup.csv")
	data := buf.String() + "2026-03-11,,Parking,-4.00,,,\n"
	require.NoError(t, writeFile(path, data))
	res, err := dst.ingest.ImportFile(ctx, path, ImportOptions{})
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Equal(t, 5, res.Imported)

	got := dst.byTitle(t, repository.RecordFilters{})
	require.Equal(t, repository.CollectionID("Travel"), got["Train"].CollectionID)
	require.Equal(t, repository.CollectionID("Everyday"), got["Coffee"].CollectionID)
	require.Equal(t, repository.CollectionID("backup"), got["Parking"].CollectionID, "blank cell falls back to the file name")

	again, err := dst.ingest.ImportFile(ctx, path, ImportOptions{})
	require.NoError(t, err)
	require.Equal(t, 5, again.Skipped)
}

func TestExportFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t)
	require.Empty(t, e.importCSV(t, "Everyday", exportFixture).Errors)
	exp := newExporter(e)
	dir := t.TempDir()

	path := filepath.Join(dir, "out", "records.json")
	n, err := exp.ExportFile(ctx, path, "", repository.RecordFilters{})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	_, err = os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"version": 1`)

	csvPath := filepath.Join(dir, "records.txt")
	_, err = exp.ExportFile(ctx, csvPath, FormatCSV, repository.RecordFilters{})
	require.NoError(t, err)
	data, err = os.ReadFile(csvPath)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "date,collection"))

	_, err = exp.ExportFile(ctx, filepath.Join(dir, "records.xml"), "", repository.RecordFilters{})
	require.ErrorContains(t, err, "unknown export format")
}
