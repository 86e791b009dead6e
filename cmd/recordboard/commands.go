package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jask/recordboard/internal/config"
	"github.com/jask/recordboard/internal/database/repository"
	"github.com/jask/recordboard/internal/frame"
	"github.com/jask/recordboard/internal/period"
	"github.com/jask/recordboard/internal/service"
	"github.com/jask/recordboard/internal/testdata"
)

func newImportCmd() *cobra.Command {
	var collection, format string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import records from a CSV or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(e *env, out io.Writer) error {
				opts := service.ImportOptions{Collection: collection}
				if format != "" {
					f, ok := e.cfg.FindFormat(format)
					if !ok {
						return fmt.Errorf("unknown import format %q", format)
					}
					opts.Format = &f
				}
				res, err := e.ingest.ImportFile(cmd.Context(), args[0], opts)
				if err != nil {
					return err
				}
				return printIngest(out, res)
			})
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection name (defaults to the file name)")
	cmd.Flags().StringVar(&format, "format", "", "configured CSV format name")
	return cmd
}

func printIngest(w io.Writer, res service.IngestResult) error {
	fmt.Fprintf(w, "imported %d, skipped %d, errors %d\n", res.Imported, res.Skipped, len(res.Errors))
	for _, err := range res.Errors {
		fmt.Fprintf(w, "  %v\n", err)
	}
	return nil
}

func newExportCmd() *cobra.Command {
	var format, timeframe string
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Export records as CSV or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(e *env, out io.Writer) error {
				rng, err := resolveRange(e.cfg, timeframe, time.Now())
				if err != nil {
					return err
				}
				path, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				n, err := e.export.ExportFile(cmd.Context(), path, format, repository.RecordFilters{Range: rng})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "exported %d records to %s\n", n, path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "csv or json (defaults to the file extension)")
	cmd.Flags().StringVar(&timeframe, "timeframe", string(period.All), "timeframe preset")
	return cmd
}

// resolveRange turns a preset name into a UTC record-date range, with "now"
// taken in the configured zone.
func resolveRange(cfg config.Config, preset string, now time.Time) (period.Range, error) {
	p, err := period.ParsePreset(preset)
	if err != nil {
		return period.Range{}, err
	}
	rng, err := period.Resolve(p, now.In(cfg.Location()))
	if err != nil {
		return period.Range{}, err
	}
	return rng.UTC(), nil
}

func newSummaryCmd() *cobra.Command {
	var timeframe, by string
	var pivot bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print totals, spending by category and a time series",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, func(e *env, out io.Writer) error {
				if timeframe == "" {
					timeframe = e.cfg.UI.Timeframe
				}
				if by == "" {
					by = e.cfg.UI.Granularity
				}
				rng, err := resolveRange(e.cfg, timeframe, time.Now())
				if err != nil {
					return err
				}
				g, err := period.ParseGranularity(by)
				if err != nil {
					return err
				}
				if pivot {
					f, err := e.summary.Pivot(cmd.Context(), rng, g)
					if err != nil {
						return err
					}
					return writeMoneyFrame(out, f, e.cfg.UI.CurrencySymbol)
				}
				s, err := e.summary.Dashboard(cmd.Context(), rng, g)
				if err != nil {
					return err
				}
				return printSummary(out, s, e.cfg.UI.CurrencySymbol)
			})
		},
	}
	cmd.Flags().StringVar(&timeframe, "timeframe", "", "timeframe preset (default from config)")
	cmd.Flags().StringVar(&by, "by", "", "day, week, month, quarter or year (default from config)")
	cmd.Flags().BoolVar(&pivot, "pivot", false, "print spending as bucket x category")
	return cmd
}

func printSummary(w io.Writer, s service.Summary, symbol string) error {
	money := func(c int64) string { return service.FormatMoney(symbol, c) }
	fmt.Fprintf(w, "Range: %s (by %s)\n", s.Range, s.Granularity)
	fmt.Fprintf(w, "Income: %s  Expenses: %s  Net: %s\n", money(s.IncomeCents), money(s.ExpenseCents), money(s.NetCents))
	fmt.Fprintf(w, "Records: %d  Uncategorized: %d\n\n", s.Count, s.Uncategorized)
	if s.Count == 0 {
		return nil
	}

	var labels, cats, colls []string
	var income, expense, net, catTotals, catCounts, collNet []int64
	for _, p := range s.Series {
		labels = append(labels, p.Label)
		income = append(income, p.IncomeCents)
		expense = append(expense, p.ExpenseCents)
		net = append(net, p.NetCents)
	}
	for _, c := range s.ByCategory {
		cats = append(cats, c.Name)
		catTotals = append(catTotals, c.TotalCents)
		catCounts = append(catCounts, int64(c.Count))
	}
	for _, c := range s.ByCollection {
		colls = append(colls, c.Name)
		collNet = append(collNet, c.NetCents)
	}

	tables := []struct {
		title  string
		series []*frame.Series
	}{
		{"Series", []*frame.Series{frame.Strings("bucket", labels), frame.Ints("income", income), frame.Ints("expense", expense), frame.Ints("net", net)}},
		{"Spending by category", []*frame.Series{frame.Strings("category", cats), frame.Ints("total", catTotals), frame.Ints("count", catCounts)}},
		{"Collections", []*frame.Series{frame.Strings("collection", colls), frame.Ints("net", collNet)}},
	}
	for _, t := range tables {
		f, err := frame.New(t.series...)
		if err != nil {
			return err
		}
		if f.Len() == 0 {
			continue
		}
		fmt.Fprintln(w, t.title)
		if err := writeMoneyFrame(w, f, symbol); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	return nil
}

// writeMoneyFrame prints f with every numeric column except "count" as money.
func writeMoneyFrame(w io.Writer, f *frame.Frame, symbol string) error {
	return f.Format(w, frame.FormatOptions{
		Cell: func(col string, s *frame.Series, i int) (string, bool) {
			if !s.Numeric() || col == "count" {
				return "", false
			}
			return service.FormatMoney(symbol, int64(math.Round(s.Float(i)))), true
		},
	})
}

func newSeedCmd() *cobra.Command {
	var count int
	var seed uint64
	var collection string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert random sample records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, func(e *env, out io.Writer) error {
				n, err := testdata.Seed(cmd.Context(), testdata.Repos{
					Collections: e.repos.Collections,
					Categories:  e.repos.Categories,
					Records:     e.repos.Records,
				}, testdata.SeedOptions{Count: count, Seed: seed, Collection: collection})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "inserted %d sample records\n", n)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", testdata.DefaultCount, "number of records to generate")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (0 picks one)")
	cmd.Flags().StringVar(&collection, "collection", "", "collection name (default Sample)")
	return cmd
}

func newDedupeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dedupe",
		Short: "Scan for duplicate records and list pending candidates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, func(e *env, out io.Writer) error {
				return dedupe(cmd.Context(), e, out)
			})
		},
	}
}

func dedupe(ctx context.Context, e *env, out io.Writer) error {
	n, err := e.duplicates.Scan(ctx)
	if err != nil {
		return err
	}
	pending, err := e.repos.Duplicates.ListPending(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d new candidates, %d pending\n", n, len(pending))
	line := func(r *repository.Record) string {
		if r == nil {
			return "<missing>"
		}
		return fmt.Sprintf("%s  %-36s %s", r.Date.Format(time.DateOnly), r.Title, service.FormatMoney(e.cfg.UI.CurrencySymbol, r.AmountCents))
	}
	for _, c := range pending {
		a, err := e.repos.Records.Get(ctx, c.RecordAID)
		if err != nil {
			return err
		}
		b, err := e.repos.Records.Get(ctx, c.RecordBID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s (%.2f)\n  A: %s\n  B: %s\n", c.ID, c.Similarity, line(a), line(b))
	}
	return nil
}

var errNeedYes = errors.New("reset deletes all records; pass --yes to confirm")

func newResetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all user data and keep the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errNeedYes
			}
			return withEnv(cmd, func(e *env, out io.Writer) error {
				if err := e.maintenance.Reset(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(out, "database reset")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}
