package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jask/recordboard/internal/config"
	"github.com/jask/recordboard/internal/database"
	"github.com/jask/recordboard/internal/database/repository"
	"github.com/jask/recordboard/internal/logger"
	"github.com/jask/recordboard/internal/prefs"
	"github.com/jask/recordboard/internal/service"
	"github.com/jask/recordboard/internal/tui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// env is everything a command needs once config and the database are up.
type env struct {
	cfg   config.Config
	db    *sql.DB
	log   *slog.Logger
	repos tui.Repos
	tags  *service.TagService

	ingest      *service.IngestService
	export      *service.ExportService
	summary     *service.SummaryService
	duplicates  *service.DuplicateFinder
	maintenance *service.MaintenanceService
}

func openEnv(ctx context.Context, log *slog.Logger) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return openEnvWith(ctx, cfg, log)
}

func openEnvWith(ctx context.Context, cfg config.Config, log *slog.Logger) (*env, error) {
	db, err := database.Prepare(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := database.SeedDefaults(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seed defaults: %w", err)
	}

	records := repository.NewRecordRepo(db)
	cats := repository.NewCategoryRepo(db)
	colls := repository.NewCollectionRepo(db)
	dups := repository.NewDuplicateRepo(db)
	tags := &service.TagService{Records: records, Tags: repository.NewTagRepo(db)}

	e := &env{
		cfg:   cfg,
		db:    db,
		log:   log,
		repos: tui.Repos{Records: records, Categories: cats, Collections: colls, Duplicates: dups},
		tags:  tags,
	}
	e.ingest = &service.IngestService{Records: records, Collections: colls, Categories: cats, Tags: tags, Logger: log}
	e.export = &service.ExportService{Records: records, Collections: colls, Categories: cats}
	e.summary = &service.SummaryService{Records: records, Categories: cats, Collections: colls}
	e.duplicates = &service.DuplicateFinder{
		DB:          db,
		Records:     records,
		Candidates:  dups,
		WindowDays:  cfg.Dedupe.WindowDays,
		MaxDistance: cfg.Dedupe.MaxDistance,
		Logger:      log,
	}
	e.maintenance = &service.MaintenanceService{DB: db, Logger: log}
	log.Debug("database ready", "path", cfg.Database.Path)
	return e, nil
}

func (e *env) Close() error { return e.db.Close() }

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "recordboard",
		Short:         "Track, import and summarise records from a local SQLite store",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context())
		},
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "log debug output to stderr")
	root.AddCommand(
		&cobra.Command{
			Use:   "tui",
			Short: "Open the interactive dashboard",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runTUI(cmd.Context())
			},
		},
		newImportCmd(),
		newExportCmd(),
		newSummaryCmd(),
		newSeedCmd(),
		newDedupeCmd(),
		newResetCmd(),
	)
	return root
}

func runTUI(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, closer, err := logger.OpenFile(cfg.Log.Path, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer closer.Close()

	e, err := openEnvWith(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer e.Close()

	app := tui.New(ctx, cfg, e.repos, tui.Services{
		Ingest:      e.ingest,
		Summary:     e.summary,
		Duplicates:  e.duplicates,
		Maintenance: e.maintenance,
		Tags:        e.tags,
		Views:       prefs.DefaultStore(),
	}, log)
	log.Info("tui start", "db", cfg.Database.Path)
	if _, err := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		log.Error("tui exited", "err", err)
		return err
	}
	return nil
}

// cliLogger writes JSON logs to stderr so stdout stays clean for output.
func cliLogger(cmd *cobra.Command) *slog.Logger {
	level := "warn"
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		level = "debug"
	}
	return logger.New(cmd.ErrOrStderr(), level)
}

// withEnv opens the environment for a CLI subcommand and closes it after fn.
func withEnv(cmd *cobra.Command, fn func(e *env, out io.Writer) error) error {
	e, err := openEnv(cmd.Context(), cliLogger(cmd))
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(e, cmd.OutOrStdout())
}
