package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/JustJay7/courtlight/internal/config"
	"github.com/JustJay7/courtlight/internal/database"
	"github.com/JustJay7/courtlight/internal/scraper"
	"github.com/JustJay7/courtlight/pkg/logger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// NewRootCommand builds the courtlight command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "courtlight",
		Short:         "courtlight crawls Delhi High Court judgements into a local database.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newScrapeCasesCommand(),
		newPopulateContentsCommand(),
		newServeCommand(),
		newMigrateCommand(),
	)
	return root
}

func ExecuteContext(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// app is what every subcommand needs: configuration, a logger and an open
// store.
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *gorm.DB
	store *database.Store
}

// bootstrap loads configuration, with dbPath overriding DATABASE_PATH, and
// opens the migrated store.
func bootstrap(dbPath string) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := database.Initialize(cfg.DatabasePath)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &app{
		cfg:   cfg,
		log:   log,
		db:    db,
		store: database.NewStore(db, log),
	}, nil
}

func (a *app) Close() {
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
	a.log.Sync()
}

func (a *app) fetcher() *scraper.Fetcher {
	return scraper.NewFetcher(a.log,
		scraper.WithRetryPolicy(scraper.RetryPolicy{
			BaseDelay: a.cfg.RetryBaseDelay,
			MaxDelay:  a.cfg.RetryMaxDelay,
			Budget:    a.cfg.RetryBudget,
			Logger:    a.log,
		}),
		scraper.WithUserAgent(a.cfg.UserAgent),
		scraper.WithRequestTimeout(a.cfg.ScraperTimeout),
		scraper.WithRequestsPerSecond(a.cfg.RequestsPerSecond),
	)
}

func (a *app) portal() scraper.Portal {
	return scraper.Portal{
		LandingURL:   a.cfg.PortalLandingURL,
		DirectoryURL: a.cfg.PortalDirectoryURL,
		SearchURL:    a.cfg.PortalSearchURL,
	}
}

// parseDateRange parses dd/mm/yyyy bounds and rejects inverted ranges.
func parseDateRange(fromArg, toArg string) (time.Time, time.Time, error) {
	from, err := time.Parse(scraper.DateLayout, fromArg)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from date %q, expected dd/mm/yyyy", fromArg)
	}
	to, err := time.Parse(scraper.DateLayout, toArg)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to date %q, expected dd/mm/yyyy", toArg)
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("from date %s is after to date %s", fromArg, toArg)
	}
	return from, to, nil
}
