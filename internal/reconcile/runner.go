package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/JustJay7/courtlight/internal/database"
	"github.com/JustJay7/courtlight/internal/scraper"
	"github.com/JustJay7/courtlight/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RunOptions selects what a listing run crawls.
type RunOptions struct {
	From time.Time
	To   time.Time
	// Judges restricts the run to these directory names. Empty means all.
	Judges []string
}

// RunSummary reports a committed listing run.
type RunSummary struct {
	RunID    string
	Entities int
	EntityStats
}

// Runner drives a whole listing run: directory, per-judge crawls and
// reconciliation, all inside one unit of work that is committed only if
// every judge was crawled successfully.
type Runner struct {
	store       *database.Store
	directory   *scraper.DirectoryFetcher
	crawler     *scraper.ListingCrawler
	concurrency int
	logger      *logger.Logger
}

func NewRunner(store *database.Store, directory *scraper.DirectoryFetcher, crawler *scraper.ListingCrawler, concurrency int, log *logger.Logger) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		store:       store,
		directory:   directory,
		crawler:     crawler,
		concurrency: concurrency,
		logger:      log.With("component", "runner"),
	}
}

// ScrapeCases crawls every selected judge between opts.From and opts.To and
// commits the merged result. Any failure rolls back the entire run.
func (r *Runner) ScrapeCases(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	if opts.From.After(opts.To) {
		return nil, fmt.Errorf("from date %s is after to date %s",
			opts.From.Format(scraper.DateLayout), opts.To.Format(scraper.DateLayout))
	}

	started := time.Now()
	summary := &RunSummary{RunID: uuid.NewString()}
	log := r.logger.With("run_id", summary.RunID)
	log.Info("Starting listing run",
		"from", opts.From.Format(scraper.DateLayout),
		"to", opts.To.Format(scraper.DateLayout),
		"concurrency", r.concurrency,
	)

	err := r.scrape(ctx, opts, summary, log)

	run := &database.ScrapeRun{
		RunID:      summary.RunID,
		Kind:       database.RunKindScrapeCases,
		FromDate:   opts.From.Format(scraper.DateLayout),
		ToDate:     opts.To.Format(scraper.DateLayout),
		StartedAt:  started,
		FinishedAt: time.Now(),
		Entities:   summary.Entities,
		Records:    summary.Records,
		Documents:  summary.Judgements,
		Success:    err == nil,
	}
	if err != nil {
		run.Failures = 1
		run.ErrorMessage = err.Error()
	}
	if recErr := r.store.RecordRun(context.WithoutCancel(ctx), run); recErr != nil {
		log.Error("Failed to record run", "error", recErr)
	}

	if err != nil {
		log.Error("Listing run failed, nothing committed", "error", err)
		return nil, err
	}
	log.Info("Listing run committed",
		"judges_crawled", summary.Entities,
		"records", summary.Records,
		"new_judgements", summary.Judgements,
		"new_authorships", summary.Authorships,
		"new_cases", summary.Cases,
		"duration", time.Since(started).String(),
	)
	return summary, nil
}

func (r *Runner) scrape(ctx context.Context, opts RunOptions, summary *RunSummary, log *logger.Logger) error {
	repo, err := r.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer repo.Rollback()

	wanted := make(map[string]bool, len(opts.Judges))
	for _, name := range opts.Judges {
		wanted[strings.TrimSpace(name)] = true
	}

	reconciler := NewReconciler(repo, log)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	var (
		mu     sync.Mutex
		dirErr error
	)
	for entity, err := range r.directory.Entities(gctx) {
		if err != nil {
			dirErr = err
			break
		}
		if len(wanted) > 0 && !wanted[entity.Name] {
			continue
		}
		delete(wanted, entity.Name)
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			stats, err := reconciler.ReconcileEntity(gctx, entity,
				r.crawler.Records(gctx, entity, opts.From, opts.To))
			if err != nil {
				return err
			}
			mu.Lock()
			summary.Entities++
			summary.add(stats)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if dirErr != nil {
		return dirErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for name := range wanted {
		log.Warn("Requested judge is not in the directory", "judge", name)
	}
	if summary.Entities == 0 {
		log.Warn("No judges crawled")
	}

	if err := repo.Commit(); err != nil {
		return errors.Join(errors.New("listing run not saved"), err)
	}
	return nil
}
