package content

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JustJay7/courtlight/internal/database"
	"github.com/JustJay7/courtlight/internal/scraper"
	"github.com/JustJay7/courtlight/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Summary reports a finished content pass.
type Summary struct {
	RunID      string
	Pending    int
	Stored     int
	Merged     int
	Failed     int
	Downloaded int
}

// Populator fills in the text of every judgement that has none. Documents
// are acquired concurrently; deduplication and the per-document commit run
// one at a time.
type Populator struct {
	store    *database.Store
	fetcher  *scraper.Fetcher
	acquirer *Acquirer
	dedup    *Deduplicator
	workers  int
	logger   *logger.Logger

	mu sync.Mutex
}

func NewPopulator(store *database.Store, f *scraper.Fetcher, acquirer *Acquirer, workers int, log *logger.Logger) *Populator {
	if workers < 1 {
		workers = 1
	}
	return &Populator{
		store:    store,
		fetcher:  f,
		acquirer: acquirer,
		dedup:    NewDeduplicator(log),
		workers:  workers,
		logger:   log.With("component", "populator"),
	}
}

// Run processes every pending judgement, oldest first. A document that fails
// is logged and left pending for the next run; only a failure to list the
// pending judgements, or cancellation, fails the pass.
func (p *Populator) Run(ctx context.Context) (*Summary, error) {
	started := time.Now()
	summary := &Summary{RunID: uuid.NewString()}
	log := p.logger.With("run_id", summary.RunID)

	err := p.run(ctx, summary, log)

	run := &database.ScrapeRun{
		RunID:      summary.RunID,
		Kind:       database.RunKindPopulateContents,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Documents:  summary.Stored + summary.Merged,
		Duplicates: summary.Merged,
		Failures:   summary.Failed,
		Success:    err == nil,
	}
	if err != nil {
		run.ErrorMessage = err.Error()
	}
	if recErr := p.store.RecordRun(context.WithoutCancel(ctx), run); recErr != nil {
		log.Error("Failed to record run", "error", recErr)
	}

	if err != nil {
		return summary, err
	}
	log.Info("Content pass finished",
		"pending", summary.Pending,
		"stored", summary.Stored,
		"merged", summary.Merged,
		"failed", summary.Failed,
		"downloaded", summary.Downloaded,
		"duration", time.Since(started).String(),
	)
	return summary, nil
}

func (p *Populator) run(ctx context.Context, summary *Summary, log *logger.Logger) error {
	pending, err := p.store.JudgementsMissingContent(ctx)
	if err != nil {
		return err
	}
	summary.Pending = len(pending)
	log.Info("Populating judgement content", "pending", len(pending), "workers", p.workers)

	session, err := p.fetcher.NewSession()
	if err != nil {
		return err
	}
	defer session.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	done := 0
	for i := range pending {
		if gctx.Err() != nil {
			break
		}
		judgement := &pending[i]
		g.Go(func() error {
			doc, acqErr := p.acquirer.Acquire(gctx, session, judgement.PDFLink)

			p.mu.Lock()
			defer p.mu.Unlock()

			if acqErr != nil {
				summary.Failed++
				log.Error("Failed to populate judgement content", "url", judgement.PDFLink, "error", acqErr)
				return nil
			}
			if doc.Downloaded {
				summary.Downloaded++
			}

			outcome, err := p.commit(gctx, judgement, doc)
			if err != nil {
				summary.Failed++
				log.Error("Failed to store judgement content", "url", judgement.PDFLink, "error", err)
				return nil
			}

			switch outcome {
			case Merged:
				summary.Merged++
			default:
				summary.Stored++
			}
			done++
			log.Info(fmt.Sprintf("%d of %d judgement content populated", done, len(pending)),
				"url", judgement.PDFLink,
				"outcome", outcome.String(),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (p *Populator) commit(ctx context.Context, judgement *database.Judgement, doc *Document) (Outcome, error) {
	repo, err := p.store.Begin(ctx)
	if err != nil {
		return Stored, err
	}
	defer repo.Rollback()

	outcome, err := p.dedup.Resolve(ctx, repo, judgement, doc)
	if err != nil {
		return outcome, err
	}
	return outcome, repo.Commit()
}
