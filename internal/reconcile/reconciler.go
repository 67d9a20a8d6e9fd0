package reconcile

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/JustJay7/courtlight/internal/database"
	"github.com/JustJay7/courtlight/internal/scraper"
	"github.com/JustJay7/courtlight/pkg/logger"
)

// EntityStats counts what reconciling one judge's records changed.
type EntityStats struct {
	Records      int
	Judges       int
	Judgements   int
	Authorships  int
	Cases        int
	SkippedCases int
}

func (s *EntityStats) add(o EntityStats) {
	s.Records += o.Records
	s.Judges += o.Judges
	s.Judgements += o.Judgements
	s.Authorships += o.Authorships
	s.Cases += o.Cases
	s.SkippedCases += o.SkippedCases
}

// Reconciler merges crawled records into one unit of work. Several entities
// may be reconciled at once; every write goes through a single lock so the
// unit of work only ever sees one writer.
type Reconciler struct {
	repo   database.Repository
	mu     sync.Mutex
	logger *logger.Logger
}

func NewReconciler(repo database.Repository, log *logger.Logger) *Reconciler {
	return &Reconciler{
		repo:   repo,
		logger: log.With("component", "reconciler"),
	}
}

// ReconcileEntity drains records into the unit of work. It stops at the first
// error, whether yielded by records or raised by the store. Nothing is
// committed here.
func (r *Reconciler) ReconcileEntity(ctx context.Context, entity scraper.Entity, records iter.Seq2[scraper.CaseRecord, error]) (EntityStats, error) {
	log := r.logger.With("judge", entity.Name)
	log.Info("Started scraping cases", "judge_id", entity.ID)

	var stats EntityStats
	judges := make(map[string]*database.Judge)
	for rec, err := range records {
		if err != nil {
			return stats, err
		}
		if err := r.apply(ctx, log, judges, rec, &stats); err != nil {
			return stats, fmt.Errorf("reconcile case %s: %w", rec.CaseNumber, err)
		}
	}

	log.Info("Finished reconciling judge",
		"records", stats.Records,
		"judgements", stats.Judgements,
		"authorships", stats.Authorships,
		"cases", stats.Cases,
		"skipped", stats.SkippedCases,
	)
	return stats, nil
}

func (r *Reconciler) apply(ctx context.Context, log *logger.Logger, judges map[string]*database.Judge, rec scraper.CaseRecord, stats *EntityStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats.Records++

	judge, err := r.judge(ctx, judges, rec.JudgeName, stats)
	if err != nil {
		return err
	}

	judgement, err := r.repo.FindJudgementByReferenceURL(ctx, rec.ReferenceURL)
	switch {
	case errors.Is(err, database.ErrNotFound):
		judgement = &database.Judgement{
			PDFLink: rec.ReferenceURL,
			Date:    rec.Date,
		}
		if err := r.repo.CreateJudgement(ctx, judgement); err != nil {
			return err
		}
		if _, err := r.repo.AppendAuthor(ctx, judgement, judge); err != nil {
			return err
		}
		stats.Judgements++
	case err != nil:
		return err
	default:
		added, err := r.repo.AppendAuthor(ctx, judgement, judge)
		if err != nil {
			return err
		}
		if added {
			stats.Authorships++
			log.Info(fmt.Sprintf("Added judge %s to case %s", judge.Name, rec.CaseNumber))
		}
	}

	_, err = r.repo.FindCaseByNumber(ctx, rec.CaseNumber)
	switch {
	case errors.Is(err, database.ErrNotFound):
		c := &database.Case{
			CaseNumber:  rec.CaseNumber,
			Party:       rec.Party,
			JudgementID: judgement.ID,
		}
		if err := r.repo.CreateCase(ctx, c); err != nil {
			return err
		}
		stats.Cases++
		log.Info("Added case entry for " + rec.CaseNumber)
	case err != nil:
		return err
	default:
		stats.SkippedCases++
		log.Debug(rec.CaseNumber + " skipped, already exists")
	}
	return nil
}

// judge resolves name through the entity's own cache before the store.
func (r *Reconciler) judge(ctx context.Context, cache map[string]*database.Judge, name string, stats *EntityStats) (*database.Judge, error) {
	if j, ok := cache[name]; ok {
		return j, nil
	}

	j, err := r.repo.FindJudgeByName(ctx, name)
	if errors.Is(err, database.ErrNotFound) {
		j = &database.Judge{Name: name}
		if err := r.repo.CreateJudge(ctx, j); err != nil {
			return nil, err
		}
		stats.Judges++
	} else if err != nil {
		return nil, err
	}

	cache[name] = j
	return j, nil
}
