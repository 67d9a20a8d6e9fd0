package reconcile

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/JustJay7/courtlight/internal/database"
	"github.com/JustJay7/courtlight/internal/database/databasetest"
	"github.com/JustJay7/courtlight/internal/scraper"
	"github.com/JustJay7/courtlight/pkg/logger"
	"github.com/stretchr/testify/require"
)

func records(recs []scraper.CaseRecord, tail error) iter.Seq2[scraper.CaseRecord, error] {
	return func(yield func(scraper.CaseRecord, error) bool) {
		for _, r := range recs {
			if !yield(r, nil) {
				return
			}
		}
		if tail != nil {
			yield(scraper.CaseRecord{}, tail)
		}
	}
}

func rec(judge, url, caseNumber string) scraper.CaseRecord {
	return scraper.CaseRecord{
		ReferenceURL: url,
		CaseNumber:   caseNumber,
		Date:         time.Date(2020, time.May, 4, 0, 0, 0, 0, time.UTC),
		Party:        "X vs Y",
		JudgeName:    judge,
	}
}

func TestReconcileEntity(t *testing.T) {
	store := databasetest.NewStore(t)
	ctx := context.Background()

	repo, err := store.Begin(ctx)
	require.NoError(t, err)
	defer repo.Rollback()
	r := NewReconciler(repo, logger.NewNop())

	stats, err := r.ReconcileEntity(ctx, scraper.Entity{Name: "JUSTICE A", ID: "1"}, records([]scraper.CaseRecord{
		rec("JUSTICE A", "http://p/1.pdf", "CW 1/2020"),
		rec("JUSTICE A", "http://p/2.pdf", "CW 2/2020"),
		rec("JUSTICE A", "http://p/2.pdf", "CW 3/2020"),
	}, nil))
	require.NoError(t, err)
	require.Equal(t, EntityStats{Records: 3, Judges: 1, Judgements: 2, Cases: 3}, stats)

	// A panel judgement surfaces again under the second judge.
	stats, err = r.ReconcileEntity(ctx, scraper.Entity{Name: "JUSTICE B", ID: "2"}, records([]scraper.CaseRecord{
		rec("JUSTICE B", "http://p/2.pdf", "CW 2/2020"),
		rec("JUSTICE B", "http://p/2.pdf", "CW 3/2020"),
		rec("JUSTICE B", "http://p/4.pdf", "CW 4/2020"),
	}, nil))
	require.NoError(t, err)
	require.Equal(t, EntityStats{Records: 3, Judges: 1, Judgements: 1, Authorships: 1, Cases: 1, SkippedCases: 2}, stats)

	panel, err := repo.FindJudgementByReferenceURL(ctx, "http://p/2.pdf")
	require.NoError(t, err)
	var names []string
	for _, j := range panel.Judges {
		names = append(names, j.Name)
	}
	require.ElementsMatch(t, []string{"JUSTICE A", "JUSTICE B"}, names)

	cases, err := repo.CasesOfJudgement(ctx, panel.ID)
	require.NoError(t, err)
	require.Len(t, cases, 2)

	// Crawling the same judge again changes nothing.
	stats, err = r.ReconcileEntity(ctx, scraper.Entity{Name: "JUSTICE A", ID: "1"}, records([]scraper.CaseRecord{
		rec("JUSTICE A", "http://p/1.pdf", "CW 1/2020"),
		rec("JUSTICE A", "http://p/2.pdf", "CW 2/2020"),
	}, nil))
	require.NoError(t, err)
	require.Equal(t, EntityStats{Records: 2, SkippedCases: 2}, stats)
}

func TestReconcileEntityKeepsCaseOwner(t *testing.T) {
	store := databasetest.NewStore(t)
	ctx := context.Background()

	repo, err := store.Begin(ctx)
	require.NoError(t, err)
	defer repo.Rollback()
	r := NewReconciler(repo, logger.NewNop())

	_, err = r.ReconcileEntity(ctx, scraper.Entity{Name: "J"}, records([]scraper.CaseRecord{
		rec("J", "http://p/old.pdf", "CW 9/2020"),
		rec("J", "http://p/new.pdf", "CW 9/2020"),
	}, nil))
	require.NoError(t, err)

	c, err := repo.FindCaseByNumber(ctx, "CW 9/2020")
	require.NoError(t, err)
	old, err := repo.FindJudgementByReferenceURL(ctx, "http://p/old.pdf")
	require.NoError(t, err)
	require.Equal(t, old.ID, c.JudgementID)
}

func TestReconcileEntityStopsOnStreamError(t *testing.T) {
	store := databasetest.NewStore(t)
	ctx := context.Background()
	boom := errors.New("page 3 unreachable")

	repo, err := store.Begin(ctx)
	require.NoError(t, err)
	r := NewReconciler(repo, logger.NewNop())

	stats, err := r.ReconcileEntity(ctx, scraper.Entity{Name: "J"}, records([]scraper.CaseRecord{
		rec("J", "http://p/1.pdf", "CW 1/2020"),
	}, boom))
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, stats.Cases)
	require.NoError(t, repo.Rollback())

	var n int64
	require.NoError(t, store.DB().Model(&database.Case{}).Count(&n).Error)
	require.Zero(t, n)
}
