// Package databasetest opens throwaway stores for tests.
package databasetest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/JustJay7/courtlight/internal/database"
	"github.com/JustJay7/courtlight/pkg/logger"
	"github.com/stretchr/testify/require"
)

// NewStore opens a migrated sqlite store in a temporary directory.
func NewStore(t testing.TB) *database.Store {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "courtlight.db"))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	return database.NewStore(db, logger.NewNop())
}

// Seed describes one judgement to insert with its authors and cases.
type Seed struct {
	PDFLink string
	Date    time.Time
	Judges  []string
	Cases   map[string]string // case number -> party
}

// Insert commits the seeds and returns the created judgements in order.
func Insert(t testing.TB, store *database.Store, seeds ...Seed) []*database.Judgement {
	t.Helper()
	ctx := context.Background()

	repo, err := store.Begin(ctx)
	require.NoError(t, err)
	defer repo.Rollback()

	judges := map[string]*database.Judge{}
	var out []*database.Judgement
	for _, s := range seeds {
		j := &database.Judgement{PDFLink: s.PDFLink, Date: s.Date}
		require.NoError(t, repo.CreateJudgement(ctx, j))

		for _, name := range s.Judges {
			judge, ok := judges[name]
			if !ok {
				judge = &database.Judge{Name: name}
				require.NoError(t, repo.CreateJudge(ctx, judge))
				judges[name] = judge
			}
			_, err := repo.AppendAuthor(ctx, j, judge)
			require.NoError(t, err)
		}
		for number, party := range s.Cases {
			require.NoError(t, repo.CreateCase(ctx, &database.Case{CaseNumber: number, Party: party, JudgementID: j.ID}))
		}
		out = append(out, j)
	}

	require.NoError(t, repo.Commit())
	return out
}
