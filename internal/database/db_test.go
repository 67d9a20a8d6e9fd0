package database_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JustJay7/courtlight/internal/database"
	"github.com/JustJay7/courtlight/pkg/logger"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func closeDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

func TestInitializeReopensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "courtlight.db")
	ctx := context.Background()

	db, err := database.Initialize(path)
	require.NoError(t, err)
	repo, err := database.NewStore(db, logger.NewNop()).Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.CreateJudge(ctx, &database.Judge{Name: "JUSTICE A"}))
	require.NoError(t, repo.Commit())
	closeDB(t, db)

	for i := 0; i < 2; i++ {
		db, err = database.Initialize(path)
		require.NoError(t, err, "reopen %d", i+1)

		var n int64
		require.NoError(t, db.Model(&database.Judge{}).Count(&n).Error)
		require.EqualValues(t, 1, n)
		closeDB(t, db)
	}
}

func TestIndexesAreStoredOnOneLine(t *testing.T) {
	db, err := database.Initialize(filepath.Join(t.TempDir(), "courtlight.db"))
	require.NoError(t, err)
	defer closeDB(t, db)

	var ddl []string
	require.NoError(t, db.Raw(`SELECT sql FROM sqlite_master WHERE type = 'index' AND name LIKE 'idx_%' AND sql IS NOT NULL`).Scan(&ddl).Error)
	require.NotEmpty(t, ddl)
	for _, stmt := range ddl {
		require.False(t, strings.ContainsAny(stmt, "\n\t"), stmt)
	}
}
