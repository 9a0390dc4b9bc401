package persistence

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/printpass/backend/internal/domain/ledger"
	"github.com/printpass/backend/internal/domain/shared"
	"github.com/printpass/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// One pool connection: a second would see its own empty in-memory
	// database, and it serializes the concurrent-caller tests.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&models.LedgerEntryModel{})
	require.NoError(t, err)

	return db
}

func TestLedgerEntryRepository_SaveAndFind(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormLedgerEntryRepository(db)
	ctx := context.Background()

	ownerID := uuid.New()
	documentID := uuid.New()

	entry, err := ledger.NewEntry(ownerID, documentID, 3)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, entry))

	t.Run("finds by ID", func(t *testing.T) {
		found, err := repo.FindByID(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, found.AssignedQuota)
		assert.Equal(t, 0, found.UsedPrints)
		assert.Equal(t, ledger.EntryStatusActive, found.Status)
		require.NotNil(t, found.RedemptionToken)
	})

	t.Run("finds by owner and document", func(t *testing.T) {
		found, err := repo.FindByOwnerAndDocument(ctx, ownerID, documentID)
		require.NoError(t, err)
		assert.Equal(t, entry.ID, found.ID)
	})

	t.Run("returns not found for unknown pair", func(t *testing.T) {
		_, err := repo.FindByOwnerAndDocument(ctx, uuid.New(), documentID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestLedgerEntryRepository_ConsumePrint(t *testing.T) {
	t.Run("charges prints until the quota boundary", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		repo := NewGormLedgerEntryRepository(db)
		ctx := context.Background()

		entry, err := ledger.NewEntry(uuid.New(), uuid.New(), 3)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, entry))

		res, err := repo.ConsumePrint(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, res.UsedPrints)
		assert.Equal(t, 2, res.RemainingPrints)
		assert.False(t, res.Exhausted)

		res, err = repo.ConsumePrint(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, res.UsedPrints)

		res, err = repo.ConsumePrint(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, res.UsedPrints)
		assert.Equal(t, 0, res.RemainingPrints)
		assert.True(t, res.Exhausted)
	})

	t.Run("the exhausting increment clears the redemption token", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		repo := NewGormLedgerEntryRepository(db)
		ctx := context.Background()

		entry, err := ledger.NewEntry(uuid.New(), uuid.New(), 1)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, entry))

		res, err := repo.ConsumePrint(ctx, entry.ID)
		require.NoError(t, err)
		assert.True(t, res.Exhausted)

		found, err := repo.FindByID(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.EntryStatusExhausted, found.Status)
		assert.Nil(t, found.RedemptionToken)
		assert.NoError(t, found.CheckInvariants())
	})

	t.Run("rejects the print past the quota", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		repo := NewGormLedgerEntryRepository(db)
		ctx := context.Background()

		entry, err := ledger.NewEntry(uuid.New(), uuid.New(), 1)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, entry))

		_, err = repo.ConsumePrint(ctx, entry.ID)
		require.NoError(t, err)

		_, err = repo.ConsumePrint(ctx, entry.ID)
		assert.ErrorIs(t, err, shared.ErrQuotaExceeded)

		// The rejected attempt must not have moved the counter.
		found, err := repo.FindByID(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, found.UsedPrints)
	})

	t.Run("returns not found for a missing entry", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		repo := NewGormLedgerEntryRepository(db)

		_, err := repo.ConsumePrint(context.Background(), uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("concurrent confirms admit exactly quota successes", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		repo := NewGormLedgerEntryRepository(db)
		ctx := context.Background()

		const quota = 3
		const callers = 10

		entry, err := ledger.NewEntry(uuid.New(), uuid.New(), quota)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, entry))

		var wg sync.WaitGroup
		successes := make(chan *ledger.ConsumeResult, callers)
		failures := make(chan error, callers)

		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := repo.ConsumePrint(ctx, entry.ID)
				if err != nil {
					failures <- err
					return
				}
				successes <- res
			}()
		}
		wg.Wait()
		close(successes)
		close(failures)

		assert.Len(t, successes, quota)
		for err := range failures {
			assert.ErrorIs(t, err, shared.ErrQuotaExceeded)
		}

		found, err := repo.FindByID(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, quota, found.UsedPrints)
		assert.Equal(t, ledger.EntryStatusExhausted, found.Status)
		assert.NoError(t, found.CheckInvariants())
	})
}

func TestLedgerEntryRepository_Upsert(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormLedgerEntryRepository(db)
	ctx := context.Background()

	ownerID := uuid.New()
	documentID := uuid.New()

	t.Run("creates the entry on first upsert", func(t *testing.T) {
		entry, err := ledger.NewEntry(ownerID, documentID, 2)
		require.NoError(t, err)
		require.NoError(t, repo.Upsert(ctx, entry))

		found, err := repo.FindByOwnerAndDocument(ctx, ownerID, documentID)
		require.NoError(t, err)
		assert.Equal(t, 2, found.AssignedQuota)
	})

	t.Run("refreshes the existing pair with a new quota and token", func(t *testing.T) {
		before, err := repo.FindByOwnerAndDocument(ctx, ownerID, documentID)
		require.NoError(t, err)

		// Exhaust the existing entry first.
		_, err = repo.ConsumePrint(ctx, before.ID)
		require.NoError(t, err)
		_, err = repo.ConsumePrint(ctx, before.ID)
		require.NoError(t, err)

		fresh, err := ledger.NewEntry(ownerID, documentID, 5)
		require.NoError(t, err)
		require.NoError(t, repo.Upsert(ctx, fresh))

		after, err := repo.FindByOwnerAndDocument(ctx, ownerID, documentID)
		require.NoError(t, err)
		assert.Equal(t, before.ID, after.ID, "upsert must refresh the row, not replace it")
		assert.Equal(t, 5, after.AssignedQuota)
		assert.Equal(t, 0, after.UsedPrints)
		assert.Equal(t, ledger.EntryStatusActive, after.Status)
		require.NotNil(t, after.RedemptionToken)
		assert.NotEqual(t, *before.RedemptionToken, *after.RedemptionToken)
		assert.Greater(t, after.Version, before.Version)
	})
}

func TestLedgerEntryRepository_FindAllForOwner(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormLedgerEntryRepository(db)
	ctx := context.Background()

	ownerID := uuid.New()
	for i := 0; i < 3; i++ {
		entry, err := ledger.NewEntry(ownerID, uuid.New(), i+1)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, entry))
	}
	other, err := ledger.NewEntry(uuid.New(), uuid.New(), 1)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, other))

	filter := shared.DefaultFilter()
	entries, err := repo.FindAllForOwner(ctx, ownerID, filter)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	count, err := repo.CountForOwner(ctx, ownerID, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
