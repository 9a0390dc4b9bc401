package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printpass/backend/internal/domain/shared"
)

func TestNewEntry(t *testing.T) {
	ownerID := uuid.New()
	documentID := uuid.New()

	t.Run("creates active entry with valid inputs", func(t *testing.T) {
		entry, err := NewEntry(ownerID, documentID, 5)
		require.NoError(t, err)
		require.NotNil(t, entry)

		assert.Equal(t, ownerID, entry.OwnerID)
		assert.Equal(t, documentID, entry.DocumentID)
		assert.Equal(t, 5, entry.AssignedQuota)
		assert.Equal(t, 0, entry.UsedPrints)
		assert.Equal(t, EntryStatusActive, entry.Status)
		require.NotNil(t, entry.RedemptionToken)
		assert.NotEmpty(t, *entry.RedemptionToken)
		assert.Len(t, entry.GetDomainEvents(), 1)
	})

	t.Run("zero quota entry is born exhausted", func(t *testing.T) {
		entry, err := NewEntry(ownerID, documentID, 0)
		require.NoError(t, err)

		assert.Equal(t, EntryStatusExhausted, entry.Status)
		assert.Nil(t, entry.RedemptionToken)
		assert.NoError(t, entry.CheckInvariants())
	})

	t.Run("rejects nil owner", func(t *testing.T) {
		_, err := NewEntry(uuid.Nil, documentID, 5)
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_OWNER", domainErr.Code)
	})

	t.Run("rejects nil document", func(t *testing.T) {
		_, err := NewEntry(ownerID, uuid.Nil, 5)
		require.Error(t, err)
	})

	t.Run("rejects negative quota", func(t *testing.T) {
		_, err := NewEntry(ownerID, documentID, -1)
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_QUOTA", domainErr.Code)
	})
}

func TestEntryRemaining(t *testing.T) {
	entry, err := NewEntry(uuid.New(), uuid.New(), 3)
	require.NoError(t, err)

	assert.Equal(t, 3, entry.Remaining())

	entry.UsedPrints = 2
	assert.Equal(t, 1, entry.Remaining())

	entry.UsedPrints = 3
	assert.Equal(t, 0, entry.Remaining())

	// Overdraft clamps to zero rather than going negative.
	entry.UsedPrints = 4
	assert.Equal(t, 0, entry.Remaining())
}

func TestEntryRefresh(t *testing.T) {
	t.Run("resets usage and mints a new redemption identifier", func(t *testing.T) {
		entry, err := NewEntry(uuid.New(), uuid.New(), 2)
		require.NoError(t, err)
		previous := *entry.RedemptionToken

		entry.UsedPrints = 2
		entry.Status = EntryStatusExhausted
		entry.RedemptionToken = nil

		require.NoError(t, entry.Refresh(4))
		assert.Equal(t, 4, entry.AssignedQuota)
		assert.Equal(t, 0, entry.UsedPrints)
		assert.Equal(t, EntryStatusActive, entry.Status)
		require.NotNil(t, entry.RedemptionToken)
		assert.NotEqual(t, previous, *entry.RedemptionToken)
		assert.Equal(t, 2, entry.Version)
	})

	t.Run("refresh to zero quota exhausts immediately", func(t *testing.T) {
		entry, err := NewEntry(uuid.New(), uuid.New(), 2)
		require.NoError(t, err)

		require.NoError(t, entry.Refresh(0))
		assert.Equal(t, EntryStatusExhausted, entry.Status)
		assert.Nil(t, entry.RedemptionToken)
	})

	t.Run("rejects negative quota", func(t *testing.T) {
		entry, err := NewEntry(uuid.New(), uuid.New(), 2)
		require.NoError(t, err)
		assert.Error(t, entry.Refresh(-1))
	})
}

func TestEntryCheckInvariants(t *testing.T) {
	entry, err := NewEntry(uuid.New(), uuid.New(), 3)
	require.NoError(t, err)
	assert.NoError(t, entry.CheckInvariants())

	t.Run("overdraft is a violation", func(t *testing.T) {
		entry.UsedPrints = 4
		assert.Error(t, entry.CheckInvariants())
		entry.UsedPrints = 0
	})

	t.Run("exhausted entry must have no prints remaining", func(t *testing.T) {
		entry.Status = EntryStatusExhausted
		entry.UsedPrints = 2
		assert.Error(t, entry.CheckInvariants())
	})

	t.Run("exhausted entry must drop its redemption token", func(t *testing.T) {
		entry.Status = EntryStatusExhausted
		entry.UsedPrints = 3
		assert.Error(t, entry.CheckInvariants())
		entry.RedemptionToken = nil
		assert.NoError(t, entry.CheckInvariants())
	})
}

func TestEntryStatus(t *testing.T) {
	t.Run("IsValid", func(t *testing.T) {
		assert.True(t, EntryStatusActive.IsValid())
		assert.True(t, EntryStatusExhausted.IsValid())
		assert.False(t, EntryStatus("SUSPENDED").IsValid())
	})

	t.Run("exhaustion is terminal", func(t *testing.T) {
		assert.False(t, EntryStatusActive.IsTerminal())
		assert.True(t, EntryStatusExhausted.IsTerminal())
	})

	t.Run("transitions", func(t *testing.T) {
		assert.True(t, EntryStatusActive.CanTransitionTo(EntryStatusExhausted))
		assert.False(t, EntryStatusExhausted.CanTransitionTo(EntryStatusActive))
		assert.False(t, EntryStatusActive.CanTransitionTo(EntryStatusActive))
	})
}
