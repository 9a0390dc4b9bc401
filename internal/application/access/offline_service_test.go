package access_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/printpass/backend/internal/application/access"
	"github.com/printpass/backend/internal/domain/document"
	"github.com/printpass/backend/internal/domain/ledger"
	"github.com/printpass/backend/internal/domain/shared"
	"github.com/printpass/backend/internal/infrastructure/auth"
	"github.com/printpass/backend/internal/infrastructure/config"
	"github.com/printpass/backend/internal/infrastructure/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testMachineHash = "c3ab8ff13720e8ad9047dd39466b3c8974e592c2fa383d4a3960714caef0c4f2"

func testOfflineConfig(enabled bool) config.OfflineConfig {
	return config.OfflineConfig{
		Enabled:       enabled,
		SigningSecret: "offline-test-secret-32-characters",
		Issuer:        "printpass-test",
		DefaultTTL:    24 * time.Hour,
		MaxTTL:        7 * 24 * time.Hour,
	}
}

type offlineServiceFixture struct {
	entryRepo   *MockEntryRepository
	offlineRepo *MockOfflineTokenRepository
	tokenRepo   *MockPrintTokenRepository
	auditRepo   *MockAuditRepository
	docRepo     *MockDocumentRepository
	store       *storage.MemoryObjectStorage
	signer      *auth.OfflineSigner
	svc         *access.OfflineService
}

func newOfflineServiceFixture(enabled bool) *offlineServiceFixture {
	cfg := testOfflineConfig(enabled)
	f := &offlineServiceFixture{
		entryRepo:   new(MockEntryRepository),
		offlineRepo: new(MockOfflineTokenRepository),
		tokenRepo:   new(MockPrintTokenRepository),
		auditRepo:   new(MockAuditRepository),
		docRepo:     new(MockDocumentRepository),
		store:       storage.NewMemoryObjectStorage(),
		signer:      auth.NewOfflineSigner(cfg),
	}
	f.svc = access.NewOfflineService(
		f.entryRepo, f.offlineRepo, f.tokenRepo, f.auditRepo, f.docRepo,
		f.store, f.signer, cfg, 24*time.Hour, zap.NewNop(),
	)
	return f
}

func TestOfflineService_DisabledFlag(t *testing.T) {
	ctx := context.Background()
	f := newOfflineServiceFixture(false)
	ownerID := uuid.New()

	assert.False(t, f.svc.Enabled())

	_, err := f.svc.PrepareOffline(ctx, ownerID, access.PrepareOfflineRequest{
		DocumentID: uuid.New(), MachineGuidHash: testMachineHash,
	})
	assert.ErrorIs(t, err, shared.ErrOfflineDisabled)

	_, err = f.svc.ValidateOffline(ctx, "whatever", testMachineHash)
	assert.ErrorIs(t, err, shared.ErrOfflineDisabled)

	_, err = f.svc.Reconcile(ctx, ownerID, nil)
	assert.ErrorIs(t, err, shared.ErrOfflineDisabled)
}

func TestPrepareOffline(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()
	documentID := uuid.New()

	t.Run("charges quota at mint and returns a signed token", func(t *testing.T) {
		f := newOfflineServiceFixture(true)
		entry, err := ledger.NewEntry(ownerID, documentID, 3)
		require.NoError(t, err)
		doc, err := document.New("documents/out.pdf", "application/pdf", document.KindGenerated)
		require.NoError(t, err)
		doc.ID = documentID

		f.entryRepo.On("FindByOwnerAndDocument", ctx, ownerID, documentID).Return(entry, nil)
		f.entryRepo.On("ConsumePrint", ctx, entry.ID).Return(&ledger.ConsumeResult{
			UsedPrints: 1, RemainingPrints: 2, Exhausted: false,
		}, nil)
		f.offlineRepo.On("Save", ctx, mock.AnythingOfType("*ledger.OfflineToken")).Return(nil)
		f.docRepo.On("FindByID", ctx, documentID).Return(doc, nil)
		f.auditRepo.On("Append", ctx, mock.AnythingOfType("*ledger.AuditEntry")).Return(nil)

		resp, err := f.svc.PrepareOffline(ctx, ownerID, access.PrepareOfflineRequest{
			DocumentID:      documentID,
			MachineGuidHash: testMachineHash,
		})

		require.NoError(t, err)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, 2, resp.RemainingPrints)
		assert.Contains(t, resp.ContentURL, "documents/out.pdf")

		// the signed token validates and binds to the machine
		claims, err := f.signer.Verify(resp.SignedToken)
		require.NoError(t, err)
		assert.Equal(t, resp.Token, claims.ID)
		assert.Equal(t, testMachineHash, claims.MachineHash)
		assert.Equal(t, ownerID.String(), claims.OwnerID)

		f.entryRepo.AssertCalled(t, "ConsumePrint", ctx, entry.ID)
	})

	t.Run("invalidates outstanding online tokens when the mint exhausts the entry", func(t *testing.T) {
		f := newOfflineServiceFixture(true)
		entry, err := ledger.NewEntry(ownerID, documentID, 1)
		require.NoError(t, err)
		doc, err := document.New("documents/out.pdf", "application/pdf", document.KindGenerated)
		require.NoError(t, err)
		doc.ID = documentID

		f.entryRepo.On("FindByOwnerAndDocument", ctx, ownerID, documentID).Return(entry, nil)
		f.entryRepo.On("ConsumePrint", ctx, entry.ID).Return(&ledger.ConsumeResult{
			UsedPrints: 1, RemainingPrints: 0, Exhausted: true,
		}, nil)
		f.offlineRepo.On("Save", ctx, mock.AnythingOfType("*ledger.OfflineToken")).Return(nil)
		f.tokenRepo.On("InvalidateOutstanding", ctx, entry.ID, mock.AnythingOfType("time.Time")).Return(int64(1), nil)
		f.docRepo.On("FindByID", ctx, documentID).Return(doc, nil)
		f.auditRepo.On("Append", ctx, mock.AnythingOfType("*ledger.AuditEntry")).Return(nil)

		resp, err := f.svc.PrepareOffline(ctx, ownerID, access.PrepareOfflineRequest{
			DocumentID:      documentID,
			MachineGuidHash: testMachineHash,
		})

		require.NoError(t, err)
		assert.Equal(t, 0, resp.RemainingPrints)
		f.tokenRepo.AssertExpectations(t)
	})

	t.Run("rejects a TTL above the maximum", func(t *testing.T) {
		f := newOfflineServiceFixture(true)

		_, err := f.svc.PrepareOffline(ctx, ownerID, access.PrepareOfflineRequest{
			DocumentID:      documentID,
			MachineGuidHash: testMachineHash,
			TTL:             30 * 24 * time.Hour,
		})

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_INPUT", domainErr.Code)
		f.entryRepo.AssertNotCalled(t, "ConsumePrint", mock.Anything, mock.Anything)
	})

	t.Run("audits the orphaned charge when the token save fails", func(t *testing.T) {
		f := newOfflineServiceFixture(true)
		entry, err := ledger.NewEntry(ownerID, documentID, 3)
		require.NoError(t, err)

		f.entryRepo.On("FindByOwnerAndDocument", ctx, ownerID, documentID).Return(entry, nil)
		f.entryRepo.On("ConsumePrint", ctx, entry.ID).Return(&ledger.ConsumeResult{
			UsedPrints: 1, RemainingPrints: 2, Exhausted: false,
		}, nil)
		f.offlineRepo.On("Save", ctx, mock.Anything).Return(assert.AnError)
		f.auditRepo.On("Append", ctx, mock.MatchedBy(func(e *ledger.AuditEntry) bool {
			return e.Action == ledger.AuditOfflineOrphaned && e.MachineGuidHash == testMachineHash
		})).Return(nil)

		_, err = f.svc.PrepareOffline(ctx, ownerID, access.PrepareOfflineRequest{
			DocumentID:      documentID,
			MachineGuidHash: testMachineHash,
		})

		require.Error(t, err)
		f.auditRepo.AssertExpectations(t)
		f.docRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})

	t.Run("refuses an exhausted entry before touching the ledger", func(t *testing.T) {
		f := newOfflineServiceFixture(true)
		entry, err := ledger.NewEntry(ownerID, documentID, 0)
		require.NoError(t, err)

		f.entryRepo.On("FindByOwnerAndDocument", ctx, ownerID, documentID).Return(entry, nil)

		_, err = f.svc.PrepareOffline(ctx, ownerID, access.PrepareOfflineRequest{
			DocumentID:      documentID,
			MachineGuidHash: testMachineHash,
		})

		assert.ErrorIs(t, err, shared.ErrQuotaExceeded)
		f.entryRepo.AssertNotCalled(t, "ConsumePrint", mock.Anything, mock.Anything)
	})
}

func TestValidateOffline(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()
	documentID := uuid.New()
	entryID := uuid.New()

	newToken := func(t *testing.T, f *offlineServiceFixture) *ledger.OfflineToken {
		t.Helper()
		token, err := ledger.NewOfflineToken(ownerID, documentID, entryID, testMachineHash, 24*time.Hour)
		require.NoError(t, err)
		signed, err := f.signer.Sign(token.Token, ownerID, documentID, testMachineHash, token.ExpiresAt)
		require.NoError(t, err)
		token.SignedToken = signed
		return token
	}

	t.Run("accepts a valid token on the bound machine", func(t *testing.T) {
		f := newOfflineServiceFixture(true)
		token := newToken(t, f)

		f.offlineRepo.On("FindByToken", ctx, token.Token).Return(token, nil)

		resp, err := f.svc.ValidateOffline(ctx, token.SignedToken, testMachineHash)

		require.NoError(t, err)
		assert.Equal(t, token.Token, resp.Token)
		assert.Equal(t, documentID.String(), resp.DocumentID)
	})

	t.Run("rejects a different machine", func(t *testing.T) {
		f := newOfflineServiceFixture(true)
		token := newToken(t, f)

		f.offlineRepo.On("FindByToken", ctx, token.Token).Return(token, nil)

		_, err := f.svc.ValidateOffline(ctx, token.SignedToken, "another-machine-hash")

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "MACHINE_MISMATCH", domainErr.Code)
	})

	t.Run("rejects a used token", func(t *testing.T) {
		f := newOfflineServiceFixture(true)
		token := newToken(t, f)
		now := time.Now()
		token.UsedAt = &now

		f.offlineRepo.On("FindByToken", ctx, token.Token).Return(token, nil)

		_, err := f.svc.ValidateOffline(ctx, token.SignedToken, testMachineHash)

		assert.ErrorIs(t, err, shared.ErrAlreadyUsed)
	})

	t.Run("rejects a forged signature", func(t *testing.T) {
		f := newOfflineServiceFixture(true)
		other := auth.NewOfflineSigner(config.OfflineConfig{
			SigningSecret: "some-other-secret-32-characters!!",
			Issuer:        "printpass-test",
		})
		forged, err := other.Sign(uuid.NewString(), ownerID, documentID, testMachineHash, time.Now().Add(time.Hour))
		require.NoError(t, err)

		_, err = f.svc.ValidateOffline(ctx, forged, testMachineHash)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_INPUT", domainErr.Code)
		f.offlineRepo.AssertNotCalled(t, "FindByToken", mock.Anything, mock.Anything)
	})
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()
	documentID := uuid.New()
	entryID := uuid.New()

	t.Run("accepts a valid redemption and rejects the rest of the batch independently", func(t *testing.T) {
		f := newOfflineServiceFixture(true)

		good, err := ledger.NewOfflineToken(ownerID, documentID, entryID, testMachineHash, 24*time.Hour)
		require.NoError(t, err)
		printedAt := time.Now().Add(time.Minute)

		late, err := ledger.NewOfflineToken(ownerID, documentID, entryID, testMachineHash, time.Hour)
		require.NoError(t, err)

		f.offlineRepo.On("FindByToken", ctx, good.Token).Return(good, nil)
		f.offlineRepo.On("MarkReconciled", ctx, good.Token, printedAt, "HP-Basement").Return(nil)
		f.offlineRepo.On("FindByToken", ctx, late.Token).Return(late, nil)
		f.offlineRepo.On("FindByToken", ctx, "unknown-token").Return(nil, shared.ErrNotFound)
		f.auditRepo.On("Append", ctx, mock.AnythingOfType("*ledger.AuditEntry")).Return(nil)

		resp, err := f.svc.Reconcile(ctx, ownerID, []access.ReconcileItem{
			{Token: good.Token, MachineGuidHash: testMachineHash, PrintedAt: printedAt, PrinterName: "HP-Basement"},
			{Token: late.Token, MachineGuidHash: testMachineHash, PrintedAt: late.ExpiresAt.Add(time.Hour), PrinterName: "HP-Basement"},
			{Token: "unknown-token", MachineGuidHash: testMachineHash, PrintedAt: printedAt},
		})

		require.NoError(t, err)
		assert.Equal(t, 1, resp.Accepted)
		assert.Equal(t, 2, resp.Rejected)
		require.Len(t, resp.Results, 3)
		assert.True(t, resp.Results[0].Accepted)
		assert.False(t, resp.Results[1].Accepted)
		assert.Equal(t, "OUT_OF_WINDOW", resp.Results[1].Code)
		assert.False(t, resp.Results[2].Accepted)
		assert.Equal(t, "NOT_FOUND", resp.Results[2].Code)

		// reconciliation never touches the ledger
		f.entryRepo.AssertNotCalled(t, "ConsumePrint", mock.Anything, mock.Anything)
	})

	t.Run("rejects a token belonging to a different owner", func(t *testing.T) {
		f := newOfflineServiceFixture(true)
		token, err := ledger.NewOfflineToken(uuid.New(), documentID, entryID, testMachineHash, 24*time.Hour)
		require.NoError(t, err)

		f.offlineRepo.On("FindByToken", ctx, token.Token).Return(token, nil)
		f.auditRepo.On("Append", ctx, mock.AnythingOfType("*ledger.AuditEntry")).Return(nil)

		resp, err := f.svc.Reconcile(ctx, ownerID, []access.ReconcileItem{
			{Token: token.Token, MachineGuidHash: testMachineHash, PrintedAt: time.Now()},
		})

		require.NoError(t, err)
		assert.Equal(t, 1, resp.Rejected)
		f.offlineRepo.AssertNotCalled(t, "MarkReconciled", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("duplicate reconciliation is rejected by the guarded update", func(t *testing.T) {
		f := newOfflineServiceFixture(true)
		token, err := ledger.NewOfflineToken(ownerID, documentID, entryID, testMachineHash, 24*time.Hour)
		require.NoError(t, err)
		printedAt := time.Now().Add(time.Minute)

		f.offlineRepo.On("FindByToken", ctx, token.Token).Return(token, nil)
		f.offlineRepo.On("MarkReconciled", ctx, token.Token, printedAt, "").Return(shared.ErrAlreadyUsed)
		f.auditRepo.On("Append", ctx, mock.AnythingOfType("*ledger.AuditEntry")).Return(nil)

		resp, err := f.svc.Reconcile(ctx, ownerID, []access.ReconcileItem{
			{Token: token.Token, MachineGuidHash: testMachineHash, PrintedAt: printedAt},
		})

		require.NoError(t, err)
		assert.Equal(t, 1, resp.Rejected)
		assert.Equal(t, "ALREADY_USED", resp.Results[0].Code)
	})
}

func TestOfflinePurgeExpiredTokens(t *testing.T) {
	ctx := context.Background()
	f := newOfflineServiceFixture(true)

	f.offlineRepo.On("DeleteExpiredBefore", ctx, mock.AnythingOfType("time.Time")).Return(int64(2), nil)

	deleted, err := f.svc.PurgeExpiredTokens(ctx)

	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}
