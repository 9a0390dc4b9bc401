package handler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/printpass/backend/internal/domain/document"
	"github.com/printpass/backend/internal/domain/ledger"
	"github.com/printpass/backend/internal/domain/render"
	"github.com/printpass/backend/internal/domain/shared"
)

// MockEntryRepository implements ledger.EntryRepository for testing
type MockEntryRepository struct {
	mock.Mock
}

func (m *MockEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Entry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockEntryRepository) FindByOwnerAndDocument(ctx context.Context, ownerID, documentID uuid.UUID) (*ledger.Entry, error) {
	args := m.Called(ctx, ownerID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockEntryRepository) FindAllForOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) ([]ledger.Entry, error) {
	args := m.Called(ctx, ownerID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.Entry), args.Error(1)
}

func (m *MockEntryRepository) CountForOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, ownerID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEntryRepository) Save(ctx context.Context, entry *ledger.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockEntryRepository) Upsert(ctx context.Context, entry *ledger.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockEntryRepository) ConsumePrint(ctx context.Context, entryID uuid.UUID) (*ledger.ConsumeResult, error) {
	args := m.Called(ctx, entryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.ConsumeResult), args.Error(1)
}

// MockPrintTokenRepository implements ledger.PrintTokenRepository for testing
type MockPrintTokenRepository struct {
	mock.Mock
}

func (m *MockPrintTokenRepository) FindByToken(ctx context.Context, token string) (*ledger.PrintToken, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.PrintToken), args.Error(1)
}

func (m *MockPrintTokenRepository) FindOutstanding(ctx context.Context, entryID uuid.UUID, now time.Time) (*ledger.PrintToken, error) {
	args := m.Called(ctx, entryID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.PrintToken), args.Error(1)
}

func (m *MockPrintTokenRepository) Save(ctx context.Context, token *ledger.PrintToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockPrintTokenRepository) InvalidateExpired(ctx context.Context, entryID uuid.UUID, now time.Time) (int64, error) {
	args := m.Called(ctx, entryID, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPrintTokenRepository) MarkFetched(ctx context.Context, token string, now time.Time) error {
	args := m.Called(ctx, token, now)
	return args.Error(0)
}

func (m *MockPrintTokenRepository) MarkUsed(ctx context.Context, token string, now time.Time, printerName string) error {
	args := m.Called(ctx, token, now, printerName)
	return args.Error(0)
}

func (m *MockPrintTokenRepository) InvalidateOutstanding(ctx context.Context, entryID uuid.UUID, now time.Time) (int64, error) {
	args := m.Called(ctx, entryID, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPrintTokenRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockOfflineTokenRepository implements ledger.OfflineTokenRepository for testing
type MockOfflineTokenRepository struct {
	mock.Mock
}

func (m *MockOfflineTokenRepository) FindByToken(ctx context.Context, token string) (*ledger.OfflineToken, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.OfflineToken), args.Error(1)
}

func (m *MockOfflineTokenRepository) Save(ctx context.Context, token *ledger.OfflineToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockOfflineTokenRepository) MarkReconciled(ctx context.Context, token string, usedAt time.Time, printerName string) error {
	args := m.Called(ctx, token, usedAt, printerName)
	return args.Error(0)
}

func (m *MockOfflineTokenRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockAuditRepository implements ledger.AuditRepository for testing
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Append(ctx context.Context, entry *ledger.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditRepository) FindForOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) ([]ledger.AuditEntry, error) {
	args := m.Called(ctx, ownerID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.AuditEntry), args.Error(1)
}

// MockDocumentRepository implements document.Repository for testing
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*document.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Document), args.Error(1)
}

func (m *MockDocumentRepository) Save(ctx context.Context, doc *document.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

// MockJobRepository implements render.Repository for testing
type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*render.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*render.Job), args.Error(1)
}

func (m *MockJobRepository) FindByIDForOwner(ctx context.Context, ownerID, id uuid.UUID) (*render.Job, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*render.Job), args.Error(1)
}

func (m *MockJobRepository) FindAllForOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) ([]render.Job, error) {
	args := m.Called(ctx, ownerID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]render.Job), args.Error(1)
}

func (m *MockJobRepository) CountForOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, ownerID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockJobRepository) Save(ctx context.Context, job *render.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobRepository) AppendArtifact(ctx context.Context, artifact *render.PageArtifact) (int, error) {
	args := m.Called(ctx, artifact)
	return args.Int(0), args.Error(1)
}

func (m *MockJobRepository) TryBeginMerge(ctx context.Context, jobID uuid.UUID) (bool, error) {
	args := m.Called(ctx, jobID)
	return args.Bool(0), args.Error(1)
}

func (m *MockJobRepository) CompleteMerge(ctx context.Context, jobID, outputDocumentID uuid.UUID) error {
	args := m.Called(ctx, jobID, outputDocumentID)
	return args.Error(0)
}

func (m *MockJobRepository) MarkFailed(ctx context.Context, jobID uuid.UUID, reason string) error {
	args := m.Called(ctx, jobID, reason)
	return args.Error(0)
}

func (m *MockJobRepository) ReopenFailed(ctx context.Context, jobID uuid.UUID) (bool, error) {
	args := m.Called(ctx, jobID)
	return args.Bool(0), args.Error(1)
}

func (m *MockJobRepository) TouchHealAttempt(ctx context.Context, jobID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, jobID, at)
	return args.Error(0)
}
