package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/printpass/backend/internal/domain/document"
	"github.com/printpass/backend/internal/domain/ledger"
	"github.com/printpass/backend/internal/domain/shared"
	"github.com/printpass/backend/internal/infrastructure/config"
	"github.com/printpass/backend/internal/infrastructure/storage"
	"go.uber.org/zap"
)

// TokenService orchestrates the online print token lifecycle:
// issue → fetch → confirm. All the races (double fetch, concurrent confirms,
// confirm after exhaustion) resolve in the repositories' guarded updates; this
// layer sequences the calls and writes the audit trail.
type TokenService struct {
	entryRepo ledger.EntryRepository
	tokenRepo ledger.PrintTokenRepository
	auditRepo ledger.AuditRepository
	docRepo   document.Repository
	storage   storage.ObjectStorage
	cfg       config.TokenConfig
	logger    *zap.Logger
}

// NewTokenService creates a new TokenService
func NewTokenService(
	entryRepo ledger.EntryRepository,
	tokenRepo ledger.PrintTokenRepository,
	auditRepo ledger.AuditRepository,
	docRepo document.Repository,
	objectStorage storage.ObjectStorage,
	cfg config.TokenConfig,
	logger *zap.Logger,
) *TokenService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenService{
		entryRepo: entryRepo,
		tokenRepo: tokenRepo,
		auditRepo: auditRepo,
		docRepo:   docRepo,
		storage:   objectStorage,
		cfg:       cfg,
		logger:    logger,
	}
}

// IssueToken mints a short-lived print token for the owner's ledger entry on
// the given document. At most one unredeemed token may be outstanding per
// entry; quota is only reserved, not charged, until the print is confirmed.
func (s *TokenService) IssueToken(ctx context.Context, ownerID, documentID uuid.UUID) (*TokenResponse, error) {
	entry, err := s.entryRepo.FindByOwnerAndDocument(ctx, ownerID, documentID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "No ledger entry for this document")
		}
		return nil, fmt.Errorf("failed to load ledger entry: %w", err)
	}

	if !entry.IsActive() || entry.Remaining() == 0 {
		return nil, shared.ErrQuotaExceeded
	}

	now := time.Now()
	if _, err := s.tokenRepo.FindOutstanding(ctx, entry.ID, now); err == nil {
		return nil, shared.ErrAlreadyInFlight
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("failed to check outstanding tokens: %w", err)
	}

	// An expired token still holds the entry's in-flight slot. Clear it so
	// the insert below does not collide with a stale row.
	if _, err := s.tokenRepo.InvalidateExpired(ctx, entry.ID, now); err != nil {
		return nil, fmt.Errorf("failed to invalidate expired tokens: %w", err)
	}

	token, err := ledger.NewPrintToken(ownerID, documentID, entry.ID, s.cfg.PrintTokenTTL)
	if err != nil {
		return nil, err
	}

	// The in-flight index arbitrates issues that raced past the outstanding
	// check: exactly one insert lands, the rest see ErrAlreadyInFlight.
	if err := s.tokenRepo.Save(ctx, token); err != nil {
		if errors.Is(err, shared.ErrAlreadyInFlight) {
			return nil, shared.ErrAlreadyInFlight
		}
		return nil, fmt.Errorf("failed to save print token: %w", err)
	}

	s.appendAudit(ctx, ledger.NewAuditEntry(ownerID, documentID, token.ID, ledger.AuditTokenIssued, ""))

	s.logger.Info("print token issued",
		zap.String("token_id", token.ID.String()),
		zap.String("entry_id", entry.ID.String()),
		zap.Time("expires_at", token.ExpiresAt))

	return &TokenResponse{
		Token:           token.Token,
		DocumentID:      documentID.String(),
		ExpiresAt:       token.ExpiresAt,
		RemainingPrints: entry.Remaining(),
	}, nil
}

// FetchContent streams the document bytes for an issued token. The fetch is
// exactly-once: the conditional fetched_at update admits a single caller, and
// every later attempt gets ALREADY_USED no matter how the requests raced.
func (s *TokenService) FetchContent(ctx context.Context, tokenValue string) (*ContentResponse, error) {
	token, err := s.tokenRepo.FindByToken(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Unknown print token")
		}
		return nil, fmt.Errorf("failed to load print token: %w", err)
	}

	now := time.Now()
	if token.IsExpired(now) {
		return nil, shared.ErrExpired
	}

	if err := s.tokenRepo.MarkFetched(ctx, tokenValue, now); err != nil {
		return nil, err
	}

	doc, err := s.docRepo.FindByID(ctx, token.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	data, contentType, err := s.storage.Download(ctx, doc.StorageKey)
	if err != nil {
		return nil, shared.NewUpstreamError("storage.get", err)
	}
	if contentType == "" {
		contentType = doc.MimeType
	}

	s.appendAudit(ctx, ledger.NewAuditEntry(token.OwnerID, token.DocumentID, token.ID, ledger.AuditContentFetched, ""))

	s.logger.Info("content fetched",
		zap.String("token_id", token.ID.String()),
		zap.String("document_id", token.DocumentID.String()),
		zap.Int("bytes", len(data)))

	return &ContentResponse{
		Data:        data,
		ContentType: contentType,
		DocumentID:  token.DocumentID.String(),
	}, nil
}

// ConfirmPrint reports a physical print for a fetched token and charges the
// ledger. The quota charge is the repository's compare-and-increment, so
// concurrent confirms can never push usage past the assigned quota. An audit
// entry is written whether the confirm is accepted or rejected.
func (s *TokenService) ConfirmPrint(ctx context.Context, tokenValue, printerName string) (*ConfirmResponse, error) {
	token, err := s.tokenRepo.FindByToken(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Unknown print token")
		}
		return nil, fmt.Errorf("failed to load print token: %w", err)
	}

	now := time.Now()
	if err := token.CanConfirm(now); err != nil {
		s.rejectConfirm(ctx, token, printerName, err)
		return nil, err
	}

	if err := s.tokenRepo.MarkUsed(ctx, tokenValue, now, printerName); err != nil {
		s.rejectConfirm(ctx, token, printerName, err)
		return nil, err
	}

	result, err := s.entryRepo.ConsumePrint(ctx, token.LedgerEntryID)
	if err != nil {
		// The token is burned but the ledger refused the charge; record the
		// discrepancy rather than silently swallowing it.
		s.rejectConfirm(ctx, token, printerName, err)
		return nil, err
	}

	if result.Exhausted {
		invalidated, err := s.tokenRepo.InvalidateOutstanding(ctx, token.LedgerEntryID, now)
		if err != nil {
			s.logger.Error("failed to invalidate outstanding tokens",
				zap.String("entry_id", token.LedgerEntryID.String()),
				zap.Error(err))
		} else if invalidated > 0 {
			s.logger.Info("outstanding tokens invalidated on exhaustion",
				zap.String("entry_id", token.LedgerEntryID.String()),
				zap.Int64("count", invalidated))
		}
	}

	s.appendAudit(ctx, ledger.NewAuditEntry(token.OwnerID, token.DocumentID, token.ID, ledger.AuditPrintConfirmed, "").
		WithPrinter(printerName))

	s.logger.Info("print confirmed",
		zap.String("token_id", token.ID.String()),
		zap.String("printer", printerName),
		zap.Int("used", result.UsedPrints),
		zap.Int("remaining", result.RemainingPrints))

	return &ConfirmResponse{
		UsedPrints:      result.UsedPrints,
		RemainingPrints: result.RemainingPrints,
		Exhausted:       result.Exhausted,
	}, nil
}

// ListLedgerEntries returns the owner's ledger entries as a read projection
func (s *TokenService) ListLedgerEntries(ctx context.Context, ownerID uuid.UUID, req ListLedgerEntriesRequest) (*ListLedgerEntriesResponse, error) {
	filter := shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
		Filters:  make(map[string]interface{}),
	}
	if req.Status != "" {
		filter.Filters["status"] = req.Status
	}

	entries, err := s.entryRepo.FindAllForOwner(ctx, ownerID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}

	total, err := s.entryRepo.CountForOwner(ctx, ownerID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	items := make([]LedgerEntryResponse, len(entries))
	for i, e := range entries {
		items[i] = *toLedgerEntryResponse(&e)
	}

	return &ListLedgerEntriesResponse{
		Items: items,
		Total: total,
		Page:  req.Page,
		Size:  req.PageSize,
	}, nil
}

// ListAudit returns the owner's audit trail, newest first
func (s *TokenService) ListAudit(ctx context.Context, ownerID uuid.UUID, req ListAuditRequest) (*ListAuditResponse, error) {
	filter := shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		Filters:  make(map[string]interface{}),
	}
	if req.Action != "" {
		filter.Filters["action"] = req.Action
	}
	if req.DocumentID != "" {
		filter.Filters["document_id"] = req.DocumentID
	}

	entries, err := s.auditRepo.FindForOwner(ctx, ownerID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}

	items := make([]AuditEntryResponse, len(entries))
	for i, e := range entries {
		items[i] = AuditEntryResponse{
			ID:              e.ID.String(),
			DocumentID:      e.DocumentID.String(),
			TokenID:         e.TokenID.String(),
			Action:          string(e.Action),
			PrinterName:     e.PrinterName,
			MachineGuidHash: e.MachineGuidHash,
			Detail:          e.Detail,
			CreatedAt:       e.CreatedAt,
		}
	}

	return &ListAuditResponse{
		Items: items,
		Page:  req.Page,
		Size:  req.PageSize,
	}, nil
}

// PurgeExpiredTokens garbage-collects print tokens whose expiry predates the
// retention window. Run periodically by the worker janitor.
func (s *TokenService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.cfg.RetentionAfter)
	deleted, err := s.tokenRepo.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired tokens: %w", err)
	}
	if deleted > 0 {
		s.logger.Info("expired print tokens purged",
			zap.Int64("count", deleted),
			zap.Time("cutoff", cutoff))
	}
	return deleted, nil
}

// rejectConfirm records a refused confirm attempt in the audit log
func (s *TokenService) rejectConfirm(ctx context.Context, token *ledger.PrintToken, printerName string, cause error) {
	s.appendAudit(ctx, ledger.NewAuditEntry(token.OwnerID, token.DocumentID, token.ID, ledger.AuditConfirmRejected, cause.Error()).
		WithPrinter(printerName))
}

// appendAudit writes an audit entry; the audit log is best-effort and never
// fails the business operation.
func (s *TokenService) appendAudit(ctx context.Context, entry *ledger.AuditEntry) {
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		s.logger.Error("failed to append audit entry",
			zap.String("action", string(entry.Action)),
			zap.Error(err))
	}
}

func toLedgerEntryResponse(e *ledger.Entry) *LedgerEntryResponse {
	return &LedgerEntryResponse{
		ID:              e.ID.String(),
		DocumentID:      e.DocumentID.String(),
		AssignedQuota:   e.AssignedQuota,
		UsedPrints:      e.UsedPrints,
		RemainingPrints: e.Remaining(),
		Status:          string(e.Status),
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}
