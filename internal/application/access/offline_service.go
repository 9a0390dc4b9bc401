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
	"github.com/printpass/backend/internal/infrastructure/auth"
	"github.com/printpass/backend/internal/infrastructure/config"
	"github.com/printpass/backend/internal/infrastructure/storage"
	"go.uber.org/zap"
)

// OfflineService implements machine-bound offline redemption. The whole
// subsystem sits behind the offline.enabled capability flag. Quota accounting
// is pessimistic: the print is charged when the token is minted, because the
// device may never reconnect to report the redemption. Reconciliation only
// confirms or flags what already happened; it never touches the ledger.
type OfflineService struct {
	entryRepo   ledger.EntryRepository
	offlineRepo ledger.OfflineTokenRepository
	tokenRepo   ledger.PrintTokenRepository
	auditRepo   ledger.AuditRepository
	docRepo     document.Repository
	storage     storage.ObjectStorage
	signer      *auth.OfflineSigner
	cfg         config.OfflineConfig
	retention   time.Duration
	logger      *zap.Logger
}

// NewOfflineService creates a new OfflineService
func NewOfflineService(
	entryRepo ledger.EntryRepository,
	offlineRepo ledger.OfflineTokenRepository,
	tokenRepo ledger.PrintTokenRepository,
	auditRepo ledger.AuditRepository,
	docRepo document.Repository,
	objectStorage storage.ObjectStorage,
	signer *auth.OfflineSigner,
	cfg config.OfflineConfig,
	retention time.Duration,
	logger *zap.Logger,
) *OfflineService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OfflineService{
		entryRepo:   entryRepo,
		offlineRepo: offlineRepo,
		tokenRepo:   tokenRepo,
		auditRepo:   auditRepo,
		docRepo:     docRepo,
		storage:     objectStorage,
		signer:      signer,
		cfg:         cfg,
		retention:   retention,
		logger:      logger,
	}
}

// Enabled reports whether offline redemption is switched on
func (s *OfflineService) Enabled() bool {
	return s.cfg.Enabled
}

// PrepareOffline mints a machine-bound offline token. The quota charge
// happens here, at mint time, through the same compare-and-increment as an
// online confirm. The response carries a presigned content URL so the client
// can cache the document while connectivity lasts.
func (s *OfflineService) PrepareOffline(ctx context.Context, ownerID uuid.UUID, req PrepareOfflineRequest) (*OfflineTokenResponse, error) {
	if !s.cfg.Enabled {
		return nil, shared.ErrOfflineDisabled
	}
	if req.MachineGuidHash == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Machine GUID hash is required")
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}
	if ttl > s.cfg.MaxTTL {
		return nil, shared.NewDomainError("INVALID_INPUT",
			fmt.Sprintf("Requested TTL exceeds the maximum of %s", s.cfg.MaxTTL))
	}

	entry, err := s.entryRepo.FindByOwnerAndDocument(ctx, ownerID, req.DocumentID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "No ledger entry for this document")
		}
		return nil, fmt.Errorf("failed to load ledger entry: %w", err)
	}

	if !entry.IsActive() || entry.Remaining() == 0 {
		return nil, shared.ErrQuotaExceeded
	}

	// Mint and sign before charging so a signing failure costs nothing.
	token, err := ledger.NewOfflineToken(ownerID, req.DocumentID, entry.ID, req.MachineGuidHash, ttl)
	if err != nil {
		return nil, err
	}

	signed, err := s.signer.Sign(token.Token, ownerID, req.DocumentID, req.MachineGuidHash, token.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to sign offline token: %w", err)
	}
	token.SignedToken = signed

	// Pessimistic charge. A racing online confirm can still win the last
	// print; the guarded increment refuses the overdraft either way.
	result, err := s.entryRepo.ConsumePrint(ctx, entry.ID)
	if err != nil {
		return nil, err
	}

	if err := s.offlineRepo.Save(ctx, token); err != nil {
		// The print is already charged and the token is gone with the
		// failed insert. Leave the discrepancy on the audit trail.
		s.appendAudit(ctx, ledger.NewAuditEntry(ownerID, req.DocumentID, token.ID,
			ledger.AuditOfflineOrphaned, err.Error()).
			WithMachine(req.MachineGuidHash))
		return nil, fmt.Errorf("failed to save offline token: %w", err)
	}

	if result.Exhausted {
		now := time.Now()
		if _, err := s.tokenRepo.InvalidateOutstanding(ctx, entry.ID, now); err != nil {
			s.logger.Error("failed to invalidate outstanding tokens",
				zap.String("entry_id", entry.ID.String()),
				zap.Error(err))
		}
	}

	doc, err := s.docRepo.FindByID(ctx, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	url, urlExpiresAt, err := s.storage.GenerateDownloadURL(ctx, doc.StorageKey, ttl)
	if err != nil {
		return nil, shared.NewUpstreamError("storage.presign", err)
	}

	s.appendAudit(ctx, ledger.NewAuditEntry(ownerID, req.DocumentID, token.ID, ledger.AuditOfflinePrepared, "").
		WithMachine(req.MachineGuidHash))

	s.logger.Info("offline token prepared",
		zap.String("token_id", token.ID.String()),
		zap.String("entry_id", entry.ID.String()),
		zap.Duration("ttl", ttl),
		zap.Int("remaining", result.RemainingPrints))

	return &OfflineTokenResponse{
		Token:               token.Token,
		SignedToken:         signed,
		ExpiresAt:           token.ExpiresAt,
		ContentURL:          url,
		ContentURLExpiresAt: urlExpiresAt,
		RemainingPrints:     result.RemainingPrints,
	}, nil
}

// ValidateOffline checks a signed offline token server-side: signature, time
// bounds, machine binding, non-use. The ledger is not consulted; the quota
// was already charged at mint.
func (s *OfflineService) ValidateOffline(ctx context.Context, signedToken, machineGuidHash string) (*ValidateOfflineResponse, error) {
	if !s.cfg.Enabled {
		return nil, shared.ErrOfflineDisabled
	}

	claims, err := s.signer.Verify(signedToken)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, shared.ErrExpired
		}
		return nil, shared.NewDomainError("INVALID_INPUT", "Offline token signature is invalid")
	}

	token, err := s.offlineRepo.FindByToken(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Unknown offline token")
		}
		return nil, fmt.Errorf("failed to load offline token: %w", err)
	}

	if err := token.Validate(machineGuidHash, time.Now()); err != nil {
		return nil, err
	}

	return &ValidateOfflineResponse{
		Token:      token.Token,
		DocumentID: token.DocumentID.String(),
		ExpiresAt:  token.ExpiresAt,
	}, nil
}

// Reconcile processes a batch of locally-recorded offline redemptions from a
// reconnecting client. Each item is judged independently; rejected items are
// reported back and audited, never retried automatically.
func (s *OfflineService) Reconcile(ctx context.Context, ownerID uuid.UUID, items []ReconcileItem) (*ReconcileResponse, error) {
	if !s.cfg.Enabled {
		return nil, shared.ErrOfflineDisabled
	}

	resp := &ReconcileResponse{
		Results: make([]ReconcileResult, 0, len(items)),
	}

	for _, item := range items {
		result := s.reconcileOne(ctx, ownerID, item)
		if result.Accepted {
			resp.Accepted++
		} else {
			resp.Rejected++
		}
		resp.Results = append(resp.Results, result)
	}

	s.logger.Info("offline reconciliation batch processed",
		zap.String("owner_id", ownerID.String()),
		zap.Int("accepted", resp.Accepted),
		zap.Int("rejected", resp.Rejected))

	return resp, nil
}

func (s *OfflineService) reconcileOne(ctx context.Context, ownerID uuid.UUID, item ReconcileItem) ReconcileResult {
	token, err := s.offlineRepo.FindByToken(ctx, item.Token)
	if err != nil {
		return s.rejectReconcile(ctx, ownerID, nil, item, shared.NewDomainError("NOT_FOUND", "Unknown offline token"))
	}

	if token.OwnerID != ownerID {
		return s.rejectReconcile(ctx, ownerID, token, item, shared.NewDomainError("NOT_FOUND", "Unknown offline token"))
	}

	if err := token.ValidateRedemption(item.MachineGuidHash, item.PrintedAt); err != nil {
		return s.rejectReconcile(ctx, ownerID, token, item, err)
	}

	if err := s.offlineRepo.MarkReconciled(ctx, item.Token, item.PrintedAt, item.PrinterName); err != nil {
		return s.rejectReconcile(ctx, ownerID, token, item, err)
	}

	s.appendAudit(ctx, ledger.NewAuditEntry(ownerID, token.DocumentID, token.ID, ledger.AuditOfflineReconciled, "").
		WithPrinter(item.PrinterName).
		WithMachine(item.MachineGuidHash))

	return ReconcileResult{Token: item.Token, Accepted: true}
}

func (s *OfflineService) rejectReconcile(ctx context.Context, ownerID uuid.UUID, token *ledger.OfflineToken, item ReconcileItem, cause error) ReconcileResult {
	documentID := uuid.Nil
	tokenID := uuid.Nil
	if token != nil {
		documentID = token.DocumentID
		tokenID = token.ID
	}

	s.appendAudit(ctx, ledger.NewAuditEntry(ownerID, documentID, tokenID, ledger.AuditOfflineRejected, cause.Error()).
		WithPrinter(item.PrinterName).
		WithMachine(item.MachineGuidHash))

	result := ReconcileResult{Token: item.Token, Accepted: false, Message: cause.Error()}
	var domainErr *shared.DomainError
	if errors.As(cause, &domainErr) {
		result.Code = domainErr.Code
	}
	return result
}

// PurgeExpiredTokens garbage-collects offline tokens past retention
func (s *OfflineService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.retention)
	deleted, err := s.offlineRepo.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired offline tokens: %w", err)
	}
	if deleted > 0 {
		s.logger.Info("expired offline tokens purged",
			zap.Int64("count", deleted),
			zap.Time("cutoff", cutoff))
	}
	return deleted, nil
}

func (s *OfflineService) appendAudit(ctx context.Context, entry *ledger.AuditEntry) {
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		s.logger.Error("failed to append audit entry",
			zap.String("action", string(entry.Action)),
			zap.Error(err))
	}
}
