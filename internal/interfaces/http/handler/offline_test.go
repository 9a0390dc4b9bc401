package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	accessapp "github.com/printpass/backend/internal/application/access"
	"github.com/printpass/backend/internal/domain/ledger"
	"github.com/printpass/backend/internal/domain/shared"
	"github.com/printpass/backend/internal/infrastructure/auth"
	"github.com/printpass/backend/internal/infrastructure/config"
	"github.com/printpass/backend/internal/infrastructure/storage"
	"github.com/printpass/backend/internal/interfaces/http/middleware"
	"github.com/printpass/backend/internal/interfaces/http/router"
)

const testMachineHash = "9f2b4a1c8d3e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0c1d2e3f4a5b6c7d8e9f0a"

type offlineTestEnv struct {
	entryRepo   *MockEntryRepository
	offlineRepo *MockOfflineTokenRepository
	tokenRepo   *MockPrintTokenRepository
	auditRepo   *MockAuditRepository
	docRepo     *MockDocumentRepository
	store       *storage.MemoryObjectStorage
	signer      *auth.OfflineSigner
	router      *gin.Engine
	ownerID     uuid.UUID
}

func setupOfflineTest(t *testing.T) *offlineTestEnv {
	t.Helper()
	cfg := config.OfflineConfig{
		Enabled:       true,
		SigningSecret: "test-offline-signing-secret",
		Issuer:        "printpass-test",
		DefaultTTL:    24 * time.Hour,
		MaxTTL:        72 * time.Hour,
	}

	env := &offlineTestEnv{
		entryRepo:   new(MockEntryRepository),
		offlineRepo: new(MockOfflineTokenRepository),
		tokenRepo:   new(MockPrintTokenRepository),
		auditRepo:   new(MockAuditRepository),
		docRepo:     new(MockDocumentRepository),
		store:       storage.NewMemoryObjectStorage(),
		signer:      auth.NewOfflineSigner(cfg),
		ownerID:     uuid.New(),
	}

	service := accessapp.NewOfflineService(
		env.entryRepo, env.offlineRepo, env.tokenRepo, env.auditRepo, env.docRepo,
		env.store, env.signer, cfg, 30*24*time.Hour, nil)
	handler := NewOfflineHandler(service)
	require.True(t, handler.Enabled())

	env.router = gin.New()
	env.router.Use(middleware.RequestID(), middleware.OwnerAuth())
	handler.RegisterRoutes(env.router.Group("/api/v1"))
	return env
}

func (env *offlineTestEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.OwnerIDHeader, env.ownerID.String())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func TestOfflineHandler_PrepareOffline(t *testing.T) {
	env := setupOfflineTest(t)
	documentID := uuid.New()

	entry, err := ledger.NewEntry(env.ownerID, documentID, 3)
	require.NoError(t, err)

	doc := storedDocument(t, env.store, "documents/offline.pdf", []byte("%PDF-1.7"))

	env.entryRepo.On("FindByOwnerAndDocument", mock.Anything, env.ownerID, documentID).Return(entry, nil)
	env.entryRepo.On("ConsumePrint", mock.Anything, entry.ID).
		Return(&ledger.ConsumeResult{UsedPrints: 1, RemainingPrints: 2}, nil)
	env.offlineRepo.On("Save", mock.Anything, mock.AnythingOfType("*ledger.OfflineToken")).Return(nil)
	env.docRepo.On("FindByID", mock.Anything, mock.Anything).Return(doc, nil)
	env.auditRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	w := env.do(t, http.MethodPost, "/api/v1/offline/tokens", PrepareOfflineHTTPRequest{
		DocumentID:      documentID.String(),
		MachineGuidHash: testMachineHash,
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"signed_token"`)
	assert.Contains(t, w.Body.String(), `"remaining_prints":2`)
	env.entryRepo.AssertExpectations(t)
}

func TestOfflineHandler_PrepareOffline_BadMachineHash(t *testing.T) {
	env := setupOfflineTest(t)

	w := env.do(t, http.MethodPost, "/api/v1/offline/tokens", PrepareOfflineHTTPRequest{
		DocumentID:      uuid.NewString(),
		MachineGuidHash: "short",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "machine_guid_hash")
	env.entryRepo.AssertNotCalled(t, "ConsumePrint", mock.Anything, mock.Anything)
}

func TestOfflineHandler_PrepareOffline_QuotaExhausted(t *testing.T) {
	env := setupOfflineTest(t)
	documentID := uuid.New()

	entry, err := ledger.NewEntry(env.ownerID, documentID, 1)
	require.NoError(t, err)
	entry.UsedPrints = 1

	env.entryRepo.On("FindByOwnerAndDocument", mock.Anything, env.ownerID, documentID).Return(entry, nil)

	w := env.do(t, http.MethodPost, "/api/v1/offline/tokens", PrepareOfflineHTTPRequest{
		DocumentID:      documentID.String(),
		MachineGuidHash: testMachineHash,
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_QUOTA_EXCEEDED")
}

func TestOfflineHandler_ValidateOffline(t *testing.T) {
	env := setupOfflineTest(t)
	documentID := uuid.New()
	entryID := uuid.New()

	token, err := ledger.NewOfflineToken(env.ownerID, documentID, entryID, testMachineHash, time.Hour)
	require.NoError(t, err)
	signed, err := env.signer.Sign(token.Token, env.ownerID, documentID, testMachineHash, token.ExpiresAt)
	require.NoError(t, err)

	env.offlineRepo.On("FindByToken", mock.Anything, token.Token).Return(token, nil)

	w := env.do(t, http.MethodPost, "/api/v1/offline/validate", ValidateOfflineHTTPRequest{
		SignedToken:     signed,
		MachineGuidHash: testMachineHash,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), token.Token)
}

func TestOfflineHandler_ValidateOffline_Forged(t *testing.T) {
	env := setupOfflineTest(t)

	w := env.do(t, http.MethodPost, "/api/v1/offline/validate", ValidateOfflineHTTPRequest{
		SignedToken:     "eyJhbGciOiJIUzI1NiJ9.forged.signature",
		MachineGuidHash: testMachineHash,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env.offlineRepo.AssertNotCalled(t, "FindByToken", mock.Anything, mock.Anything)
}

func TestOfflineHandler_Reconcile(t *testing.T) {
	env := setupOfflineTest(t)
	documentID := uuid.New()
	entryID := uuid.New()

	token, err := ledger.NewOfflineToken(env.ownerID, documentID, entryID, testMachineHash, time.Hour)
	require.NoError(t, err)

	env.offlineRepo.On("FindByToken", mock.Anything, token.Token).Return(token, nil)
	env.offlineRepo.On("MarkReconciled", mock.Anything, token.Token, mock.Anything, "Warehouse-Printer").Return(nil)
	env.auditRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	w := env.do(t, http.MethodPost, "/api/v1/offline/reconcile", ReconcileHTTPRequest{
		Items: []ReconcileHTTPItem{{
			Token:           token.Token,
			MachineGuidHash: testMachineHash,
			PrintedAt:       time.Now(),
			PrinterName:     "Warehouse-Printer",
		}},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"accepted":1`)
	assert.Contains(t, w.Body.String(), `"rejected":0`)
	// Reconciliation never touches the ledger.
	env.entryRepo.AssertNotCalled(t, "ConsumePrint", mock.Anything, mock.Anything)
}

func TestOfflineHandler_Reconcile_UnknownTokenRejectedInBody(t *testing.T) {
	env := setupOfflineTest(t)
	unknown := uuid.NewString()

	env.offlineRepo.On("FindByToken", mock.Anything, unknown).Return(nil, shared.ErrNotFound)
	env.auditRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	w := env.do(t, http.MethodPost, "/api/v1/offline/reconcile", ReconcileHTTPRequest{
		Items: []ReconcileHTTPItem{{
			Token:           unknown,
			MachineGuidHash: testMachineHash,
			PrintedAt:       time.Now(),
		}},
	})

	// Per-item failures never fail the batch.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"rejected":1`)
}

func TestOfflineHandler_Reconcile_EmptyBatch(t *testing.T) {
	env := setupOfflineTest(t)

	w := env.do(t, http.MethodPost, "/api/v1/offline/reconcile", ReconcileHTTPRequest{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOfflineRoutes_AbsentWhenDisabled(t *testing.T) {
	cfg := config.OfflineConfig{Enabled: false}
	service := accessapp.NewOfflineService(
		new(MockEntryRepository), new(MockOfflineTokenRepository), new(MockPrintTokenRepository),
		new(MockAuditRepository), new(MockDocumentRepository),
		storage.NewMemoryObjectStorage(), auth.NewOfflineSigner(cfg), cfg, 24*time.Hour, nil)
	handler := NewOfflineHandler(service)
	require.False(t, handler.Enabled())

	engine := gin.New()
	r := router.NewRouter(engine)
	r.RegisterIf(handler.Enabled(), handler)
	r.Setup()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/offline/tokens", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	// The group is never mounted, so the endpoint does not exist.
	assert.Equal(t, http.StatusNotFound, w.Code)
}
