package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/printpass/backend/internal/infrastructure/config"
)

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrMissingOwnerID   = errors.New("missing owner_id in claims")
	ErrMissingMachine   = errors.New("missing machine_hash in claims")
)

// OfflineClaims are the claims embedded in a machine-bound offline print
// token. The token is validated on a device that may have no connectivity,
// so everything needed for the decision travels inside the token itself.
type OfflineClaims struct {
	jwt.RegisteredClaims
	OwnerID     string `json:"owner_id"`
	DocumentID  string `json:"document_id"`
	MachineHash string `json:"machine_hash"`
}

// OfflineSigner issues and verifies detached JWTs for offline print tokens.
// HMAC is deliberate: the same secret lives on the server and inside the
// packaged client, and there is no third party that needs to verify.
type OfflineSigner struct {
	secret []byte
	issuer string
}

// NewOfflineSigner creates a signer from the offline capability config
func NewOfflineSigner(cfg config.OfflineConfig) *OfflineSigner {
	return &OfflineSigner{
		secret: []byte(cfg.SigningSecret),
		issuer: cfg.Issuer,
	}
}

// Sign produces the detached JWT for a minted offline token. The JWT ID is
// the token's opaque identifier so the server can correlate redemptions
// during reconciliation.
func (s *OfflineSigner) Sign(tokenID string, ownerID, documentID uuid.UUID, machineGuidHash string, expiresAt time.Time) (string, error) {
	now := time.Now()
	claims := &OfflineClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Issuer:    s.issuer,
			Subject:   ownerID.String(),
			Audience:  jwt.ClaimStrings{s.issuer},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		OwnerID:     ownerID.String(),
		DocumentID:  documentID.String(),
		MachineHash: machineGuidHash,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks signature and time bounds and returns the claims
func (s *OfflineSigner) Verify(tokenString string) (*OfflineClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &OfflineClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*OfflineClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	if claims.OwnerID == "" {
		return nil, ErrMissingOwnerID
	}
	if claims.MachineHash == "" {
		return nil, ErrMissingMachine
	}

	return claims, nil
}

// GetOwnerUUID extracts and parses the owner ID from claims
func (c *OfflineClaims) GetOwnerUUID() (uuid.UUID, error) {
	return uuid.Parse(c.OwnerID)
}

// GetDocumentUUID extracts and parses the document ID from claims
func (c *OfflineClaims) GetDocumentUUID() (uuid.UUID, error) {
	return uuid.Parse(c.DocumentID)
}
