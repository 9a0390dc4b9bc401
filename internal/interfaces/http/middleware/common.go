// Package middleware holds the gin middleware chain: request IDs, owner
// identification, and request validation helpers.
package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/printpass/backend/internal/infrastructure/logger"
	"github.com/printpass/backend/internal/interfaces/http/dto"
)

// Context keys set by the middleware chain
const (
	// RequestIDContextKey is the gin context key holding the request ID
	RequestIDContextKey = "request_id"
	// OwnerIDContextKey is the gin context key holding the caller's owner ID
	OwnerIDContextKey = "owner_id"
)

// Header names
const (
	RequestIDHeader = "X-Request-ID"
	OwnerIDHeader   = "X-Owner-ID"
)

// RequestID assigns each request a unique ID, echoing a caller-supplied one.
// The ID is set on the gin context, the response header, and the request
// context so storage-layer logs correlate with the HTTP log line.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = generateRequestID()
		}
		c.Set(RequestIDContextKey, requestID)
		c.Writer.Header().Set(RequestIDHeader, requestID)
		c.Next()
	}
}

// OwnerAuth resolves the calling owner from the X-Owner-ID header and makes
// it available to handlers and the request context. Identity verification is
// delegated to the fronting gateway; this service trusts the header.
func OwnerAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(OwnerIDHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeUnauthorized, "Owner identity is required", c.GetString(RequestIDContextKey)))
			return
		}
		ownerID, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeUnauthorized, "Owner identity is not a valid UUID", c.GetString(RequestIDContextKey)))
			return
		}

		c.Set(OwnerIDContextKey, ownerID)

		reqLogger := logger.FromContext(c.Request.Context())
		ctx, _ := logger.WithOwnerID(c.Request.Context(), reqLogger, ownerID.String())
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetOwnerID returns the owner ID set by OwnerAuth
func GetOwnerID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(OwnerIDContextKey)
	if !ok {
		return uuid.Nil, false
	}
	ownerID, ok := v.(uuid.UUID)
	return ownerID, ok
}

// GetRequestID returns the request ID set by RequestID
func GetRequestID(c *gin.Context) string {
	if id := c.GetString(RequestIDContextKey); id != "" {
		return id
	}
	return c.GetHeader(RequestIDHeader)
}

func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(b)
}
