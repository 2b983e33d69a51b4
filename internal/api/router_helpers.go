package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditlog/internal/middleware"
	"github.com/persistorai/auditlog/internal/models"
	"github.com/persistorai/auditlog/internal/ws"
)

// maxPathIDLen bounds path parameter IDs.
const maxPathIDLen = 255

// callerIdentity returns the authenticated identity, or responds 401.
func callerIdentity(c *gin.Context) (models.Identity, bool) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return models.Identity{}, false
	}

	return id, true
}

// pathID returns the named path parameter, or responds 400.
func pathID(c *gin.Context, name string) (string, bool) {
	id := c.Param(name)
	if err := validatePathID(id); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return "", false
	}

	return id, true
}

// validatePathID checks that a path parameter ID is non-empty and within length limits.
func validatePathID(id string) error {
	if id == "" {
		return fmt.Errorf("id must not be empty")
	}
	if len(id) > maxPathIDLen {
		return fmt.Errorf("id exceeds maximum length of %d", maxPathIDLen)
	}
	return nil
}

// bindJSON decodes the request body into dst, or responds 400.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body: "+err.Error())
		return false
	}

	return true
}

// streamHandler upgrades GET /logs/stream to a live-tail WebSocket for the
// caller's tenant.
func streamHandler(appCtx context.Context, log *logrus.Logger, hub *ws.Hub, origins []string, validator ws.CredentialValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerIdentity(c)
		if !ok {
			return
		}

		credential := middleware.ExtractBearerToken(c)

		// CORS origins double as WebSocket origin patterns.
		conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
			OriginPatterns:       origins,
			CompressionMode:      websocket.CompressionContextTakeover,
			CompressionThreshold: 128,
		})
		if err != nil {
			log.WithError(err).Warn("websocket accept failed")
			return
		}

		client := ws.NewClient(hub, conn, validator, credential, caller.TenantID)
		hub.Register(client)

		// Cancel when either the server shuts down or the request ends.
		wsCtx, wsCancel := context.WithCancel(appCtx)
		go func() {
			select {
			case <-c.Request.Context().Done():
				wsCancel()
			case <-wsCtx.Done():
			}
		}()

		go client.WritePump(wsCtx)
		client.ReadPump(wsCtx)
		wsCancel()
	}
}
