package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"chatwire/middleware"
	"chatwire/services"
	"chatwire/utils"
)

type WSHandler struct {
	gateway  *services.Gateway
	verifier services.TokenVerifier
	upgrader websocket.Upgrader
	logger   *utils.Logger
}

func NewWSHandler(gateway *services.Gateway, verifier services.TokenVerifier, logger *utils.Logger) *WSHandler {
	return &WSHandler{
		gateway:  gateway,
		verifier: verifier,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Cross-origin is governed by the token, not the Origin header
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve handles GET /ws. The credential is verified before the upgrade;
// a failed handshake terminates the connection attempt and registers
// nothing.
func (h *WSHandler) Serve(c *gin.Context) {
	token := middleware.ExtractToken(c.Request)
	user, err := h.verifier.VerifyToken(c.Request.Context(), token)
	if err != nil {
		status := http.StatusUnauthorized
		message := "Invalid or expired token"
		if errors.Is(err, services.ErrUnauthenticated) {
			message = "Missing authorization token"
		}
		c.JSON(status, gin.H{"success": false, "message": message})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", "userId", user.ID, "error", err)
		return
	}

	h.gateway.HandleConnection(c.Request.Context(), conn, user)
}
