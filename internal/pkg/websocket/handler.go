package websocket

import (
	"net/http"

	"github.com/aits/backend/internal/app/models/dto"
	"github.com/aits/backend/internal/pkg/auth"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// TokenValidator checks an access token.
type TokenValidator interface {
	ValidateAndExtractClaims(token string) (*auth.Claims, error)
}

// Handler for WebSocket connections
type Handler struct {
	hub       *Hub
	validator TokenValidator
	logger    zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, validator TokenValidator, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:       hub,
		validator: validator,
		logger:    logger,
	}
}

// token reads the bearer header, falling back to ?token= because browsers
// cannot set headers on a websocket handshake.
func token(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		if t, err := auth.ExtractBearerToken(header); err == nil {
			return t
		}
	}
	return c.Query("token")
}

// HandleConnection godoc
// @Summary Subscribe to notifications
// @Description Upgrades to a WebSocket that receives {"type":"notification"} events for the authenticated user. The access token may be passed as a bearer header or the token query parameter.
// @Tags notifications
// @Param token query string false "Access token"
// @Success 101 {string} string "Switching Protocols"
// @Failure 401 {object} dto.ErrorResponse "Missing or invalid token"
// @Router /ws/notifications [get]
func (h *Handler) HandleConnection(c *gin.Context) {
	claims, err := h.validator.ValidateAndExtractClaims(token(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeInvalidToken, "A valid access token is required")))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().Err(err).Int64("userID", claims.UserID).Msg("Failed to upgrade connection to WebSocket")
		return
	}

	client := &Client{
		hub:    h.hub,
		conn:   conn,
		send:   make(chan []byte, 64),
		userID: claims.UserID,
		logger: h.logger,
	}

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
