package relay

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/pkg/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // tighten with allowed origins in production
	},
}

// Handler upgrades HTTP connections to websocket and binds them to the hub.
type Handler struct {
	hub    *Hub
	msgSvc MessageSender
	jwtSvc auth.JWTService
}

func NewHandler(hub *Hub, msgSvc MessageSender, jwtSvc auth.JWTService) *Handler {
	return &Handler{
		hub:    hub,
		msgSvc: msgSvc,
		jwtSvc: jwtSvc,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/ws", h.Connect)
}

// Connect authenticates the connection, upgrades it, and registers it under
// the token's user identity before any event can flow. Browsers cannot set
// headers on websocket dials, so the token is also accepted as a query
// parameter.
func (h *Handler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = bearerToken(c)
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing token"))
		return
	}

	claims, err := h.jwtSvc.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid token"))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}

	client := newClient(h.hub, conn, claims.UserID, h.msgSvc)
	h.hub.Register(client)

	go client.writePump()
	go client.readPump()
}

func bearerToken(c *gin.Context) string {
	const prefix = "Bearer "
	header := c.GetHeader("Authorization")
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}
