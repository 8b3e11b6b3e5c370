package handlers

import (
	"log"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"syncBoard/internal/relay"
	"syncBoard/internal/services"
	"syncBoard/internal/utils"
)

// BoardRelay runs upgraded board connections.
type BoardRelay interface {
	Serve(ws *websocket.Conn, identity relay.Identity)
}

type SocketBoardHandler struct {
	upgrader    websocket.Upgrader
	relay       BoardRelay
	authService *services.AuthenticationService
}

func NewSocketBoardHandler(boardRelay BoardRelay, authService *services.AuthenticationService, allowedOrigins []string) *SocketBoardHandler {
	sbh := &SocketBoardHandler{
		relay:       boardRelay,
		authService: authService,
	}
	sbh.InitializeSocketUpgrader(allowedOrigins)
	return sbh
}

func (sbh *SocketBoardHandler) InitializeSocketUpgrader(allowedOrigins []string) {
	sbh.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
		},
	}
}

// HandleSocketBoardRoute upgrades a board connection. A token is optional;
// anonymous participants only carry the display name they join with, but a
// token that is present must be valid.
func (sbh *SocketBoardHandler) HandleSocketBoardRoute(ctx *gin.Context) {
	var identity relay.Identity
	if token := utils.TokenFromRequest(ctx); token != "" {
		claims, err := sbh.authService.Authenticate(token)
		if err != nil {
			abortWithError(ctx, err)
			return
		}
		identity.UserID = claims.UserID()
		identity.UserName = claims.DisplayName()
	}
	if identity.UserName == "" {
		identity.UserName = ctx.Query("name")
	}

	ws, err := sbh.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Println("HandleSocketBoardRoute - error upgrading connection:", err)
		return
	}
	sbh.relay.Serve(ws, identity)
}
