// Package signal binds the room coordinator to its websocket transport: one
// persistent connection per client, a JSON envelope routed by type, and
// lifecycle callbacks feeding the coordinator's connection index.
package signal

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/visign/signaling/internal/app"
	"github.com/visign/signaling/internal/config"
	"github.com/visign/signaling/internal/core"
	"github.com/visign/signaling/internal/domain"
	"github.com/visign/signaling/internal/ice"
)

// IdentityKey is where the auth middleware stores the resolved identity.
const IdentityKey = "identity"

type Controller struct {
	cfg      *config.Config
	coord    core.Coordinator
	relay    *app.Relay
	ice      ice.Provider
	conns    *ConnRegistry
	limiter  *RateLimiter
	upgrader websocket.Upgrader
}

func NewController(cfg *config.Config, coord core.Coordinator, relay *app.Relay, provider ice.Provider, conns *ConnRegistry) *Controller {
	return &Controller{
		cfg:      cfg,
		coord:    coord,
		relay:    relay,
		ice:      provider,
		conns:    conns,
		limiter:  NewRateLimiter(10, time.Second),
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin(cfg.AllowedOrigins)},
	}
}

// checkOrigin builds the upgrade policy: an empty allowlist admits any origin,
// otherwise the browser-sent Origin header must match exactly. Requests
// without an Origin (non-browser clients) always pass.
func checkOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

type connectedPayload struct {
	ConnectionID domain.ConnectionID `json:"connection_id"`
	UserID       domain.UserID       `json:"user_id"`
	DisplayName  string              `json:"display_name"`
}

// HandleSignal upgrades the request and serves the connection until the
// transport drops. The identity was resolved by the auth middleware; a request
// without one never reaches this handler.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	identity := v.(domain.Identity)

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := newWSConn(domain.ConnectionID(uuid.NewString()), identity, ws)
	ctl.conns.add(conn)
	log.Info().Str("module", "signal").
		Str("conn", string(conn.id)).Str("user", string(identity.UserID)).
		Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctl.send(conn, "connected", connectedPayload{
		ConnectionID: conn.id,
		UserID:       identity.UserID,
		DisplayName:  identity.DisplayName,
	})

	go ctl.writePump(ctx, conn)
	ctl.readPump(ctx, conn)
}

// onDisconnect is the transport-loss path: the participant is marked
// disconnected, not removed, so it can reconnect until the reaper gives up.
func (ctl *Controller) onDisconnect(c *wsConn) {
	ctl.conns.remove(c)
	ctl.limiter.Forget(c.identity.UserID)
	c.Close()
	if callID, p, ok := ctl.coord.MarkDisconnected(c.id); ok {
		log.Info().Str("module", "signal").
			Str("conn", string(c.id)).Str("call", string(callID)).
			Str("user", string(p.UserID)).Msg("connection dropped")
	}
}
