package signal

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Rahul15205/youtube-stream/internal/app"
	"github.com/Rahul15205/youtube-stream/internal/config"
)

// Controller terminates signaling websockets and feeds decoded frames into
// the coordinator.
type Controller struct {
	Coord   *app.Coordinator
	Limiter *JoinRateLimiter

	readLimit  int64
	pingPeriod time.Duration
}

func NewController(cfg *config.Config, coord *app.Coordinator) *Controller {
	return &Controller{
		Coord:      coord,
		Limiter:    NewJoinRateLimiter(cfg.JoinLimit, cfg.JoinWindow),
		readLimit:  cfg.ReadLimit,
		pingPeriod: cfg.PingPeriod,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and runs the connection until it dies.
// The client token minted by the http layer doubles as the client id.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	cid := app.ClientID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("cid", string(cid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}
	if ctl.readLimit > 0 {
		ws.SetReadLimit(ctl.readLimit)
	}

	conn := newWSConn(ws)
	ctl.Coord.Register(cid, conn)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, cid, conn)
}
