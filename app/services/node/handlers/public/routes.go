// Package public binds the public routes of the node.
package public

import (
	"net/http"
	"time"

	"github.com/ardanlabs/powledger/app/services/node/handlers/v1/public"
	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/events"
	"github.com/ardanlabs/powledger/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log         *zap.SugaredLogger
	Chain       *database.Chain
	MineTimeout time.Duration
	Evts        *events.Events
}

// Routes binds all the public routes.
func Routes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:         cfg.Log,
		Chain:       cfg.Chain,
		MineTimeout: cfg.MineTimeout,
		WS:          websocket.Upgrader{},
		Evts:        cfg.Evts,
	}

	const version = "v1"

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/chain", pbl.Dump)
	app.Handle(http.MethodGet, version, "/chain/latest", pbl.Latest)
	app.Handle(http.MethodGet, version, "/chain/valid", pbl.Valid)
	app.Handle(http.MethodGet, version, "/blocks/:index", pbl.Block)
	app.Handle(http.MethodPost, version, "/blocks", pbl.Append)
}
