// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ardanlabs/powledger/business/sys/validate"
	"github.com/ardanlabs/powledger/business/web/errs"
	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/events"
	"github.com/ardanlabs/powledger/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of ledger endpoints.
type Handlers struct {
	Log         *zap.SugaredLogger
	Chain       *database.Chain
	MineTimeout time.Duration
	WS          websocket.Upgrader
	Evts        *events.Events
}

// Dump returns the full chain in its canonical rendering.
func (h Handlers) Dump(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.RespondRaw(ctx, w, []byte(h.Chain.String()), http.StatusOK)
}

// Latest returns the last block in the chain.
func (h Handlers) Latest(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	b, err := h.Chain.Latest()
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, toBlock(b), http.StatusOK)
}

// Block returns the block at the specified index.
func (h Handlers) Block(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	index, err := strconv.Atoi(web.Param(r, "index"))
	if err != nil {
		return errs.BadRequest(fmt.Errorf("invalid index: %w", err))
	}

	b, err := h.Chain.Block(index)
	if err != nil {
		return errs.NotFound(err)
	}

	return web.Respond(ctx, w, toBlock(b), http.StatusOK)
}

// Valid reports the integrity of the chain.
func (h Handlers) Valid(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := validity{
		Valid:  true,
		Length: h.Chain.Length(),
	}

	if err := h.Chain.Validate(); err != nil {
		resp.Valid = false
		resp.Reason = err.Error()

		var ve *database.ValidationError
		if errors.As(err, &ve) {
			resp.Index = &ve.Index
		}
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Append mines the payload into a new block at the end of the chain.
func (h Handlers) Append(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req appendRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
	}

	if err := validate.Check(req); err != nil {
		return err
	}

	if req.TimeStamp == "" {
		req.TimeStamp = v.Now.Format(time.RFC3339)
	}

	// Mining is bounded by the request and the configured timeout.
	if h.MineTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.MineTimeout)
		defer cancel()
	}

	h.Log.Infow("append block", "traceid", v.TraceID, "timestamp", req.TimeStamp, "difficulty", h.Chain.Difficulty())

	b, err := h.Chain.AppendPayload(ctx, req.TimeStamp, req.Payload)
	if err != nil {
		if errors.Is(err, database.ErrMiningTimeout) {
			return errs.NewTrusted(err, http.StatusServiceUnavailable)
		}
		return err
	}

	return web.Respond(ctx, w, toBlock(b), http.StatusCreated)
}

// Events handles a web socket to provide chain events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case e, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteJSON(e); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}
