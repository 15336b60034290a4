// Package handlers provides HTTP handlers for the published guards.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/riskgovernor/internal/api"
	"github.com/aristath/riskgovernor/internal/domain"
	"github.com/aristath/riskgovernor/internal/events"
)

const (
	streamBuffer       = 100
	streamWriteTimeout = 5 * time.Second
)

// GuardReader reads the latest published guard for an asset.
type GuardReader interface {
	GetLatestGuard(ctx context.Context, asset string) (*domain.ExecutionGuard, error)
}

// Handler serves the latest guard and a live guard stream.
type Handler struct {
	guards         GuardReader
	bus            *events.Bus
	originPatterns []string
	log            zerolog.Logger
}

// NewHandler creates a new decisions handler. originPatterns are the
// websocket origins accepted by the stream besides the server's own host.
func NewHandler(guards GuardReader, bus *events.Bus, originPatterns []string, log zerolog.Logger) *Handler {
	return &Handler{
		guards:         guards,
		bus:            bus,
		originPatterns: originPatterns,
		log:            log.With().Str("handler", "decisions").Logger(),
	}
}

// HandleGetLatest returns the most recent guard for ?asset=.
func (h *Handler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	asset := strings.TrimSpace(r.URL.Query().Get("asset"))
	if asset == "" {
		api.WriteError(w, h.log, fmt.Errorf("%w: asset is required", domain.ErrInvalidInput))
		return
	}

	guard, err := h.guards.GetLatestGuard(r.Context(), asset)
	if err != nil {
		api.WriteError(w, h.log, err)
		return
	}
	if guard == nil {
		api.WriteError(w, h.log, fmt.Errorf("%w: no guard for %s", domain.ErrNotFound, asset))
		return
	}

	api.WriteJSON(w, http.StatusOK, guard)
}

// HandleStream upgrades to a websocket and writes every published
// ExecutionGuard as one JSON message, optionally filtered by ?asset=. Slow clients lose events rather than
// stalling the publisher.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	asset := strings.TrimSpace(r.URL.Query().Get("asset"))

	// Server read/write timeouts would otherwise cut the stream
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "closed")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	guardChan := make(chan domain.ExecutionGuard, streamBuffer)
	unsubscribe := h.bus.Subscribe(events.GuardPublished, func(event *events.Event) {
		data, ok := event.Data.(*events.GuardPublishedData)
		if !ok || (asset != "" && data.Guard.Asset != asset) {
			return
		}
		select {
		case guardChan <- data.Guard:
		default:
			h.log.Warn().Str("asset", data.Guard.Asset).Msg("Guard stream buffer full, dropping event")
		}
	})
	defer unsubscribe()

	h.log.Debug().Str("asset", asset).Msg("Guard stream client connected")

	// Clients only listen; reading detects the close handshake.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.log.Debug().Msg("Guard stream client disconnected")
			return
		case guard := <-guardChan:
			writeCtx, writeCancel := context.WithTimeout(ctx, streamWriteTimeout)
			err := wsjson.Write(writeCtx, conn, guard)
			writeCancel()
			if err != nil {
				h.log.Debug().Err(err).Msg("Guard stream write failed")
				return
			}
		}
	}
}
