package bus

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	writeWait  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeSubscriber upgrades r to a WebSocket connection and streams frames
// published to recipient until the socket closes or the request context is
// cancelled. A periodic ping keeps idle connections alive; a connection
// that misses its liveness window is closed (§4.6).
func ServeSubscriber(b *Bus, w http.ResponseWriter, r *http.Request, recipient []byte) error {
	logger := log.With().Str("module", "bus_ws").Logger()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, unsubscribe := b.Subscribe(recipient)
	defer unsubscribe()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	go readLoop(conn, done, logger)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return nil
		case <-done:
			return nil
		case frame, ok := <-ch:
			if !ok {
				return nil
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				logger.Debug().Err(err).Msg("write failed, closing subscriber")
				return nil
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug().Err(err).Msg("ping failed, closing subscriber")
				return nil
			}
		}
	}
}

// readLoop discards inbound client frames (this bus is push-only) and
// closes done when the connection errors, so the caller's select loop can
// unwind.
func readLoop(conn *websocket.Conn, done chan struct{}, logger zerolog.Logger) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			logger.Debug().Err(err).Msg("subscriber read loop ended")
			return
		}
	}
}
