package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mind-engage/secacademy-lms/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// NewUpgrader accepts browser origins from allowed. Requests without an
// Origin header (non-browser clients) are always accepted.
func NewUpgrader(allowed []string) *websocket.Upgrader {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, ok := set["*"]; ok {
				return true
			}
			_, ok := set[origin]
			return ok
		},
	}
}

// GET /sessions/{sessionID}/stream
// Sends a snapshot first, then every session event as a JSON text frame.
// The stream ends when the client goes away or the session is evicted.
func SessionStreamHandler(m *session.Manager, up *websocket.Upgrader, log *slog.Logger) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the error response
			log.Debug("websocket upgrade failed", "session", s.ID(), "err", err)
			return
		}
		defer conn.Close()

		events, cancel := s.Subscribe()
		defer cancel()

		gone := make(chan struct{})
		go readPump(conn, gone)

		ping := time.NewTicker(pingPeriod)
		defer ping.Stop()

		for {
			select {
			case <-gone:
				return
			case ev, ok := <-events:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if !ok {
					_ = conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
					return
				}
				if err := conn.WriteJSON(ev); err != nil {
					log.Debug("websocket write failed", "session", s.ID(), "err", err)
					return
				}
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	})
}

// readPump drains client frames so control messages are processed, and
// closes gone once the connection fails.
func readPump(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
