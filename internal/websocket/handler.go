package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
)

// HandleWebSocket returns an HTTP handler that upgrades connections and runs
// them as Hub clients until either side goes away. With no origin patterns
// any origin may connect; otherwise the Origin host must match one of them
// (path.Match syntax, e.g. "*.home.arpa").
func HandleWebSocket(hub *Hub, logger *slog.Logger, originPatterns ...string) http.HandlerFunc {
	opts := &ws.AcceptOptions{
		OriginPatterns:     originPatterns,
		InsecureSkipVerify: len(originPatterns) == 0,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if hub.Closed() {
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}

		conn, err := ws.Accept(w, r, opts)
		if err != nil {
			logger.Warn("websocket accept", "error", err, "remote", r.RemoteAddr, "origin", r.Header.Get("Origin"))
			return
		}
		defer conn.CloseNow()

		client := NewClient(hub, conn)
		logger.Debug("websocket connected", "remote", r.RemoteAddr)
		client.Run(r.Context())
		logger.Debug("websocket disconnected", "remote", r.RemoteAddr, "clients", hub.ClientCount())
	}
}
