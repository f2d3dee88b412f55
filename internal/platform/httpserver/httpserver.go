package httpserver

import (
	"net/http"
	"time"
)

// New builds the HTTP server carrying both the REST API and the websocket
// feed. Only the header read is bounded here: feed connections stay open
// indefinitely, so server-wide read/write timeouts would sever them.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
