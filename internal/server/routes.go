// Package server wires HTTP handlers into routers for the relay and the
// landing server.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes returns the relay router. WebSocket upgrades are accepted on
// /ws and on any other path that carries upgrade headers.
func SetupRoutes(relay *Relay) *mux.Router {
	ws := WebSocketHandler(relay)

	r := mux.NewRouter()
	r.HandleFunc("/ws", ws)
	r.NewRoute().HeadersRegexp("Upgrade", "(?i)^websocket$").Handler(ws)
	r.HandleFunc("/health", HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/stats", StatsHandler(relay)).Methods(http.MethodGet)
	r.HandleFunc("/registry/{app_id}", RegistryLookupHandler(relay)).Methods(http.MethodGet)
	r.HandleFunc("/", HealthHandler)
	return r
}
