// Package server exposes the relay's HTTP handlers: the WebSocket upgrade,
// health and stats endpoints, and the app_id lookup.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

// WebSocketHandler upgrades GET requests to WebSocket connections and
// registers them with relay.
func WebSocketHandler(relay *Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := relay.upgrader.Upgrade(w, r, nil)
		if err != nil {
			relay.log.Warn("WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
			return
		}

		client := NewClient(conn, relay, r.RemoteAddr)

		// The relay loop launches the pump goroutines.
		if err := relay.Register(client); err != nil {
			client.log.Warn("Rejecting connection", "error", err)
			client.closeConnection()
		}
	}
}

// HealthHandler provides a simple plain-text liveness check.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "Relay server is running!")
}

// StatsHandler reports open connection and identifier counts as JSON.
func StatsHandler(relay *Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, relay.Stats())
	}
}

type registryEntry struct {
	AppID        string `json:"app_id"`
	ConnectionID string `json:"connection_id"`
	RemoteAddr   string `json:"remote_addr"`
}

// RegistryLookupHandler resolves {app_id} to the connection currently
// holding it.
func RegistryLookupHandler(relay *Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appID := mux.Vars(r)["app_id"]

		client, ok := relay.Lookup(appID)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": fmt.Sprintf("app_id %q is not registered", appID),
			})
			return
		}

		writeJSON(w, http.StatusOK, registryEntry{
			AppID:        appID,
			ConnectionID: client.ID(),
			RemoteAddr:   client.RemoteAddr(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
