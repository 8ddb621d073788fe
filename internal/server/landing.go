// Package server serves the landing page on its own listener. The landing
// server shares no state with the relay; the page only knows the relay port.
package server

import (
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/Tyrowin/gorelay/internal/config"
	"github.com/Tyrowin/gorelay/internal/logger"
)

// SetupLandingRoutes returns the landing router. When cfg.StaticDir is set
// its files are served; otherwise the built-in relay console is served.
func SetupLandingRoutes(cfg config.LandingConfig, relayPort string, log *logger.Logger) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprint(w, "Landing server is running!")
	}).Methods(http.MethodGet)

	if cfg.StaticDir != "" {
		log.Info("Serving static assets", "dir", cfg.StaticDir)
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.StaticDir)))
		return r
	}

	r.HandleFunc("/", LandingPageHandler(relayPort, log)).Methods(http.MethodGet)
	return r
}

// relayPortNumber extracts the port from an address such as ":8080" or
// "0.0.0.0:8080".
func relayPortNumber(addr string) string {
	if _, port, err := net.SplitHostPort(addr); err == nil {
		return port
	}
	return strings.TrimPrefix(addr, ":")
}

// LandingPageHandler serves an HTML console that connects to the relay,
// optionally announces an app_id, and shows relayed messages.
func LandingPageHandler(relayPort string, log *logger.Logger) http.HandlerFunc {
	page := strings.ReplaceAll(landingPage, "__RELAY_PORT__", template.JSEscapeString(relayPortNumber(relayPort)))

	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := fmt.Fprint(w, page); err != nil {
			log.Warn("Error writing landing page", "error", err)
		}
	}
}

const landingPage = `<!DOCTYPE html>
<html>
<head>
    <title>Relay Console</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            font-family: monospace;
        }
        input[type="text"] { width: 300px; padding: 5px; margin-right: 10px; }
        #appIdInput { width: 150px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>Relay Console</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="appIdInput" placeholder="app_id (optional)">
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
    </div>
    <div style="margin-top: 10px;">
        <input type="text" id="messageInput" placeholder="Type a message..." disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <div id="messages"></div>

    <script>
        const relayPort = "__RELAY_PORT__";
        let ws = null;
        const messagesDiv = document.getElementById('messages');
        const messageInput = document.getElementById('messageInput');
        const appIdInput = document.getElementById('appIdInput');
        const sendButton = document.getElementById('sendButton');
        const connectButton = document.getElementById('connectButton');
        const statusDiv = document.getElementById('status');

        function addMessage(text, type) {
            const el = document.createElement('div');
            el.style.margin = '5px 0';
            el.style.color = type === 'sent' ? 'blue' : type === 'received' ? 'green' : 'gray';
            el.textContent = (type === 'sent' ? 'You: ' : type === 'received' ? 'Peer: ' : '') + text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            messageInput.disabled = !connected;
            sendButton.disabled = !connected;
            appIdInput.disabled = connected;
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function envelope(extra) {
            const msg = Object.assign({}, extra);
            const appId = appIdInput.value.trim();
            if (appId) {
                msg.app_id = appId;
            }
            return JSON.stringify(msg);
        }

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.hostname + ':' + relayPort + '/ws');

            ws.onopen = function() {
                addMessage('Connected to relay');
                updateStatus(true);
                if (appIdInput.value.trim()) {
                    ws.send(envelope({ type: 'hello' }));
                }
            };
            ws.onmessage = function(event) { addMessage(event.data, 'received'); };
            ws.onclose = function() {
                addMessage('Connection closed');
                updateStatus(false);
                ws = null;
            };
            ws.onerror = function() {
                addMessage('Connection error');
                updateStatus(false);
            };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function sendMessage() {
            const text = messageInput.value.trim();
            if (text && ws && ws.readyState === WebSocket.OPEN) {
                const payload = envelope({ text: text });
                ws.send(payload);
                addMessage(payload, 'sent');
                messageInput.value = '';
            }
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
