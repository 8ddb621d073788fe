// Package server implements the WebSocket relay and its companion landing server.
//
// The Relay accepts connections, lets each one claim an app_id, and forwards
// every well-formed inbound message verbatim to all other open connections.
// The implementation is split into files for the relay loop, clients,
// envelope parsing, routing, HTTP handlers, and server helpers.
package server
