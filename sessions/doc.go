// Package sessions defines the negotiated-session view that transports hand
// to capability implementations. A session is created by the initialize
// handshake and scopes authorization, logging and the answer cache.
package sessions
