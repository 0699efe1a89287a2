// ABOUTME: Package documentation for the control server
// ABOUTME: Describes the websocket protocol and how to mount the handler
// Package control exposes a running engine over a websocket.
//
// Clients send client/hello, then client/command messages that load tracks by
// resource name and control tracks or mixers. The server replies with
// server/hello, streams server/meters periodically and reports rejected
// commands with server/error.
//
// Example:
//
//	srv := control.New(control.Config{Port: 8928, EnableMDNS: true}, engine, tracks,
//		map[string]*mixgraph.Mixer{"music": music})
//	go srv.Start()
//	defer srv.Stop()
package control
