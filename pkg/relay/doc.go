// Package relay owns the lifecycle of client voice sessions.
//
// A Session couples one client WebSocket connection to at most one upstream
// recognition link and at most one upstream synthesis link, each owned
// exclusively for the session's lifetime. The Registry is the process-wide
// table of active sessions and guarantees at most one entry per session ID
// and exactly-once teardown.
//
// A Relay runs the two forwarding pumps of one conversation leg
// concurrently and tears both sides down exactly once when either pump
// exits, whether by client disconnect, upstream terminal event, or error.
package relay
