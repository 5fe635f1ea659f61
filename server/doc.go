// Package server exposes the runner over HTTP.
//
// Routes:
//
//	GET /chat_stream/:message?checkpoint_id=ID   server-sent events
//	GET /chat_ws                                 WebSocket, one JSON record per frame
//	GET /healthz                                 liveness and active run count
//	GET /metrics                                 Prometheus exposition
//
// Session errors are reported as JSON with a status code before any record
// is written: 404 for an unknown checkpoint_id, 409 while another run holds
// the session. Once streaming has begun, failures close the stream.
package server
