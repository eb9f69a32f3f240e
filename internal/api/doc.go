// Package api implements the HTTP REST API and WebSocket server for the
// dimmer LED sync service.
//
// This package provides:
//   - REST endpoints to read and submit LED tables and to queue syncs or pings
//   - Run history and discovery cache inspection
//   - WebSocket hub streaming LED tables and run results
//   - JWT bearer authentication with role permissions
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Routes
//
//	GET  /metrics              Prometheus scrape (open)
//	GET  /api/v1/health        component health (open)
//	GET  /api/v1/ws?ticket=    websocket stream (ticket)
//	POST /api/v1/ws-ticket     issue a websocket ticket
//	GET  /api/v1/leds          input table, desired table, last sync
//	PUT  /api/v1/leds          queue a sync toward {"leds": [...]}
//	POST /api/v1/sync          queue a resync of the last table
//	POST /api/v1/ping          queue a ping pass
//	GET  /api/v1/runs          recorded runs (?kind=&limit=)
//	GET  /api/v1/devices       discovery cache contents
//
// # Security
//
// Tokens are HS256 JWTs minted with `dimmersync -mint-token`. The viewer role
// reads; the operator role may also write tables and trigger passes.
// WebSocket connections use single-use tickets to keep tokens out of URLs.
//
// # WebSocket
//
// Clients send {"type":"subscribe","payload":{"channels":["leds","runs"]}}.
// Subscribing to "leds" immediately delivers the current table.
package api
