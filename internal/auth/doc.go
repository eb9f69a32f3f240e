// Package auth signs and validates the bearer tokens of the HTTP API.
//
// There is no user database. The operator mints HS256 tokens with the
// configured secret and hands them to dashboards and automations. Each
// token carries a role:
//
//   - viewer: read the LED table, run history and device list
//   - operator: additionally push LED tables, resync and ping
//
// Role permissions are a static map checked with HasPermission.
package auth
