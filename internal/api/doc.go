// Package api exposes the courier HTTP surface.
//
// Endpoints:
//
//   - GET  /health               - liveness check (no auth)
//   - POST /resolve_phone        - phone number to directory contact
//   - POST /bot/send             - send to bot and await its next reply
//   - POST /search_phone_via_bot - templated phone search via bot
//   - GET  /lookups              - recent lookup audit records
//
// All endpoints except /health require a bearer token. Failures map to status
// codes: not found 404, ambiguous 409, rate limited 429, channel session
// invalid 401, connection not ready 503, send rejected 502. A timed-out wait
// is not a failure; it returns 200 with reply null.
package api
