// Package api implements the Gatehouse HTTP API and the live audit stream.
//
// Routes live under /api/v1:
//
//	GET  /health          public
//	POST /auth/login      public, rate limited per client address
//	GET  /ws?ticket=      WebSocket, authenticated by a single-use ticket
//	GET  /auth/me         any authenticated principal
//	GET  /roles           any authenticated principal
//	GET  /directory       admin, security
//	GET  /audit           admin, security
//	POST /auth/ws-ticket  admin, security
//
// Protected routes sit behind Server.Require, which asks the auth.Guard for
// a decision on every request. Unauthenticated callers get 401 and callers
// without a qualifying role get 403. Every denial and every login attempt
// is handed to the audit.Recorder, whose WebSocket sink is this package's
// Hub.
//
// Errors are JSON objects of the form {status, code, message}.
package api
