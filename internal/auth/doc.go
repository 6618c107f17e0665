// Package auth provides authentication and authorisation for Gatehouse.
//
// It implements:
//   - HS256 access tokens with a fixed lifetime and no server-side revocation
//   - A static eight-role hierarchy (user up to admin) expanded by closure lookup
//   - An immutable principal directory loaded once from configuration
//   - Argon2id secret hashing (bcrypt accepted for pre-hashed secrets)
//   - A per-request guard that maps every token to authorized,
//     unauthenticated or forbidden
//
// Role requirements are OR'd. A route requiring [finance, security]
// admits anyone whose expanded roles contain either.
//
// Disabled principals are refused at login and by the guard, so a token
// minted before a principal was disabled stops working once the directory
// is reloaded with the new status.
package auth
