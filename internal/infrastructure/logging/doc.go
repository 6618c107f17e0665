// Package logging configures log/slog for Gatehouse.
//
//	logging:
//	  level: info      # debug, info, warn, error
//	  format: json     # json, text
//	  output: stdout   # stdout, stderr
//
// Every entry carries service and version. Attributes named password,
// password_hash, secret, token, access_token, authorization or ticket are
// replaced with [REDACTED] at the handler, so a careless call site cannot
// leak a credential. Log the subject and the decision reason instead.
package logging
