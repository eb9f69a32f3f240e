// Package logging builds the service's log/slog logger.
//
// Entries are JSON by default, text on request, and always carry service
// and version. Packages receive a Component child so every line names
// where it came from:
//
//	log := logging.New(cfg.Logging, version)
//	client.SetLogger(log.Component("mqtt"))
//	log.Error("reconcile pass failed", "error", err)
//
// Attributes keyed token, access_token, password, secret, authorization
// or ticket are written as [REDACTED], including inside groups. That is a
// backstop; do not pass credentials to the logger in the first place.
package logging
