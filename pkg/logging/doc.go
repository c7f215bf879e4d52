// Package logging provides a small structured logging API for mcpd, wrapping
// log/slog behind subsystem-tagged helpers so call sites read as
// logging.Info("Dispatch", "tool %s completed in %dms", name, ms) rather than
// threading a *slog.Logger through every constructor.
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stdout)
//	logging.Info("Server", "listening on %s", addr)
//	logging.Error("ConfigStore", err, "query %s failed", queryName)
//	logging.Audit(logging.AuditEvent{Action: "token_mint", Outcome: "success", UserID: "alice"})
package logging
