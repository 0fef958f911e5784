// Package logging builds the process logger on top of log/slog.
//
// # Overview
//
// The package provides:
//   - JSON or text output with a level held in a slog.LevelVar, so the level
//     can be changed at runtime (the config watcher does this on reload)
//   - Redaction of bearer tokens, signed assertions, API keys and emails in
//     attribute values, plus full masking of values under sensitive keys
//   - Context fields (request_id, user, route) added to every record logged
//     with a context
//
// # Usage
//
//	logger, err := logging.New(logging.ConfigFrom(cfg.Telemetry.Logging))
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger.Logger)
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	logger.InfoContext(ctx, "routed", "authorization", header) // masked
//
// Credential values are never passed to the logger by this repository; the
// redactor is a second line for upstream error text and caller-supplied input.
package logging
