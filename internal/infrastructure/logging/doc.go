// Package logging builds the agent's slog logger.
//
// Output is JSON (default) or text, filtered by level, and every entry
// carries service=rpihome and the build version. Tasks add their own tag
// with Component:
//
//	log := logging.New(cfg.Logging, version)
//	dispatchLog := log.Component("command")
//	dispatchLog.Info("command request received", "method", name)
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log device keys, SAS tokens, or connection strings; log the hub
// host and device id instead. Attributes with those names are redacted
// anyway.
package logging
