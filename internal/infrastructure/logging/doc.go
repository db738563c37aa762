// Package logging provides structured logging for the Vantage bridge.
//
// This package wraps Go's standard log/slog package so that every component
// logs with the same default fields (service, version) and level filtering.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("station refreshed", "station", id)
//	logger.Error("refresh failed", "error", err)
package logging
