// Package logger provides structured logging for the console, the gateway and
// the mock backend using zerolog.
//
// Loggers are scoped per component and carry structured fields:
//
//	log := logger.Get("gateway")
//	log.Info("proxy ready", logger.Fields("target", "http://127.0.0.1:8001"))
//
// The global logger is configured once with Init; named loggers are seeded with
// RegisterDefaults.
package logger
