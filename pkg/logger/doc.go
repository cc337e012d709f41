// Package logger provides structured logging for capflow.
//
// All packages log through the Logger interface, passing fields as a map:
//
//	log.Info("Phase completed", map[string]interface{}{
//	    "phase":       "detect",
//	    "duration_ms": 145,
//	})
//
// ZapLogger is the production implementation. It emits JSON through zap's
// production config, or colored console output in "human" format. Child
// loggers created with With carry their fields on every entry and share the
// parent's level, so SetLevel on the root affects the whole tree.
//
// Libraries accept a nil Logger and fall back to NoOpLogger via OrNoOp.
//
// The level can also be taken from the environment:
//   - LOG_LEVEL: debug, info, warn, error
//   - LOG_FORMAT: json or human
package logger
