// Package logger is the structured logger of usagemesh, built on log/slog.
//
// Every record passes through a redaction step: license keys are masked to
// their first and last characters, and values logged under secret-like keys
// are dropped. One shared level serves all loggers so a config reload can
// change verbosity in place. Request and peer node IDs travel in the
// context and are attached by L.
package logger
