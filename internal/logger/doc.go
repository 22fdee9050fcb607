// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a sane console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - convenience functions (Infof, ErrorKV, etc.).
//
// The bootstrap pipeline accepts a context and extracts the logger from it,
// enabling scoped, structured logging throughout the codebase. Log output goes
// to stderr so that stdout stays reserved for the nested installer's own output.
package logger
