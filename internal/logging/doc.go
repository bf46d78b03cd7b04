// Package logging sets up log/slog for amanbeta.
//
// Without --debug the CLI logs warnings to stderr only. With --debug, JSON logs
// at debug level go to ~/.amanbeta/logs/amanbeta.log with size-based rotation.
// The MCP command never writes logs to stdout or stderr since stdout carries
// the protocol stream.
package logging
