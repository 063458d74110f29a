// Package logging sets up structured JSON logging for amansearch.
//
// Logs go to a size-rotated file under ~/.amansearch/logs/ and, for CLI
// commands, to stderr as well. The MCP server never writes to stderr or
// stdout, which carry the protocol stream. `amansearch logs` reads the file
// back through Viewer.
package logging
