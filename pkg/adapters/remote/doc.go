// Package remote talks to the triage backend.
//
// Client is the production adapter (JSON over HTTP with a bearer token).
// Mock is an in-memory implementation with call counters and failure
// injection, and Backend serves any implementation over the same routes so
// the CLI can run a local stand-in with `triage backend`.
package remote
