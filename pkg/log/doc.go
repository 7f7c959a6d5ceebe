/*
Package log provides structured logging for crunchgrid using zerolog.

The core dispatcher and worker runtime never read a package-level logger
themselves; cmd/crunchgrid calls Init once at startup from the parsed CLI
flags, then passes a derived zerolog.Logger into coordinator.New / worker.New
explicitly. WithRole and WithNodeID exist for callers (the CLI, tests) that
want a child logger scoped to a role or a specific worker id.
*/
package log
