// Package spawn starts child processes with their standard streams
// redirected onto freshly created pipes.
//
// The package owns the spawn boundary: it builds the three pipes, fixes the
// child-side stdio trio, runs pre-exec hooks against it, and starts the
// process. Everything the child needs is captured in a Config before the
// process is created; no state is shared with the parent path afterwards.
package spawn
