// Package runtime holds the per-task core of flowgraph: the artifact namespace
// of a running task, next() validation, foreach queries and join merges.
//
// Everything here is single-threaded and scoped to one task.
package runtime
