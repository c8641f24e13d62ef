// Package invoke implements the script invoker / Controller (spec §4.4):
// a depth-first AST walk that handles conditions, source/exec/method/call
// invocations, scope push/pop, preset application and visibility
// specialization.
package invoke

// VisitResult is returned by each node visit to steer traversal, the
// design-note §9 replacement for early-exit coroutine control flow.
type VisitResult int

const (
	Continue VisitResult = iota
	SkipChildren
	SkipSiblings
	Terminate
)
