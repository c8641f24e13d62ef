// Package errors defines the error taxonomy of the archetype interpreter
// (spec §7). Each kind is a distinct Go type so callers can discriminate
// with errors.As; InvocationError wraps whichever fatal error halted a
// traversal together with the AST site that raised it.
package errors

import (
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/xerrors"
)

// Pos locates a diagnostic in a script file.
type Pos struct {
	Path string
	Line int
}

func (p Pos) String() string {
	if p.Path == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d", p.Path, p.Line)
}

// ParseError is an expression or script lexical/syntactic failure.
type ParseError struct {
	Pos    Pos
	Offset int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: parse error at offset %d in %q: %s", e.Pos, e.Offset, e.Text, e.Reason)
}

// ValueError reports a failed Value coercion (asBool/asString/asInt/asList).
type ValueError struct {
	Want string
	Have string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("value error: cannot project %s as %s", e.Have, e.Want)
}

// UnresolvedVariableError reports a variable lookup failure during Eval.
type UnresolvedVariableError struct {
	Name string
}

func (e *UnresolvedVariableError) Error() string {
	return fmt.Sprintf("unresolved variable %q", e.Name)
}

// InvalidPathError reports a malformed or out-of-tree Context key, or an
// External/External conflict on put.
type InvalidPathError struct {
	Key    string
	Reason string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid path %q: %s", e.Key, e.Reason)
}

// InvalidInputError reports an external value outside the declared option set.
type InvalidInputError struct {
	InputID string
	Value   string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("input %q: value %q is not a declared option", e.InputID, e.Value)
}

// InputValidationError reports that at least one configured regex on an
// input rejected the resolved value.
type InputValidationError struct {
	InputID string
	Value   string
	Failed  []string // the regex patterns that did not match
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("input %q: value %q failed validations: %s",
		e.InputID, e.Value, strings.Join(e.Failed, ", "))
}

// UnresolvedInputError is raised by the batch resolver when no default and
// no external value exists for a required input.
type UnresolvedInputError struct {
	InputID string
}

func (e *UnresolvedInputError) Error() string {
	return fmt.Sprintf("input %q: no value available and no prompter configured", e.InputID)
}

// IncludeCycleError reports a method/source re-entry cycle.
type IncludeCycleError struct {
	Site  Pos
	Chain []string
}

func (e *IncludeCycleError) Error() string {
	return fmt.Sprintf("%s: include cycle: %s", e.Site, strings.Join(e.Chain, " -> "))
}

// DuplicateIncludeError reports a <source> of a canonical path that was
// already included and finished earlier in the same invocation.
type DuplicateIncludeError struct {
	Site Pos
	Path string
}

func (e *DuplicateIncludeError) Error() string {
	return fmt.Sprintf("%s: duplicate source of %q in one invocation", e.Site, e.Path)
}

// InvocationError wraps any other fatal error raised during a traversal,
// recording the AST site at which it surfaced. The cause chain remains
// reachable through errors.Unwrap/errors.As via pkg/errors.
type InvocationError struct {
	Site  Pos
	cause error
}

// NewInvocationError wraps cause, attaching site. If cause is nil, nil is
// returned so call sites can write `return NewInvocationError(site, err)`
// unconditionally.
func NewInvocationError(site Pos, cause error) error {
	if cause == nil {
		return nil
	}
	return &InvocationError{Site: site, cause: pkgerrors.WithStack(cause)}
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Site, e.cause)
}

func (e *InvocationError) Unwrap() error { return e.cause }

// Is reports whether target matches the wrapped cause, so that
// errors.Is(err, SomeSentinel) sees through an InvocationError wrapper.
func (e *InvocationError) Is(target error) bool {
	return xerrors.Is(e.cause, target)
}

// List accumulates non-fatal errors, used by the compiler (§4.9) to report
// a batch of ValidationErrors instead of halting on the first.
type List struct {
	Errs []error
}

func (l *List) Add(err error) {
	if err != nil {
		l.Errs = append(l.Errs, err)
	}
}

func (l *List) Err() error {
	if len(l.Errs) == 0 {
		return nil
	}
	return l
}

func (l *List) Error() string {
	parts := make([]string, len(l.Errs))
	for i, e := range l.Errs {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "\n")
}

func (l *List) Len() int { return len(l.Errs) }
