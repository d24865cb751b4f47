// Package apperr implements the error-kind taxonomy of spec.md §7
// (configuration, lifecycle, runtime, shutdown) on top of
// github.com/pkg/errors, promoted here from an indirect dependency of
// the teacher's own go.mod to direct use for stack-aware wrapping.
package apperr

import (
	"strings"

	"github.com/pkg/errors"
)

// Kind classifies the origin of an error, per spec.md §7.
type Kind int

const (
	// KindConfig covers bad options, unknown plugin names, unresolved
	// or cyclic dependencies.
	KindConfig Kind = iota
	// KindLifecycle covers a hook raising during initialize/startup/shutdown.
	KindLifecycle
	// KindRuntime covers a posted action raising inside exec.
	KindRuntime
	// KindShutdown covers errors captured while stopping plugins.
	KindShutdown
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindLifecycle:
		return "lifecycle"
	case KindRuntime:
		return "runtime"
	case KindShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Error is a kind-tagged, stack-capturing error.
type Error struct {
	Kind Kind
	Op   string
	err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return e.Kind.String() + ": " + e.Op + ": " + e.err.Error()
	}
	return e.Kind.String() + ": " + e.err.Error()
}

func (e *Error) Unwrap() error { return e.err }

// New builds an Error of the given kind, capturing a stack trace via
// github.com/pkg/errors.
func New(kind Kind, op string, msg string) *Error {
	return &Error{Kind: kind, Op: op, err: errors.New(msg)}
}

// Wrap annotates err with op and a stack trace, tagging it with kind.
// Returns nil if err is nil.
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, err: errors.WithStack(err)}
}

// Sentinel errors embedders can compare against with errors.Is.
var (
	ErrUnknownPlugin   = errors.New("apperr: unknown plugin")
	ErrCycle           = errors.New("apperr: dependency cycle")
	ErrDuplicateOption = errors.New("apperr: duplicate option across plugins")
	ErrNotActivated    = errors.New("apperr: plugin not activated")
	ErrAppRunning      = errors.New("apperr: application still running")
)

// MultiError aggregates multiple errors captured during a reverse
// shutdown walk (spec.md §4.4, §7): the first one is surfaced as the
// primary error (the one Unwrap returns); the rest are retained and
// only appended to the Error() message.
type MultiError struct {
	First error
	Rest  []error
}

// Add records err. The first non-nil error added becomes First; every
// subsequent one is appended to Rest. A nil err is ignored.
func (m *MultiError) Add(err error) {
	if err == nil {
		return
	}
	if m.First == nil {
		m.First = err
		return
	}
	m.Rest = append(m.Rest, err)
}

// ErrOrNil returns nil if no error was ever added, otherwise m itself
// (so callers can `return me.ErrOrNil()`).
func (m *MultiError) ErrOrNil() error {
	if m.First == nil {
		return nil
	}
	return m
}

func (m *MultiError) Error() string {
	if m.First == nil {
		return "apperr: no error"
	}
	if len(m.Rest) == 0 {
		return m.First.Error()
	}
	parts := make([]string, 0, len(m.Rest)+1)
	parts = append(parts, m.First.Error())
	for _, e := range m.Rest {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; also: ")
}

// Unwrap exposes the first (surfaced) error for errors.Is/As chains.
func (m *MultiError) Unwrap() error { return m.First }
