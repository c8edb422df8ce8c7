// Package errs defines searchload's error kinds (spec.md §7) and the
// propagation policy attached to each: which ones abort a single workload,
// which ones are fatal to the whole run, and which are warn-and-continue.
package errs

import "github.com/pkg/errors"

// Kind classifies an error for orchestrator exit-code and propagation
// decisions (spec.md §7 table).
type Kind int

const (
	// KindNone marks a nil/unknown error — never actually attached to an error.
	KindNone Kind = iota
	KindBadOption
	KindBadPattern
	KindCacheIOError
	KindConnectFail
	KindServerQueryError
	KindInitCommandError
	KindDropTableError
	KindStopRequested
	KindChildCrashBeforeStart
)

func (k Kind) String() string {
	switch k {
	case KindBadOption:
		return "BadOption"
	case KindBadPattern:
		return "BadPattern"
	case KindCacheIOError:
		return "CacheIOError"
	case KindConnectFail:
		return "ConnectFail"
	case KindServerQueryError:
		return "ServerQueryError"
	case KindInitCommandError:
		return "InitCommandError"
	case KindDropTableError:
		return "DropTableError"
	case KindStopRequested:
		return "StopRequested"
	case KindChildCrashBeforeStart:
		return "ChildCrashBeforeStart"
	default:
		return "Unknown"
	}
}

// kindError pairs a Kind with an underlying cause so errors.Is / KindOf(err)
// both work, and errors.Wrapf still attaches a stack trace at call sites.
type kindError struct {
	kind  Kind
	cause error
}

func (e *kindError) Error() string {
	if e.cause == nil {
		return e.kind.String()
	}
	return e.kind.String() + ": " + e.cause.Error()
}

func (e *kindError) Unwrap() error { return e.cause }

// New creates an error of the given kind wrapping msg.
func New(kind Kind, msg string) error {
	return &kindError{kind: kind, cause: errors.New(msg)}
}

// Wrap creates an error of the given kind wrapping an existing error with a
// stack trace captured at the call site (github.com/pkg/errors semantics).
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, cause: errors.Wrap(err, msg)}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, cause: errors.Wrapf(err, format, args...)}
}

// KindOf extracts the Kind attached to err, or KindNone if err was not
// produced by this package.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var ke *kindError
	for err != nil {
		if k, ok := err.(*kindError); ok {
			ke = k
			break
		}
		err = errors.Unwrap(err)
	}
	if ke == nil {
		return KindNone
	}
	return ke.kind
}

// FatalToRun reports whether a Kind aborts the whole run (as opposed to just one
// workload, or being a warn-and-continue). Table from spec.md §7.
func (k Kind) FatalToRun() bool {
	return k == KindChildCrashBeforeStart
}

// FatalToWorkload reports whether a Kind aborts the workload that produced
// it, while leaving other concurrent workloads unaffected (spec.md §7).
func (k Kind) FatalToWorkload() bool {
	switch k {
	case KindBadPattern, KindCacheIOError, KindConnectFail, KindServerQueryError, KindDropTableError:
		return true
	default:
		return false
	}
}

// WarnOnly reports whether a Kind is logged and otherwise ignored (spec.md §7:
// InitCommandError "warn on stderr and continue").
func (k Kind) WarnOnly() bool {
	return k == KindInitCommandError
}
