package build

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a build failure.
type Kind string

const (
	KindUnrecognizedFormat Kind = "UnrecognizedFormat"
	KindMissingInput       Kind = "MissingInput"
	KindBuildToolError     Kind = "BuildToolError"
	KindTimeout            Kind = "Timeout"
	KindDanglingReference  Kind = "DanglingReference"
	KindInvalidRequest     Kind = "InvalidRequest"
	KindCancelled          Kind = "Cancelled" // aborted because a sibling worker failed
)

// Error is the typed failure carried through results and returned to callers.
type Error struct {
	Kind     Kind
	Platform string // empty when the failure is not platform specific
	Ref      string // image reference involved, if any
	Detail   string // raw diagnostic text, never paraphrased
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Platform != "" {
		fmt.Fprintf(&b, " [%s]", e.Platform)
	}
	if e.Ref != "" {
		fmt.Fprintf(&b, " %s", e.Ref)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an *Error of the given kind with a formatted cause.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's tree, or "" if none.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

// IsKind reports whether any *Error in err's tree has the given kind.
// Unlike KindOf it walks joined errors past the first match.
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	var be *Error
	if errors.As(err, &be) && be.Kind == kind {
		return true
	}
	switch x := err.(type) {
	case interface{ Unwrap() []error }:
		for _, e := range x.Unwrap() {
			if IsKind(e, kind) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return IsKind(x.Unwrap(), kind)
	}
	return false
}
