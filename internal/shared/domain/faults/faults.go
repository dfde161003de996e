// Package faults defines the failure taxonomy shared by the outbox relay,
// the message consumers and the reconciliation coordinator. A single tagged
// Fault type replaces an exception hierarchy: callers branch on Kind, and the
// struct carries the context (key, versions, attempts) needed for logging and
// routing decisions.
package faults

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a Fault.
type Kind string

const (
	// KindValidation marks malformed input. Fatal, non-retryable.
	KindValidation Kind = "validation"

	// KindVersionGap marks an incoming version more than one step ahead of
	// the stored one. Fatal for the message; blind retry will not fix it.
	KindVersionGap Kind = "version_gap"

	// KindNotFound marks a referenced aggregate that does not exist.
	KindNotFound Kind = "not_found"

	// KindTransient marks infrastructure failures (broker nack, confirm
	// timeout, store unavailable) worth retrying with backoff.
	KindTransient Kind = "transient"

	// KindConflict marks a lock already held. Fail fast, never block.
	KindConflict Kind = "conflict"
)

// Fault is a classified failure with structured context.
type Fault struct {
	Kind     Kind
	Msg      string
	Key      string
	Current  int64
	Incoming int64
	Attempts int
	Err      error
}

func (f *Fault) Error() string {
	var b strings.Builder
	b.WriteString(f.Msg)
	if f.Key != "" {
		fmt.Fprintf(&b, " key=%s", f.Key)
	}
	if f.Kind == KindVersionGap {
		fmt.Fprintf(&b, " current=%d incoming=%d", f.Current, f.Incoming)
	}
	if f.Attempts > 0 {
		fmt.Fprintf(&b, " attempts=%d", f.Attempts)
	}
	if f.Err != nil {
		fmt.Fprintf(&b, ": %v", f.Err)
	}
	return b.String()
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Validation builds a validation fault.
func Validation(msg string) *Fault {
	return &Fault{Kind: KindValidation, Msg: msg}
}

// VersionGap builds a version-gap fault for the given projection key.
func VersionGap(key string, current, incoming int64) *Fault {
	return &Fault{
		Kind:     KindVersionGap,
		Msg:      "catalog event out of sequence",
		Key:      key,
		Current:  current,
		Incoming: incoming,
	}
}

// NotFound builds a not-found fault.
func NotFound(msg, key string) *Fault {
	return &Fault{Kind: KindNotFound, Msg: msg, Key: key}
}

// Transient builds a transient infrastructure fault wrapping err.
func Transient(msg string, err error) *Fault {
	return &Fault{Kind: KindTransient, Msg: msg, Err: err}
}

// Conflict builds a conflict fault.
func Conflict(msg string) *Fault {
	return &Fault{Kind: KindConflict, Msg: msg}
}

// KindOf returns the Kind of err, or "" when err carries no Fault.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// IsKind reports whether err carries a Fault of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether err is worth redelivering: anything that is not
// provably fatal (validation, version gap, not found) counts as retryable so
// unknown failures err on the side of retry.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindVersionGap, KindNotFound, KindConflict:
		return false
	}
	return true
}
