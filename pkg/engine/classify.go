package engine

import (
	"errors"

	"github.com/newtron-network/newtcc/pkg/util"
)

// Kind names an error's place in the failure taxonomy.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindPrecondition    Kind = "precondition"
	KindImmutableField  Kind = "immutable_field_changed"
	KindMissingRequired Kind = "missing_required"
	KindRemoteFailure   Kind = "remote_failure"
	KindTimeout         Kind = "timeout_exceeded"
	KindVerification    Kind = "verification_failed"
	KindVersionMismatch Kind = "version_mismatch"
	KindLocked          Kind = "locked"
	KindInternal        Kind = "internal"
)

var kinds = []struct {
	sentinel error
	kind     Kind
}{
	{util.ErrValidationFailed, KindValidation},
	{util.ErrPreconditionFailed, KindPrecondition},
	{util.ErrImmutableField, KindImmutableField},
	{util.ErrMissingRequired, KindMissingRequired},
	{util.ErrRemoteFailure, KindRemoteFailure},
	{util.ErrTimeoutExceeded, KindTimeout},
	{util.ErrVerificationFailed, KindVerification},
	{util.ErrVersionMismatch, KindVersionMismatch},
	{util.ErrLocked, KindLocked},
}

// Classify maps err onto its taxonomy kind. A nil error has no kind.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.kind
		}
	}
	return KindInternal
}

// AbortsRun reports whether err must stop the run before any mutation.
func AbortsRun(err error) bool {
	switch Classify(err) {
	case KindValidation, KindPrecondition, KindVersionMismatch:
		return true
	}
	return false
}
