// Package dkgerr is this module's error taxonomy: a tagged variant with
// explicit Attributed(idx) vs Unattributed constructors, so callers are
// forced to handle both instead of probing a single error type for a
// nullable culprit index.
package dkgerr

import "fmt"

// Kind identifies which class of protocol error an error belongs to.
type Kind int

const (
	// KindInvalidContribution: bad PoP, ∞ secret commitment, or
	// coordinator equivocation on own-index commitment. Always attributed.
	KindInvalidContribution Kind = iota
	// KindVSSVerify: share sum inconsistent with the aggregated
	// commitment. Never attributed; any dealer could be responsible.
	KindVSSVerify
	// KindDecryptionFailure: malformed ciphertext length. Attributed to
	// the dealer whose ciphertext failed to decrypt.
	KindDecryptionFailure
	// KindSessionMismatch: params_id disagreement among participants.
	// Attributed to the diverging participant.
	KindSessionMismatch
	// KindCertificateInvalid: a certificate share fails verification.
	// Attributed to the signer whose share is invalid.
	KindCertificateInvalid
	// KindInvalidSize: a structural (length) check failed before any
	// cryptographic verification was attempted.
	KindInvalidSize
	// KindRandomnessFailure: caller-supplied seed was too short or
	// otherwise violates the CSPRNG-seed contract.
	KindRandomnessFailure
	// KindStateError: a state-machine method was invoked out of its
	// required order (INIT/DEALT/PRE_FINAL/SIGNED).
	KindStateError
	// KindTimeout: an expected message never arrived within the
	// transport's deadline. Treated as "message not received"; the
	// waiting party transitions to ABORTED.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindInvalidContribution:
		return "InvalidContribution"
	case KindVSSVerify:
		return "VSSVerify"
	case KindDecryptionFailure:
		return "DecryptionFailure"
	case KindSessionMismatch:
		return "SessionMismatch"
	case KindCertificateInvalid:
		return "CertificateInvalid"
	case KindInvalidSize:
		return "InvalidSize"
	case KindRandomnessFailure:
		return "RandomnessFailure"
	case KindStateError:
		return "StateError"
	case KindTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// Error is the common interface implemented by Attributed and
// Unattributed. Callers type-switch on it to decide whether a culprit
// index is available.
type Error interface {
	error
	Kind() Kind
}

// Attributed is a protocol error traced to a specific participant index
// (one-based as sent on the wire is not implied here; the index space is
// whatever the caller's step function uses — SimplPedPop/EncPedPop use
// zero-based dealer/participant indices throughout).
type Attributed struct {
	K     Kind
	Index int
	Msg   string
}

func (e *Attributed) Error() string {
	return fmt.Sprintf("%s(%d): %s", e.K, e.Index, e.Msg)
}

// Kind implements Error.
func (e *Attributed) Kind() Kind { return e.K }

// Unattributed is a protocol error with no identifiable single culprit:
// a VSSVerify failure means the share sum disagrees with the aggregated
// commitment, but pinning it on one dealer needs an additional blame
// phase the enclosing protocol may or may not run.
type Unattributed struct {
	K   Kind
	Msg string
}

func (e *Unattributed) Error() string {
	return fmt.Sprintf("%s: %s", e.K, e.Msg)
}

// Kind implements Error.
func (e *Unattributed) Kind() Kind { return e.K }

// NewAttributed constructs an Attributed error.
func NewAttributed(k Kind, idx int, format string, args ...any) *Attributed {
	return &Attributed{K: k, Index: idx, Msg: fmt.Sprintf(format, args...)}
}

// NewUnattributed constructs an Unattributed error.
func NewUnattributed(k Kind, format string, args ...any) *Unattributed {
	return &Unattributed{K: k, Msg: fmt.Sprintf(format, args...)}
}
