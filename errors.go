package legacy

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies failures by how a session reacts to them.
type Kind uint8

const (
	// KindSetup failures abort a session before any sensitive work begins.
	KindSetup Kind = iota + 1
	// KindCandidate failures are contained in the collection loop.
	KindCandidate
	// KindTool failures signal a broken environment or tool and end the session.
	KindTool
	// KindCancelled marks a user interrupt. It is not a fault.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindSetup:
		return "setup"
	case KindCandidate:
		return "candidate"
	case KindTool:
		return "tool"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Code is a stable identifier for every failure the library reports.
type Code uint16

const (
	PolicyMissing Code = iota + 1
	PolicyAmbiguous
	PolicyMalformed
	OverwriteDeclined
	ToolMissing
	CiphertextMissing
	CiphertextAmbiguous
	SourceInvalid
	AlreadyEncrypted

	CandidateUnavailable
	AlreadyJudged
	InvalidFormat
	NotAuthorizedForThisFile
	DuplicateIdentity
	QuorumSatisfied

	MalformedSecret
	ToolError
	UnexpectedOutputShape
	ToolTimeout
	CombinationFailed
	PolicyFileNotFound
	RecipientGenerationFailed
	EmptyRecipient
	NoMatchingIdentity
	CipherToolError

	UserCancelled
)

var codeNames = map[Code]string{
	PolicyMissing:             "policy missing",
	PolicyAmbiguous:           "policy ambiguous",
	PolicyMalformed:           "policy malformed",
	OverwriteDeclined:         "overwrite declined",
	ToolMissing:               "tool missing",
	CiphertextMissing:         "ciphertext missing",
	CiphertextAmbiguous:       "ciphertext ambiguous",
	SourceInvalid:             "source invalid",
	AlreadyEncrypted:          "already encrypted",
	CandidateUnavailable:      "candidate unavailable",
	AlreadyJudged:             "already judged",
	InvalidFormat:             "invalid format",
	NotAuthorizedForThisFile:  "not authorized for this file",
	DuplicateIdentity:         "duplicate identity",
	QuorumSatisfied:           "quorum already satisfied",
	MalformedSecret:           "malformed secret",
	ToolError:                 "tool error",
	UnexpectedOutputShape:     "unexpected output shape",
	ToolTimeout:               "tool timeout",
	CombinationFailed:         "combination failed",
	PolicyFileNotFound:        "policy file not found",
	RecipientGenerationFailed: "recipient generation failed",
	EmptyRecipient:            "empty recipient",
	NoMatchingIdentity:        "no matching identity",
	CipherToolError:           "cipher tool error",
	UserCancelled:             "cancelled",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("code(%d)", uint16(c))
}

// Kind reports the default classification of c. The quorum collector
// contains derivation failures as candidate rejections regardless of the
// kind reported here.
func (c Code) Kind() Kind {
	switch {
	case c == UserCancelled:
		return KindCancelled
	case c >= CandidateUnavailable && c <= QuorumSatisfied:
		return KindCandidate
	case c >= MalformedSecret && c <= CipherToolError:
		return KindTool
	default:
		return KindSetup
	}
}

// Error is the concrete error returned throughout the library.
type Error struct {
	Code   Code
	Detail string
	// Prior holds the earlier verdict for AlreadyJudged.
	Prior Outcome
	Err   error
}

func (e *Error) Error() string {
	msg := e.Code.String()
	if e.Code == AlreadyJudged && e.Prior != 0 {
		msg = fmt.Sprintf("%s (%s)", msg, e.Prior)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same code, so the exported sentinels
// work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Kind reports the classification of the error's code.
func (e *Error) Kind() Kind { return e.Code.Kind() }

var (
	ErrPolicyMissing             = &Error{Code: PolicyMissing}
	ErrPolicyAmbiguous           = &Error{Code: PolicyAmbiguous}
	ErrPolicyMalformed           = &Error{Code: PolicyMalformed}
	ErrOverwriteDeclined         = &Error{Code: OverwriteDeclined}
	ErrToolMissing               = &Error{Code: ToolMissing}
	ErrCiphertextMissing         = &Error{Code: CiphertextMissing}
	ErrCiphertextAmbiguous       = &Error{Code: CiphertextAmbiguous}
	ErrSourceInvalid             = &Error{Code: SourceInvalid}
	ErrAlreadyEncrypted          = &Error{Code: AlreadyEncrypted}
	ErrCandidateUnavailable      = &Error{Code: CandidateUnavailable}
	ErrAlreadyJudged             = &Error{Code: AlreadyJudged}
	ErrInvalidFormat             = &Error{Code: InvalidFormat}
	ErrNotAuthorizedForThisFile  = &Error{Code: NotAuthorizedForThisFile}
	ErrDuplicateIdentity         = &Error{Code: DuplicateIdentity}
	ErrQuorumSatisfied           = &Error{Code: QuorumSatisfied}
	ErrMalformedSecret           = &Error{Code: MalformedSecret}
	ErrToolError                 = &Error{Code: ToolError}
	ErrUnexpectedOutputShape     = &Error{Code: UnexpectedOutputShape}
	ErrToolTimeout               = &Error{Code: ToolTimeout}
	ErrCombinationFailed         = &Error{Code: CombinationFailed}
	ErrPolicyFileNotFound        = &Error{Code: PolicyFileNotFound}
	ErrRecipientGenerationFailed = &Error{Code: RecipientGenerationFailed}
	ErrEmptyRecipient            = &Error{Code: EmptyRecipient}
	ErrNoMatchingIdentity        = &Error{Code: NoMatchingIdentity}
	ErrCipherToolError           = &Error{Code: CipherToolError}
	ErrUserCancelled             = &Error{Code: UserCancelled}
)

// Errorf builds an *Error with a formatted detail. A %w verb in format is
// honoured: the wrapped error becomes Err.
func Errorf(code Code, format string, args ...any) error {
	wrapped := fmt.Errorf(format, args...)
	e := &Error{Code: code, Detail: wrapped.Error()}
	if inner := errors.Unwrap(wrapped); inner != nil {
		e.Detail = ""
		e.Err = wrapped
	}
	return e
}

// CodeOf returns the code carried by err, or 0 when err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// KindOf classifies err. Context cancellation counts as KindCancelled;
// foreign errors default to KindTool.
func KindOf(err error) Kind {
	if err == nil {
		return 0
	}
	if IsCancelled(err) {
		return KindCancelled
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind()
	}
	return KindTool
}

// Cancelled wraps err, typically a context error, as a user cancellation.
func Cancelled(err error) error {
	if err == nil {
		return ErrUserCancelled
	}
	return &Error{Code: UserCancelled, Err: err}
}

// IsCancelled reports whether err stems from a user interrupt or a
// cancelled context.
func IsCancelled(err error) bool {
	var e *Error
	if errors.As(err, &e) && e.Code == UserCancelled {
		return true
	}
	return errors.Is(err, context.Canceled)
}
