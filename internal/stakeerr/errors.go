// Package stakeerr defines the error kinds returned by the staking and bridge orchestrator.
package stakeerr

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Kind is a machine-readable error class. Kinds are comparable with errors.Is.
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	// configuration
	MissingSigner      Kind = "missing signer"
	NetworkUnavailable Kind = "network unavailable"

	// resolution
	ValidatorNotFound             Kind = "validator not found"
	CheckpointRegistryUnavailable Kind = "checkpoint registry unavailable"
	InvalidExchangeRate           Kind = "invalid exchange rate"

	// input
	InvalidAmount      Kind = "invalid amount"
	InvalidAddress     Kind = "invalid address"
	InvalidValidatorID Kind = "invalid validator id"

	// funding
	InsufficientGasFunds Kind = "insufficient gas funds"

	// transport
	FeeUnavailable  Kind = "fee unavailable"
	BroadcastFailed Kind = "broadcast failed"

	// sequencing
	ConfirmationTimeout Kind = "confirmation timeout"
	ApprovalTimeout     Kind = "approval timeout"
	ApprovalFailed      Kind = "approval failed"
	RestakeFailed       Kind = "restake failed"

	// checkpoint data
	CheckpointDataUnavailable Kind = "checkpoint data unavailable"
)

// Error is a typed failure with optional context fields for callers that render remediation hints.
type Error struct {
	Kind        Kind
	Msg         string
	ValidatorID uint64
	Contract    common.Address
	Amount      *big.Int
	Err         error
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around cause.
func Wrap(cause error, kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

func (e *Error) WithValidator(id uint64) *Error {
	e.ValidatorID = id
	return e
}

func (e *Error) WithContract(addr common.Address) *Error {
	e.Contract = addr
	return e
}

func (e *Error) WithAmount(amount *big.Int) *Error {
	if amount != nil {
		e.Amount = new(big.Int).Set(amount)
	}
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.ValidatorID != 0 {
		fmt.Fprintf(&b, " (validator %d)", e.ValidatorID)
	}
	if e.Contract != (common.Address{}) {
		fmt.Fprintf(&b, " (contract %s)", e.Contract.Hex())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the kind of the first *Error found in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
