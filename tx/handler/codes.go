package handler

import (
	"errors"

	"github.com/calehh/dao-app/action"
	"github.com/calehh/dao-app/state"
	"github.com/calehh/dao-app/tx"
	"github.com/calehh/dao-app/types"
)

const Codespace = "dao"

const (
	CodeOK uint32 = iota
	CodeInternal
	CodeInvalidTx
	CodeNonceInvalid
	CodeSigInvalid
	CodeNotEnoughMembers
	CodeUnauthorized
	CodeAlreadyVoted
	CodeInvalidOption
	CodeVotingStillActive
	CodeAlreadyFinalized
	CodeProposalNotFinalized
	CodeAlreadyExecuted
	CodeCapacityExceeded
	CodeRegistryNotFound
	CodeProposalNotFound
	CodeRegistryMismatch
	CodeUnknownAction
	CodeCapabilityCount
	CodeActionFailed
)

var codes = []struct {
	err  error
	code uint32
}{
	{tx.ErrUnsupportedTxType, CodeInvalidTx},
	{tx.ErrUnsupportedTxVersion, CodeInvalidTx},
	{tx.ErrMissingPubKey, CodeInvalidTx},
	{state.ErrTxNonceInvalid, CodeNonceInvalid},
	{state.ErrTxSigInvalid, CodeSigInvalid},
	{state.ErrNotEnoughMembers, CodeNotEnoughMembers},
	{state.ErrInvalidMember, CodeInvalidTx},
	{state.ErrNoOptions, CodeInvalidTx},
	{state.ErrUnauthorized, CodeUnauthorized},
	{state.ErrAlreadyVoted, CodeAlreadyVoted},
	{state.ErrInvalidOption, CodeInvalidOption},
	{state.ErrVotingStillActive, CodeVotingStillActive},
	{state.ErrAlreadyFinalized, CodeAlreadyFinalized},
	{state.ErrProposalNotFinalized, CodeProposalNotFinalized},
	{state.ErrAlreadyExecuted, CodeAlreadyExecuted},
	{types.ErrCapacityExceeded, CodeCapacityExceeded},
	{types.ErrRecordOverflow, CodeCapacityExceeded},
	{state.ErrRegistryNotFound, CodeRegistryNotFound},
	{state.ErrProposalNotFound, CodeProposalNotFound},
	{state.ErrRegistryMismatch, CodeRegistryMismatch},
	{state.ErrUnknownAction, CodeUnknownAction},
	{state.ErrCapabilityCount, CodeCapabilityCount},
	{state.ErrActionFailed, CodeActionFailed},
	{action.ErrInvalidPayload, CodeInvalidTx},
}

// ErrorCode maps an error to the ABCI code reported to clients. Unknown
// errors map to CodeInternal.
func ErrorCode(err error) uint32 {
	if err == nil {
		return CodeOK
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}
