package tx

import (
	"errors"
)

type DAOTxType uint8

const (
	DAOTxTypeUnknown        DAOTxType = 0
	DAOTxTypeCreateRegistry DAOTxType = 1
	DAOTxTypeProposal       DAOTxType = 2
	DAOTxTypeVote           DAOTxType = 3
	DAOTxTypeFinalize       DAOTxType = 4
	DAOTxTypeExecute        DAOTxType = 5
)

func (t DAOTxType) String() string {
	switch t {
	case DAOTxTypeCreateRegistry:
		return "create_registry"
	case DAOTxTypeProposal:
		return "proposal"
	case DAOTxTypeVote:
		return "vote"
	case DAOTxTypeFinalize:
		return "finalize"
	case DAOTxTypeExecute:
		return "execute"
	default:
		return "unknown"
	}
}

const (
	DAOTxVersion0 uint8 = 0
	DAOTxVersion1 uint8 = 1
)

var (
	ErrInvalidTx            = errors.New("invalid tx")
	ErrUnsupportedTxType    = errors.New("unsupported tx type")
	ErrUnsupportedTxVersion = errors.New("unsupported tx version")
	ErrMissingPubKey        = errors.New("missing public key")
)
