package action

import (
	"errors"
	"fmt"

	"github.com/calehh/dao-app/state"
	"github.com/calehh/dao-app/types"
	"github.com/ethereum/go-ethereum/rlp"
)

const MintTarget = "token/mint"

// Positions of the mint action capabilities.
const (
	MintCapDenom = iota
	MintCapAuthority
	MintCapRecipient

	mintArity
)

var (
	ErrInvalidPayload    = errors.New("invalid mint payload")
	ErrZeroAmount        = errors.New("mint amount is zero")
	ErrAuthorityMismatch = errors.New("mint authority mismatch")
	ErrInvalidRecipient  = errors.New("invalid recipient")
)

// MintAction issues new tokens of a genesis mint. It only runs when the
// executing registry is the mint authority and the authority capability
// names it.
type MintAction struct{}

var _ state.ExternalAction = MintAction{}

func NewMintAction() MintAction {
	return MintAction{}
}

func (MintAction) Arity() int {
	return mintArity
}

func (MintAction) Invoke(ctx state.ActionContext, payload []byte, caps []types.Capability) (err error) {
	if len(caps) != mintArity {
		return fmt.Errorf("mint expects %d capabilities, got %d", mintArity, len(caps))
	}
	amount, err := DecodeMintPayload(payload)
	if err != nil {
		return
	}
	denom := string(caps[MintCapDenom])
	m, err := ctx.Ledger.GetMint(denom)
	if err != nil {
		return
	}
	authority := string(caps[MintCapAuthority])
	if authority != m.Authority || m.Authority != ctx.Origin() {
		return fmt.Errorf("%w: mint %s is controlled by %s", ErrAuthorityMismatch, denom, m.Authority)
	}
	recipient, err := types.ParseAddress(string(caps[MintCapRecipient]))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
	}
	return ctx.Ledger.MintTo(denom, recipient, amount)
}

func EncodeMintPayload(amount uint64) ([]byte, error) {
	return rlp.EncodeToBytes(amount)
}

func DecodeMintPayload(payload []byte) (amount uint64, err error) {
	if err = rlp.DecodeBytes(payload, &amount); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if amount == 0 {
		return 0, ErrZeroAmount
	}
	return
}
