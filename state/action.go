package state

import (
	"github.com/calehh/dao-app/types"
)

// Ledger is the part of the state an external action may touch.
type Ledger interface {
	GetMint(denom string) (*types.Mint, error)
	Balance(denom string, owner types.Address) (uint64, error)
	MintTo(denom string, owner types.Address, amount uint64) error
}

var _ Ledger = (*State)(nil)

// ActionContext identifies who is invoking an external action.
type ActionContext struct {
	Ledger   Ledger
	Registry uint64
	Proposal uint64
	Executor types.Address
	Height   uint64
}

// Origin is the authority reference of the executing registry.
func (c ActionContext) Origin() string {
	return types.RegistryReference(c.Registry)
}

// ExternalAction is invoked by the execution gate with the proposal payload
// and the caller supplied capabilities. The gate only checks that the number
// of capabilities equals Arity; their meaning is checked by the action.
type ExternalAction interface {
	Arity() int
	Invoke(ctx ActionContext, payload []byte, caps []types.Capability) error
}

type ActionResolver interface {
	Resolve(target string) (ExternalAction, bool)
}
