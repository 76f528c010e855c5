package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/crypto/ed25519"
)

const AddressSize = crypto.AddressSize

type Address = crypto.Address

// Capability is a positional reference handed to an external action at
// execution time. Its meaning is defined by the action alone.
type Capability string

func AddressFromPubKey(pubkey []byte) Address {
	return ed25519.PubKey(pubkey).Address()
}

func ParseAddress(s string) (addr Address, err error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	dat, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(dat) != AddressSize {
		return nil, fmt.Errorf("invalid address length %d", len(dat))
	}
	return Address(dat), nil
}

func cloneAddress(a Address) Address {
	if a == nil {
		return nil
	}
	return append(Address(nil), a...)
}

// Registry is the membership list of one organization. It never changes
// after creation.
type Registry struct {
	Index   uint64    `json:"index"`
	Creator Address   `json:"creator"`
	Members []Address `json:"members"`
}

func (r *Registry) IsMember(id Address) bool {
	for _, m := range r.Members {
		if bytes.Equal(m, id) {
			return true
		}
	}
	return false
}

// Reference is the capability string that names this registry as an
// authority, e.g. "dao/3".
func (r *Registry) Reference() string {
	return RegistryReference(r.Index)
}

func RegistryReference(index uint64) string {
	return fmt.Sprintf("dao/%d", index)
}

func (r *Registry) Clone() *Registry {
	n := &Registry{
		Index:   r.Index,
		Creator: cloneAddress(r.Creator),
		Members: make([]Address, len(r.Members)),
	}
	for i, m := range r.Members {
		n.Members[i] = cloneAddress(m)
	}
	return n
}

// Mint is a token whose supply can only grow through its authority.
type Mint struct {
	Denom     string `json:"denom"`
	Authority string `json:"authority"`
	Supply    uint64 `json:"supply"`
}
