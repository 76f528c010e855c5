package state

import (
	"encoding/json"

	"github.com/calehh/dao-app/types"
	"github.com/cometbft/cometbft/crypto/ed25519"
)

// Account tracks the replay nonce of a signer. Accounts are created the
// first time a key signs a successful transaction.
type Account struct {
	PubKey ed25519.PubKey `json:"pubKey"`
	Nonce  uint64         `json:"nonce"`
}

type accountSt struct {
	Address types.Address  `json:"address"`
	PubKey  ed25519.PubKey `json:"pubKey"`
	Nonce   uint64         `json:"nonce"`
}

func (a *Account) MarshalJSON() (dat []byte, err error) {
	o := accountSt{
		Address: a.AddrBytes(),
		PubKey:  a.PubKey,
		Nonce:   a.Nonce,
	}
	return json.Marshal(o)
}

func (a *Account) UnmarshalJSON(dat []byte) (err error) {
	var o accountSt
	err = json.Unmarshal(dat, &o)
	if err != nil {
		return
	}
	a.PubKey = o.PubKey
	a.Nonce = o.Nonce
	return
}

func (a *Account) Clone() *Account {
	n := &Account{Nonce: a.Nonce}
	n.SetPubKey(a.PubKey)
	return n
}

func (a *Account) SetPubKey(pkey []byte) {
	a.PubKey = make([]byte, len(pkey))
	copy(a.PubKey, pkey)
}

func (a *Account) AddrBytes() types.Address {
	if len(a.PubKey) == 0 {
		return nil
	}
	return a.PubKey.Address()
}

func (a *Account) Address() string {
	return a.AddrBytes().String()
}
