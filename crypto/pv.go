package crypto

import (
	"fmt"
	"os"

	"github.com/calehh/dao-app/tx"
	"github.com/calehh/dao-app/types"
	"github.com/cometbft/cometbft/crypto"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	"github.com/cometbft/cometbft/privval"
)

// PV is a member signing key read from a CometBFT private validator key
// file. Any ed25519 key file works, the node's own validator key included.
type PV struct {
	privateKey crypto.PrivKey
	publicKey  crypto.PubKey
}

func NewPV(privKey crypto.PrivKey) *PV {
	return &PV{
		privateKey: privKey,
		publicKey:  privKey.PubKey(),
	}
}

func LoadFilePV(keyFilePath string) (*PV, error) {
	keyJSONBytes, err := os.ReadFile(keyFilePath)
	if err != nil {
		return nil, err
	}
	pvKey := privval.FilePVKey{}
	err = cmtjson.Unmarshal(keyJSONBytes, &pvKey)
	if err != nil {
		return nil, fmt.Errorf("error reading key from %v: %w", keyFilePath, err)
	}
	return &PV{
		privateKey: pvKey.PrivKey,
		publicKey:  pvKey.PubKey,
	}, nil
}

func (k *PV) PublicKey() []byte {
	return k.publicKey.Bytes()
}

func (k *PV) Address() types.Address {
	return k.publicKey.Address()
}

func (k *PV) Sign(data []byte) ([]byte, error) {
	return k.privateKey.Sign(data)
}

// SignTx sets the envelope pubkey to this key and signs it for chainId.
func (k *PV) SignTx(btx *tx.DAOTx, chainId string) error {
	btx.PubKey = k.PublicKey()
	return btx.Sign(chainId, k.Sign)
}
