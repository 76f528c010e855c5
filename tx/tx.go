package tx

import (
	"encoding/json"

	"github.com/calehh/dao-app/types"
	"github.com/cometbft/cometbft/crypto/ed25519"
)

// DAOTx is the signed envelope of every transaction. The signer is the
// ed25519 key in PubKey.
type DAOTx struct {
	Version uint8     `json:"version"`
	Type    DAOTxType `json:"type"`
	Nonce   uint64    `json:"nonce"`
	PubKey  []byte    `json:"pubKey"`
	Tx      any       `json:"tx"`
	Sig     [][]byte  `json:"sig"`
}

type CreateRegistryTx struct {
	Members []types.Address `json:"members"`
}

type ProposalTx struct {
	Registry uint64                 `json:"registry"`
	Title    string                 `json:"title"`
	Body     string                 `json:"body"`
	Options  []types.ProposalOption `json:"options"`
	Action   types.ExternalAction   `json:"action"`
}

type VoteTx struct {
	Registry uint64 `json:"registry"`
	Proposal uint64 `json:"proposal"`
	Option   uint32 `json:"option"`
}

type FinalizeTx struct {
	Proposal uint64 `json:"proposal"`
}

type ExecuteTx struct {
	Proposal     uint64             `json:"proposal"`
	Capabilities []types.Capability `json:"capabilities"`
}

type daoTxTmpl[Tx any] struct {
	Version uint8     `json:"version"`
	Type    DAOTxType `json:"type"`
	Nonce   uint64    `json:"nonce"`
	PubKey  []byte    `json:"pubKey"`
	Tx      Tx        `json:"tx"`
	Sig     [][]byte  `json:"sig"`
}

func (tx *DAOTx) Signer() types.Address {
	return types.AddressFromPubKey(tx.PubKey)
}

// SigData is the message covered by the signature. The chain id takes the
// place of the signature so a tx cannot be replayed on another chain.
func (tx *DAOTx) SigData(ext []byte) (dat []byte, err error) {
	ntx := *tx
	ntx.Sig = [][]byte{ext}
	dat, err = json.Marshal(ntx)
	return
}

func (tx *DAOTx) Verify(chainId string) bool {
	if len(tx.PubKey) != ed25519.PubKeySize || len(tx.Sig) != 1 {
		return false
	}
	dat, err := tx.SigData([]byte(chainId))
	if err != nil {
		return false
	}
	return ed25519.PubKey(tx.PubKey).VerifySignature(dat, tx.Sig[0])
}

func parseDAOTxType(dat []byte) DAOTxType {
	var tx struct {
		Type DAOTxType `json:"type"`
	}
	err := json.Unmarshal(dat, &tx)
	if err != nil {
		return DAOTxTypeUnknown
	}
	return tx.Type
}

func unmarshalDAOTx[Tx any](dat []byte) (btx *DAOTx, err error) {
	var txt daoTxTmpl[Tx]
	err = json.Unmarshal(dat, &txt)
	if err != nil {
		return
	}
	if txt.Version != DAOTxVersion1 {
		return nil, ErrUnsupportedTxVersion
	}
	if len(txt.PubKey) != ed25519.PubKeySize {
		return nil, ErrMissingPubKey
	}
	btx = new(DAOTx)
	btx.Version = txt.Version
	btx.Type = txt.Type
	btx.Nonce = txt.Nonce
	btx.PubKey = txt.PubKey
	btx.Tx = &txt.Tx
	btx.Sig = txt.Sig
	return
}

func UnmarshalDAOTx(dat []byte) (btx *DAOTx, err error) {
	tp := parseDAOTxType(dat)
	switch tp {
	case DAOTxTypeCreateRegistry:
		return unmarshalDAOTx[CreateRegistryTx](dat)
	case DAOTxTypeProposal:
		return unmarshalDAOTx[ProposalTx](dat)
	case DAOTxTypeVote:
		return unmarshalDAOTx[VoteTx](dat)
	case DAOTxTypeFinalize:
		return unmarshalDAOTx[FinalizeTx](dat)
	case DAOTxTypeExecute:
		return unmarshalDAOTx[ExecuteTx](dat)
	default:
		err = ErrUnsupportedTxType
	}
	return
}

func MarshalDAOTx(btx *DAOTx) (dat []byte, err error) {
	return json.Marshal(btx)
}

// Sign fills in Sig using sign over SigData(chainId).
func (tx *DAOTx) Sign(chainId string, sign func([]byte) ([]byte, error)) (err error) {
	dat, err := tx.SigData([]byte(chainId))
	if err != nil {
		return
	}
	sig, err := sign(dat)
	if err != nil {
		return
	}
	tx.Sig = [][]byte{sig}
	return
}
