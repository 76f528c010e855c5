package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cometbft/cometbft/crypto"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	cmttypes "github.com/cometbft/cometbft/types"
)

const (
	FlagOverwrite = "overwrite"
	FlagChainID   = "chain-id"
	FlagHome      = "home"

	FlagVotingPeriod = "voting-period"
)

const (
	DAOModuleName = "dao"
	DefaultPower  = 1000
	DefaultDenom  = "gov"

	// DefaultVotingPeriod is in seconds.
	DefaultVotingPeriod = 100
)

// GovParams are the deployment constants of the governance engine. They are
// fixed at genesis so every validator runs with the same values.
type GovParams struct {
	VotingPeriod uint64   `json:"voting_period"`
	NoOpOptions  []uint32 `json:"no_op_options"`
	Capacity     Capacity `json:"capacity"`
}

func DefaultGovParams() GovParams {
	return GovParams{
		VotingPeriod: DefaultVotingPeriod,
		NoOpOptions:  []uint32{1},
		Capacity:     DefaultCapacity(),
	}
}

func (p GovParams) Validate() error {
	if p.VotingPeriod == 0 {
		return errors.New("voting_period must be at least one second")
	}
	return p.Capacity.Validate()
}

// AppGenesis is the app_state section of the genesis document.
type AppGenesis struct {
	Params GovParams `json:"params"`
	Mints  []Mint    `json:"mints"`
}

func DefaultAppGenesis() *AppGenesis {
	return &AppGenesis{
		Params: DefaultGovParams(),
		Mints:  []Mint{{Denom: DefaultDenom, Authority: RegistryReference(1)}},
	}
}

func (g *AppGenesis) Validate() error {
	if err := g.Params.Validate(); err != nil {
		return fmt.Errorf("genesis params: %w", err)
	}
	seen := make(map[string]bool)
	for _, m := range g.Mints {
		if m.Denom == "" {
			return errors.New("genesis mint with empty denom")
		}
		if seen[m.Denom] {
			return fmt.Errorf("duplicate genesis mint %q", m.Denom)
		}
		seen[m.Denom] = true
	}
	return nil
}

// ParseAppGenesis reads app_state over the default params. Missing params
// fields keep their defaults.
func ParseAppGenesis(dat []byte) (g *AppGenesis, err error) {
	g = &AppGenesis{Params: DefaultGovParams()}
	if len(dat) == 0 {
		return
	}
	err = json.Unmarshal(dat, g)
	if err != nil {
		return nil, err
	}
	err = g.Validate()
	if err != nil {
		return nil, err
	}
	return
}

type GenesisValidator struct {
	Address crypto.Address `json:"address"`
	PubKey  crypto.PubKey  `json:"pub_key"`
	Power   int64          `json:"power"`
	Name    string         `json:"name"`
}

// GenesisDoc defines the initial conditions for a CometBFT blockchain, in particular its validator set.
type GenesisDoc struct {
	GenesisTime     time.Time                 `json:"genesis_time"`
	ChainID         string                    `json:"chain_id"`
	InitialHeight   int64                     `json:"initial_height"`
	ConsensusParams *cmttypes.ConsensusParams `json:"consensus_params,omitempty"`
	Validators      []GenesisValidator        `json:"validators"`
	AppHash         []byte                    `json:"app_hash"`
	AppState        json.RawMessage           `json:"app_state"`
}

// SaveAs is a utility method for saving GenensisDoc as a JSON file.
func (genDoc *GenesisDoc) SaveAs(file string) error {
	genDocBytes, err := cmtjson.MarshalIndent(genDoc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(file, genDocBytes, 0o600)
}

func (ag *GenesisDoc) ValidateAndComplete() error {
	if ag.ChainID == "" {
		return errors.New("genesis doc must include non-empty chain_id")
	}

	if ag.InitialHeight < 0 {
		return fmt.Errorf("initial_height cannot be negative (got %v)", ag.InitialHeight)
	}

	if ag.InitialHeight == 0 {
		ag.InitialHeight = 1
	}

	if ag.GenesisTime.IsZero() {
		ag.GenesisTime = time.Now().Round(0).UTC()
	}

	if _, err := ParseAppGenesis(ag.AppState); err != nil {
		return fmt.Errorf("invalid app_state: %w", err)
	}

	return nil
}

func ExportGenesisFile(genesis *GenesisDoc, genFile string) error {
	if err := genesis.ValidateAndComplete(); err != nil {
		return err
	}
	return genesis.SaveAs(genFile)
}
