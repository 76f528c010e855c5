package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/calehh/dao-app/tx"
	"github.com/calehh/dao-app/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/syndtr/goleveldb/leveldb"
)

const (
	StartRecordIdx = 1

	ModifiedFlagNew = 1 << 0
	ModifiedFlagMod = 1 << 1
)

var (
	KeyState        = "s"
	KeyAccountBody  = "a%x"
	KeyRegistryBody = "r%v"
	KeyProposalBody = "p%v"
	KeyMintBody     = "m%s"
	KeyBalance      = "b%s/%x"
)

var (
	ErrTxNonceInvalid     = errors.New("nonce invalid")
	ErrTxSigInvalid       = errors.New("signature invalid")
	ErrInvalidParams      = errors.New("invalid state params")
	ErrMintAlreadyExists  = errors.New("mint already exists")
	ErrMintNoexists       = errors.New("mint noexists")
	ErrBalanceOverflow    = errors.New("balance overflow")
	ErrStateHeaderCorrupt = errors.New("state header corrupt")
)

// Params are the deployment constants the governance engine runs with.
type Params struct {
	VotingPeriod uint64
	NoOpOptions  []uint32
	Layout       *types.Layout
}

func NewParams(gp types.GovParams) (p Params, err error) {
	if err = gp.Validate(); err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidParams, err)
		return
	}
	layout, err := types.NewLayout(gp.Capacity)
	if err != nil {
		return
	}
	p = Params{
		VotingPeriod: gp.VotingPeriod,
		NoOpOptions:  append([]uint32(nil), gp.NoOpOptions...),
		Layout:       layout,
	}
	return
}

func defaultParams() Params {
	p, err := NewParams(types.DefaultGovParams())
	if err != nil {
		panic(err)
	}
	return p
}

// Gov is the genesis form of p.
func (p Params) Gov() types.GovParams {
	return types.GovParams{
		VotingPeriod: p.VotingPeriod,
		NoOpOptions:  append([]uint32(nil), p.NoOpOptions...),
		Capacity:     p.Layout.Capacity(),
	}
}

func (p Params) IsNoOp(option uint32) bool {
	for _, o := range p.NoOpOptions {
		if o == option {
			return true
		}
	}
	return false
}

type StateHeader struct {
	ChainId     string
	Height      uint64
	Time        uint64
	RegistryIdx uint64
	ProposalIdx uint64
	Params      []byte // json encoded types.GovParams, set at genesis
	RootHash    []byte
	Hash        []byte
}

func (h *StateHeader) GetHash() []byte {
	if h == nil {
		return nil
	}
	return h.Hash
}

func (h *StateHeader) Clone() *StateHeader {
	n := *h
	n.Params = common.CopyBytes(h.Params)
	n.RootHash = common.CopyBytes(h.RootHash)
	n.Hash = common.CopyBytes(h.Hash)
	return &n
}

type State struct {
	logger cmtlog.Logger
	db     *iavl.MutableTree
	dbVer  int64
	params Params

	header     *StateHeader
	acnts      map[string]*Account
	registries map[uint64]*types.Registry
	proposals  map[uint64]*types.Proposal
	mints      map[string]*types.Mint
	balances   map[string]uint64

	modifiedAcnts      map[string]uint32
	modifiedRegistries map[uint64]uint32
	modifiedProposals  map[uint64]uint32
	modifiedMints      map[string]uint32
	modifiedBalances   map[string]uint32
}

func newState(db *iavl.MutableTree, logger cmtlog.Logger) *State {
	s := &State{
		logger: logger,
		db:     db,
		dbVer:  0,
		params: defaultParams(),
		header: new(StateHeader),
	}
	s.resetCaches()
	return s
}

func (s *State) resetCaches() {
	s.acnts = make(map[string]*Account)
	s.registries = make(map[uint64]*types.Registry)
	s.proposals = make(map[uint64]*types.Proposal)
	s.mints = make(map[string]*types.Mint)
	s.balances = make(map[string]uint64)
	s.modifiedAcnts = make(map[string]uint32)
	s.modifiedRegistries = make(map[uint64]uint32)
	s.modifiedProposals = make(map[uint64]uint32)
	s.modifiedMints = make(map[string]uint32)
	s.modifiedBalances = make(map[string]uint32)
}

func (s *State) nextState() *State {
	n := &State{
		logger: s.logger,
		db:     s.db,
		dbVer:  s.dbVer,
		params: s.params,
	}
	n.resetCaches()
	n.header = s.header.Clone()
	if s.header.GetHash() != nil {
		n.header.Height = s.header.Height + 1
	}
	return n
}

func deepCopyMap[K comparable, V any](source map[K]V) map[K]V {
	res := make(map[K]V, len(source))
	for k, v := range source {
		switch x := any(v).(type) {
		case *Account:
			res[k] = any(x.Clone()).(V)
		case *types.Registry:
			res[k] = any(x.Clone()).(V)
		case *types.Proposal:
			res[k] = any(x.Clone()).(V)
		case *types.Mint:
			m := *x
			res[k] = any(&m).(V)
		default:
			res[k] = v
		}
	}
	return res
}

// Clone returns an independent copy used to apply a tx tentatively.
func (s *State) Clone() *State {
	return &State{
		logger:             s.logger,
		db:                 s.db,
		dbVer:              s.dbVer,
		params:             s.params,
		header:             s.header.Clone(),
		acnts:              deepCopyMap(s.acnts),
		registries:         deepCopyMap(s.registries),
		proposals:          deepCopyMap(s.proposals),
		mints:              deepCopyMap(s.mints),
		balances:           deepCopyMap(s.balances),
		modifiedAcnts:      deepCopyMap(s.modifiedAcnts),
		modifiedRegistries: deepCopyMap(s.modifiedRegistries),
		modifiedProposals:  deepCopyMap(s.modifiedProposals),
		modifiedMints:      deepCopyMap(s.modifiedMints),
		modifiedBalances:   deepCopyMap(s.modifiedBalances),
	}
}

func (s *State) get(key string) (val []byte, err error) {
	val, err = s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return
}

func (s *State) load() (err error) {
	val, err := s.get(KeyState)
	if err != nil {
		return
	}
	if val == nil {
		return
	}
	err = rlp.DecodeBytes(val, s.header)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStateHeaderCorrupt, err)
	}
	if len(s.header.Params) > 0 {
		var gp types.GovParams
		if err = json.Unmarshal(s.header.Params, &gp); err != nil {
			return fmt.Errorf("%w: params: %v", ErrStateHeaderCorrupt, err)
		}
		if s.params, err = NewParams(gp); err != nil {
			return fmt.Errorf("%w: %v", ErrStateHeaderCorrupt, err)
		}
	}
	h := s.db.Hash()
	if h != nil {
		s.calcHash(h, true)
	}
	return
}

func (s *State) calcHash(rootHash []byte, update bool) (h common.Hash) {
	h = crypto.Keccak256Hash(rootHash)
	if update {
		s.header.RootHash = common.CopyBytes(rootHash)
		s.header.Hash = common.CopyBytes(h[:])
	}
	return
}

func sortedKeys[K string | uint64, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i] < keys[j]
	})
	return keys
}

// Update writes every modified record into the working tree and returns
// the resulting app hash. Nothing is persisted until save.
func (s *State) Update() (h common.Hash, err error) {
	var hash []byte
	defer func() {
		if hash == nil {
			s.db.Rollback()
		}
	}()
	set := func(key string, val []byte) (err error) {
		_, err = s.db.Set([]byte(key), val)
		return
	}

	val, err := rlp.EncodeToBytes(s.header)
	if err != nil {
		return
	}
	if err = set(KeyState, val); err != nil {
		return
	}
	for _, idx := range sortedKeys(s.modifiedRegistries) {
		val, err = s.params.Layout.EncodeRegistry(s.registries[idx])
		if err != nil {
			return
		}
		if err = set(fmt.Sprintf(KeyRegistryBody, idx), val); err != nil {
			return
		}
	}
	for _, idx := range sortedKeys(s.modifiedProposals) {
		val, err = s.params.Layout.EncodeProposal(s.proposals[idx])
		if err != nil {
			return
		}
		if err = set(fmt.Sprintf(KeyProposalBody, idx), val); err != nil {
			return
		}
	}
	for _, addr := range sortedKeys(s.modifiedAcnts) {
		val, err = json.Marshal(s.acnts[addr])
		if err != nil {
			return
		}
		if err = set(fmt.Sprintf(KeyAccountBody, []byte(addr)), val); err != nil {
			return
		}
	}
	for _, denom := range sortedKeys(s.modifiedMints) {
		val, err = json.Marshal(s.mints[denom])
		if err != nil {
			return
		}
		if err = set(fmt.Sprintf(KeyMintBody, denom), val); err != nil {
			return
		}
	}
	for _, key := range sortedKeys(s.modifiedBalances) {
		val, err = rlp.EncodeToBytes(s.balances[key])
		if err != nil {
			return
		}
		if err = set(key, val); err != nil {
			return
		}
	}

	hash = s.db.WorkingHash()
	h = s.calcHash(hash, false)
	s.modifiedAcnts = make(map[string]uint32)
	s.modifiedRegistries = make(map[uint64]uint32)
	s.modifiedProposals = make(map[uint64]uint32)
	s.modifiedMints = make(map[string]uint32)
	s.modifiedBalances = make(map[string]uint32)
	return
}

func (s *State) save() (h common.Hash, err error) {
	hash, ver, err := s.db.SaveVersion()
	if err != nil {
		return h, err
	}

	s.dbVer = ver
	h = s.calcHash(hash, true)

	return
}

func (s *State) Header() *StateHeader {
	return s.header
}

func (s *State) Params() Params {
	return s.params
}

// SetParams installs the genesis params. They are stored in the header and
// reloaded from it on restart.
func (s *State) SetParams(gp types.GovParams) (err error) {
	p, err := NewParams(gp)
	if err != nil {
		return
	}
	dat, err := json.Marshal(p.Gov())
	if err != nil {
		return
	}
	s.params = p
	s.header.Params = dat
	return
}

func (s *State) Hash() (h common.Hash) {
	if s.header.Hash != nil {
		copy(h[:], s.header.Hash)
	}
	return
}

func (s *State) SetChainId(chainId string) {
	s.header.ChainId = chainId
}

// SetTime sets the ledger time (unix seconds) used by proposal windows.
func (s *State) SetTime(t time.Time) {
	if t.Unix() > 0 {
		s.header.Time = uint64(t.Unix())
	}
}

func (s *State) Time() uint64 {
	return s.header.Time
}

func (s *State) GetAccount(addr types.Address) (acnt *Account, err error) {
	acnt = s.acnts[string(addr)]
	if acnt != nil {
		return
	}
	val, err := s.get(fmt.Sprintf(KeyAccountBody, []byte(addr)))
	if err != nil || val == nil {
		return nil, err
	}
	acnt = new(Account)
	err = json.Unmarshal(val, acnt)
	if err != nil {
		acnt = nil
	}
	return
}

// Verify checks the signature and nonce of btx. allowNonceGap accepts a
// nonce ahead of the account so several txs can wait in the mempool.
func (s *State) Verify(btx *tx.DAOTx, allowNonceGap bool) (succ bool, err error) {
	var nonce uint64
	a, err := s.GetAccount(btx.Signer())
	if err != nil {
		return
	}
	if a != nil {
		nonce = a.Nonce
	}
	if !(nonce == btx.Nonce || (allowNonceGap && nonce < btx.Nonce)) {
		err = ErrTxNonceInvalid
		return
	}
	succ = btx.Verify(s.header.ChainId)
	if !succ {
		err = ErrTxSigInvalid
	}
	return
}

// IncNonce bumps the signer nonce after a successful tx, creating the
// account on first use.
func (s *State) IncNonce(pubkey []byte) (err error) {
	addr := types.AddressFromPubKey(pubkey)
	a, err := s.GetAccount(addr)
	if err != nil {
		return
	}
	flag := uint32(ModifiedFlagMod)
	if a == nil {
		a = new(Account)
		a.SetPubKey(pubkey)
		flag = ModifiedFlagNew
	}
	a.Nonce += 1
	s.acnts[string(addr)] = a
	s.modifiedAcnts[string(addr)] |= flag
	return
}

func (s *State) GetRegistry(idx uint64) (r *types.Registry, err error) {
	if idx < StartRecordIdx || idx > s.header.RegistryIdx {
		return nil, ErrRegistryNotFound
	}
	if r = s.registries[idx]; r != nil {
		return
	}
	val, err := s.get(fmt.Sprintf(KeyRegistryBody, idx))
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, ErrRegistryNotFound
	}
	r = new(types.Registry)
	err = rlp.DecodeBytes(val, r)
	if err != nil {
		return nil, err
	}
	return
}

func (s *State) GetProposal(idx uint64) (p *types.Proposal, err error) {
	if idx < StartRecordIdx || idx > s.header.ProposalIdx {
		return nil, ErrProposalNotFound
	}
	if p = s.proposals[idx]; p != nil {
		return
	}
	val, err := s.get(fmt.Sprintf(KeyProposalBody, idx))
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, ErrProposalNotFound
	}
	p = new(types.Proposal)
	err = rlp.DecodeBytes(val, p)
	if err != nil {
		return nil, err
	}
	return
}

func (s *State) putProposal(p *types.Proposal, flag uint32) {
	s.proposals[p.Index] = p
	s.modifiedProposals[p.Index] |= flag
}

func (s *State) GetMint(denom string) (m *types.Mint, err error) {
	if m = s.mints[denom]; m != nil {
		return
	}
	val, err := s.get(fmt.Sprintf(KeyMintBody, denom))
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, ErrMintNoexists
	}
	m = new(types.Mint)
	err = json.Unmarshal(val, m)
	if err != nil {
		return nil, err
	}
	return
}

func (s *State) AddMint(m types.Mint) (err error) {
	_, err = s.GetMint(m.Denom)
	if err == nil {
		return ErrMintAlreadyExists
	}
	if !errors.Is(err, ErrMintNoexists) {
		return
	}
	s.mints[m.Denom] = &m
	s.modifiedMints[m.Denom] |= ModifiedFlagNew
	return nil
}

func balanceKey(denom string, owner types.Address) string {
	return fmt.Sprintf(KeyBalance, denom, []byte(owner))
}

func (s *State) Balance(denom string, owner types.Address) (amount uint64, err error) {
	key := balanceKey(denom, owner)
	if v, ok := s.balances[key]; ok {
		return v, nil
	}
	val, err := s.get(key)
	if err != nil || val == nil {
		return 0, err
	}
	err = rlp.DecodeBytes(val, &amount)
	return
}

// MintTo credits amount of denom to owner and grows the mint supply.
func (s *State) MintTo(denom string, owner types.Address, amount uint64) (err error) {
	m, err := s.GetMint(denom)
	if err != nil {
		return
	}
	bal, err := s.Balance(denom, owner)
	if err != nil {
		return
	}
	if bal > math.MaxUint64-amount || m.Supply > math.MaxUint64-amount {
		return ErrBalanceOverflow
	}
	n := *m
	n.Supply += amount
	s.mints[denom] = &n
	s.modifiedMints[denom] |= ModifiedFlagMod

	key := balanceKey(denom, owner)
	s.balances[key] = bal + amount
	s.modifiedBalances[key] |= ModifiedFlagMod
	return
}

type ledgerJournal struct {
	mints            map[string]*types.Mint
	balances         map[string]uint64
	modifiedMints    map[string]uint32
	modifiedBalances map[string]uint32
}

func (s *State) snapshotLedger() *ledgerJournal {
	return &ledgerJournal{
		mints:            deepCopyMap(s.mints),
		balances:         deepCopyMap(s.balances),
		modifiedMints:    deepCopyMap(s.modifiedMints),
		modifiedBalances: deepCopyMap(s.modifiedBalances),
	}
}

func (s *State) restoreLedger(j *ledgerJournal) {
	s.mints = j.mints
	s.balances = j.balances
	s.modifiedMints = j.modifiedMints
	s.modifiedBalances = j.modifiedBalances
}
