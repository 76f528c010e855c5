package state

import (
	"sync"

	"github.com/calehh/dao-app/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	dbm "github.com/cosmos/iavl/db"
	"github.com/ethereum/go-ethereum/common"
)

type StateDB struct {
	mtx sync.RWMutex

	dir    string
	logger cmtlog.Logger
	db     *iavl.MutableTree

	state *State
}

func NewStateDB(dir string, logger cmtlog.Logger) (db *StateDB, err error) {
	ldb, err := dbm.NewDB("dao", "goleveldb", dir)
	if err != nil {
		return nil, err
	}
	db, err = newStateDB(ldb, logger)
	if err != nil {
		return
	}
	db.dir = dir
	return
}

// NewMemStateDB keeps the whole tree in memory.
func NewMemStateDB(logger cmtlog.Logger) (db *StateDB, err error) {
	return newStateDB(dbm.NewMemDB(), logger)
}

// newStateDB loads the last saved version. The governance params come from
// the saved header; a fresh tree runs with the defaults until genesis sets
// them.
func newStateDB(ldb dbm.DB, logger cmtlog.Logger) (db *StateDB, err error) {
	logger = logger.With("module", "daodb")
	tdb := iavl.NewMutableTree(ldb, 128, true, Cometbft2CosmosLogger(logger))
	version, err := tdb.Load()
	if err != nil {
		return nil, err
	}
	logger.Info("load db success", "version", version)
	st := newState(tdb, logger)
	err = st.load()
	if err != nil {
		logger.Error("from daodb load fail", "err", err)
		return nil, err
	}
	db = &StateDB{
		logger: logger,
		db:     tdb,
		state:  st,
	}
	return
}

func (db *StateDB) Close() (err error) {
	err = db.db.Close()
	return
}

func (db *StateDB) Header() (header *StateHeader) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	header = db.state.Header().Clone()
	return
}

func (db *StateDB) State() *State {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	return db.state
}

func (db *StateDB) NewState() (st *State) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	st = db.state.nextState()
	return
}

func (db *StateDB) SetState(st *State) (hash common.Hash, err error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	hash, err = st.save()
	if err != nil {
		return
	}
	db.state = st
	return
}

func (db *StateDB) GetAccount(addr types.Address) (acnt *Account, height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	acnt, err = db.state.GetAccount(addr)
	if err != nil {
		return
	}
	if acnt != nil {
		acnt = acnt.Clone()
	}
	height = db.state.header.Height
	return
}

func (db *StateDB) GetRegistry(idx uint64) (r *types.Registry, height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	r, err = db.state.GetRegistry(idx)
	if err != nil {
		return
	}
	r = r.Clone()
	height = db.state.header.Height
	return
}

func (db *StateDB) GetProposal(idx uint64) (p *types.Proposal, now uint64, height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	p, err = db.state.GetProposal(idx)
	if err != nil {
		return
	}
	p = p.Clone()
	now = db.state.header.Time
	height = db.state.header.Height
	return
}

func (db *StateDB) GetMint(denom string) (m *types.Mint, height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	m, err = db.state.GetMint(denom)
	if err != nil {
		return
	}
	c := *m
	m = &c
	height = db.state.header.Height
	return
}

func (db *StateDB) GetBalance(denom string, owner types.Address) (amount uint64, height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	amount, err = db.state.Balance(denom, owner)
	height = db.state.header.Height
	return
}
