package app

import (
	"context"

	"github.com/calehh/dao-app/action"
	"github.com/calehh/dao-app/config"
	"github.com/calehh/dao-app/state"
	"github.com/calehh/dao-app/tx"
	"github.com/calehh/dao-app/tx/handler"
	"github.com/calehh/dao-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cometbft/cometbft/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

type finalizeBlock struct {
	Height uint64
	Hash   common.Hash
}

func (b *finalizeBlock) Set(blk *abcitypes.RequestFinalizeBlock) {
	b.Height = uint64(blk.Height)
	b.Hash = common.BytesToHash(blk.Hash)
}

var _ abcitypes.Application = &DAOApp{}

type DAOApp struct {
	cfg    *config.DAOAppConfig
	logger cmtlog.Logger

	db       *state.StateDB
	lastBlk  finalizeBlock
	actions  *action.Router
	txHdlrs  map[tx.DAOTxType]handler.TxHandler
	queriers map[string]Querier
	metrics  *metrics

	st *state.State
}

func NewDAOApp(cfg *config.DAOAppConfig, logger cmtlog.Logger, registerer prometheus.Registerer) (app *DAOApp, err error) {
	logger = logger.With("module", "app")
	db, err := state.NewStateDB(cfg.Home+"/data", logger)
	if err != nil {
		return nil, err
	}
	return newDAOApp(cfg, db, logger, registerer)
}

func newDAOApp(cfg *config.DAOAppConfig, db *state.StateDB, logger cmtlog.Logger, registerer prometheus.Registerer) (app *DAOApp, err error) {
	m, err := newMetrics(cfg.MetricsNS, registerer)
	if err != nil {
		return nil, err
	}
	app = &DAOApp{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		actions:  action.NewDefaultRouter(),
		txHdlrs:  make(map[tx.DAOTxType]handler.TxHandler),
		queriers: make(map[string]Querier),
		metrics:  m,
	}
	app.registerTxHandler()
	app.registerQuerier()
	return
}

// Actions exposes the router so additional external actions can be
// registered before the node starts.
func (app *DAOApp) Actions() *action.Router {
	return app.actions
}

func (app *DAOApp) Start(bs *store.BlockStore) {
	height := app.db.Header().Height
	if height > 0 {
		blk := bs.LoadBlock(int64(height))
		if blk == nil {
			panic("unexpected BlockStore")
		}
		app.lastBlk.Height = height
		app.lastBlk.Hash = common.BytesToHash(blk.Hash())
	}
}

func (app *DAOApp) Stop() {
	err := app.db.Close()
	if err != nil {
		app.logger.Error("close db fail", "err", err)
	}
	app.logger.Info("DAO app stopped")
}

func (app *DAOApp) registerTxHandler() {
	app.txHdlrs = map[tx.DAOTxType]handler.TxHandler{
		tx.DAOTxTypeCreateRegistry: handler.NewCreateRegistryTxHandler(app.logger),
		tx.DAOTxTypeProposal:       handler.NewProposalTxHandler(app.logger, app.actions),
		tx.DAOTxTypeVote:           handler.NewVoteTxHandler(app.logger),
		tx.DAOTxTypeFinalize:       handler.NewFinalizeTxHandler(app.logger),
		tx.DAOTxTypeExecute:        handler.NewExecuteTxHandler(app.logger, app.actions),
	}
}

func (app *DAOApp) registerQuerier() {
	app.queriers["/accounts/"] = NewAccountQuerier(app.db, app.logger)
	app.queriers["/registries/"] = NewRegistryQuerier(app.db, app.logger)
	app.queriers["/proposals/"] = NewProposalQuerier(app.db, app.logger)
	app.queriers["/mints/"] = NewMintQuerier(app.db, app.logger)
	app.queriers["/balances/"] = NewBalanceQuerier(app.db, app.logger)
	app.queriers["/layout/"] = NewLayoutQuerier(app.db, app.actions)
}

func (app *DAOApp) InitChain(_ context.Context, chain *abcitypes.RequestInitChain) (res *abcitypes.ResponseInitChain, err error) {
	genesis, err := types.ParseAppGenesis(chain.AppStateBytes)
	if err != nil {
		app.logger.Error("InitChain parse app state fail", "err", err)
		return nil, err
	}
	st := app.db.NewState()
	st.SetChainId(chain.ChainId)
	st.SetTime(chain.Time)
	err = st.SetParams(genesis.Params)
	if err != nil {
		app.logger.Error("InitChain set params fail", "err", err)
		return nil, err
	}
	app.logger.Info("InitChain params", "votingPeriod", genesis.Params.VotingPeriod, "noOpOptions", genesis.Params.NoOpOptions)
	for _, m := range genesis.Mints {
		m.Supply = 0
		err = st.AddMint(m)
		if err != nil {
			app.logger.Error("InitChain add mint fail", "denom", m.Denom, "err", err)
			return nil, err
		}
	}
	_, err = st.Update()
	if err != nil {
		app.logger.Error("InitChain update state fail", "err", err)
		return nil, err
	}
	h, err := app.db.SetState(st)
	if err != nil {
		app.logger.Error("InitChain apply state fail", "err", err)
		return nil, err
	}
	return &abcitypes.ResponseInitChain{
		AppHash: h.Bytes(),
	}, nil
}

func (app *DAOApp) Info(ctx context.Context, info *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	header := app.db.Header()
	return &abcitypes.ResponseInfo{
		Data:             types.DAOModuleName,
		LastBlockHeight:  int64(header.Height),
		LastBlockAppHash: header.Hash,
	}, nil
}

func (app *DAOApp) ExtendVote(_ context.Context, extend *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

func (app *DAOApp) VerifyVoteExtension(_ context.Context, verify *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}, nil
}

func (app *DAOApp) ApplySnapshotChunk(context.Context, *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return &abcitypes.ResponseApplySnapshotChunk{}, nil
}

func (app *DAOApp) ListSnapshots(context.Context, *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return &abcitypes.ResponseListSnapshots{}, nil
}

func (app *DAOApp) LoadSnapshotChunk(context.Context, *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return &abcitypes.ResponseLoadSnapshotChunk{}, nil
}

func (app *DAOApp) OfferSnapshot(context.Context, *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return &abcitypes.ResponseOfferSnapshot{}, nil
}
