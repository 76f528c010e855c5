package app

import (
	"context"
	"errors"
	"time"

	"github.com/calehh/dao-app/state"
	"github.com/calehh/dao-app/tx"
	"github.com/calehh/dao-app/tx/handler"
	"github.com/calehh/dao-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
)

var (
	ErrUnexpectedTxProcess = errors.New("unexpected tx process")
	ErrUnsupportedTx       = errors.New("unsupported tx")
)

func (app *DAOApp) getState(blkTime time.Time) (st *state.State) {
	st = app.db.NewState()
	st.SetTime(blkTime)
	return
}

func (app *DAOApp) parseTx(st *state.State, txDat []byte, allowNonceGap bool) (btx *tx.DAOTx, err error) {
	btx, err = tx.UnmarshalDAOTx(txDat)
	if err != nil {
		return
	}
	_, err = st.Verify(btx, allowNonceGap)
	return
}

func (app *DAOApp) CheckTx(ctx context.Context, check *abcitypes.RequestCheckTx) (res *abcitypes.ResponseCheckTx, err error) {
	st := app.db.State()
	btx, err := app.parseTx(st, check.Tx, true)
	if err != nil {
		app.logger.Info("parse tx fail", "err", err)
		res = &abcitypes.ResponseCheckTx{
			Code:      handler.ErrorCode(err),
			Codespace: handler.Codespace,
			Log:       err.Error(),
		}
		return res, nil
	}
	app.logger.Debug("check tx", "type", btx.Type)
	h, ok := app.txHdlrs[btx.Type]
	if !ok {
		app.logger.Error("unsupported tx", "type", btx.Type)
		res = &abcitypes.ResponseCheckTx{Code: handler.CodeInvalidTx, Codespace: handler.Codespace, Log: ErrUnsupportedTx.Error()}
		return res, nil
	}
	res, err = h.Check(ctx, st, btx)
	if err != nil {
		app.logger.Error("check tx fail", "err", err)
		res = &abcitypes.ResponseCheckTx{Code: handler.ErrorCode(err), Codespace: handler.Codespace, Log: err.Error()}
		err = nil
	}
	return
}

// apply runs one tx against a clone of st. The clone replaces st only when
// the tx succeeds, so a failed tx leaves no trace.
func (app *DAOApp) apply(ctx context.Context, st *state.State, stx []byte, prepare bool) (next *state.State, btx *tx.DAOTx, res *abcitypes.ExecTxResult) {
	next = st
	btx, err := app.parseTx(st, stx, false)
	if err != nil {
		return next, nil, &abcitypes.ExecTxResult{Code: handler.ErrorCode(err), Codespace: handler.Codespace, Log: err.Error()}
	}
	h, ok := app.txHdlrs[btx.Type]
	if !ok {
		return next, btx, &abcitypes.ExecTxResult{Code: handler.CodeInvalidTx, Codespace: handler.Codespace, Log: ErrUnsupportedTx.Error()}
	}
	tmp := st.Clone()
	if prepare {
		res, err = h.Prepare(ctx, tmp, btx)
	} else {
		res, err = h.Process(ctx, tmp, btx)
	}
	if err != nil {
		return next, btx, &abcitypes.ExecTxResult{Code: handler.ErrorCode(err), Codespace: handler.Codespace, Log: err.Error()}
	}
	if res == nil {
		return next, btx, &abcitypes.ExecTxResult{Code: handler.CodeInternal, Codespace: handler.Codespace, Log: ErrUnexpectedTxProcess.Error()}
	}
	return tmp, btx, res
}

func (app *DAOApp) PrepareProposal(ctx context.Context, proposal *abcitypes.RequestPrepareProposal) (res *abcitypes.ResponsePrepareProposal, err error) {
	app.logger.Info("PrepareProposal", "height", proposal.Height, "txs", len(proposal.Txs))
	st := app.getState(proposal.Time)
	txs := make([][]byte, 0, len(proposal.Txs))
	var size int64
	for _, stx := range proposal.Txs {
		if size+int64(len(stx)) > proposal.MaxTxBytes {
			break
		}
		var result *abcitypes.ExecTxResult
		st, _, result = app.apply(ctx, st, stx, true)
		if result.Code != handler.CodeOK {
			app.logger.Info("prepare drop tx", "code", result.Code, "log", result.Log)
			continue
		}
		size += int64(len(stx))
		txs = append(txs, stx)
	}
	return &abcitypes.ResponsePrepareProposal{Txs: txs}, nil
}

func (app *DAOApp) ProcessProposal(ctx context.Context, proposal *abcitypes.RequestProcessProposal) (res *abcitypes.ResponseProcessProposal, err error) {
	app.logger.Info("ProcessProposal", "height", proposal.Height, "txs", len(proposal.Txs))
	res = &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}
	st := app.getState(proposal.Time)
	for _, stx := range proposal.Txs {
		var result *abcitypes.ExecTxResult
		st, _, result = app.apply(ctx, st, stx, false)
		if result.Code != handler.CodeOK {
			app.logger.Error("process proposal reject", "height", proposal.Height, "code", result.Code, "log", result.Log)
			return res, nil
		}
	}
	res.Status = abcitypes.ResponseProcessProposal_ACCEPT
	return res, nil
}

func (app *DAOApp) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	app.logger.Info("FinalizeBlock", "height", req.Height, "txs", len(req.Txs))
	app.lastBlk.Set(req)
	st := app.getState(req.Time)
	results := make([]*abcitypes.ExecTxResult, len(req.Txs))
	for i, stx := range req.Txs {
		var btx *tx.DAOTx
		st, btx, results[i] = app.apply(ctx, st, stx, false)
		if btx != nil {
			app.metrics.markTx(btx.Type, results[i].Code)
		}
		if results[i].Code != handler.CodeOK {
			app.logger.Info("tx failed", "height", req.Height, "index", i, "code", results[i].Code, "log", results[i].Log)
			continue
		}
		for _, ev := range results[i].Events {
			if ev.Type != types.EventExecuteType {
				continue
			}
			if e := types.DecodeEventExecute(ev); e != nil {
				app.metrics.markExecuted(e.Invoked)
			}
		}
	}
	h, err := st.Update()
	if err != nil {
		app.logger.Error("state update hash fail", "err", err)
		return nil, err
	}
	app.st = st
	app.metrics.height.Set(float64(req.Height))
	return &abcitypes.ResponseFinalizeBlock{
		TxResults: results,
		AppHash:   h.Bytes(),
	}, nil
}

func (app *DAOApp) Commit(ctx context.Context, commit *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	if app.st == nil {
		return &abcitypes.ResponseCommit{}, nil
	}
	_, err := app.db.SetState(app.st)
	if err != nil {
		return nil, err
	}
	app.st = nil
	app.logger.Info("Commit", "height", app.lastBlk.Height)
	return &abcitypes.ResponseCommit{}, nil
}
