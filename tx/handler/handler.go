package handler

import (
	"context"

	"github.com/calehh/dao-app/state"
	"github.com/calehh/dao-app/tx"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

type TxHandler interface {
	Check(ctx context.Context, st *state.State, btx *tx.DAOTx) (res *abcitypes.ResponseCheckTx, err error)
	Prepare(ctx context.Context, st *state.State, btx *tx.DAOTx) (res *abcitypes.ExecTxResult, err error)
	Process(ctx context.Context, st *state.State, btx *tx.DAOTx) (res *abcitypes.ExecTxResult, err error)
}

func checkResult(logger cmtlog.Logger, btx *tx.DAOTx, err error) (res *abcitypes.ResponseCheckTx) {
	res = &abcitypes.ResponseCheckTx{Code: CodeOK}
	if err != nil {
		logger.Info("CheckTx fail", "type", btx.Type, "err", err)
		res.Code = ErrorCode(err)
		res.Codespace = Codespace
		res.Log = err.Error()
	}
	return
}

// execResult bumps the signer nonce and wraps the events of a successful tx.
func execResult(st *state.State, btx *tx.DAOTx, data []byte, events ...abcitypes.Event) (res *abcitypes.ExecTxResult, err error) {
	err = st.IncNonce(btx.PubKey)
	if err != nil {
		return nil, err
	}
	res = &abcitypes.ExecTxResult{
		Code:   CodeOK,
		Data:   data,
		Events: events,
	}
	return
}
