package handler

import (
	"context"

	"github.com/calehh/dao-app/state"
	"github.com/calehh/dao-app/tx"
	"github.com/calehh/dao-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

type ExecuteTxHandler struct {
	logger  cmtlog.Logger
	actions state.ActionResolver
}

func NewExecuteTxHandler(logger cmtlog.Logger, actions state.ActionResolver) (h *ExecuteTxHandler) {
	logger = logger.With("module", "executeTx")
	h = &ExecuteTxHandler{
		logger:  logger,
		actions: actions,
	}
	return
}

func (h *ExecuteTxHandler) Check(ctx context.Context, st *state.State, btx *tx.DAOTx) (res *abcitypes.ResponseCheckTx, err error) {
	stx := btx.Tx.(*tx.ExecuteTx)
	_, err1 := st.Execute(stx, btx.Signer(), h.actions, true)
	res = checkResult(h.logger, btx, err1)
	return
}

func (h *ExecuteTxHandler) handle(ctx context.Context, st *state.State, btx *tx.DAOTx) (res *abcitypes.ExecTxResult, err error) {
	stx := btx.Tx.(*tx.ExecuteTx)
	event, err := st.Execute(stx, btx.Signer(), h.actions, false)
	if err != nil {
		return nil, err
	}
	if event.Invoked {
		h.logger.Info("external action invoked", "proposal", event.Proposal, "target", event.Target)
	}
	return execResult(st, btx, nil, types.EncodeEventExecute(event))
}

func (h *ExecuteTxHandler) Prepare(ctx context.Context, st *state.State, btx *tx.DAOTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}

func (h *ExecuteTxHandler) Process(ctx context.Context, st *state.State, btx *tx.DAOTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}
