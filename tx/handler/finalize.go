package handler

import (
	"context"
	"encoding/binary"

	"github.com/calehh/dao-app/state"
	"github.com/calehh/dao-app/tx"
	"github.com/calehh/dao-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

type FinalizeTxHandler struct {
	logger cmtlog.Logger
}

func NewFinalizeTxHandler(logger cmtlog.Logger) (h *FinalizeTxHandler) {
	logger = logger.With("module", "finalizeTx")
	h = &FinalizeTxHandler{
		logger: logger,
	}
	return
}

func (h *FinalizeTxHandler) Check(ctx context.Context, st *state.State, btx *tx.DAOTx) (res *abcitypes.ResponseCheckTx, err error) {
	stx := btx.Tx.(*tx.FinalizeTx)
	_, err1 := st.Finalize(stx, true)
	res = checkResult(h.logger, btx, err1)
	return
}

func (h *FinalizeTxHandler) handle(ctx context.Context, st *state.State, btx *tx.DAOTx) (res *abcitypes.ExecTxResult, err error) {
	stx := btx.Tx.(*tx.FinalizeTx)
	event, err := st.Finalize(stx, false)
	if err != nil {
		return nil, err
	}
	return execResult(st, btx, binary.BigEndian.AppendUint32(nil, event.Winner), types.EncodeEventFinalize(event))
}

func (h *FinalizeTxHandler) Prepare(ctx context.Context, st *state.State, btx *tx.DAOTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}

func (h *FinalizeTxHandler) Process(ctx context.Context, st *state.State, btx *tx.DAOTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}
