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

type CreateRegistryTxHandler struct {
	logger cmtlog.Logger
}

func NewCreateRegistryTxHandler(logger cmtlog.Logger) (h *CreateRegistryTxHandler) {
	logger = logger.With("module", "registryTx")
	h = &CreateRegistryTxHandler{
		logger: logger,
	}
	return
}

func (h *CreateRegistryTxHandler) Check(ctx context.Context, st *state.State, btx *tx.DAOTx) (res *abcitypes.ResponseCheckTx, err error) {
	stx := btx.Tx.(*tx.CreateRegistryTx)
	_, err1 := st.InitializeDAO(stx, btx.Signer(), true)
	res = checkResult(h.logger, btx, err1)
	return
}

func (h *CreateRegistryTxHandler) handle(ctx context.Context, st *state.State, btx *tx.DAOTx) (res *abcitypes.ExecTxResult, err error) {
	stx := btx.Tx.(*tx.CreateRegistryTx)
	event, err := st.InitializeDAO(stx, btx.Signer(), false)
	if err != nil {
		return nil, err
	}
	return execResult(st, btx, binary.BigEndian.AppendUint64(nil, event.Registry), types.EncodeEventRegistry(event))
}

func (h *CreateRegistryTxHandler) Prepare(ctx context.Context, st *state.State, btx *tx.DAOTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}

func (h *CreateRegistryTxHandler) Process(ctx context.Context, st *state.State, btx *tx.DAOTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}
