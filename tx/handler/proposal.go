package handler

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/calehh/dao-app/state"
	"github.com/calehh/dao-app/tx"
	"github.com/calehh/dao-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

type ProposalTxHandler struct {
	logger  cmtlog.Logger
	actions state.ActionResolver
}

func NewProposalTxHandler(logger cmtlog.Logger, actions state.ActionResolver) (h *ProposalTxHandler) {
	logger = logger.With("module", "proposalTx")
	h = &ProposalTxHandler{
		logger:  logger,
		actions: actions,
	}
	return
}

// validateAction rejects proposals whose action target nothing can run.
func (h *ProposalTxHandler) validateAction(stx *tx.ProposalTx) error {
	if stx.Action.Empty() {
		return nil
	}
	if _, ok := h.actions.Resolve(stx.Action.Target); !ok {
		return fmt.Errorf("%w: %s", state.ErrUnknownAction, stx.Action.Target)
	}
	return nil
}

func (h *ProposalTxHandler) Check(ctx context.Context, st *state.State, btx *tx.DAOTx) (res *abcitypes.ResponseCheckTx, err error) {
	stx := btx.Tx.(*tx.ProposalTx)
	err1 := h.validateAction(stx)
	if err1 == nil {
		_, err1 = st.CreateProposal(stx, btx.Signer(), true)
	}
	res = checkResult(h.logger, btx, err1)
	return
}

func (h *ProposalTxHandler) handle(ctx context.Context, st *state.State, btx *tx.DAOTx) (res *abcitypes.ExecTxResult, err error) {
	stx := btx.Tx.(*tx.ProposalTx)
	if err = h.validateAction(stx); err != nil {
		return nil, err
	}
	event, err := st.CreateProposal(stx, btx.Signer(), false)
	if err != nil {
		return nil, err
	}
	return execResult(st, btx, binary.BigEndian.AppendUint64(nil, event.Proposal), types.EncodeEventProposal(event))
}

func (h *ProposalTxHandler) Prepare(ctx context.Context, st *state.State, btx *tx.DAOTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}

func (h *ProposalTxHandler) Process(ctx context.Context, st *state.State, btx *tx.DAOTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}
