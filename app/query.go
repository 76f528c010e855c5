package app

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"strings"

	"github.com/calehh/dao-app/action"
	"github.com/calehh/dao-app/state"
	"github.com/calehh/dao-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

const (
	QueryCodeOK       = 0
	QueryCodeNotFound = 1
	QueryCodeInvalid  = 2
	QueryCodeNoRoute  = 404
)

func (app *DAOApp) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	path := req.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	q, ok := app.queriers[path]
	if !ok {
		res = &abcitypes.ResponseQuery{}
		res.Code = QueryCodeNoRoute
		return
	}
	res, err = q.Query(ctx, req)
	return
}

type Querier interface {
	Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error)
}

// parseIndex reads a big-endian record index of at most 8 bytes.
func parseIndex(data []byte) (idx uint64, ok bool) {
	if len(data) == 0 || len(data) > 8 {
		return 0, false
	}
	for _, v := range data {
		idx <<= 8
		idx |= uint64(v)
	}
	return idx, true
}

// EncodeIndex is the query data for /registries/ and /proposals/.
func EncodeIndex(idx uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, idx)
}

type AccountQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewAccountQuerier(db *state.StateDB, logger cmtlog.Logger) (q *AccountQuerier) {
	q = &AccountQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *AccountQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	if len(req.Data) != types.AddressSize {
		res.Code = QueryCodeInvalid
		return
	}
	a, height, err := q.db.GetAccount(types.Address(req.Data))
	if err != nil {
		q.logger.Error("query account fail", "err", err)
		res.Code = QueryCodeNotFound
		return res, nil
	}
	res.Height = int64(height)
	if a == nil {
		res.Code = QueryCodeNotFound
		return
	}
	res.Value, _ = a.MarshalJSON()
	return
}

type RegistryQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewRegistryQuerier(db *state.StateDB, logger cmtlog.Logger) (q *RegistryQuerier) {
	q = &RegistryQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *RegistryQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	idx, ok := parseIndex(req.Data)
	if !ok {
		res.Code = QueryCodeInvalid
		return
	}
	r, height, err := q.db.GetRegistry(idx)
	if err != nil {
		res.Code = QueryCodeNotFound
		res.Log = err.Error()
		return res, nil
	}
	res.Height = int64(height)
	res.Value, _ = json.Marshal(r)
	return
}

// ProposalView is a proposal record plus its status at the committed time.
type ProposalView struct {
	*types.Proposal
	Status string `json:"status"`
}

type ProposalQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewProposalQuerier(db *state.StateDB, logger cmtlog.Logger) (q *ProposalQuerier) {
	q = &ProposalQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *ProposalQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	idx, ok := parseIndex(req.Data)
	if !ok {
		res.Code = QueryCodeInvalid
		return
	}
	p, now, height, err := q.db.GetProposal(idx)
	if err != nil {
		res.Code = QueryCodeNotFound
		res.Log = err.Error()
		return res, nil
	}
	res.Height = int64(height)
	res.Value, _ = json.Marshal(ProposalView{Proposal: p, Status: p.Status(now).String()})
	return
}

type MintQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewMintQuerier(db *state.StateDB, logger cmtlog.Logger) (q *MintQuerier) {
	q = &MintQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *MintQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	m, height, err := q.db.GetMint(string(req.Data))
	if err != nil {
		res.Code = QueryCodeNotFound
		res.Log = err.Error()
		return res, nil
	}
	res.Height = int64(height)
	res.Value, _ = json.Marshal(m)
	return
}

type BalanceView struct {
	Denom  string `json:"denom"`
	Owner  string `json:"owner"`
	Amount uint64 `json:"amount"`
}

// BalanceQuerier expects data of the form "denom/hexaddress".
type BalanceQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewBalanceQuerier(db *state.StateDB, logger cmtlog.Logger) (q *BalanceQuerier) {
	q = &BalanceQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *BalanceQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	denom, owner, found := strings.Cut(string(req.Data), "/")
	if !found {
		res.Code = QueryCodeInvalid
		return
	}
	addr, err := types.ParseAddress(owner)
	if err != nil {
		res.Code = QueryCodeInvalid
		res.Log = err.Error()
		return res, nil
	}
	amount, height, err := q.db.GetBalance(denom, addr)
	if err != nil {
		q.logger.Error("query balance fail", "err", err)
		res.Code = QueryCodeNotFound
		return res, nil
	}
	res.Height = int64(height)
	res.Value, _ = json.Marshal(BalanceView{Denom: denom, Owner: addr.String(), Amount: amount})
	return
}

// LayoutView reports the reserved record sizes and the installed actions.
type LayoutView struct {
	Capacity      types.Capacity `json:"capacity"`
	RegistrySpace int            `json:"registry_space"`
	ProposalSpace int            `json:"proposal_space"`
	VotingPeriod  uint64         `json:"voting_period"`
	NoOpOptions   []uint32       `json:"no_op_options"`
	Actions       []string       `json:"actions"`
}

type LayoutQuerier struct {
	db      *state.StateDB
	actions *action.Router
}

func NewLayoutQuerier(db *state.StateDB, actions *action.Router) (q *LayoutQuerier) {
	q = &LayoutQuerier{
		db:      db,
		actions: actions,
	}
	return
}

func (q *LayoutQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	params := q.db.State().Params()
	view := LayoutView{
		Capacity:      params.Layout.Capacity(),
		RegistrySpace: params.Layout.RegistrySpace(),
		ProposalSpace: params.Layout.ProposalSpace(),
		VotingPeriod:  params.VotingPeriod,
		NoOpOptions:   params.NoOpOptions,
		Actions:       q.actions.Targets(),
	}
	res.Height = int64(q.db.Header().Height)
	res.Value, _ = json.Marshal(view)
	return
}
