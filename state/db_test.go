package state

import (
	"testing"
	"time"

	"github.com/calehh/dao-app/tx"
	"github.com/calehh/dao-app/types"
	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	dbm "github.com/cosmos/iavl/db"
	"github.com/stretchr/testify/require"
)

func TestStateDBCommit(t *testing.T) {
	db := newTestDB(t)
	st := db.NewState()
	require.NoError(t, st.SetParams(testGovParams()))
	st.SetChainId("test-chain")
	st.SetTime(time.Unix(testStartTime, 0))
	require.NoError(t, st.AddMint(types.Mint{Denom: types.DefaultDenom, Authority: "dao/1"}))
	registry := createRegistry(t, st, alice, bob)
	idx := createProposal(t, st, registry, alice, yesNo()...)
	vote(t, st, registry, idx, bob, 1)

	h, err := st.Update()
	require.NoError(t, err)
	saved, err := db.SetState(st)
	require.NoError(t, err)
	require.Equal(t, h, saved)
	require.Equal(t, uint64(0), db.Header().Height)

	p, now, height, err := db.GetProposal(idx)
	require.NoError(t, err)
	require.Equal(t, uint64(testStartTime), now)
	require.Zero(t, height)
	require.Equal(t, uint64(1), p.Options[1].Tally)
	require.True(t, p.HasVoted(bob))

	// A fresh state reads everything back from the tree.
	next := db.NewState()
	require.Equal(t, uint64(1), next.Header().Height)
	r, err := next.GetRegistry(registry)
	require.NoError(t, err)
	require.Equal(t, []types.Address{alice, bob}, r.Members)
	m, err := next.GetMint(types.DefaultDenom)
	require.NoError(t, err)
	require.Equal(t, "dao/1", m.Authority)

	next.SetTime(time.Unix(testStartTime+testVotingPeriod+1, 0))
	_, err = next.Finalize(&tx.FinalizeTx{Proposal: idx}, false)
	require.NoError(t, err)
	h2, err := next.Update()
	require.NoError(t, err)
	require.NotEqual(t, h, h2)
	_, err = db.SetState(next)
	require.NoError(t, err)

	p, _, height, err = db.GetProposal(idx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), height)
	require.True(t, p.Finalized)
	require.Equal(t, uint32(1), p.Winner)
}

func TestStateCloneIsolated(t *testing.T) {
	st := newTestState(t)
	registry := createRegistry(t, st, alice, bob)
	idx := createProposal(t, st, registry, alice, yesNo()...)

	tmp := st.Clone()
	vote(t, tmp, registry, idx, bob, 0)

	p, err := st.GetProposal(idx)
	require.NoError(t, err)
	require.Zero(t, p.Options[0].Tally)
	p, err = tmp.GetProposal(idx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), p.Options[0].Tally)
}

func TestVerifyAndNonce(t *testing.T) {
	st := newTestState(t)
	key := ed25519.GenPrivKey()
	btx := &tx.DAOTx{
		Version: tx.DAOTxVersion1,
		Type:    tx.DAOTxTypeFinalize,
		PubKey:  key.PubKey().Bytes(),
		Tx:      &tx.FinalizeTx{Proposal: 1},
	}
	require.NoError(t, btx.Sign("test-chain", key.Sign))

	ok, err := st.Verify(btx, false)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, st.IncNonce(btx.PubKey))
	_, err = st.Verify(btx, false)
	require.ErrorIs(t, err, ErrTxNonceInvalid)

	a, err := st.GetAccount(btx.Signer())
	require.NoError(t, err)
	require.Equal(t, uint64(1), a.Nonce)

	btx.Nonce = 3
	require.NoError(t, btx.Sign("test-chain", key.Sign))
	_, err = st.Verify(btx, false)
	require.ErrorIs(t, err, ErrTxNonceInvalid)
	ok, err = st.Verify(btx, true)
	require.NoError(t, err)
	require.True(t, ok)

	btx.Nonce = 1
	require.NoError(t, btx.Sign("other-chain", key.Sign))
	_, err = st.Verify(btx, false)
	require.ErrorIs(t, err, ErrTxSigInvalid)
}

func TestMintTo(t *testing.T) {
	st := newTestState(t)
	require.ErrorIs(t, st.MintTo(types.DefaultDenom, alice, 1), ErrMintNoexists)
	require.NoError(t, st.AddMint(types.Mint{Denom: types.DefaultDenom, Authority: "dao/1"}))
	require.ErrorIs(t, st.AddMint(types.Mint{Denom: types.DefaultDenom}), ErrMintAlreadyExists)

	require.NoError(t, st.MintTo(types.DefaultDenom, alice, 7))
	require.NoError(t, st.MintTo(types.DefaultDenom, bob, 3))
	bal, err := st.Balance(types.DefaultDenom, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(7), bal)
	m, err := st.GetMint(types.DefaultDenom)
	require.NoError(t, err)
	require.Equal(t, uint64(10), m.Supply)

	require.ErrorIs(t, st.MintTo(types.DefaultDenom, alice, ^uint64(0)), ErrBalanceOverflow)
}

func TestNewParams(t *testing.T) {
	gp := testGovParams()
	gp.VotingPeriod = 0
	_, err := NewParams(gp)
	require.ErrorIs(t, err, ErrInvalidParams)

	gp = testGovParams()
	gp.Capacity.MaxOptions = 0
	_, err = NewParams(gp)
	require.ErrorIs(t, err, ErrInvalidParams)

	gp = types.GovParams{VotingPeriod: 90, NoOpOptions: []uint32{1, 3}, Capacity: types.DefaultCapacity()}
	p, err := NewParams(gp)
	require.NoError(t, err)
	require.Equal(t, uint64(90), p.VotingPeriod)
	require.True(t, p.IsNoOp(3))
	require.False(t, p.IsNoOp(0))
	require.Equal(t, gp, p.Gov())
}

func TestParamsPersistAcrossRestart(t *testing.T) {
	gp := types.GovParams{
		VotingPeriod: 42,
		NoOpOptions:  []uint32{2},
		Capacity:     types.DefaultCapacity(),
	}
	gp.Capacity.MaxOptions = 3

	ldb := dbm.NewMemDB()
	db, err := newStateDB(ldb, cmtlog.NewNopLogger())
	require.NoError(t, err)
	require.Equal(t, types.DefaultGovParams(), db.State().Params().Gov())

	st := db.NewState()
	require.NoError(t, st.SetParams(gp))
	require.ErrorIs(t, st.SetParams(types.GovParams{}), ErrInvalidParams)
	_, err = st.Update()
	require.NoError(t, err)
	_, err = db.SetState(st)
	require.NoError(t, err)

	next := db.NewState()
	require.Equal(t, gp, next.Params().Gov())
	require.Equal(t, gp, next.Clone().Params().Gov())

	reopened, err := newStateDB(ldb, cmtlog.NewNopLogger())
	require.NoError(t, err)
	require.Equal(t, gp, reopened.State().Params().Gov())
	require.Equal(t, db.Header().Hash, reopened.Header().Hash)

	st = reopened.NewState()
	st.SetTime(time.Unix(testStartTime, 0))
	registry := createRegistry(t, st, alice, bob)
	_, err = st.CreateProposal(&tx.ProposalTx{
		Registry: registry,
		Options:  []types.ProposalOption{{Label: "a"}, {Label: "b"}, {Label: "c"}, {Label: "d"}},
	}, alice, false)
	require.ErrorIs(t, err, types.ErrCapacityExceeded)
	idx := createProposal(t, st, registry, alice, yesNo()...)
	p, err := st.GetProposal(idx)
	require.NoError(t, err)
	require.Equal(t, uint64(testStartTime+42), p.WindowEnd)
}
