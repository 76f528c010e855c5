package state

import (
	"bytes"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/calehh/dao-app/tx"
	"github.com/calehh/dao-app/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/stretchr/testify/require"
)

const (
	testVotingPeriod = 100
	testStartTime    = 1_000
	testTarget       = "test/count"
)

var (
	alice   = addr(1)
	bob     = addr(2)
	carol   = addr(3)
	mallory = addr(9)
)

func addr(b byte) types.Address {
	return types.Address(bytes.Repeat([]byte{b}, types.AddressSize))
}

type countingAction struct {
	arity int
	err   error
	mint  uint64
	calls []countedCall
}

type countedCall struct {
	ctx     ActionContext
	payload []byte
	caps    []types.Capability
}

func (a *countingAction) Arity() int {
	return a.arity
}

func (a *countingAction) Invoke(ctx ActionContext, payload []byte, caps []types.Capability) error {
	a.calls = append(a.calls, countedCall{ctx: ctx, payload: payload, caps: caps})
	if a.mint > 0 {
		if err := ctx.Ledger.MintTo(types.DefaultDenom, ctx.Executor, a.mint); err != nil {
			return err
		}
	}
	return a.err
}

type resolver map[string]ExternalAction

func (r resolver) Resolve(target string) (ExternalAction, bool) {
	a, ok := r[target]
	return a, ok
}

func testGovParams() types.GovParams {
	return types.GovParams{
		VotingPeriod: testVotingPeriod,
		NoOpOptions:  []uint32{1},
		Capacity:     types.DefaultCapacity(),
	}
}

func newTestDB(t *testing.T) *StateDB {
	t.Helper()
	db, err := NewMemStateDB(cmtlog.NewNopLogger())
	require.NoError(t, err)
	return db
}

func newTestState(t *testing.T) *State {
	t.Helper()
	st := newTestDB(t).NewState()
	require.NoError(t, st.SetParams(testGovParams()))
	st.SetChainId("test-chain")
	st.SetTime(time.Unix(testStartTime, 0))
	return st
}

func createRegistry(t *testing.T, st *State, members ...types.Address) uint64 {
	t.Helper()
	ev, err := st.InitializeDAO(&tx.CreateRegistryTx{Members: members}, members[0], false)
	require.NoError(t, err)
	return ev.Registry
}

func createProposal(t *testing.T, st *State, registry uint64, proposer types.Address, options ...types.ProposalOption) uint64 {
	t.Helper()
	ev, err := st.CreateProposal(&tx.ProposalTx{
		Registry: registry,
		Title:    "spend",
		Body:     "spend the treasury",
		Options:  options,
		Action:   types.ExternalAction{Target: testTarget, Payload: []byte{0x2a}},
	}, proposer, false)
	require.NoError(t, err)
	return ev.Proposal
}

func yesNo() []types.ProposalOption {
	return []types.ProposalOption{{Label: "yes"}, {Label: "no"}}
}

func vote(t *testing.T, st *State, registry, proposal uint64, voter types.Address, option uint32) {
	t.Helper()
	_, err := st.CastVote(&tx.VoteTx{Registry: registry, Proposal: proposal, Option: option}, voter, false)
	require.NoError(t, err)
}

func closeWindow(st *State) {
	st.SetTime(time.Unix(testStartTime+testVotingPeriod+1, 0))
}

func TestInitializeDAO(t *testing.T) {
	tests := map[string]struct {
		members     []types.Address
		expectedErr error
	}{
		"two members":      {members: []types.Address{alice, bob}},
		"duplicates kept":  {members: []types.Address{alice, alice}},
		"single member":    {members: []types.Address{alice}, expectedErr: ErrNotEnoughMembers},
		"no members":       {members: nil, expectedErr: ErrNotEnoughMembers},
		"bad member bytes": {members: []types.Address{alice, {1, 2}}, expectedErr: ErrInvalidMember},
		"over capacity": {
			members:     make([]types.Address, types.DefaultCapacity().MaxMembers+1),
			expectedErr: types.ErrCapacityExceeded,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			st := newTestState(t)
			ev, err := st.InitializeDAO(&tx.CreateRegistryTx{Members: tt.members}, alice, false)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				require.Zero(t, st.Header().RegistryIdx)
				return
			}
			require.NoError(t, err)
			r, err := st.GetRegistry(ev.Registry)
			require.NoError(t, err)
			require.Equal(t, tt.members, r.Members)
			require.True(t, r.IsMember(tt.members[1]))
			require.False(t, r.IsMember(mallory))
		})
	}
}

func TestInitializeDAOCheckOnly(t *testing.T) {
	st := newTestState(t)
	ev, err := st.InitializeDAO(&tx.CreateRegistryTx{Members: []types.Address{alice, bob}}, alice, true)
	require.NoError(t, err)
	require.Nil(t, ev)
	require.Zero(t, st.Header().RegistryIdx)
}

func TestCreateProposal(t *testing.T) {
	st := newTestState(t)
	registry := createRegistry(t, st, alice, bob, carol)

	options := []types.ProposalOption{{Label: "a", Tally: 5}, {Label: "b"}}
	idx := createProposal(t, st, registry, bob, options...)
	p, err := st.GetProposal(idx)
	require.NoError(t, err)
	require.Equal(t, uint64(testStartTime), p.WindowStart)
	require.Equal(t, uint64(testStartTime+testVotingPeriod), p.WindowEnd)
	require.Equal(t, options, p.Options)
	require.False(t, p.Finalized)
	require.False(t, p.Executed)
	require.Equal(t, bob, p.Proposer)

	tests := map[string]struct {
		ptx         *tx.ProposalTx
		proposer    types.Address
		expectedErr error
	}{
		"non member": {
			ptx:         &tx.ProposalTx{Registry: registry, Options: yesNo()},
			proposer:    mallory,
			expectedErr: ErrUnauthorized,
		},
		"unknown registry": {
			ptx:         &tx.ProposalTx{Registry: registry + 1, Options: yesNo()},
			proposer:    alice,
			expectedErr: ErrRegistryNotFound,
		},
		"no options": {
			ptx:         &tx.ProposalTx{Registry: registry},
			proposer:    alice,
			expectedErr: ErrNoOptions,
		},
		"title over capacity": {
			ptx:         &tx.ProposalTx{Registry: registry, Title: string(make([]byte, 101)), Options: yesNo()},
			proposer:    alice,
			expectedErr: types.ErrCapacityExceeded,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := st.CreateProposal(tt.ptx, tt.proposer, false)
			require.ErrorIs(t, err, tt.expectedErr)
			require.Equal(t, idx, st.Header().ProposalIdx)
		})
	}
}

func TestCastVoteCheckOrder(t *testing.T) {
	st := newTestState(t)
	registry := createRegistry(t, st, alice, bob)
	idx := createProposal(t, st, registry, alice, yesNo()...)
	vote(t, st, registry, idx, alice, 0)

	tests := map[string]struct {
		voter       types.Address
		option      uint32
		expectedErr error
	}{
		"non member with bad option":    {voter: mallory, option: 7, expectedErr: ErrUnauthorized},
		"repeat voter with bad option":  {voter: alice, option: 7, expectedErr: ErrAlreadyVoted},
		"repeat voter with good option": {voter: alice, option: 1, expectedErr: ErrAlreadyVoted},
		"fresh voter with bad option":   {voter: bob, option: 2, expectedErr: ErrInvalidOption},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := st.CastVote(&tx.VoteTx{Registry: registry, Proposal: idx, Option: tt.option}, tt.voter, false)
			require.ErrorIs(t, err, tt.expectedErr)
		})
	}

	p, err := st.GetProposal(idx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), p.Options[0].Tally)
	require.Equal(t, uint64(0), p.Options[1].Tally)
	require.Len(t, p.Ballots, 1)
}

func TestCastVoteLookups(t *testing.T) {
	st := newTestState(t)
	r1 := createRegistry(t, st, alice, bob)
	r2 := createRegistry(t, st, alice, carol)
	idx := createProposal(t, st, r1, alice, yesNo()...)

	_, err := st.CastVote(&tx.VoteTx{Registry: r1, Proposal: idx + 1}, alice, false)
	require.ErrorIs(t, err, ErrProposalNotFound)
	_, err = st.CastVote(&tx.VoteTx{Registry: r2 + 1, Proposal: idx}, alice, false)
	require.ErrorIs(t, err, ErrRegistryNotFound)
	_, err = st.CastVote(&tx.VoteTx{Registry: r2, Proposal: idx}, carol, false)
	require.ErrorIs(t, err, ErrRegistryMismatch)
}

func TestCastVoteSaturates(t *testing.T) {
	st := newTestState(t)
	registry := createRegistry(t, st, alice, bob)
	idx := createProposal(t, st, registry, alice, types.ProposalOption{Label: "full", Tally: math.MaxUint64}, types.ProposalOption{Label: "empty"})

	ev, err := st.CastVote(&tx.VoteTx{Registry: registry, Proposal: idx, Option: 0}, bob, false)
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64), ev.Tally)
	p, err := st.GetProposal(idx)
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64), p.Options[0].Tally)
	require.True(t, p.HasVoted(bob))
}

func TestCastVoteAfterWindowAccepted(t *testing.T) {
	st := newTestState(t)
	registry := createRegistry(t, st, alice, bob)
	idx := createProposal(t, st, registry, alice, yesNo()...)
	closeWindow(st)
	vote(t, st, registry, idx, bob, 1)

	p, err := st.GetProposal(idx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), p.Options[1].Tally)
}

func TestCastVoteCheckOnly(t *testing.T) {
	st := newTestState(t)
	registry := createRegistry(t, st, alice, bob)
	idx := createProposal(t, st, registry, alice, yesNo()...)
	_, err := st.CastVote(&tx.VoteTx{Registry: registry, Proposal: idx, Option: 0}, bob, true)
	require.NoError(t, err)
	p, err := st.GetProposal(idx)
	require.NoError(t, err)
	require.Zero(t, p.Options[0].Tally)
	require.Empty(t, p.Ballots)
}

func TestFinalize(t *testing.T) {
	st := newTestState(t)
	registry := createRegistry(t, st, alice, bob, carol)
	idx := createProposal(t, st, registry, alice, yesNo()...)

	_, err := st.Finalize(&tx.FinalizeTx{Proposal: idx}, false)
	require.ErrorIs(t, err, ErrVotingStillActive)

	st.SetTime(time.Unix(testStartTime+testVotingPeriod, 0))
	_, err = st.Finalize(&tx.FinalizeTx{Proposal: idx}, false)
	require.ErrorIs(t, err, ErrVotingStillActive)

	closeWindow(st)
	ev, err := st.Finalize(&tx.FinalizeTx{Proposal: idx}, false)
	require.NoError(t, err)
	require.Equal(t, uint32(0), ev.Winner)
	require.Equal(t, []uint64{0, 0}, ev.Tallies)

	_, err = st.Finalize(&tx.FinalizeTx{Proposal: idx}, false)
	require.ErrorIs(t, err, ErrAlreadyFinalized)

	_, err = st.Finalize(&tx.FinalizeTx{Proposal: idx + 1}, false)
	require.ErrorIs(t, err, ErrProposalNotFound)
}

func TestFinalizeTieBreaks(t *testing.T) {
	tests := map[string]struct {
		tallies  []uint64
		expected uint32
	}{
		"equal top tallies":  {tallies: []uint64{3, 3, 1}, expected: 0},
		"no votes":           {tallies: []uint64{0, 0, 0}, expected: 0},
		"tie after a leader": {tallies: []uint64{1, 5, 5}, expected: 1},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			st := newTestState(t)
			registry := createRegistry(t, st, alice, bob)
			options := make([]types.ProposalOption, len(tt.tallies))
			for i, v := range tt.tallies {
				options[i] = types.ProposalOption{Label: "o", Tally: v}
			}
			idx := createProposal(t, st, registry, alice, options...)
			closeWindow(st)
			ev, err := st.Finalize(&tx.FinalizeTx{Proposal: idx}, false)
			require.NoError(t, err)
			require.Equal(t, tt.expected, ev.Winner)
			p, err := st.GetProposal(idx)
			require.NoError(t, err)
			winner, ok := p.Outcome()
			require.True(t, ok)
			require.Equal(t, tt.expected, winner)
		})
	}
}

func TestScenarioWinningOutcomeExecutes(t *testing.T) {
	st := newTestState(t)
	registry := createRegistry(t, st, alice, bob, carol)
	idx := createProposal(t, st, registry, alice, yesNo()...)
	vote(t, st, registry, idx, alice, 0)
	vote(t, st, registry, idx, bob, 0)
	vote(t, st, registry, idx, carol, 1)

	action := &countingAction{arity: 2}
	actions := resolver{testTarget: action}
	etx := &tx.ExecuteTx{Proposal: idx, Capabilities: []types.Capability{"first", "second"}}

	_, err := st.Execute(etx, carol, actions, false)
	require.ErrorIs(t, err, ErrProposalNotFinalized)

	closeWindow(st)
	fin, err := st.Finalize(&tx.FinalizeTx{Proposal: idx}, false)
	require.NoError(t, err)
	require.Equal(t, uint32(0), fin.Winner)
	require.Equal(t, []uint64{2, 1}, fin.Tallies)

	ev, err := st.Execute(etx, carol, actions, false)
	require.NoError(t, err)
	require.True(t, ev.Invoked)
	require.Len(t, action.calls, 1)
	call := action.calls[0]
	require.Equal(t, []types.Capability{"first", "second"}, call.caps)
	require.Equal(t, []byte{0x2a}, call.payload)
	require.Equal(t, registry, call.ctx.Registry)
	require.Equal(t, idx, call.ctx.Proposal)
	require.Equal(t, carol, call.ctx.Executor)

	p, err := st.GetProposal(idx)
	require.NoError(t, err)
	require.True(t, p.Executed)

	_, err = st.Execute(etx, alice, actions, false)
	require.ErrorIs(t, err, ErrAlreadyExecuted)
	require.Len(t, action.calls, 1)
}

func TestScenarioNoOpOutcome(t *testing.T) {
	st := newTestState(t)
	registry := createRegistry(t, st, alice, bob, carol)
	idx := createProposal(t, st, registry, alice, yesNo()...)
	vote(t, st, registry, idx, alice, 1)
	vote(t, st, registry, idx, bob, 1)
	vote(t, st, registry, idx, carol, 1)
	closeWindow(st)
	fin, err := st.Finalize(&tx.FinalizeTx{Proposal: idx}, false)
	require.NoError(t, err)
	require.Equal(t, uint32(1), fin.Winner)

	action := &countingAction{arity: 2}
	ev, err := st.Execute(&tx.ExecuteTx{Proposal: idx}, bob, resolver{testTarget: action}, false)
	require.NoError(t, err)
	require.False(t, ev.Invoked)
	require.Empty(t, action.calls)

	p, err := st.GetProposal(idx)
	require.NoError(t, err)
	require.True(t, p.Executed)
}

func TestExecuteGate(t *testing.T) {
	setup := func(t *testing.T) (*State, uint64) {
		st := newTestState(t)
		require.NoError(t, st.AddMint(types.Mint{Denom: types.DefaultDenom, Authority: "dao/1"}))
		registry := createRegistry(t, st, alice, bob)
		idx := createProposal(t, st, registry, alice, yesNo()...)
		vote(t, st, registry, idx, alice, 0)
		closeWindow(st)
		_, err := st.Finalize(&tx.FinalizeTx{Proposal: idx}, false)
		require.NoError(t, err)
		return st, idx
	}

	t.Run("unknown action", func(t *testing.T) {
		st, idx := setup(t)
		_, err := st.Execute(&tx.ExecuteTx{Proposal: idx}, alice, resolver{}, false)
		require.ErrorIs(t, err, ErrUnknownAction)
	})

	t.Run("capability count", func(t *testing.T) {
		st, idx := setup(t)
		action := &countingAction{arity: 2}
		_, err := st.Execute(&tx.ExecuteTx{Proposal: idx, Capabilities: []types.Capability{"one"}}, alice, resolver{testTarget: action}, false)
		require.ErrorIs(t, err, ErrCapabilityCount)
		require.Empty(t, action.calls)
	})

	t.Run("failing action leaves proposal and ledger untouched", func(t *testing.T) {
		st, idx := setup(t)
		action := &countingAction{err: errors.New("boom"), mint: 5}
		_, err := st.Execute(&tx.ExecuteTx{Proposal: idx}, alice, resolver{testTarget: action}, false)
		require.ErrorIs(t, err, ErrActionFailed)
		require.Len(t, action.calls, 1)

		p, err := st.GetProposal(idx)
		require.NoError(t, err)
		require.False(t, p.Executed)
		bal, err := st.Balance(types.DefaultDenom, alice)
		require.NoError(t, err)
		require.Zero(t, bal)
		m, err := st.GetMint(types.DefaultDenom)
		require.NoError(t, err)
		require.Zero(t, m.Supply)

		action.err = nil
		ev, err := st.Execute(&tx.ExecuteTx{Proposal: idx}, alice, resolver{testTarget: action}, false)
		require.NoError(t, err)
		require.True(t, ev.Invoked)
		bal, err = st.Balance(types.DefaultDenom, alice)
		require.NoError(t, err)
		require.Equal(t, uint64(5), bal)
	})

	t.Run("check only does not invoke", func(t *testing.T) {
		st, idx := setup(t)
		action := &countingAction{}
		ev, err := st.Execute(&tx.ExecuteTx{Proposal: idx}, alice, resolver{testTarget: action}, true)
		require.NoError(t, err)
		require.Nil(t, ev)
		require.Empty(t, action.calls)
	})

	t.Run("too many capabilities", func(t *testing.T) {
		st, idx := setup(t)
		caps := make([]types.Capability, types.DefaultCapacity().MaxCapabilities+1)
		action := &countingAction{arity: len(caps)}
		_, err := st.Execute(&tx.ExecuteTx{Proposal: idx, Capabilities: caps}, alice, resolver{testTarget: action}, false)
		require.ErrorIs(t, err, types.ErrCapacityExceeded)
		require.Empty(t, action.calls)
	})
}

func TestExecuteNoOpIgnoresCapabilities(t *testing.T) {
	st := newTestState(t)
	registry := createRegistry(t, st, alice, bob)
	idx := createProposal(t, st, registry, alice, yesNo()...)
	vote(t, st, registry, idx, alice, 1)
	vote(t, st, registry, idx, bob, 1)
	closeWindow(st)
	_, err := st.Finalize(&tx.FinalizeTx{Proposal: idx}, false)
	require.NoError(t, err)

	// nothing consumes the references of a no-op outcome, so their number is not bounded
	caps := make([]types.Capability, types.DefaultCapacity().MaxCapabilities+1)
	action := &countingAction{arity: 3}
	ev, err := st.Execute(&tx.ExecuteTx{Proposal: idx, Capabilities: caps}, carol, resolver{testTarget: action}, false)
	require.NoError(t, err)
	require.False(t, ev.Invoked)
	require.Empty(t, action.calls)

	p, err := st.GetProposal(idx)
	require.NoError(t, err)
	require.True(t, p.Executed)
}

func TestExecuteWithoutAction(t *testing.T) {
	st := newTestState(t)
	registry := createRegistry(t, st, alice, bob)
	ev, err := st.CreateProposal(&tx.ProposalTx{Registry: registry, Options: yesNo()}, alice, false)
	require.NoError(t, err)
	closeWindow(st)
	_, err = st.Finalize(&tx.FinalizeTx{Proposal: ev.Proposal}, false)
	require.NoError(t, err)
	exec, err := st.Execute(&tx.ExecuteTx{Proposal: ev.Proposal}, bob, nil, false)
	require.NoError(t, err)
	require.False(t, exec.Invoked)
}
