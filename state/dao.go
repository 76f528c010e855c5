package state

import (
	"errors"
	"fmt"

	"github.com/calehh/dao-app/tx"
	"github.com/calehh/dao-app/types"
)

var (
	ErrNotEnoughMembers     = errors.New("not enough members")
	ErrInvalidMember        = errors.New("invalid member address")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrAlreadyVoted         = errors.New("already voted")
	ErrInvalidOption        = errors.New("invalid option")
	ErrNoOptions            = errors.New("proposal has no options")
	ErrInvalidWindow        = errors.New("invalid voting window")
	ErrVotingStillActive    = errors.New("voting still active")
	ErrAlreadyFinalized     = errors.New("already finalized")
	ErrProposalNotFinalized = errors.New("proposal not finalized")
	ErrAlreadyExecuted      = errors.New("already executed")
	ErrRegistryNotFound     = errors.New("registry noexists")
	ErrProposalNotFound     = errors.New("proposal noexists")
	ErrRegistryMismatch     = errors.New("registry does not match proposal")
	ErrUnknownAction        = errors.New("unknown action")
	ErrCapabilityCount      = errors.New("capability count mismatch")
	ErrActionFailed         = errors.New("external action failed")
)

// InitializeDAO creates a membership registry. Members are stored as given,
// duplicates included.
func (s *State) InitializeDAO(ctx *tx.CreateRegistryTx, creator types.Address, checkOnly bool) (event *types.EventRegistry, err error) {
	if len(ctx.Members) < 2 {
		err = ErrNotEnoughMembers
		return
	}
	if err = s.params.Layout.Capacity().CheckMembers(len(ctx.Members)); err != nil {
		return
	}
	for i, m := range ctx.Members {
		if len(m) != types.AddressSize {
			err = fmt.Errorf("%w: members[%d]", ErrInvalidMember, i)
			return
		}
	}
	r := &types.Registry{
		Index:   s.header.RegistryIdx + 1,
		Creator: append(types.Address(nil), creator...),
		Members: make([]types.Address, len(ctx.Members)),
	}
	for i, m := range ctx.Members {
		r.Members[i] = append(types.Address(nil), m...)
	}
	if _, err = s.params.Layout.EncodeRegistry(r); err != nil {
		return
	}
	if checkOnly {
		return
	}
	s.logger.Debug("apply create registry", "registry", r.Index, "members", len(r.Members), "height", s.header.Height)
	s.header.RegistryIdx = r.Index
	s.registries[r.Index] = r
	s.modifiedRegistries[r.Index] |= ModifiedFlagNew

	event = &types.EventRegistry{
		Registry: r.Index,
		Creator:  r.Creator.String(),
		Members:  make([]string, len(r.Members)),
	}
	for i, m := range r.Members {
		event.Members[i] = m.String()
	}
	return
}

// CreateProposal opens a proposal whose voting window starts at the current
// ledger time. Options, including any tallies, are copied verbatim.
func (s *State) CreateProposal(ptx *tx.ProposalTx, proposer types.Address, checkOnly bool) (event *types.EventProposal, err error) {
	if len(ptx.Options) == 0 {
		err = ErrNoOptions
		return
	}
	if err = s.params.Layout.Capacity().CheckProposal(ptx.Title, ptx.Body, ptx.Options, ptx.Action); err != nil {
		return
	}
	registry, err := s.GetRegistry(ptx.Registry)
	if err != nil {
		return
	}
	if !registry.IsMember(proposer) {
		err = ErrUnauthorized
		return
	}
	start := s.header.Time
	end := types.SaturatingAdd(start, s.params.VotingPeriod)
	if end <= start {
		err = ErrInvalidWindow
		return
	}
	if checkOnly {
		return
	}

	p := &types.Proposal{
		Index:       s.header.ProposalIdx + 1,
		Registry:    registry.Index,
		Proposer:    append(types.Address(nil), proposer...),
		Title:       ptx.Title,
		Body:        ptx.Body,
		Options:     make([]types.ProposalOption, len(ptx.Options)),
		Ballots:     []types.Address{},
		WindowStart: start,
		WindowEnd:   end,
		Action: types.ExternalAction{
			Target:  ptx.Action.Target,
			Payload: append([]byte(nil), ptx.Action.Payload...),
		},
	}
	copy(p.Options, ptx.Options)
	s.logger.Debug("apply proposal", "proposal", p.Index, "registry", p.Registry, "height", s.header.Height)
	s.header.ProposalIdx = p.Index
	s.putProposal(p, ModifiedFlagNew)

	event = &types.EventProposal{
		Proposal:    p.Index,
		Registry:    p.Registry,
		Proposer:    p.Proposer.String(),
		Title:       p.Title,
		Options:     uint64(len(p.Options)),
		WindowStart: p.WindowStart,
		WindowEnd:   p.WindowEnd,
		Target:      p.Action.Target,
	}
	return
}

// CastVote records one ballot. The checks run in a fixed order: membership,
// then double voting, then the option range. Votes are accepted regardless
// of the voting window.
func (s *State) CastVote(vtx *tx.VoteTx, voter types.Address, checkOnly bool) (event *types.EventVote, err error) {
	p, err := s.GetProposal(vtx.Proposal)
	if err != nil {
		return
	}
	registry, err := s.GetRegistry(vtx.Registry)
	if err != nil {
		return
	}
	if p.Registry != registry.Index {
		err = ErrRegistryMismatch
		return
	}
	if !registry.IsMember(voter) {
		err = ErrUnauthorized
		return
	}
	if p.HasVoted(voter) {
		err = ErrAlreadyVoted
		return
	}
	if int(vtx.Option) >= len(p.Options) {
		err = ErrInvalidOption
		return
	}
	if checkOnly {
		return
	}

	p = p.Clone()
	p.Ballots = append(p.Ballots, append(types.Address(nil), voter...))
	opt := &p.Options[vtx.Option]
	opt.Tally = types.SaturatingAdd(opt.Tally, 1)
	s.putProposal(p, ModifiedFlagMod)

	event = &types.EventVote{
		Proposal: p.Index,
		Registry: p.Registry,
		Voter:    voter.String(),
		Option:   vtx.Option,
		Tally:    opt.Tally,
	}
	return
}

// Finalize freezes the winning option once the ledger time is past the
// window end.
func (s *State) Finalize(ftx *tx.FinalizeTx, checkOnly bool) (event *types.EventFinalize, err error) {
	p, err := s.GetProposal(ftx.Proposal)
	if err != nil {
		return
	}
	if s.header.Time <= p.WindowEnd {
		err = ErrVotingStillActive
		return
	}
	if p.Finalized {
		err = ErrAlreadyFinalized
		return
	}
	winner := types.SelectWinner(p.Options)
	if checkOnly {
		return
	}

	p = p.Clone()
	p.Finalized = true
	p.Winner = winner
	s.putProposal(p, ModifiedFlagMod)

	event = &types.EventFinalize{
		Proposal: p.Index,
		Winner:   winner,
		Tallies:  make([]uint64, len(p.Options)),
	}
	for i, o := range p.Options {
		event.Tallies[i] = o.Tally
	}
	return
}

// Execute runs the delegated action of a finalized proposal at most once.
// A no-op outcome, or a proposal without an action, is marked executed
// without invoking anything. A failing action leaves the proposal and the
// ledger untouched.
func (s *State) Execute(etx *tx.ExecuteTx, executor types.Address, resolver ActionResolver, checkOnly bool) (event *types.EventExecute, err error) {
	p, err := s.GetProposal(etx.Proposal)
	if err != nil {
		return
	}
	winner, ok := p.Outcome()
	if !ok {
		err = ErrProposalNotFinalized
		return
	}
	if p.Executed {
		err = ErrAlreadyExecuted
		return
	}

	invoke := !s.params.IsNoOp(winner) && !p.Action.Empty()
	var action ExternalAction
	if invoke {
		if resolver == nil {
			err = fmt.Errorf("%w: %s", ErrUnknownAction, p.Action.Target)
			return
		}
		action, ok = resolver.Resolve(p.Action.Target)
		if !ok {
			err = fmt.Errorf("%w: %s", ErrUnknownAction, p.Action.Target)
			return
		}
		if err = s.params.Layout.Capacity().CheckCapabilities(len(etx.Capabilities)); err != nil {
			return
		}
		if len(etx.Capabilities) != action.Arity() {
			err = fmt.Errorf("%w: got %d, want %d", ErrCapabilityCount, len(etx.Capabilities), action.Arity())
			return
		}
	}
	if checkOnly {
		return
	}

	if invoke {
		journal := s.snapshotLedger()
		actx := ActionContext{
			Ledger:   s,
			Registry: p.Registry,
			Proposal: p.Index,
			Executor: executor,
			Height:   s.header.Height,
		}
		caps := append([]types.Capability(nil), etx.Capabilities...)
		if err = action.Invoke(actx, p.Action.Payload, caps); err != nil {
			s.restoreLedger(journal)
			s.logger.Info("external action failed", "proposal", p.Index, "target", p.Action.Target, "err", err)
			err = fmt.Errorf("%w: %w", ErrActionFailed, err)
			return
		}
	}

	p = p.Clone()
	p.Executed = true
	s.putProposal(p, ModifiedFlagMod)

	event = &types.EventExecute{
		Proposal: p.Index,
		Winner:   winner,
		Target:   p.Action.Target,
		Invoked:  invoke,
		Executor: executor.String(),
	}
	return
}
