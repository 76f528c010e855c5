package types

import (
	"bytes"
	"math"
)

type ProposalOption struct {
	Label string `json:"label"`
	Tally uint64 `json:"tally"`
}

// ExternalAction names the action to invoke when a proposal passes. An empty
// Target means the proposal carries no delegated action.
type ExternalAction struct {
	Target  string `json:"target"`
	Payload []byte `json:"payload"`
}

func (a ExternalAction) Empty() bool {
	return a.Target == ""
}

// Proposal is the persisted proposal record. Field order is the RLP layout
// and must stay in sync with Layout.ProposalSpace.
type Proposal struct {
	Index       uint64           `json:"index"`
	Registry    uint64           `json:"registry"`
	Proposer    Address          `json:"proposer"`
	Title       string           `json:"title"`
	Body        string           `json:"body"`
	Options     []ProposalOption `json:"options"`
	Ballots     []Address        `json:"ballots"`
	WindowStart uint64           `json:"window_start"`
	WindowEnd   uint64           `json:"window_end"`
	Finalized   bool             `json:"finalized"`
	Winner      uint32           `json:"winner"`
	Executed    bool             `json:"executed"`
	Action      ExternalAction   `json:"action"`
}

func (p *Proposal) HasVoted(voter Address) bool {
	for _, b := range p.Ballots {
		if bytes.Equal(b, voter) {
			return true
		}
	}
	return false
}

// Outcome returns the winning option index once the proposal is finalized.
func (p *Proposal) Outcome() (winner uint32, ok bool) {
	if !p.Finalized {
		return 0, false
	}
	return p.Winner, true
}

func (p *Proposal) Status(now uint64) ProposalStatus {
	switch {
	case p.Executed:
		return ProposalStatusExecuted
	case p.Finalized:
		return ProposalStatusFinalized
	case now > p.WindowEnd:
		return ProposalStatusClosed
	default:
		return ProposalStatusActive
	}
}

func (p *Proposal) Clone() *Proposal {
	n := *p
	n.Proposer = cloneAddress(p.Proposer)
	n.Options = make([]ProposalOption, len(p.Options))
	copy(n.Options, p.Options)
	n.Ballots = make([]Address, len(p.Ballots))
	for i, b := range p.Ballots {
		n.Ballots[i] = cloneAddress(b)
	}
	if p.Action.Payload != nil {
		n.Action.Payload = append([]byte(nil), p.Action.Payload...)
	}
	return &n
}

// SelectWinner scans options in index order. Only a strictly greater tally
// replaces the running winner, so ties go to the lowest index and an
// all-zero proposal resolves to option 0.
func SelectWinner(options []ProposalOption) uint32 {
	var (
		max    uint64
		winner uint32
	)
	for i, o := range options {
		if o.Tally > max {
			max = o.Tally
			winner = uint32(i)
		}
	}
	return winner
}

func SaturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

type ProposalStatus uint64

const (
	ProposalStatusActive    ProposalStatus = 1
	ProposalStatusClosed    ProposalStatus = 2
	ProposalStatusFinalized ProposalStatus = 3
	ProposalStatusExecuted  ProposalStatus = 4
)

func (s ProposalStatus) String() string {
	switch s {
	case ProposalStatusActive:
		return "active"
	case ProposalStatusClosed:
		return "closed"
	case ProposalStatusFinalized:
		return "finalized"
	case ProposalStatusExecuted:
		return "executed"
	default:
		return "unknown"
	}
}
