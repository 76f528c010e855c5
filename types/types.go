package types

import (
	"fmt"
	"strconv"
	"strings"

	abci "github.com/cometbft/cometbft/abci/types"
)

const (
	EventRegistryType = "dao_registry"
	EventProposalType = "dao_proposal"
	EventVoteType     = "dao_vote"
	EventFinalizeType = "dao_finalize"
	EventExecuteType  = "dao_execute"
)

type EventRegistry struct {
	Registry uint64   `json:"registry"`
	Creator  string   `json:"creator"`
	Members  []string `json:"members"`
}

func EncodeEventRegistry(event *EventRegistry) abci.Event {
	return abci.Event{
		Type: EventRegistryType,
		Attributes: []abci.EventAttribute{
			{Key: "registry", Value: fmt.Sprintf("%v", event.Registry), Index: true},
			{Key: "creator", Value: event.Creator, Index: true},
			{Key: "members", Value: strings.Join(event.Members, ","), Index: false},
		},
	}
}

func DecodeEventRegistry(originEvent abci.Event) *EventRegistry {
	event := &EventRegistry{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "registry":
			registry, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Registry = registry
		case "creator":
			event.Creator = v.Value
		case "members":
			if v.Value != "" {
				event.Members = strings.Split(v.Value, ",")
			}
		}
	}
	return event
}

type EventProposal struct {
	Proposal    uint64 `json:"proposal"`
	Registry    uint64 `json:"registry"`
	Proposer    string `json:"proposer"`
	Title       string `json:"title"`
	Options     uint64 `json:"options"`
	WindowStart uint64 `json:"windowStart"`
	WindowEnd   uint64 `json:"windowEnd"`
	Target      string `json:"target"`
}

func EncodeEventProposal(event *EventProposal) abci.Event {
	return abci.Event{
		Type: EventProposalType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.Proposal), Index: true},
			{Key: "registry", Value: fmt.Sprintf("%v", event.Registry), Index: true},
			{Key: "proposer", Value: event.Proposer, Index: true},
			{Key: "title", Value: event.Title, Index: false},
			{Key: "options", Value: fmt.Sprintf("%v", event.Options), Index: false},
			{Key: "windowStart", Value: fmt.Sprintf("%v", event.WindowStart), Index: false},
			{Key: "windowEnd", Value: fmt.Sprintf("%v", event.WindowEnd), Index: false},
			{Key: "target", Value: event.Target, Index: false},
		},
	}
}

func DecodeEventProposal(originEvent abci.Event) *EventProposal {
	event := &EventProposal{}
	for _, v := range originEvent.Attributes {
		var err error
		switch v.Key {
		case "proposal":
			event.Proposal, err = strconv.ParseUint(v.Value, 10, 64)
		case "registry":
			event.Registry, err = strconv.ParseUint(v.Value, 10, 64)
		case "proposer":
			event.Proposer = v.Value
		case "title":
			event.Title = v.Value
		case "options":
			event.Options, err = strconv.ParseUint(v.Value, 10, 64)
		case "windowStart":
			event.WindowStart, err = strconv.ParseUint(v.Value, 10, 64)
		case "windowEnd":
			event.WindowEnd, err = strconv.ParseUint(v.Value, 10, 64)
		case "target":
			event.Target = v.Value
		}
		if err != nil {
			return nil
		}
	}
	return event
}

type EventVote struct {
	Proposal uint64 `json:"proposal"`
	Registry uint64 `json:"registry"`
	Voter    string `json:"voter"`
	Option   uint32 `json:"option"`
	Tally    uint64 `json:"tally"`
}

func EncodeEventVote(event *EventVote) abci.Event {
	return abci.Event{
		Type: EventVoteType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.Proposal), Index: true},
			{Key: "registry", Value: fmt.Sprintf("%v", event.Registry), Index: false},
			{Key: "voter", Value: event.Voter, Index: true},
			{Key: "option", Value: fmt.Sprintf("%v", event.Option), Index: false},
			{Key: "tally", Value: fmt.Sprintf("%v", event.Tally), Index: false},
		},
	}
}

func DecodeEventVote(originEvent abci.Event) *EventVote {
	event := &EventVote{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Proposal = proposal
		case "registry":
			registry, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Registry = registry
		case "voter":
			event.Voter = v.Value
		case "option":
			option, err := strconv.ParseUint(v.Value, 10, 32)
			if err != nil {
				return nil
			}
			event.Option = uint32(option)
		case "tally":
			tally, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Tally = tally
		}
	}
	return event
}

type EventFinalize struct {
	Proposal uint64   `json:"proposal"`
	Winner   uint32   `json:"winner"`
	Tallies  []uint64 `json:"tallies"`
}

func EncodeEventFinalize(event *EventFinalize) abci.Event {
	tallies := make([]string, len(event.Tallies))
	for i, t := range event.Tallies {
		tallies[i] = strconv.FormatUint(t, 10)
	}
	return abci.Event{
		Type: EventFinalizeType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.Proposal), Index: true},
			{Key: "winner", Value: fmt.Sprintf("%v", event.Winner), Index: false},
			{Key: "tallies", Value: strings.Join(tallies, ","), Index: false},
		},
	}
}

func DecodeEventFinalize(originEvent abci.Event) *EventFinalize {
	event := &EventFinalize{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Proposal = proposal
		case "winner":
			winner, err := strconv.ParseUint(v.Value, 10, 32)
			if err != nil {
				return nil
			}
			event.Winner = uint32(winner)
		case "tallies":
			if v.Value == "" {
				continue
			}
			for _, s := range strings.Split(v.Value, ",") {
				t, err := strconv.ParseUint(s, 10, 64)
				if err != nil {
					return nil
				}
				event.Tallies = append(event.Tallies, t)
			}
		}
	}
	return event
}

type EventExecute struct {
	Proposal uint64 `json:"proposal"`
	Winner   uint32 `json:"winner"`
	Target   string `json:"target"`
	Invoked  bool   `json:"invoked"`
	Executor string `json:"executor"`
}

func EncodeEventExecute(event *EventExecute) abci.Event {
	return abci.Event{
		Type: EventExecuteType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.Proposal), Index: true},
			{Key: "winner", Value: fmt.Sprintf("%v", event.Winner), Index: false},
			{Key: "target", Value: event.Target, Index: false},
			{Key: "invoked", Value: strconv.FormatBool(event.Invoked), Index: false},
			{Key: "executor", Value: event.Executor, Index: true},
		},
	}
}

func DecodeEventExecute(originEvent abci.Event) *EventExecute {
	event := &EventExecute{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Proposal = proposal
		case "winner":
			winner, err := strconv.ParseUint(v.Value, 10, 32)
			if err != nil {
				return nil
			}
			event.Winner = uint32(winner)
		case "target":
			event.Target = v.Value
		case "invoked":
			invoked, err := strconv.ParseBool(v.Value)
			if err != nil {
				return nil
			}
			event.Invoked = invoked
		case "executor":
			event.Executor = v.Value
		}
	}
	return event
}
