package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/calehh/dao-app/action"
	"github.com/calehh/dao-app/tx"
	"github.com/calehh/dao-app/types"
	"github.com/spf13/cobra"
)

type createDAOArguments struct {
	txArguments
	Members []string
}

var createDAOArgs createDAOArguments

var createDAOCmd = &cobra.Command{
	Use:   "create-dao",
	Short: "Create a member registry",
	RunE:  createDAORun,
}

func init() {
	txFlags(createDAOCmd, &createDAOArgs.txArguments)
	createDAOCmd.Flags().StringSliceVarP(&createDAOArgs.Members, "member", "m", nil, "member address, repeat for each member")
}

func createDAORun(cmd *cobra.Command, args []string) error {
	members := make([]types.Address, 0, len(createDAOArgs.Members))
	for _, m := range createDAOArgs.Members {
		addr, err := types.ParseAddress(m)
		if err != nil {
			return fmt.Errorf("invalid member %q: %w", m, err)
		}
		members = append(members, addr)
	}
	return broadcast(&createDAOArgs.txArguments, tx.DAOTxTypeCreateRegistry, &tx.CreateRegistryTx{Members: members})
}

type proposeArguments struct {
	txArguments
	Registry uint64
	Title    string
	Body     string
	Options  []string
	Target   string
	Payload  string
	Amount   uint64
}

var proposeArgs proposeArguments

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Open a proposal in a registry",
	RunE:  proposeRun,
}

func init() {
	txFlags(proposeCmd, &proposeArgs.txArguments)
	proposeCmd.Flags().Uint64VarP(&proposeArgs.Registry, "registry", "r", 0, "registry index")
	proposeCmd.Flags().StringVarP(&proposeArgs.Title, "title", "t", "", "proposal title")
	proposeCmd.Flags().StringVarP(&proposeArgs.Body, "body", "b", "", "proposal body")
	proposeCmd.Flags().StringSliceVarP(&proposeArgs.Options, "option", "o", nil, "option as label or label=tally, repeat for each option")
	proposeCmd.Flags().StringVarP(&proposeArgs.Target, "target", "", "", "external action target, e.g. "+action.MintTarget)
	proposeCmd.Flags().StringVarP(&proposeArgs.Payload, "payload", "", "", "hex encoded action payload")
	proposeCmd.Flags().Uint64VarP(&proposeArgs.Amount, "amount", "a", 0, "mint amount, builds the payload of "+action.MintTarget)
}

// parseOption reads "label" or "label=tally".
func parseOption(s string) (o types.ProposalOption, err error) {
	label, tally, found := strings.Cut(s, "=")
	o.Label = label
	if found {
		o.Tally, err = strconv.ParseUint(tally, 10, 64)
	}
	return
}

func proposeRun(cmd *cobra.Command, args []string) error {
	options := make([]types.ProposalOption, 0, len(proposeArgs.Options))
	for _, s := range proposeArgs.Options {
		o, err := parseOption(s)
		if err != nil {
			return fmt.Errorf("invalid option %q: %w", s, err)
		}
		options = append(options, o)
	}
	act := types.ExternalAction{Target: proposeArgs.Target}
	switch {
	case proposeArgs.Payload != "":
		payload, err := hex.DecodeString(strings.TrimPrefix(proposeArgs.Payload, "0x"))
		if err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		act.Payload = payload
	case proposeArgs.Amount != 0:
		payload, err := action.EncodeMintPayload(proposeArgs.Amount)
		if err != nil {
			return err
		}
		act.Payload = payload
	}
	ptx := &tx.ProposalTx{
		Registry: proposeArgs.Registry,
		Title:    proposeArgs.Title,
		Body:     proposeArgs.Body,
		Options:  options,
		Action:   act,
	}
	return broadcast(&proposeArgs.txArguments, tx.DAOTxTypeProposal, ptx)
}

type voteArguments struct {
	txArguments
	Registry uint64
	Proposal uint64
	Option   uint32
}

var voteArgs voteArguments

var voteCmd = &cobra.Command{
	Use:   "vote",
	Short: "Cast a ballot on a proposal",
	RunE:  voteRun,
}

func init() {
	txFlags(voteCmd, &voteArgs.txArguments)
	voteCmd.Flags().Uint64VarP(&voteArgs.Registry, "registry", "r", 0, "registry index")
	voteCmd.Flags().Uint64VarP(&voteArgs.Proposal, "proposal", "p", 0, "proposal index")
	voteCmd.Flags().Uint32VarP(&voteArgs.Option, "option", "o", 0, "option index")
}

func voteRun(cmd *cobra.Command, args []string) error {
	vtx := &tx.VoteTx{
		Registry: voteArgs.Registry,
		Proposal: voteArgs.Proposal,
		Option:   voteArgs.Option,
	}
	return broadcast(&voteArgs.txArguments, tx.DAOTxTypeVote, vtx)
}

type finalizeArguments struct {
	txArguments
	Proposal uint64
}

var finalizeArgs finalizeArguments

var finalizeCmd = &cobra.Command{
	Use:   "finalize",
	Short: "Close voting on a proposal and record the winner",
	RunE:  finalizeRun,
}

func init() {
	txFlags(finalizeCmd, &finalizeArgs.txArguments)
	finalizeCmd.Flags().Uint64VarP(&finalizeArgs.Proposal, "proposal", "p", 0, "proposal index")
}

func finalizeRun(cmd *cobra.Command, args []string) error {
	return broadcast(&finalizeArgs.txArguments, tx.DAOTxTypeFinalize, &tx.FinalizeTx{Proposal: finalizeArgs.Proposal})
}

type executeArguments struct {
	txArguments
	Proposal     uint64
	Capabilities []string
}

var executeArgs executeArguments

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Execute the outcome of a finalized proposal",
	RunE:  executeRun,
}

func init() {
	txFlags(executeCmd, &executeArgs.txArguments)
	executeCmd.Flags().Uint64VarP(&executeArgs.Proposal, "proposal", "p", 0, "proposal index")
	executeCmd.Flags().StringSliceVarP(&executeArgs.Capabilities, "cap", "c", nil, "positional action capability, repeat in order")
}

func executeRun(cmd *cobra.Command, args []string) error {
	caps := make([]types.Capability, len(executeArgs.Capabilities))
	for i, c := range executeArgs.Capabilities {
		caps[i] = types.Capability(c)
	}
	etx := &tx.ExecuteTx{
		Proposal:     executeArgs.Proposal,
		Capabilities: caps,
	}
	return broadcast(&executeArgs.txArguments, tx.DAOTxTypeExecute, etx)
}
