package main

import (
	"fmt"

	"github.com/calehh/dao-app/crypto"
	"github.com/calehh/dao-app/types"
	"github.com/cometbft/cometbft/rpc/client/http"
	"github.com/spf13/cobra"
)

type accountArguments struct {
	Url     string
	Address string
	Skey    string
}

var accountArgs accountArguments

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show the nonce of an account",
	RunE:  accountRun,
}

func init() {
	urlFlag(accountCmd, &accountArgs.Url)
	accountCmd.Flags().StringVarP(&accountArgs.Address, "address", "a", "", "account address, defaults to the key file address")
	skeyFlag(accountCmd, &accountArgs.Skey)
}

func accountRun(cmd *cobra.Command, args []string) error {
	var addr types.Address
	if accountArgs.Address != "" {
		a, err := types.ParseAddress(accountArgs.Address)
		if err != nil {
			return err
		}
		addr = a
	} else {
		pv, err := crypto.LoadFilePV(accountArgs.Skey)
		if err != nil {
			return err
		}
		addr = pv.Address()
	}
	cli, err := http.New(accountArgs.Url, "/websocket")
	if err != nil {
		return err
	}
	act, err := queryAccount(cli, addr)
	if err != nil {
		return err
	}
	if act == nil {
		fmt.Printf("addr:%v nonce:0\n", addr)
		return nil
	}
	fmt.Printf("addr:%v pk:%X nonce:%v\n", act.Address(), act.PubKey.Bytes(), act.Nonce)
	return nil
}
