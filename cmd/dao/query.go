package main

import (
	"fmt"
	"strconv"

	"github.com/calehh/dao-app/app"
	"github.com/calehh/dao-app/types"
	"github.com/cometbft/cometbft/rpc/client/http"
	"github.com/spf13/cobra"
)

var queryUrl string

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query committed dao state",
}

func init() {
	queryCmd.PersistentFlags().StringVarP(&queryUrl, "url", "u", "http://127.0.0.1:26657", "dao node rpc url")
	queryCmd.AddCommand(
		&cobra.Command{
			Use:   "registry [index]",
			Short: "Show a member registry",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return queryIndexed("/registries/", args[0])
			},
		},
		&cobra.Command{
			Use:   "proposal [index]",
			Short: "Show a proposal with its status",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return queryIndexed("/proposals/", args[0])
			},
		},
		&cobra.Command{
			Use:   "mint [denom]",
			Short: "Show a token mint",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return queryPrint("/mints/", []byte(args[0]))
			},
		},
		&cobra.Command{
			Use:   "balance [denom] [address]",
			Short: "Show a token balance",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				addr, err := types.ParseAddress(args[1])
				if err != nil {
					return err
				}
				return queryPrint("/balances/", []byte(args[0]+"/"+addr.String()))
			},
		},
		&cobra.Command{
			Use:   "layout",
			Short: "Show record capacity, reserved sizes and installed actions",
			Args:  cobra.ExactArgs(0),
			RunE: func(cmd *cobra.Command, args []string) error {
				return queryPrint("/layout/", nil)
			},
		},
	)
}

func queryIndexed(path string, arg string) error {
	idx, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return err
	}
	return queryPrint(path, app.EncodeIndex(idx))
}

func queryPrint(path string, data []byte) error {
	cli, err := http.New(queryUrl, "/websocket")
	if err != nil {
		return err
	}
	val, err := abciQuery(cli, path, data)
	if err != nil {
		return err
	}
	fmt.Println(string(val))
	return nil
}
