package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/calehh/dao-app/app"
	"github.com/calehh/dao-app/crypto"
	"github.com/calehh/dao-app/state"
	"github.com/calehh/dao-app/tx"
	"github.com/calehh/dao-app/types"
	"github.com/cometbft/cometbft/rpc/client/http"
	"github.com/spf13/cobra"
)

type txArguments struct {
	Url    string
	Nonce  uint64
	Skey   string
	NoSend bool
}

func txFlags(cmd *cobra.Command, args *txArguments) {
	urlFlag(cmd, &args.Url)
	skeyFlag(cmd, &args.Skey)
	cmd.Flags().Uint64VarP(&args.Nonce, "nonce", "n", 0, "account nonce, queried when 0")
	cmd.Flags().BoolVarP(&args.NoSend, "nosend", "", false, "not send transaction but print it")
}

func abciQuery(cli *http.HTTP, path string, data []byte) ([]byte, error) {
	res, err := cli.ABCIQuery(context.Background(), path, data)
	if err != nil {
		return nil, err
	}
	if res.Response.Code != app.QueryCodeOK {
		return nil, fmt.Errorf("query %s failed code:%d log:%s", path, res.Response.Code, res.Response.Log)
	}
	return res.Response.Value, nil
}

// queryAccount returns nil without error for an address that never sent a tx.
func queryAccount(cli *http.HTTP, addr types.Address) (*state.Account, error) {
	res, err := cli.ABCIQuery(context.Background(), "/accounts/", addr)
	if err != nil {
		return nil, err
	}
	if res.Response.Code == app.QueryCodeNotFound {
		return nil, nil
	}
	if res.Response.Code != app.QueryCodeOK {
		return nil, fmt.Errorf("query account failed code:%d", res.Response.Code)
	}
	var act state.Account
	err = act.UnmarshalJSON(res.Response.Value)
	if err != nil {
		return nil, err
	}
	return &act, nil
}

// broadcast signs body as a tx of type tp with the key in args and sends it.
func broadcast(args *txArguments, tp tx.DAOTxType, body any) error {
	cli, err := http.New(args.Url, "/websocket")
	if err != nil {
		return fmt.Errorf("new client err:%w", err)
	}
	ctx := context.Background()
	gres, err := cli.Genesis(ctx)
	if err != nil {
		return fmt.Errorf("get chain genesis err:%w", err)
	}
	chainId := gres.Genesis.ChainID
	pv, err := crypto.LoadFilePV(args.Skey)
	if err != nil {
		return err
	}
	nonce := args.Nonce
	if nonce == 0 {
		act, err := queryAccount(cli, pv.Address())
		if err != nil {
			return err
		}
		if act != nil {
			nonce = act.Nonce
		}
	}
	btx := &tx.DAOTx{
		Version: tx.DAOTxVersion1,
		Type:    tp,
		Nonce:   nonce,
		Tx:      body,
	}
	if err = pv.SignTx(btx, chainId); err != nil {
		return fmt.Errorf("sign tx err:%w", err)
	}
	dat, err := tx.MarshalDAOTx(btx)
	if err != nil {
		return err
	}
	if args.NoSend {
		fmt.Println(hex.EncodeToString(dat))
		return nil
	}
	res, err := cli.BroadcastTxSync(ctx, dat)
	if err != nil {
		return fmt.Errorf("broadcast tx err:%w", err)
	}
	dat, _ = json.Marshal(res)
	fmt.Println(string(dat))
	return nil
}
