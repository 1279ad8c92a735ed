package commands

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shardcache-go/shc/pkg/wire"
	"github.com/shardcache-go/shc/pkg/wire/request"
)

var (
	setAdd    bool
	setExpire uint32
)

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a value, overwriting any existing one",
	Args:  cobra.ExactArgs(2),
	RunE:  runSet,
}

func init() {
	setCmd.Flags().BoolVar(&setAdd, "add", false, "fail instead of overwriting if the key already exists")
	setCmd.Flags().Uint32Var(&setExpire, "expire", 0, "expiration in seconds from now (0 means never)")
}

func runSet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	conn, cfg, err := dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	records := [][]byte{[]byte(args[0]), []byte(args[1])}
	if setExpire > 0 {
		var expireBuf [4]byte
		binary.BigEndian.PutUint32(expireBuf[:], setExpire)
		records = append(records, expireBuf[:])
	}

	wireCmd := wire.CmdSet
	if setAdd {
		wireCmd = wire.CmdAdd
	}

	resp, err := request.Do(ctx, conn, cfg, wireCmd, records)
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("key already exists: %s", args[0])
	}
	fmt.Println("OK")
	return nil
}
