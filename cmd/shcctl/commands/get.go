package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shardcache-go/shc/pkg/wire"
	"github.com/shardcache-go/shc/pkg/wire/request"
)

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Fetch a value by key",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	conn, cfg, err := dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	resp, err := request.Do(ctx, conn, cfg, wire.CmdGet, [][]byte{[]byte(args[0])})
	if err != nil {
		return err
	}
	if len(resp.Bytes) == 0 {
		return fmt.Errorf("key not found: %s", args[0])
	}
	_, err = os.Stdout.Write(resp.Bytes)
	return err
}
