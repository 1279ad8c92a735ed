package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shardcache-go/shc/pkg/wire"
	"github.com/shardcache-go/shc/pkg/wire/request"
)

var existsCmd = &cobra.Command{
	Use:   "exists <key>",
	Short: "Check whether a key exists",
	Args:  cobra.ExactArgs(1),
	RunE:  runExists,
}

func runExists(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	conn, cfg, err := dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	resp, err := request.Do(ctx, conn, cfg, wire.CmdExists, [][]byte{[]byte(args[0])})
	if err != nil {
		return err
	}
	if resp.OK {
		fmt.Println("yes")
	} else {
		fmt.Println("no")
	}
	return nil
}
