package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shardcache-go/shc/pkg/wire"
	"github.com/shardcache-go/shc/pkg/wire/request"
)

var touchCmd = &cobra.Command{
	Use:   "touch <key>",
	Short: "Rewrite a stored key in place, keeping its current expiration",
	Args:  cobra.ExactArgs(1),
	RunE:  runTouch,
}

func runTouch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	conn, cfg, err := dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	resp, err := request.Do(ctx, conn, cfg, wire.CmdTouch, [][]byte{[]byte(args[0])})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("touch failed for key: %s", args[0])
	}
	fmt.Println("OK")
	return nil
}
