package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shardcache-go/shc/pkg/wire"
	"github.com/shardcache-go/shc/pkg/wire/request"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <key>",
	Aliases: []string{"del"},
	Short:   "Remove a key",
	Args:    cobra.ExactArgs(1),
	RunE:    runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	conn, cfg, err := dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	resp, err := request.Do(ctx, conn, cfg, wire.CmdDelete, [][]byte{[]byte(args[0])})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("delete failed for key: %s", args[0])
	}
	fmt.Println("OK")
	return nil
}
