package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shardcache-go/shc/pkg/wire"
	"github.com/shardcache-go/shc/pkg/wire/request"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe whether the node's backend is healthy",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	conn, cfg, err := dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	resp, err := request.Do(ctx, conn, cfg, wire.CmdCheck, [][]byte{{}})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("node reported unhealthy")
	}
	fmt.Println("healthy")
	return nil
}
