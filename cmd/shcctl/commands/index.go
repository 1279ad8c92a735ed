package commands

import (
	"context"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shardcache-go/shc/internal/cliutil"
	"github.com/shardcache-go/shc/pkg/wire"
	"github.com/shardcache-go/shc/pkg/wire/request"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "List every key currently stored on the node",
	Args:  cobra.NoArgs,
	RunE:  runIndex,
}

type indexEntries []request.IndexEntry

func (e indexEntries) Headers() []string { return []string{"KEY", "VALUE LENGTH"} }
func (e indexEntries) Rows() [][]string {
	rows := make([][]string, 0, len(e))
	for _, entry := range e {
		rows = append(rows, []string{string(entry.Key), strconv.FormatUint(uint64(entry.VLen), 10)})
	}
	return rows
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	conn, cfg, err := dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	resp, err := request.Do(ctx, conn, cfg, wire.CmdGetIndex, [][]byte{{}})
	if err != nil {
		return err
	}

	format, err := outputFormat()
	if err != nil {
		return err
	}
	entries := indexEntries(resp.Index)
	return cliutil.PrintOutput(os.Stdout, format, entries, len(entries) == 0, "No keys stored.", entries)
}
