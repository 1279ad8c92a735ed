package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shardcache-go/shc/internal/cliutil"
	"github.com/shardcache-go/shc/pkg/wire"
	"github.com/shardcache-go/shc/pkg/wire/request"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show item count and total byte size on the node",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

// nodeStats is the table/JSON/YAML rendering of a STATS response.
type nodeStats struct {
	Items int    `json:"items" yaml:"items"`
	Bytes uint64 `json:"bytes" yaml:"bytes"`
}

func (s nodeStats) Headers() []string { return []string{"ITEMS", "BYTES"} }
func (s nodeStats) Rows() [][]string {
	return [][]string{{strconv.Itoa(s.Items), strconv.FormatUint(s.Bytes, 10)}}
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	conn, cfg, err := dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	resp, err := request.Do(ctx, conn, cfg, wire.CmdStats, [][]byte{{}})
	if err != nil {
		return err
	}

	stats, err := parseStats(resp.Bytes)
	if err != nil {
		return err
	}

	format, err := outputFormat()
	if err != nil {
		return err
	}
	return cliutil.PrintOutput(os.Stdout, format, stats, false, "", stats)
}

// parseStats decodes the "items=N,bytes=M\x00" body encodeStats produces.
func parseStats(body []byte) (nodeStats, error) {
	s := strings.TrimSuffix(string(body), "\x00")
	var stats nodeStats
	for _, field := range strings.Split(s, ",") {
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "items":
			n, err := strconv.Atoi(kv[1])
			if err != nil {
				return nodeStats{}, fmt.Errorf("malformed stats response: %w", err)
			}
			stats.Items = n
		case "bytes":
			n, err := strconv.ParseUint(kv[1], 10, 64)
			if err != nil {
				return nodeStats{}, fmt.Errorf("malformed stats response: %w", err)
			}
			stats.Bytes = n
		}
	}
	return stats, nil
}
