// Command shcctl is a command-line client for a shardcache node: it speaks
// the same wire protocol as pkg/wire/request over a single connection per
// invocation.
package main

import (
	"fmt"
	"os"

	"github.com/shardcache-go/shc/cmd/shcctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
