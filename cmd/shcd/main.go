// Command shcd is the shardcache node daemon: a single TCP listener
// speaking the wire protocol in pkg/wire, backed by the Badger/Ristretto
// store in internal/store.
package main

import (
	"fmt"
	"os"

	"github.com/shardcache-go/shc/cmd/shcd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
