// Package commands implements the shcctl CLI.
package commands

import (
	"github.com/spf13/cobra"
)

// Flags holds the global flag values shared by every subcommand.
var Flags = struct {
	Server     string
	SecretFile string
	Secret     string
	SigMode    string
	Output     string
	Timeout    int
}{}

var rootCmd = &cobra.Command{
	Use:   "shcctl",
	Short: "command-line client for a shardcache node",
	Long: `shcctl is a thin client over the shardcache wire protocol: each
invocation opens one connection, sends one command, and prints the
response.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once by main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&Flags.Server, "server", "localhost:4444", "shardcache node address (host or host:port)")
	rootCmd.PersistentFlags().StringVar(&Flags.SecretFile, "secret-file", "", "path to a file containing the shared secret")
	rootCmd.PersistentFlags().StringVar(&Flags.Secret, "secret", "", "shared secret (prefer --secret-file; prompts interactively if auth is required and neither is set)")
	rootCmd.PersistentFlags().StringVar(&Flags.SigMode, "sig-mode", "none", "signature mode: none, whole, or chunk")
	rootCmd.PersistentFlags().StringVarP(&Flags.Output, "output", "o", "table", "output format: table, json, or yaml")
	rootCmd.PersistentFlags().IntVar(&Flags.Timeout, "timeout", 5, "request timeout in seconds")

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(existsCmd)
	rootCmd.AddCommand(touchCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(indexCmd)
}
