// Package cmd provides the CLI commands for enclave-guardd.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentscript/sentinel-enclave/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "enclave-guardd",
	Short: "enclave-guardd - sandboxed execution of agent-authored JavaScript",
	Long: `enclave-guardd runs agent-authored JavaScript inside a validated,
transformed, and resource-bounded V8 sandbox, mediating every tool call the
script makes through an explicit allow/block policy.

Quick start:
  1. Create a config file: enclave-guardd.yaml
  2. Run: enclave-guardd run script.js

Configuration:
  Config is loaded from enclave-guardd.yaml in the current directory,
  $HOME/.enclave-guardd/, or /etc/enclave-guardd/.

  Environment variables can override config values with the
  ENCLAVE_GUARDD_ prefix. Example: ENCLAVE_GUARDD_SANDBOX_SECURITY_LEVEL=strict

Commands:
  run         Execute a script inside the sandbox
  validate    Validate a script without executing it
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./enclave-guardd.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
