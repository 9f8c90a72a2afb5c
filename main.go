// Package main is the entry point for the multidecoder CLI application.
package main

import (
	"fmt"
	"os"

	"github.com/kestrel-sec/multidecoder/cmd"
)

// Version information, injected at build time.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	rootCmd := cmd.NewRootCmd(cmd.DefaultReader())
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
