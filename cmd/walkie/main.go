// Package main is the entry point of the walkie CLI.
//
// Usage:
//
//	walkie [flags] <command> [subcommand] [args]
//
// Commands:
//
//	config     - Manage backend contexts
//	talk       - Open an interactive voice session
//	play       - Play a stored recording
//	history    - Show recorded message history
//	version    - Show version information
package main

import (
	"os"

	"github.com/groovydhruv/power-ups/cmd/walkie/commands"
	"github.com/groovydhruv/power-ups/pkg/cli"
)

func main() {
	if err := commands.Execute(); err != nil {
		cli.PrintError("%v", err)
		os.Exit(1)
	}
}
