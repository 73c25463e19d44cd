// Package main is the entry point for the agenttrail CLI.
package main

import (
	"os"

	"github.com/AgentTrail/AgentTrail/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
