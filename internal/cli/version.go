package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AgentTrail/AgentTrail/internal/normalizer"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Normalizer format: v%d\n", normalizer.Version)
		fmt.Printf("Backends: %v\n", normalizer.Backends())
	},
}
