package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/AgentTrail/AgentTrail/internal/migrate"
)

var reprocessCmd = &cobra.Command{
	Use:   "reprocess [task-id]",
	Short: "Regenerate normalized rows from raw events",
	Long: "Regenerates a task's normalized rows from its stored raw events under\n" +
		"the current normalizer version. Without a task id, every task holding\n" +
		"rows from an older version is reprocessed.",
	Args: cobra.MaximumNArgs(1),
	RunE: runReprocess,
}

func init() {
	reprocessCmd.Flags().Bool("all", false, "Reprocess every task regardless of version")
	rootCmd.AddCommand(reprocessCmd)
}

func runReprocess(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")

	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if len(args) == 1 {
		rows, err := st.ReprocessTask(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Reprocessed task %s: %d rows\n", args[0], rows)
		return nil
	}

	res, err := migrate.Run(st, all)
	if err != nil {
		return err
	}
	fmt.Printf("Reprocessed %d tasks (%d rows)\n", res.Reprocessed, res.Rows)
	for _, f := range res.Failed {
		fmt.Printf("%s %s: %v\n", color.RedString("failed"), f.TaskID, f.Err)
	}
	if len(res.Failed) > 0 {
		return fmt.Errorf("%d tasks failed to reprocess", len(res.Failed))
	}
	return nil
}
