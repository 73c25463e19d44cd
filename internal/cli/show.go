package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/AgentTrail/AgentTrail/internal/timeline"
)

var showCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show a task's merged timeline",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().Bool("json", false, "Output normalized messages as JSON")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	task, err := st.GetTask(args[0])
	if err != nil {
		return err
	}
	msgs, err := st.FindByTask(task.TaskID)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(msgs)
	}

	entries := timeline.Merge(msgs)
	renderTimeline(cmd.OutOrStdout(), task, entries)
	return nil
}
